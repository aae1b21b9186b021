package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjectHasherProducesHMACHex(t *testing.T) {
	h := NewSubjectHasher("secret-1")

	got := h.HashID(123456789)

	mac := hmac.New(sha256.New, []byte("secret-1"))
	mac.Write([]byte("123456789"))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), got)
	assert.Len(t, got, 64)

	assert.Equal(t, got, h.HashID(123456789), "same id always hashes the same")
	assert.NotEqual(t, got, h.HashID(987654321))
}

func TestSubjectHasherWithoutSecret(t *testing.T) {
	h := NewSubjectHasher("")
	assert.Empty(t, h.HashID(123456789))
}

func TestSubjectHasherZeroID(t *testing.T) {
	h := NewSubjectHasher("secret-1")
	assert.Empty(t, h.HashID(0))
}

func TestResolveSubject(t *testing.T) {
	assert.Equal(t, "abc123", ResolveSubject("abc123", 42), "hash wins over raw id")
	assert.Equal(t, "42", ResolveSubject("", 42))
	assert.Equal(t, "", ResolveSubject("", 0))
}
