package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// SubjectHasher anonymises Telegram chat/user ids for throttle keys
// and analytics with HMAC-SHA256 under a configured secret. With no
// secret configured it produces empty hashes and callers fall back to
// raw ids.
type SubjectHasher struct {
	secret []byte
}

func NewSubjectHasher(secret string) *SubjectHasher {
	if secret == "" {
		return &SubjectHasher{}
	}
	return &SubjectHasher{secret: []byte(secret)}
}

func (h *SubjectHasher) HashID(id int64) string {
	if len(h.secret) == 0 || id == 0 {
		return ""
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(strconv.FormatInt(id, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// ResolveSubject picks the identifier to key on: the hash when
// present, the raw id otherwise, empty when neither is known.
func ResolveSubject(hash string, raw int64) string {
	if hash != "" {
		return hash
	}
	if raw != 0 {
		return strconv.FormatInt(raw, 10)
	}
	return ""
}
