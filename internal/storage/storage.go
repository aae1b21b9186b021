package storage

import (
	"context"
	"io"
	"time"
)

// Object key prefixes. Meal photos are permanent; inline/ objects are
// transient and purged once older than InlineRetention.
const (
	MealPhotoPrefix = "photos/"
	InlinePrefix    = "inline/"
)

// PresignTTL is the lifetime of every signed URL handed out, for both
// uploads and reads. Workers must finish estimation before expiry.
const PresignTTL = 15 * time.Minute

// InlineRetention is how long transient inline uploads are kept.
const InlineRetention = 24 * time.Hour

type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedKey string, err error)
}

type Signer interface {
	SignedPutURL(ctx context.Context, objectName string, contentType string, ttl time.Duration) (string, error)
	SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}

type Purger interface {
	// PurgeBefore deletes objects under prefix created before cutoff
	// and returns how many were removed.
	PurgeBefore(ctx context.Context, prefix string, cutoff time.Time) (int, error)
}

// ExtForContentType maps an image content type to an object-key
// extension, defaulting to .jpg.
func ExtForContentType(ct string) string {
	switch ct {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
