// Package archive mirrors content-addressed artifacts to blob storage and
// audits stored bytes against their identities.
//
// Objects are keyed by identity ("templates/<hash>.json",
// "snapshots/<hash>.json") and written create-only: a key, once present, is
// never overwritten. Two backends exist, a local directory tree and an
// S3-compatible bucket.
package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/golfkpi/internal/canon"
	"github.com/roach88/golfkpi/internal/store"
)

// Driver names a backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// Archive is a create-only object store.
type Archive interface {
	Driver() Driver
	// Put stores data under key unless the key already exists. It reports
	// whether the object was created.
	Put(ctx context.Context, key string, data []byte) (bool, error)
	// Get returns the object bytes, or an error wrapping kernel.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns the keys under prefix in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
}

var prefixes = map[store.ContentKind]string{
	store.KindTemplate: "templates/",
	store.KindSnapshot: "snapshots/",
}

const keySuffix = ".json"

// Key returns the object key for an artifact.
func Key(kind store.ContentKind, hash string) (string, error) {
	p, ok := prefixes[kind]
	if !ok {
		return "", fmt.Errorf("archive: unknown content kind %q", kind)
	}
	if !canon.IsHash(hash) {
		return "", fmt.Errorf("archive: malformed hash %q", hash)
	}
	return p + hash + keySuffix, nil
}

// ParseKey splits an object key into kind and hash.
func ParseKey(key string) (store.ContentKind, string, bool) {
	for kind, p := range prefixes {
		if !strings.HasPrefix(key, p) || !strings.HasSuffix(key, keySuffix) {
			continue
		}
		hash := strings.TrimSuffix(strings.TrimPrefix(key, p), keySuffix)
		if !canon.IsHash(hash) {
			return "", "", false
		}
		return kind, hash, true
	}
	return "", "", false
}

// Prefix returns the key prefix for kind.
func Prefix(kind store.ContentKind) string {
	return prefixes[kind]
}
