// Package storage is the object store adapter holding encrypted blobs.
// Keys are supplied by the caller; the adapter never generates them.
package storage

import "context"

// ObjectStore reads and writes whole objects. Get on a missing key returns
// common.ErrNotFound; any other backend failure wraps common.ErrStorage.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
