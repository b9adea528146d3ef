// Package coldstore is the cold archive: immutable per-(tag, month) blobs
// in an object store, covered by a master bloom index and one per-tag bloom
// index so point lookups can skip scanning every object.
package coldstore

import (
	"context"
	"io"
)

// ObjectClient is the object-store collaborator, shaped like the teacher
// pack's cloud-bucket abstractions (kekaifun-mimir's pkg/util/objtools.Bucket
// trims to Get/Upload/List/Delete; this package only needs that subset plus
// a cheap existence check). Concrete backends: S3Client (aws-sdk-go),
// AzureClient (azure-storage-blob-go), and a local-filesystem client for
// tests.
type ObjectClient interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, body []byte, metadata map[string]string) error
	Head(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// List returns every key under prefix, used to discover which tags have
	// a persisted bloom index without requiring this process to have
	// written or loaded them itself.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ErrObjectNotFound is returned by Get for a missing key; Head reports a
// missing key as (false, nil) instead. Backends translate their native
// not-found error into this sentinel.
type ErrObjectNotFound struct{ Key string }

func (e ErrObjectNotFound) Error() string { return "coldstore: object not found: " + e.Key }
