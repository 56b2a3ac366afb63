package persist

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
)

// ====================================================================================
// Interfaces over the Google Cloud Storage client so the GCSPersistor can be
// tested against an in-memory fake instead of a real bucket.
// ====================================================================================

// GCSClient abstracts the top-level *storage.Client.
type GCSClient interface {
	Bucket(name string) GCSBucketHandle
}

// GCSBucketHandle abstracts a *storage.BucketHandle.
type GCSBucketHandle interface {
	Object(name string) GCSObjectHandle
	Objects(ctx context.Context, q *storage.Query) GCSObjectIterator
}

// GCSObjectHandle abstracts a *storage.ObjectHandle.
type GCSObjectHandle interface {
	NewReader(ctx context.Context) (io.ReadCloser, error)
	NewWriter(ctx context.Context) io.WriteCloser
	Delete(ctx context.Context) error
}

// GCSObjectIterator abstracts a *storage.ObjectIterator.
type GCSObjectIterator interface {
	Next() (*storage.ObjectAttrs, error)
}

// --- Adapters to wrap the concrete Google Cloud Storage client ---

type gcsClientAdapter struct {
	client *storage.Client
}

// NewGCSClientAdapter makes a *storage.Client conform to GCSClient.
func NewGCSClientAdapter(client *storage.Client) GCSClient {
	if client == nil {
		return nil
	}
	return &gcsClientAdapter{client: client}
}

func (a *gcsClientAdapter) Bucket(name string) GCSBucketHandle {
	return &gcsBucketHandleAdapter{handle: a.client.Bucket(name)}
}

type gcsBucketHandleAdapter struct {
	handle *storage.BucketHandle
}

func (a *gcsBucketHandleAdapter) Object(name string) GCSObjectHandle {
	return &gcsObjectHandleAdapter{handle: a.handle.Object(name)}
}

func (a *gcsBucketHandleAdapter) Objects(ctx context.Context, q *storage.Query) GCSObjectIterator {
	return a.handle.Objects(ctx, q)
}

type gcsObjectHandleAdapter struct {
	handle *storage.ObjectHandle
}

func (a *gcsObjectHandleAdapter) NewReader(ctx context.Context) (io.ReadCloser, error) {
	r, err := a.handle.NewReader(ctx)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (a *gcsObjectHandleAdapter) NewWriter(ctx context.Context) io.WriteCloser {
	return a.handle.NewWriter(ctx)
}

func (a *gcsObjectHandleAdapter) Delete(ctx context.Context) error {
	return a.handle.Delete(ctx)
}
