package persist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// GCSConfig holds configuration for the GCS persistor.
type GCSConfig struct {
	BucketName   string `env:"BUCKET"`
	// ObjectPrefix scopes every object, and Clear, to one folder. Required.
	ObjectPrefix string `env:"OBJECT_PREFIX" envDefault:"query-cache"`
}

// GCSPersistor stores each entry as one object under ObjectPrefix.
type GCSPersistor struct {
	client GCSClient
	config GCSConfig
	logger zerolog.Logger
}

// NewGCSPersistor creates a persistor over a GCS client.
func NewGCSPersistor(gcsClient GCSClient, config GCSConfig, logger zerolog.Logger) (*GCSPersistor, error) {
	if gcsClient == nil {
		return nil, errors.New("GCS client cannot be nil")
	}
	if config.BucketName == "" {
		return nil, errors.New("GCS bucket name is required")
	}
	// Clear deletes everything under the prefix, so an empty one would
	// empty the whole bucket.
	if strings.Trim(config.ObjectPrefix, "/") == "" {
		return nil, errors.New("GCS object prefix is required")
	}
	return &GCSPersistor{
		client: gcsClient,
		config: config,
		logger: logger.With().Str("component", "GCSPersistor").Logger(),
	}, nil
}

func (p *GCSPersistor) objectName(key string) string {
	return path.Join(p.config.ObjectPrefix, key)
}

func (p *GCSPersistor) bucket() GCSBucketHandle {
	return p.client.Bucket(p.config.BucketName)
}

// GetItem downloads the object for key.
func (p *GCSPersistor) GetItem(ctx context.Context, key string) (string, bool, error) {
	objectName := p.objectName(key)
	r, err := p.bucket().Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to open GCS object %s: %w", objectName, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", false, fmt.Errorf("failed to read GCS object %s: %w", objectName, err)
	}
	return string(data), true, nil
}

// SetItem uploads value as the object for key.
func (p *GCSPersistor) SetItem(ctx context.Context, key, value string) error {
	objectName := p.objectName(key)
	w := p.bucket().Object(objectName).NewWriter(ctx)

	_, writeErr := io.Copy(w, strings.NewReader(value))
	closeErr := w.Close() // This finalizes the GCS upload.

	if writeErr != nil {
		return fmt.Errorf("failed to write GCS object %s: %w", objectName, writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close GCS object writer for %s: %w", objectName, closeErr)
	}
	p.logger.Debug().Str("object_name", objectName).Int("bytes_written", len(value)).Msg("Stored cache entry.")
	return nil
}

// RemoveItem deletes the object for key.
func (p *GCSPersistor) RemoveItem(ctx context.Context, key string) error {
	objectName := p.objectName(key)
	err := p.bucket().Object(objectName).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %s: %w", objectName, err)
	}
	return nil
}

// Clear deletes every object under the prefix.
func (p *GCSPersistor) Clear(ctx context.Context) error {
	prefix := p.config.ObjectPrefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	bucket := p.bucket()
	it := bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	count := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to list GCS objects under %s: %w", prefix, err)
		}
		if err := bucket.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("failed to delete GCS object %s: %w", attrs.Name, err)
		}
		count++
	}
	p.logger.Debug().Int("count", count).Str("prefix", prefix).Msg("Cleared GCS entries.")
	return nil
}

// Close is a no-op; the storage client is owned by the caller.
func (p *GCSPersistor) Close() error {
	return nil
}
