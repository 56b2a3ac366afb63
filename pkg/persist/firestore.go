package persist

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig holds configuration for the Firestore client.
type FirestoreConfig struct {
	ProjectID      string `env:"PROJECT_ID"`
	CollectionName string `env:"COLLECTION" envDefault:"query-cache"`
}

// firestoreEntry is the document shape for one entry.
type firestoreEntry struct {
	Value string `firestore:"value"`
}

// FirestorePersistor stores one document per key in a single collection.
// Keys must be valid document IDs; query storage keys are hex digests and
// always are.
//
// Suitable for low volume deployments; use Redis for anything busier.
type FirestorePersistor struct {
	client         *firestore.Client
	collectionName string
	logger         zerolog.Logger
}

// NewFirestorePersistor creates a persistor over an injected client.
func NewFirestorePersistor(cfg *FirestoreConfig, client *firestore.Client, logger zerolog.Logger) (*FirestorePersistor, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	if cfg.CollectionName == "" {
		return nil, fmt.Errorf("firestore collection name is required")
	}

	logger.Info().Str("project_id", cfg.ProjectID).Str("collection", cfg.CollectionName).Msg("FirestorePersistor initialized.")

	return &FirestorePersistor{
		client:         client,
		collectionName: cfg.CollectionName,
		logger:         logger.With().Str("component", "FirestorePersistor").Logger(),
	}, nil
}

// GetItem retrieves a single document by key.
func (p *FirestorePersistor) GetItem(ctx context.Context, key string) (string, bool, error) {
	docSnap, err := p.client.Collection(p.collectionName).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", false, nil
		}
		p.logger.Error().Err(err).Str("key", key).Msg("Failed to get document from Firestore.")
		return "", false, fmt.Errorf("firestore get for %s: %w", key, err)
	}

	var entry firestoreEntry
	if err := docSnap.DataTo(&entry); err != nil {
		return "", false, fmt.Errorf("firestore DataTo for %s: %w", key, err)
	}
	return entry.Value, true, nil
}

// SetItem writes the document for key.
func (p *FirestorePersistor) SetItem(ctx context.Context, key, value string) error {
	_, err := p.client.Collection(p.collectionName).Doc(key).Set(ctx, firestoreEntry{Value: value})
	if err != nil {
		p.logger.Error().Err(err).Str("key", key).Msg("Failed to write document to Firestore.")
		return fmt.Errorf("firestore set for %s: %w", key, err)
	}
	return nil
}

// RemoveItem deletes the document for key. Deleting a missing document
// succeeds in Firestore.
func (p *FirestorePersistor) RemoveItem(ctx context.Context, key string) error {
	if _, err := p.client.Collection(p.collectionName).Doc(key).Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete for %s: %w", key, err)
	}
	return nil
}

// Clear deletes every document in the collection.
func (p *FirestorePersistor) Clear(ctx context.Context) error {
	iter := p.client.Collection(p.collectionName).Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("firestore list %s: %w", p.collectionName, err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return fmt.Errorf("firestore delete for %s: %w", doc.Ref.ID, err)
		}
		count++
	}
	p.logger.Debug().Int("count", count).Msg("Cleared Firestore collection.")
	return nil
}

// Close is a no-op as the Firestore client's lifecycle is managed externally.
func (p *FirestorePersistor) Close() error {
	p.logger.Info().Msg("FirestorePersistor does not close the injected Firestore client.")
	return nil
}
