package persist

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendRedis     = "redis"
	BackendFirestore = "firestore"
	BackendGCS       = "gcs"
)

// Config selects a backend and carries the settings for each one.
type Config struct {
	Backend   string          `env:"BACKEND" envDefault:"memory"`
	SQLite    SQLiteConfig    `envPrefix:"SQLITE_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	Firestore FirestoreConfig `envPrefix:"FIRESTORE_"`
	GCS       GCSConfig       `envPrefix:"GCS_"`
}

// LoadConfig reads a Config from environment variables, each name prefixed
// with prefix (for example "PERSIST_" gives PERSIST_BACKEND).
func LoadConfig(prefix string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: prefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ownedPersistor closes clients that Open created on the caller's behalf.
type ownedPersistor struct {
	Persistor
	closeClient func() error
}

func (o ownedPersistor) Close() error {
	if err := o.Persistor.Close(); err != nil {
		return err
	}
	return o.closeClient()
}

// Open builds the backend named by cfg.Backend. Cloud clients created here
// are closed together with the returned Persistor.
func Open(ctx context.Context, cfg *Config, logger zerolog.Logger) (Persistor, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendMemory:
		return NewInMemoryPersistor(), nil
	case BackendSQLite:
		p, err := OpenSQLitePersistor(ctx, &cfg.SQLite, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendRedis:
		p, err := NewRedisPersistor(ctx, &cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendFirestore:
		client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		p, err := NewFirestorePersistor(&cfg.Firestore, client, logger)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return ownedPersistor{Persistor: p, closeClient: client.Close}, nil
	case BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		p, err := NewGCSPersistor(NewGCSClientAdapter(client), cfg.GCS, logger)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return ownedPersistor{Persistor: p, closeClient: client.Close}, nil
	default:
		return nil, fmt.Errorf("unknown persist backend %q", cfg.Backend)
	}
}
