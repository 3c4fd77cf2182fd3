package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opsuite/pkg/apperr"
)

type Config struct {
	URI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	DBName string `env:"MONGO_DB" envDefault:"opsuite"`
}

// Connect dials MongoDB with the decimal codec registered and pings it.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Client().ApplyURI(cfg.URI).SetRegistry(NewRegistry())
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// TranslateError maps driver errors onto apperr sentinels.
func TranslateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return apperr.ErrDuplicate
	default:
		return err
	}
}
