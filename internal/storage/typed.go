package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// Get decodes the JSON document under key into a T. A missing key, a
// backend failure or a corrupt document all yield def; the latter two are
// logged at warn on logger, or slog.Default when logger is nil.
func Get[T any](ctx context.Context, b Backend, key string, def T, logger *slog.Logger) T {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := b.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warn("storage: load failed, using default",
				slog.String("key", key), slog.String("error", err.Error()))
		}
		return def
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		logger.Warn("storage: corrupt document, using default",
			slog.String("key", key), slog.String("error", err.Error()))
		return def
	}
	return v
}

// Set serializes v and saves it under key.
func Set[T any](ctx context.Context, b Backend, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	if err := b.Save(ctx, key, data); err != nil {
		return fmt.Errorf("storage: save %s: %w", key, err)
	}
	return nil
}
