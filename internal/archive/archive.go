// Package archive exports roster snapshots to object storage or a local directory.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stargate/internal/config"
	"stargate/internal/engine"
)

// Store writes one object. Implementations must not overwrite silently
// reused keys; Export always generates a fresh key.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// Open picks the configured target: an S3 bucket when archive.bucket is set,
// otherwise a directory.
func Open(ctx context.Context, cfg config.Archive) (Store, error) {
	if cfg.Bucket != "" {
		return NewS3Store(ctx, S3Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		})
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("archive target not configured: set archive.bucket or archive.dir")
	}
	return DirStore{Root: cfg.Dir}, nil
}

// Key returns <prefix>roster-<timestamp>-<uuid>.json.
func Key(prefix string, now time.Time) string {
	return fmt.Sprintf("%sroster-%s-%s.json", prefix, now.UTC().Format("20060102T150405Z"), uuid.NewString())
}

// Export snapshots the roster and writes it under a new key, which it returns.
func Export(ctx context.Context, e engine.Engine, store Store, prefix string) (string, error) {
	roster, err := e.Roster(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(roster, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal roster: %w", err)
	}
	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}
	key := Key(prefix, now)
	if err := store.Put(ctx, key, data, "application/json"); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}
