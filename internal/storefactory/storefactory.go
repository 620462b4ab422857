// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storefactory builds a profile.Store from internal/config's
// StorageConfig, shared by cmd/libid and cmd/libidserver so both entry
// points honor the same storage.backend setting.
package storefactory

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
	"github.com/dgraph-io/badger/v4"

	"github.com/aleutian-labs/libid/internal/config"
	"github.com/aleutian-labs/libid/profile"
)

// Build returns the profile.Store named by cfg.Backend, rooted at dir for
// the "file" backend (the default). "badger" wraps a FileStore with a
// BadgerDB memoization cache opened under cfg.BadgerDir; "gcs" stores
// profiles as objects in cfg.GCSBucket/cfg.GCSPrefix instead of dir.
//
// The returned closer must be called once the store is no longer needed
// (it is a no-op for backends that open no external handle).
func Build(ctx context.Context, cfg config.StorageConfig, dir string, logger *slog.Logger) (profile.Store, func() error, error) {
	switch cfg.Backend {
	case "", "file":
		return profile.NewFileStore(dir), func() error { return nil }, nil

	case "badger":
		fileStore := profile.NewFileStore(dir)
		db, err := badger.Open(badger.DefaultOptions(cfg.BadgerDir))
		if err != nil {
			return nil, nil, fmt.Errorf("storefactory: opening badger db at %s: %w", cfg.BadgerDir, err)
		}
		cache, err := profile.NewBadgerCache(db, fileStore, logger)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("storefactory: wrapping badger cache: %w", err)
		}
		return cache, db.Close, nil

	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("storefactory: creating GCS client: %w", err)
		}
		store := profile.NewGCSStore(client, cfg.GCSBucket, cfg.GCSPrefix)
		return store, client.Close, nil

	default:
		return nil, nil, fmt.Errorf("storefactory: unknown storage backend %q", cfg.Backend)
	}
}
