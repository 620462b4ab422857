// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package profile

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDB key prefixes for the profile memoization cache.
const (
	keyPrefixLib = "profile:lib:"
	keyPrefixApp = "profile:app:"
)

// BadgerCache wraps a Store with a BadgerDB-backed memoization layer that
// stores gzip-compressed JSON blobs of profiles.
//
// Description:
//
//	Save writes through to the wrapped Store and also stores a compressed
//	copy keyed by "name:version" (libraries) or filename (apps). Load keys
//	the cache by the SHA-256 of the profile file at path, checks it first
//	and falls back to the wrapped Store, backfilling the cache on a miss.
//	Load's keys differ from Save's, so Load does not read entries that
//	Save wrote.
//
// Thread Safety:
//
//	Safe for concurrent use. BadgerDB handles its own concurrency control.
type BadgerCache struct {
	db       *badger.DB
	logger   *slog.Logger
	wrapped  Store
	hashFunc func(path string) (string, error)
}

// NewBadgerCache wraps next with a BadgerDB-backed memoization layer using
// the opened db. The caller owns db's lifecycle (open/close).
func NewBadgerCache(db *badger.DB, next Store, logger *slog.Logger) (*BadgerCache, error) {
	if db == nil {
		return nil, fmt.Errorf("profile: badger db must not be nil")
	}
	if next == nil {
		return nil, fmt.Errorf("profile: wrapped store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerCache{db: db, wrapped: next, logger: logger, hashFunc: hashFileContents}, nil
}

// SaveLibrary writes through to the wrapped store, then caches a
// compressed copy keyed by the library's name and version.
func (c *BadgerCache) SaveLibrary(ctx context.Context, p *LibraryProfile) error {
	if err := c.wrapped.SaveLibrary(ctx, p); err != nil {
		return err
	}
	key := keyPrefixLib + p.Name + ":" + p.Version
	return c.put(key, p)
}

// LoadLibrary checks the cache first, keyed by the content hash of the file
// at path, falling back to the
// wrapped store and backfilling the cache on a miss.
func (c *BadgerCache) LoadLibrary(ctx context.Context, path string) (*LibraryProfile, error) {
	contentHash, err := c.hashFunc(path)
	if err != nil {
		return c.wrapped.LoadLibrary(ctx, path)
	}
	key := keyPrefixLib + "content:" + contentHash
	var p LibraryProfile
	if ok, err := c.get(key, &p); err == nil && ok {
		return &p, nil
	}
	loaded, err := c.wrapped.LoadLibrary(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := c.put(key, loaded); err != nil {
		c.logger.Warn("profile cache backfill failed", slog.String("path", path), slog.Any("error", err))
	}
	return loaded, nil
}

// SaveApp writes through to the wrapped store, then caches a compressed copy.
func (c *BadgerCache) SaveApp(ctx context.Context, p *AppProfile) error {
	if err := c.wrapped.SaveApp(ctx, p); err != nil {
		return err
	}
	key := keyPrefixApp + p.Filename
	return c.put(key, p)
}

// LoadApp checks the cache first, keyed by the content hash of the file at
// path, falling back to the
// wrapped store and backfilling the cache on a miss.
func (c *BadgerCache) LoadApp(ctx context.Context, path string) (*AppProfile, error) {
	contentHash, err := c.hashFunc(path)
	if err != nil {
		return c.wrapped.LoadApp(ctx, path)
	}
	key := keyPrefixApp + "content:" + contentHash
	var p AppProfile
	if ok, err := c.get(key, &p); err == nil && ok {
		return &p, nil
	}
	loaded, err := c.wrapped.LoadApp(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := c.put(key, loaded); err != nil {
		c.logger.Warn("profile cache backfill failed", slog.String("path", path), slog.Any("error", err))
	}
	return loaded, nil
}

func (c *BadgerCache) put(key string, v any) error {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("profile: encoding cache entry %s: %w", key, err)
	}
	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("profile: creating gzip writer: %w", err)
	}
	if _, err := gw.Write(jsonData); err != nil {
		return fmt.Errorf("profile: compressing cache entry: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("profile: closing gzip writer: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), compressed.Bytes())
	})
}

func (c *BadgerCache) get(key string, v any) (bool, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte{}, val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	gr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return false, fmt.Errorf("profile: opening cached gzip entry: %w", err)
	}
	defer gr.Close()
	data, err := io.ReadAll(gr)
	if err != nil {
		return false, fmt.Errorf("profile: reading cached entry: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("profile: decoding cached entry: %w", err)
	}
	return true, nil
}

// hashFileContents returns the hex-encoded SHA-256 digest of the file at
// path, used as the cache key so an unchanged binary hits the cache
// regardless of where its profile was last written.
func hashFileContents(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
