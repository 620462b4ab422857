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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
)

// GCSStore persists profiles as JSON objects in a Google Cloud Storage
// bucket instead of on local disk, for teams that keep their library
// corpus centralized. It satisfies the same Store contract and the same
// JSON shape as FileStore.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore returns a GCSStore writing objects under "<prefix>/<basename>.json"
// in bucket, using client for all object operations. The caller owns
// client's lifecycle.
func NewGCSStore(client *storage.Client, bucket, prefix string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *GCSStore) objectName(basename string) string {
	return path.Join(s.prefix, basename+".json")
}

// SaveLibrary uploads p as "<prefix>/<name>_<version>.json".
func (s *GCSStore) SaveLibrary(ctx context.Context, p *LibraryProfile) error {
	return s.write(ctx, s.objectName(p.Name+"_"+p.Version), p)
}

// LoadLibrary downloads and decodes the library profile at objectPath.
func (s *GCSStore) LoadLibrary(ctx context.Context, objectPath string) (*LibraryProfile, error) {
	var p LibraryProfile
	if err := s.read(ctx, objectPath, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveApp uploads p as "<prefix>/<filename-basename>.json".
func (s *GCSStore) SaveApp(ctx context.Context, p *AppProfile) error {
	return s.write(ctx, s.objectName(trimExt(path.Base(p.Filename))), p)
}

// LoadApp downloads and decodes the app profile at objectPath.
func (s *GCSStore) LoadApp(ctx context.Context, objectPath string) (*AppProfile, error) {
	var p AppProfile
	if err := s.read(ctx, objectPath, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GCSStore) write(ctx context.Context, object string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("profile: encoding %s: %w", object, err)
	}
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("profile: uploading gs://%s/%s: %w", s.bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("profile: finalizing upload gs://%s/%s: %w", s.bucket, object, err)
	}
	return nil
}

func (s *GCSStore) read(ctx context.Context, object string, v any) error {
	r, err := s.client.Bucket(s.bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("%w: gs://%s/%s", ErrNotFound, s.bucket, object)
		}
		return fmt.Errorf("profile: opening gs://%s/%s: %w", s.bucket, object, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("profile: reading gs://%s/%s: %w", s.bucket, object, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: gs://%s/%s: %v", ErrMalformedProfile, s.bucket, object, err)
	}
	return nil
}
