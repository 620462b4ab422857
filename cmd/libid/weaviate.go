// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"net/url"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

// newWeaviateClient builds a weaviate.Client from a plain "host:port" or
// "scheme://host:port" URL, defaulting to "http" when no scheme is given.
func newWeaviateClient(rawURL string) (*weaviate.Client, error) {
	scheme, host := "http", rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Scheme != "" && u.Host != "" {
		scheme, host = u.Scheme, u.Host
	}
	client, err := weaviate.NewClient(weaviate.Config{Scheme: scheme, Host: host})
	if err != nil {
		return nil, fmt.Errorf("connecting to weaviate at %s: %w", rawURL, err)
	}
	return client, nil
}
