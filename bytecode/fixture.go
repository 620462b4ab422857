// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bytecode

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// fixtureDoc is the on-disk shape accepted by FixtureParser: a flat JSON
// document describing one binary's classes, used by tests and the scenario
// fixtures under testdata/fixtures to stand in for a real parser without
// shipping an apk/dex toolchain.
type fixtureDoc struct {
	App     *AppMeta `json:"app,omitempty"`
	Classes []Class  `json:"classes"`
}

// FixtureParser reads JSON fixture documents instead of real binaries. It
// exists for tests and offline scenario replay; production detection goes
// through an ExternalToolParser.
type FixtureParser struct{}

// Ext reports FixtureParser accepts ".json" fixture documents.
func (FixtureParser) Ext() []string { return []string{".json"} }

// Parse reads and decodes the fixture document at path.
func (FixtureParser) Parse(_ context.Context, path string) ([]Class, AppMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, AppMeta{}, fmt.Errorf("bytecode: reading fixture %s: %w", path, err)
	}
	var doc fixtureDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, AppMeta{}, fmt.Errorf("bytecode: decoding fixture %s: %w", path, err)
	}
	meta := AppMeta{}
	if doc.App != nil {
		meta = *doc.App
	}
	return doc.Classes, meta, nil
}
