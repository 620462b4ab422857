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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// ExternalToolParser shells out to an external dex/apk disassembler and
// reads back the same fixtureDoc JSON shape FixtureParser consumes. The
// actual disassembly (dex parsing, basic-block splitting, xref resolution)
// is delegated entirely to the named tool; this type only handles process
// invocation and the JSON boundary.
//
// Description:
//
//	Real bytecode parsing (dex/apk format decoding, control-flow-graph
//	construction) is a large, separately-maintained concern and is treated
//	as an external collaborator per the external-interfaces contract. Swap
//	Command for any tool that accepts a binary path as its sole argument
//	and writes the fixtureDoc shape to stdout.
type ExternalToolParser struct {
	// Command is the executable to invoke, e.g. "libid-dex-extract".
	Command string

	// Args are extra arguments prepended before the binary path.
	Args []string

	// SupportedExt is the set of extensions this tool accepts.
	SupportedExt []string
}

// Ext reports the extensions SupportedExt.
func (p ExternalToolParser) Ext() []string { return p.SupportedExt }

// Parse invokes the configured tool against path and decodes its stdout.
func (p ExternalToolParser) Parse(ctx context.Context, path string) ([]Class, AppMeta, error) {
	args := append(append([]string{}, p.Args...), path)
	cmd := exec.CommandContext(ctx, p.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, AppMeta{}, fmt.Errorf("bytecode: running %s on %s: %w: %s", p.Command, path, err, stderr.String())
	}
	var doc fixtureDoc
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		return nil, AppMeta{}, fmt.Errorf("bytecode: decoding %s output for %s: %w", p.Command, path, err)
	}
	meta := AppMeta{}
	if doc.App != nil {
		meta = *doc.App
	}
	return doc.Classes, meta, nil
}
