// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sdkset loads the host platform's built-in class set.
//
// Description:
//
//	The SDK class set is the stable reference point the rest of the pipeline
//	normalizes against: a type is either "SDK" (part of the platform, not
//	subject to obfuscation) or everything else. It is loaded once at process
//	startup from an embedded asset and handed to every worker by read-only
//	reference, no package-level global, no re-parsing per goroutine.
package sdkset

import (
	"bufio"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed android_sdk_classes.txt
var defaultAsset []byte

// Set is an immutable, concurrency-safe membership test for SDK class names.
//
// Thread Safety: Set is read-only after construction and safe for concurrent use.
type Set struct {
	classes map[string]struct{}
}

// Contains reports whether className belongs to the host SDK.
func (s *Set) Contains(className string) bool {
	if s == nil {
		return false
	}
	_, ok := s.classes[className]
	return ok
}

// Len returns the number of SDK classes loaded.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.classes)
}

// Load parses a newline-delimited list of fully-qualified SDK class names
// (Landroid/... style descriptors, one per line; blank lines and lines
// starting with '#' are ignored).
func Load(data []byte) (*Set, error) {
	classes := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		classes[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("sdkset: scanning asset: %w", err)
	}
	return &Set{classes: classes}, nil
}

// Default loads the SDK class set shipped with the binary via go:embed.
// Called exactly once from main and passed by reference thereafter, per
// the "Global SDK set" design note: an explicitly-passed, immutable value
// rather than a process-wide singleton.
func Default() (*Set, error) {
	return Load(defaultAsset)
}
