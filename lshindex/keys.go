// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lshindex

import (
	"fmt"
	"strconv"
	"strings"
)

// CandidateKey is a decoded index hit: the library record's metadata plus
// the specific class name within that library that matched.
type CandidateKey struct {
	LibraryNameVersion  string
	RootPackage         string
	ClassCount          int
	TotalSignatureCount int
	Category            string
	ClassName           string
}

// Encode builds the index key format:
//
//	"<lib_name>_<version>|<root_package>|<class_count>|<total_signature_count>|<category>|-><lib_class_name>"
//
// The "->" separator splits library record metadata from the specific
// class name, since class names may themselves contain "|" but never "->".
func (k CandidateKey) Encode() string {
	return fmt.Sprintf("%s|%s|%d|%d|%s|->%s",
		k.LibraryNameVersion, k.RootPackage, k.ClassCount, k.TotalSignatureCount, k.Category, k.ClassName)
}

// DecodeKey inverts Encode.
func DecodeKey(s string) (CandidateKey, error) {
	sep := strings.Index(s, "|->")
	if sep < 0 {
		return CandidateKey{}, fmt.Errorf("lshindex: key %q missing \"|->\" class-name separator", s)
	}
	meta, className := s[:sep], s[sep+3:]

	fields := strings.Split(meta, "|")
	if len(fields) != 5 {
		return CandidateKey{}, fmt.Errorf("lshindex: key %q has %d metadata fields, want 5", s, len(fields))
	}
	classCount, err := strconv.Atoi(fields[2])
	if err != nil {
		return CandidateKey{}, fmt.Errorf("lshindex: key %q: invalid class_count: %w", s, err)
	}
	totalSig, err := strconv.Atoi(fields[3])
	if err != nil {
		return CandidateKey{}, fmt.Errorf("lshindex: key %q: invalid total_signature_count: %w", s, err)
	}
	return CandidateKey{
		LibraryNameVersion:  fields[0],
		RootPackage:         fields[1],
		ClassCount:          classCount,
		TotalSignatureCount: totalSig,
		Category:            fields[4],
		ClassName:           className,
	}, nil
}
