// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fingerprint canonicalizes class and method type strings (the
// descriptor normalizer) and turns a class's methods into a signature set
// (the class signature builder). Both steps only trust the class/method
// shape the bytecode package hands them; neither parses bytes itself.
package fingerprint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aleutian-labs/libid/bytecode"
)

// SDKSet is the membership test the normalizer needs: is className part of
// the host platform, or a candidate library/app type subject to renaming.
type SDKSet interface {
	Contains(className string) bool
}

// MalformedTypeError reports a class or method descriptor the normalizer
// could not parse (unbalanced ';'/'('/')'). Callers skip the offending
// class and continue rather than aborting the whole profiling run.
type MalformedTypeError struct {
	ClassName string
	Raw       string
	Reason    string
}

func (e *MalformedTypeError) Error() string {
	return fmt.Sprintf("fingerprint: malformed type in class %s (%q): %s", e.ClassName, e.Raw, e.Reason)
}

// ClassDescriptor builds the class descriptor:
//
//	"<access_flags>[<superclass_or_X>][<sdk_iface_1>|<sdk_iface_2>|...]"
//
// Non-SDK superclass/interface identities never appear in the descriptor;
// they are recorded in the relationship graphs instead (see package graph)
// so that renaming them does not change the class's fingerprint.
func ClassDescriptor(sdk SDKSet, class bytecode.Class) (string, error) {
	super := "X"
	if class.Super != "" && sdk.Contains(class.Super) {
		super = class.Super
	}

	var sdkIfaces []string
	for _, iface := range class.Interfaces {
		if sdk.Contains(iface) {
			sdkIfaces = append(sdkIfaces, iface)
		}
	}
	sort.Strings(sdkIfaces)

	var b strings.Builder
	b.WriteString(class.AccessFlags)
	b.WriteByte('[')
	b.WriteString(super)
	b.WriteString("][")
	b.WriteString(strings.Join(sdkIfaces, "|"))
	b.WriteByte(']')
	return b.String(), nil
}

// NonSDKSuperclass reports the class's superclass when it is not part of
// the SDK (the caller records this as a graph edge, not in the descriptor).
// Returns "", false when the superclass is absent or SDK-resident.
func NonSDKSuperclass(sdk SDKSet, class bytecode.Class) (string, bool) {
	if class.Super == "" || sdk.Contains(class.Super) {
		return "", false
	}
	return class.Super, true
}

// NonSDKInterfaces reports the subset of class.Interfaces not part of the
// SDK (the caller records these as graph edges, not in the descriptor).
func NonSDKInterfaces(sdk SDKSet, class bytecode.Class) []string {
	var out []string
	for _, iface := range class.Interfaces {
		if !sdk.Contains(iface) {
			out = append(out, iface)
		}
	}
	return out
}

// NormalizeMethodDescriptor replaces every non-SDK reference type appearing
// in raw (a JVM-style "(ArgTypes)ReturnType" descriptor) with "X". Void,
// primitive, and SDK reference types survive verbatim.
func NormalizeMethodDescriptor(sdk SDKSet, raw string) (string, error) {
	open := strings.IndexByte(raw, '(')
	close := strings.IndexByte(raw, ')')
	if open != 0 || close < open {
		return "", fmt.Errorf("fingerprint: malformed method descriptor %q", raw)
	}
	argsPart := raw[open+1 : close]
	retPart := raw[close+1:]

	argTypes, err := splitTypeList(argsPart)
	if err != nil {
		return "", fmt.Errorf("fingerprint: malformed method descriptor %q: %w", raw, err)
	}

	var b strings.Builder
	b.WriteByte('(')
	for _, t := range argTypes {
		b.WriteString(normalizeType(sdk, t))
	}
	b.WriteByte(')')
	b.WriteString(normalizeType(sdk, retPart))
	return b.String(), nil
}

// normalizeType replaces t with "X" when it is a non-SDK reference type
// (object or array-of-object ending in ';'); everything else (void,
// primitives, SDK types, primitive arrays) passes through unchanged.
func normalizeType(sdk SDKSet, t string) string {
	base := strings.TrimLeft(t, "[")
	if !strings.HasPrefix(base, "L") || !strings.HasSuffix(base, ";") {
		return t
	}
	if sdk.Contains(base) {
		return t
	}
	return strings.Repeat("[", len(t)-len(base)) + "X"
}

// splitTypeList splits a JVM-style concatenated type list ("Ljava/lang/String;I[Z")
// into its individual type tokens.
func splitTypeList(s string) ([]string, error) {
	var types []string
	for i := 0; i < len(s); {
		start := i
		for i < len(s) && s[i] == '[' {
			i++
		}
		if i >= len(s) {
			return nil, fmt.Errorf("dangling array marker at offset %d", start)
		}
		switch s[i] {
		case 'L':
			end := strings.IndexByte(s[i:], ';')
			if end < 0 {
				return nil, fmt.Errorf("unterminated reference type at offset %d", i)
			}
			i += end + 1
		case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 'V':
			i++
		default:
			return nil, fmt.Errorf("unrecognized type tag %q at offset %d", s[i], i)
		}
		types = append(types, s[start:i])
	}
	return types, nil
}
