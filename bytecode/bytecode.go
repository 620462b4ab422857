// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bytecode defines the narrow interface the core expects from a
// bytecode parser (spec §6). Parsing .apk/.dex/.jar files into classes,
// methods, basic-block-partitioned opcode streams, and per-method call
// lists is explicitly out of scope for this repository: it is treated as
// an external collaborator. Everything downstream (fingerprint, graph,
// profile, lshindex, matcher, detect) depends only on the types in this
// package, never on a concrete parser.
package bytecode

import "context"

// Method is a single method of a parsed class.
//
// Blocks holds the method's instruction stream already split at
// basic-block boundaries (branches, switches, returns, throws) by the
// external parser, the core never re-derives block boundaries itself.
type Method struct {
	// Name is the method's declared name (not used in fingerprinting
	// directly; renaming-resilience comes from Descriptor normalization).
	Name string `json:"name"`

	// Descriptor is the raw, unnormalized arg/return type descriptor,
	// e.g. "(Ljava/lang/String;I)V".
	Descriptor string `json:"descriptor"`

	// Blocks are the method body's opcode sequences, one per basic block,
	// in program order. Each element is the raw opcode text/bytes for
	// that block as emitted by the external parser.
	Blocks [][]byte `json:"blocks"`

	// Calls lists every invoke instruction found anywhere in the method,
	// irrespective of which block it falls in.
	Calls []Invocation `json:"calls"`
}

// Invocation is a single call site: method CallerMethodDesc invokes
// CalleeMethodDesc on CalleeClass.
type Invocation struct {
	CallerMethodDesc string `json:"caller_method_desc"`
	CalleeClass      string `json:"callee_class"`
	CalleeMethodDesc string `json:"callee_method_desc"`
}

// Class is a single parsed class.
type Class struct {
	// Name is the fully-qualified class name in descriptor form, e.g.
	// "Lcom/example/Foo;".
	Name string `json:"name"`

	// AccessFlags is the platform's canonical access-flags string, e.g.
	// "public final".
	AccessFlags string `json:"access_flags"`

	// Super is the declared superclass name, or "" if the class has none
	// (only true for the platform root object type).
	Super string `json:"super"`

	// Interfaces lists every interface the class declares implementing,
	// in declaration order (the normalizer sorts SDK interfaces itself).
	Interfaces []string `json:"interfaces"`

	Methods []Method `json:"methods"`
}

// AppMeta is application-level metadata forwarded verbatim to the result.
type AppMeta struct {
	Filename    string   `json:"filename"`
	AppID       string   `json:"app_id"`
	Permissions []string `json:"permissions"`
}

// Parser is the narrow interface the core expects from a bytecode
// collaborator (spec §6). A Parser need not understand every container
// format; it reports which ones it supports via Ext.
type Parser interface {
	// Parse extracts every class defined in the binary at path, plus
	// app-level metadata (zero value if path is a library, not an app).
	Parse(ctx context.Context, path string) ([]Class, AppMeta, error)

	// Ext reports the file extensions this parser accepts, including the
	// leading dot (".apk", ".dex", ".jar").
	Ext() []string
}

// Supports returns the first parser in the list that accepts ext, and
// reports whether one was found.
func Supports(parsers []Parser, ext string) (Parser, bool) {
	for _, p := range parsers {
		for _, e := range p.Ext() {
			if e == ext {
				return p, true
			}
		}
	}
	return nil, false
}
