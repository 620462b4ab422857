// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph holds the relationship data a class fingerprint does not:
// non-SDK superclass/interface edges, invocation counts between classes,
// and ghost edges toward classes the binary does not contain. Per the
// "cyclic graphs" design note, nodes are referenced by class-name string
// (not by pointer), so arbitrarily cyclic class hierarchies never need an
// arena or owning references, a map lookup replaces a pointer chase.
package graph

// Edge is a directed relationship between two classes (interface
// implementation, or superclass), identified by class name.
type Edge struct {
	From string
	To   string
}

// CallSite counts how many times CallerMethod invokes CalleeMethod.
type CallSite struct {
	CallerMethod string
	CalleeMethod string
	Count        int
}

// InvocationEdge aggregates every call from Caller's methods into Callee.
type InvocationEdge struct {
	Caller string
	Callee string
	Calls  []CallSite
}

// ClassGraph holds the three relationship graphs extracted for one binary
// (library or app): invocation edges, interface edges, and superclass
// edges, each keyed by the declaring class's name.
type ClassGraph struct {
	Invocations map[string][]InvocationEdge
	Interfaces  map[string][]string
	Superclass  map[string]string
}

// NewClassGraph returns an empty, ready-to-populate ClassGraph.
func NewClassGraph() *ClassGraph {
	return &ClassGraph{
		Invocations: make(map[string][]InvocationEdge),
		Interfaces:  make(map[string][]string),
		Superclass:  make(map[string]string),
	}
}

// AddInvocation records one caller-method -> callee-class -> callee-method
// call, merging into an existing InvocationEdge/CallSite when present so
// repeated call sites accumulate counts instead of duplicating entries.
func (g *ClassGraph) AddInvocation(caller, calleeClass, callerMethod, calleeMethod string) {
	edges := g.Invocations[caller]
	for i := range edges {
		if edges[i].Callee != calleeClass {
			continue
		}
		for j := range edges[i].Calls {
			if edges[i].Calls[j].CallerMethod == callerMethod && edges[i].Calls[j].CalleeMethod == calleeMethod {
				edges[i].Calls[j].Count++
				return
			}
		}
		edges[i].Calls = append(edges[i].Calls, CallSite{CallerMethod: callerMethod, CalleeMethod: calleeMethod, Count: 1})
		return
	}
	g.Invocations[caller] = append(edges, InvocationEdge{
		Caller: caller,
		Callee: calleeClass,
		Calls:  []CallSite{{CallerMethod: callerMethod, CalleeMethod: calleeMethod, Count: 1}},
	})
}

// AddInterface records that class implements a non-SDK interface.
func (g *ClassGraph) AddInterface(class, iface string) {
	g.Interfaces[class] = append(g.Interfaces[class], iface)
}

// SetSuperclass records a non-SDK superclass edge for class.
func (g *ClassGraph) SetSuperclass(class, super string) {
	g.Superclass[class] = super
}
