// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fingerprint

import (
	"github.com/aleutian-labs/libid/bytecode"
	"github.com/aleutian-labs/libid/graph"
)

// ClassRelations is everything ClassSignature derives about a class beyond
// its signature set: the non-SDK edges callers record into a graph.ClassGraph.
type ClassRelations struct {
	Invocations []ClassInvocation
	Interface   []string // non-SDK interfaces
	Superclass  string   // "" if SDK-resident or absent
}

// ClassInvocation is one normalized xref: class.Method invoked
// calleeClass.calleeMethod (both descriptors normalized).
type ClassInvocation struct {
	CallerMethod string
	CalleeClass  string
	CalleeMethod string
}

// ClassSignature builds a class's signature set and its non-SDK
// relationships, per the opcode-window policy: each method body is
// scanned basic block by basic block (blocks are supplied pre-split by
// the bytecode collaborator); blocks shorter than MinBlockBytes are
// skipped; every surviving block contributes one signature keyed on the
// class descriptor, the method's normalized descriptor, and the block's
// raw opcode bytes. Xrefs whose callee class is in the SDK are dropped;
// everything else is normalized and counted.
func ClassSignature(sdk SDKSet, class bytecode.Class) (map[string]struct{}, ClassRelations, error) {
	classDesc, err := ClassDescriptor(sdk, class)
	if err != nil {
		return nil, ClassRelations{}, err
	}

	rel := ClassRelations{}
	if super, ok := NonSDKSuperclass(sdk, class); ok {
		rel.Superclass = super
	}
	rel.Interface = NonSDKInterfaces(sdk, class)

	sigs := make(map[string]struct{})
	for _, m := range class.Methods {
		methodDesc, err := NormalizeMethodDescriptor(sdk, m.Descriptor)
		if err != nil {
			return nil, ClassRelations{}, &MalformedTypeError{ClassName: class.Name, Raw: m.Descriptor, Reason: err.Error()}
		}

		for _, block := range m.Blocks {
			if len(block) < MinBlockBytes {
				continue
			}
			sigs[blockSignature(classDesc, methodDesc, block)] = struct{}{}
		}

		for _, call := range m.Calls {
			if sdk.Contains(call.CalleeClass) {
				continue
			}
			calleeMethodDesc, err := NormalizeMethodDescriptor(sdk, call.CalleeMethodDesc)
			if err != nil {
				continue
			}
			callerMethodDesc, err := NormalizeMethodDescriptor(sdk, call.CallerMethodDesc)
			if err != nil {
				callerMethodDesc = call.CallerMethodDesc
			}
			rel.Invocations = append(rel.Invocations, ClassInvocation{
				CallerMethod: callerMethodDesc,
				CalleeClass:  call.CalleeClass,
				CalleeMethod: calleeMethodDesc,
			})
		}
	}

	return sigs, rel, nil
}

// PopulateGraph folds one class's ClassRelations into a shared ClassGraph,
// recording invocation/interface/superclass edges keyed on class.Name.
func PopulateGraph(g *graph.ClassGraph, className string, rel ClassRelations) {
	for _, inv := range rel.Invocations {
		g.AddInvocation(className, inv.CalleeClass, inv.CallerMethod, inv.CalleeMethod)
	}
	for _, iface := range rel.Interface {
		g.AddInterface(className, iface)
	}
	if rel.Superclass != "" {
		g.SetSuperclass(className, rel.Superclass)
	}
}
