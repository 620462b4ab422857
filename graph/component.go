// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

// UndirectedAdjacency builds the undirected union of the invocation,
// interface, and superclass subgraphs induced on the given node set:
// every edge between two nodes both present in nodes, from any of the
// three relationship kinds, contributes an undirected connection.
func (g *ClassGraph) UndirectedAdjacency(nodes map[string]struct{}) map[string]map[string]struct{} {
	adj := make(map[string]map[string]struct{}, len(nodes))
	for n := range nodes {
		adj[n] = make(map[string]struct{})
	}
	link := func(a, b string) {
		if _, ok := nodes[a]; !ok {
			return
		}
		if _, ok := nodes[b]; !ok {
			return
		}
		adj[a][b] = struct{}{}
		adj[b][a] = struct{}{}
	}
	for caller, edges := range g.Invocations {
		for _, e := range edges {
			link(caller, e.Callee)
		}
	}
	for class, ifaces := range g.Interfaces {
		for _, iface := range ifaces {
			link(class, iface)
		}
	}
	for class, super := range g.Superclass {
		link(class, super)
	}
	return adj
}

// ConnectedComponents partitions adj's nodes into connected components.
func ConnectedComponents(adj map[string]map[string]struct{}) [][]string {
	visited := make(map[string]bool, len(adj))
	var components [][]string
	for start := range adj {
		if visited[start] {
			continue
		}
		var component []string
		stack := []string{start}
		visited[start] = true
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, n)
			for neighbor := range adj[n] {
				if !visited[neighbor] {
					visited[neighbor] = true
					stack = append(stack, neighbor)
				}
			}
		}
		components = append(components, component)
	}
	return components
}
