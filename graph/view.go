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

// ClassRecord is everything the structural matcher needs about one class:
// its signature set (for coverage/weight computation) and its non-SDK
// relationships (consulted via the owning view's ClassGraph/GhostGraph).
type ClassRecord struct {
	Name       string
	Signatures map[string]struct{}
}

// LibraryView is the read-only join of a library's class records, its
// relationship graph, and its ghost graph, everything BuildModel needs
// about one candidate library.
type LibraryView struct {
	Name                string
	Version             string
	Category            string
	RootPackage         string
	ClassCount          int
	TotalSignatureCount int
	Classes             map[string]ClassRecord
	Graph               *ClassGraph
	Ghosts              *GhostGraph
}

// AppView is the read-only join of the app classes under consideration
// for one candidate library, its relationship graph, and its ghost graph.
type AppView struct {
	Classes map[string]ClassRecord
	Graph   *ClassGraph
	Ghosts  *GhostGraph
}
