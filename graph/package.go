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

import "strings"

// RootPackage is the sentinel parent of every top-level package, matching
// the original's ROOT_PKG placeholder.
const RootPackage = "<ROOT>"

// ClassPackage derives a class's package path from its descriptor name
// ("Lcom/example/Foo;" -> "com/example"). A class with no package
// component (a default-package class) belongs to RootPackage.
func ClassPackage(className string) string {
	name := strings.TrimPrefix(className, "L")
	name = strings.TrimSuffix(name, ";")
	idx := strings.LastIndex(name, "/")
	if idx < 0 {
		return RootPackage
	}
	return name[:idx]
}

// ParentPackage returns pkg's enclosing package, or RootPackage once the
// hierarchy bottoms out.
func ParentPackage(pkg string) string {
	if pkg == RootPackage || pkg == "" {
		return RootPackage
	}
	idx := strings.LastIndex(pkg, "/")
	if idx < 0 {
		return RootPackage
	}
	return pkg[:idx]
}

// IsChildless reports whether pkg has no sub-packages among the given set
// of packages, used by the "flattened" (repackaged) matching mode to
// build its allow-list of candidate target packages.
func IsChildless(pkg string, allPackages map[string]struct{}) bool {
	prefix := pkg + "/"
	for other := range allPackages {
		if strings.HasPrefix(other, prefix) {
			return false
		}
	}
	return true
}
