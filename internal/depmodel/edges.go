package depmodel

import "strings"

// libraryIndex looks libraries up by name within one export set. Names are
// matched case-insensitively; the first export with a given name wins.
type libraryIndex map[string]Library

func newLibraryIndex(exports []LibraryExport) libraryIndex {
	idx := make(libraryIndex, len(exports))
	for _, export := range exports {
		key := indexKey(export.Library.Name)
		if key == "" {
			continue
		}
		if _, exists := idx[key]; exists {
			continue
		}
		idx[key] = export.Library
	}
	return idx
}

func (idx libraryIndex) lookup(name string) (Library, bool) {
	lib, ok := idx[indexKey(name)]
	return lib, ok
}

func indexKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FilterDependencies keeps the edges that belong in the manifest. Build-only
// edges are skipped, edges to libraries outside the export set are dropped,
// and each kept edge carries the resolved version of its target rather than
// the declared range. Input order is preserved and each target appears at
// most once.
func FilterDependencies(edges []LibraryRange, exports []LibraryExport) []Dependency {
	return filterDependencies(edges, newLibraryIndex(exports))
}

func filterDependencies(edges []LibraryRange, idx libraryIndex) []Dependency {
	deps := make([]Dependency, 0, len(edges))
	seen := make(map[string]struct{}, len(edges))
	for _, edge := range edges {
		if edge.Type.BuildOnly() {
			continue
		}
		target, ok := idx.lookup(edge.Name)
		if !ok {
			continue
		}
		key := indexKey(target.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		deps = append(deps, Dependency{
			Name:    target.Name,
			Version: target.Version.String(),
		})
	}
	return deps
}
