package depmodel

import (
	"fmt"

	"depctx/internal/semver"
)

// IssueLevel grades a verification finding.
type IssueLevel string

const (
	IssueError   IssueLevel = "error"
	IssueWarning IssueLevel = "warning"
)

// Issue is a problem found in an export set. Issues never change what Build
// produces; they let callers decide whether to publish the manifest.
type Issue struct {
	Level      IssueLevel `json:"level"`
	Library    string     `json:"library"`
	Dependency string     `json:"dependency,omitempty"`
	Message    string     `json:"message"`
}

func (i Issue) String() string {
	if i.Dependency == "" {
		return fmt.Sprintf("%s: %s: %s", i.Level, i.Library, i.Message)
	}
	return fmt.Sprintf("%s: %s -> %s: %s", i.Level, i.Library, i.Dependency, i.Message)
}

// Verify checks the non-build edges of every export against the resolved
// versions in the same set. A resolved version outside the declared range
// is an error; a target missing from the set, an unparsable range and an
// unparsable version are warnings.
func Verify(exports []LibraryExport) []Issue {
	idx := newLibraryIndex(exports)
	var issues []Issue
	for _, export := range exports {
		lib := export.Library
		if indexKey(lib.Name) == "" {
			issues = append(issues, Issue{
				Level:   IssueWarning,
				Message: "library has no name and is omitted from the manifest",
			})
			continue
		}
		for _, edge := range lib.Dependencies {
			if edge.Type.BuildOnly() {
				continue
			}
			issues = append(issues, verifyEdge(lib.Name, edge, idx)...)
		}
	}
	return issues
}

func verifyEdge(from string, edge LibraryRange, idx libraryIndex) []Issue {
	target, ok := idx.lookup(edge.Name)
	if !ok {
		return []Issue{{
			Level:      IssueWarning,
			Library:    from,
			Dependency: edge.Name,
			Message:    "dependency is not part of the export set and is dropped",
		}}
	}
	rng, err := semver.ParseRange(edge.VersionRange)
	if err != nil {
		return []Issue{{
			Level:      IssueWarning,
			Library:    from,
			Dependency: edge.Name,
			Message:    fmt.Sprintf("range %q is not understood", edge.VersionRange),
		}}
	}
	if !target.Version.Valid() {
		return []Issue{{
			Level:      IssueWarning,
			Library:    from,
			Dependency: edge.Name,
			Message:    fmt.Sprintf("resolved version %q is not semver", target.Version.Raw()),
		}}
	}
	if !semver.Satisfies(target.Version, rng) {
		return []Issue{{
			Level:      IssueError,
			Library:    from,
			Dependency: edge.Name,
			Message:    fmt.Sprintf("resolved version %s does not satisfy %q", target.Version, edge.VersionRange),
		}}
	}
	return nil
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Level == IssueError {
			return true
		}
	}
	return false
}
