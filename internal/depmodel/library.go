package depmodel

import "depctx/internal/semver"

// Descriptor identifies where a resolved library came from. The set of
// implementations is closed: PackageDescriptor, ProjectDescriptor,
// ReferenceAssemblyDescriptor and UnresolvedDescriptor.
type Descriptor interface {
	descriptor()
}

// PackageDescriptor describes a library restored from a package feed.
type PackageDescriptor struct {
	// Hash is the raw sha512 content hash as recorded by the resolver,
	// without an algorithm prefix. Empty when unknown.
	Hash        string
	Serviceable bool
	Path        string
}

// ProjectDescriptor describes a library built from a project in the same
// workspace.
type ProjectDescriptor struct {
	Path string
}

// ReferenceAssemblyDescriptor describes an API-surface-only framework
// assembly.
type ReferenceAssemblyDescriptor struct {
	Path string
}

// UnresolvedDescriptor marks a library the resolver could not locate.
type UnresolvedDescriptor struct{}

func (PackageDescriptor) descriptor()           {}
func (ProjectDescriptor) descriptor()           {}
func (ReferenceAssemblyDescriptor) descriptor() {}
func (UnresolvedDescriptor) descriptor()        {}

// DependencyType is the kind of a dependency edge.
type DependencyType string

const (
	DependencyDefault    DependencyType = "default"
	DependencyBuild      DependencyType = "build"
	DependencyPlatform   DependencyType = "platform"
	DependencyPreprocess DependencyType = "preprocess"
)

// BuildOnly reports whether the edge only matters to build tooling.
func (t DependencyType) BuildOnly() bool {
	return t == DependencyBuild
}

// LibraryRange is a dependency edge as declared by the depending library.
type LibraryRange struct {
	Name string
	// VersionRange is the declared range, e.g. "[2.1.2, )" or "2.1.2".
	VersionRange string
	// Target is the kind of library the edge expects, informational only.
	Target LibraryType
	Type   DependencyType
}

// Library is the resolved identity of a library together with its edges.
type Library struct {
	Name         string
	Version      semver.Version
	Source       Descriptor
	Dependencies []LibraryRange
}

// LibraryAsset is a single file contributed by a library.
type LibraryAsset struct {
	Name string
	// RelativePath is relative to the library's own root.
	RelativePath string
	// ResolvedPath is the fully resolved location, possibly absolute.
	ResolvedPath string
}

// LibraryResourceAssembly is a satellite assembly for one locale.
type LibraryResourceAssembly struct {
	Asset  LibraryAsset
	Locale string
}

// LibraryRuntimeTarget is a runtime-identifier-specific asset bundle.
type LibraryRuntimeTarget struct {
	Runtime         string
	Assemblies      []LibraryAsset
	NativeLibraries []LibraryAsset
}

// LibraryExport is a resolved library with its classified assets for one
// target.
type LibraryExport struct {
	Library               Library
	CompilationAssemblies []LibraryAsset
	RuntimeAssemblies     []LibraryAsset
	RuntimeTargets        []LibraryRuntimeTarget
	ResourceAssemblies    []LibraryResourceAssembly
}
