// Package depmodel builds dependency contexts: the manifest describing which
// assemblies, native libraries, resources and dependency edges a project
// needs to compile and to run for one target framework and runtime.
//
// The builder is a pure in-memory transformation. It performs no I/O, keeps
// no state between calls and may be used concurrently as long as callers do
// not mutate the export slices while Build is reading them.
package depmodel

import (
	"errors"
	"path"
	"strings"
)

var (
	ErrNilCompilationOptions = errors.New("depmodel: compilation options are required")
	ErrNilFramework          = errors.New("depmodel: target framework is required")
)

// Builder assembles dependency contexts. The reference-assemblies root is
// fixed at construction.
type Builder struct {
	normalizer Normalizer
}

func NewBuilder(referenceAssembliesRoot string) *Builder {
	return &Builder{normalizer: NewNormalizer(referenceAssembliesRoot)}
}

// WithNormalizer replaces the asset normalizer, e.g. to force case folding.
func (b *Builder) WithNormalizer(n Normalizer) *Builder {
	return &Builder{normalizer: n}
}

// Build produces the manifest for one (target framework, runtime) pair. The
// compile and runtime export sets are processed independently; nil sets are
// treated as empty. Only missing options or framework are errors.
func (b *Builder) Build(
	opts *CompilationOptions,
	compilationExports []LibraryExport,
	runtimeExports []LibraryExport,
	target *Framework,
	runtimeID string,
) (*DependencyContext, error) {
	if opts == nil {
		return nil, ErrNilCompilationOptions
	}
	if target == nil {
		return nil, ErrNilFramework
	}

	return &DependencyContext{
		TargetFramework:    target.Moniker(),
		Runtime:            runtimeID,
		CompilationOptions: opts.clone(),
		CompileLibraries:   b.compileLibraries(compilationExports),
		RuntimeLibraries:   b.runtimeLibraries(runtimeExports),
	}, nil
}

func (b *Builder) compileLibraries(exports []LibraryExport) []CompileLibrary {
	idx := newLibraryIndex(exports)
	merged := mergeExports(exports)
	libs := make([]CompileLibrary, 0, len(merged))
	for _, export := range merged {
		libs = append(libs, CompileLibrary{
			LibraryInfo: libraryInfo(export.Library, idx),
			Assemblies:  uniqueStrings(b.normalizer.Paths(export.CompilationAssemblies)),
		})
	}
	return libs
}

func (b *Builder) runtimeLibraries(exports []LibraryExport) []RuntimeLibrary {
	idx := newLibraryIndex(exports)
	merged := mergeExports(exports)
	libs := make([]RuntimeLibrary, 0, len(merged))
	for _, export := range merged {
		libs = append(libs, RuntimeLibrary{
			LibraryInfo:        libraryInfo(export.Library, idx),
			Assemblies:         b.runtimeAssemblies(export.RuntimeAssemblies),
			ResourceAssemblies: b.resourceAssemblies(export.ResourceAssemblies),
			RuntimeTargets:     b.runtimeTargets(export.RuntimeTargets),
		})
	}
	return libs
}

func libraryInfo(lib Library, idx libraryIndex) LibraryInfo {
	hash, serviceable := packageMetadata(lib.Source)
	return LibraryInfo{
		Type:         Classify(lib.Source),
		Name:         strings.TrimSpace(lib.Name),
		Version:      lib.Version.String(),
		Hash:         hash,
		Serviceable:  serviceable,
		Dependencies: filterDependencies(lib.Dependencies, idx),
	}
}

func (b *Builder) runtimeAssemblies(assets []LibraryAsset) []RuntimeAssembly {
	out := make([]RuntimeAssembly, 0, len(assets))
	seen := make(map[string]struct{}, len(assets))
	for _, asset := range assets {
		p := b.normalizer.Path(asset)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, RuntimeAssembly{Name: assemblyName(p, asset.Name), Path: p})
	}
	return out
}

func (b *Builder) resourceAssemblies(resources []LibraryResourceAssembly) []ResourceAssembly {
	out := make([]ResourceAssembly, 0, len(resources))
	seen := make(map[ResourceAssembly]struct{}, len(resources))
	for _, res := range resources {
		ra := ResourceAssembly{Path: b.normalizer.Path(res.Asset), Locale: res.Locale}
		if _, dup := seen[ra]; dup {
			continue
		}
		seen[ra] = struct{}{}
		out = append(out, ra)
	}
	return out
}

func (b *Builder) runtimeTargets(targets []LibraryRuntimeTarget) []RuntimeTarget {
	out := make([]RuntimeTarget, 0, len(targets))
	pos := make(map[string]int, len(targets))
	for _, target := range targets {
		assemblies := b.runtimeAssemblies(target.Assemblies)
		native := b.normalizer.Paths(target.NativeLibraries)
		if i, ok := pos[target.Runtime]; ok {
			existing := out[i]
			existing.Assemblies = uniqueAssemblies(append(existing.Assemblies, assemblies...))
			existing.NativeLibraries = uniqueStrings(append(existing.NativeLibraries, native...))
			out[i] = existing
			continue
		}
		pos[target.Runtime] = len(out)
		out = append(out, RuntimeTarget{
			Runtime:         target.Runtime,
			Assemblies:      assemblies,
			NativeLibraries: uniqueStrings(native),
		})
	}
	return out
}

// mergeExports collapses exports sharing a name into the first occurrence.
// Exports without a name are dropped. The result shares no slices with the
// input.
func mergeExports(exports []LibraryExport) []LibraryExport {
	merged := make([]LibraryExport, 0, len(exports))
	pos := make(map[string]int, len(exports))
	for _, export := range exports {
		key := indexKey(export.Library.Name)
		if key == "" {
			continue
		}
		if i, ok := pos[key]; ok {
			merged[i] = mergeExport(merged[i], export)
			continue
		}
		pos[key] = len(merged)
		merged = append(merged, mergeExport(LibraryExport{Library: export.Library}, export))
	}
	return merged
}

func mergeExport(dst, src LibraryExport) LibraryExport {
	dst.Library.Dependencies = concat(dst.Library.Dependencies, src.Library.Dependencies)
	dst.CompilationAssemblies = concat(dst.CompilationAssemblies, src.CompilationAssemblies)
	dst.RuntimeAssemblies = concat(dst.RuntimeAssemblies, src.RuntimeAssemblies)
	dst.RuntimeTargets = concat(dst.RuntimeTargets, src.RuntimeTargets)
	dst.ResourceAssemblies = concat(dst.ResourceAssemblies, src.ResourceAssemblies)
	return dst
}

func concat[T any](a, b []T) []T {
	out := make([]T, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func uniqueStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func uniqueAssemblies(values []RuntimeAssembly) []RuntimeAssembly {
	out := make([]RuntimeAssembly, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v.Path]; dup {
			continue
		}
		seen[v.Path] = struct{}{}
		out = append(out, v)
	}
	return out
}

// assemblyName derives the assembly name from the file name, falling back
// to the asset's logical name when there is no path.
func assemblyName(p, fallback string) string {
	if p == "" {
		return fallback
	}
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
