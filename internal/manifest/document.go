// Package manifest serializes dependency contexts.
//
// Two encodings are supported: indented JSON for people and tools that
// expect the usual deps.json layout, and CBOR with Core Deterministic
// Encoding (RFC 8949 §4.2) for byte-stable storage and digests.
package manifest

import "depctx/internal/depmodel"

// Document is the on-disk shape of a dependency context.
type Document struct {
	TargetFramework    string             `json:"targetFramework"`
	Runtime            string             `json:"runtime"`
	CompilationOptions CompilationOptions `json:"compilationOptions"`
	CompileLibraries   []CompileLibrary   `json:"compileLibraries"`
	RuntimeLibraries   []RuntimeLibrary   `json:"runtimeLibraries"`
}

type CompilationOptions struct {
	Defines                  []string `json:"defines"`
	LanguageVersion          string   `json:"languageVersion,omitempty"`
	Platform                 string   `json:"platform,omitempty"`
	AllowUnsafe              bool     `json:"allowUnsafe"`
	WarningsAsErrors         bool     `json:"warningsAsErrors"`
	Optimize                 bool     `json:"optimize"`
	KeyFile                  string   `json:"keyFile,omitempty"`
	DelaySign                bool     `json:"delaySign"`
	PublicSign               bool     `json:"publicSign"`
	EmitEntryPoint           bool     `json:"emitEntryPoint"`
	GenerateXmlDocumentation bool     `json:"xmlDoc"`
}

type Dependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type CompileLibrary struct {
	Type         string       `json:"type"`
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	Hash         string       `json:"hash"`
	Serviceable  bool         `json:"serviceable"`
	Dependencies []Dependency `json:"dependencies"`
	Assemblies   []string     `json:"assemblies"`
}

type RuntimeAssembly struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type ResourceAssembly struct {
	Path   string `json:"path"`
	Locale string `json:"locale"`
}

type RuntimeTarget struct {
	Runtime         string            `json:"runtime"`
	Assemblies      []RuntimeAssembly `json:"assemblies"`
	NativeLibraries []string          `json:"nativeLibraries"`
}

type RuntimeLibrary struct {
	Type               string             `json:"type"`
	Name               string             `json:"name"`
	Version            string             `json:"version"`
	Hash               string             `json:"hash"`
	Serviceable        bool               `json:"serviceable"`
	Dependencies       []Dependency       `json:"dependencies"`
	Assemblies         []RuntimeAssembly  `json:"assemblies"`
	ResourceAssemblies []ResourceAssembly `json:"resourceAssemblies"`
	RuntimeTargets     []RuntimeTarget    `json:"runtimeTargets"`
}

// FromContext converts a dependency context to its document form. Nil
// slices become empty so both encodings emit arrays rather than nulls.
func FromContext(ctx *depmodel.DependencyContext) Document {
	if ctx == nil {
		return Document{
			CompilationOptions: CompilationOptions{Defines: []string{}},
			CompileLibraries:   []CompileLibrary{},
			RuntimeLibraries:   []RuntimeLibrary{},
		}
	}

	opts := ctx.CompilationOptions
	doc := Document{
		TargetFramework: ctx.TargetFramework,
		Runtime:         ctx.Runtime,
		CompilationOptions: CompilationOptions{
			Defines:                  copyStrings(opts.Defines),
			LanguageVersion:          opts.LanguageVersion,
			Platform:                 opts.Platform,
			AllowUnsafe:              opts.AllowUnsafe,
			WarningsAsErrors:         opts.WarningsAsErrors,
			Optimize:                 opts.Optimize,
			KeyFile:                  opts.KeyFile,
			DelaySign:                opts.DelaySign,
			PublicSign:               opts.PublicSign,
			EmitEntryPoint:           opts.EmitEntryPoint,
			GenerateXmlDocumentation: opts.GenerateXmlDocumentation,
		},
		CompileLibraries: make([]CompileLibrary, 0, len(ctx.CompileLibraries)),
		RuntimeLibraries: make([]RuntimeLibrary, 0, len(ctx.RuntimeLibraries)),
	}

	for _, lib := range ctx.CompileLibraries {
		doc.CompileLibraries = append(doc.CompileLibraries, CompileLibrary{
			Type:         string(lib.Type),
			Name:         lib.Name,
			Version:      lib.Version,
			Hash:         lib.Hash,
			Serviceable:  lib.Serviceable,
			Dependencies: dependencies(lib.Dependencies),
			Assemblies:   copyStrings(lib.Assemblies),
		})
	}

	for _, lib := range ctx.RuntimeLibraries {
		out := RuntimeLibrary{
			Type:               string(lib.Type),
			Name:               lib.Name,
			Version:            lib.Version,
			Hash:               lib.Hash,
			Serviceable:        lib.Serviceable,
			Dependencies:       dependencies(lib.Dependencies),
			Assemblies:         runtimeAssemblies(lib.Assemblies),
			ResourceAssemblies: make([]ResourceAssembly, 0, len(lib.ResourceAssemblies)),
			RuntimeTargets:     make([]RuntimeTarget, 0, len(lib.RuntimeTargets)),
		}
		for _, res := range lib.ResourceAssemblies {
			out.ResourceAssemblies = append(out.ResourceAssemblies, ResourceAssembly{Path: res.Path, Locale: res.Locale})
		}
		for _, target := range lib.RuntimeTargets {
			out.RuntimeTargets = append(out.RuntimeTargets, RuntimeTarget{
				Runtime:         target.Runtime,
				Assemblies:      runtimeAssemblies(target.Assemblies),
				NativeLibraries: copyStrings(target.NativeLibraries),
			})
		}
		doc.RuntimeLibraries = append(doc.RuntimeLibraries, out)
	}
	return doc
}

// Context converts the document back to the in-memory model.
func (d Document) Context() *depmodel.DependencyContext {
	opts := d.CompilationOptions
	ctx := &depmodel.DependencyContext{
		TargetFramework: d.TargetFramework,
		Runtime:         d.Runtime,
		CompilationOptions: depmodel.CompilationOptions{
			Defines:                  copyStrings(opts.Defines),
			LanguageVersion:          opts.LanguageVersion,
			Platform:                 opts.Platform,
			AllowUnsafe:              opts.AllowUnsafe,
			WarningsAsErrors:         opts.WarningsAsErrors,
			Optimize:                 opts.Optimize,
			KeyFile:                  opts.KeyFile,
			DelaySign:                opts.DelaySign,
			PublicSign:               opts.PublicSign,
			EmitEntryPoint:           opts.EmitEntryPoint,
			GenerateXmlDocumentation: opts.GenerateXmlDocumentation,
		},
		CompileLibraries: make([]depmodel.CompileLibrary, 0, len(d.CompileLibraries)),
		RuntimeLibraries: make([]depmodel.RuntimeLibrary, 0, len(d.RuntimeLibraries)),
	}

	for _, lib := range d.CompileLibraries {
		ctx.CompileLibraries = append(ctx.CompileLibraries, depmodel.CompileLibrary{
			LibraryInfo: libraryInfo(lib.Type, lib.Name, lib.Version, lib.Hash, lib.Serviceable, lib.Dependencies),
			Assemblies:  copyStrings(lib.Assemblies),
		})
	}

	for _, lib := range d.RuntimeLibraries {
		out := depmodel.RuntimeLibrary{
			LibraryInfo:        libraryInfo(lib.Type, lib.Name, lib.Version, lib.Hash, lib.Serviceable, lib.Dependencies),
			Assemblies:         modelAssemblies(lib.Assemblies),
			ResourceAssemblies: make([]depmodel.ResourceAssembly, 0, len(lib.ResourceAssemblies)),
			RuntimeTargets:     make([]depmodel.RuntimeTarget, 0, len(lib.RuntimeTargets)),
		}
		for _, res := range lib.ResourceAssemblies {
			out.ResourceAssemblies = append(out.ResourceAssemblies, depmodel.ResourceAssembly{Path: res.Path, Locale: res.Locale})
		}
		for _, target := range lib.RuntimeTargets {
			out.RuntimeTargets = append(out.RuntimeTargets, depmodel.RuntimeTarget{
				Runtime:         target.Runtime,
				Assemblies:      modelAssemblies(target.Assemblies),
				NativeLibraries: copyStrings(target.NativeLibraries),
			})
		}
		ctx.RuntimeLibraries = append(ctx.RuntimeLibraries, out)
	}
	return ctx
}

func libraryInfo(typ, name, version, hash string, serviceable bool, deps []Dependency) depmodel.LibraryInfo {
	info := depmodel.LibraryInfo{
		Type:         depmodel.ParseLibraryType(typ),
		Name:         name,
		Version:      version,
		Hash:         hash,
		Serviceable:  serviceable,
		Dependencies: make([]depmodel.Dependency, 0, len(deps)),
	}
	for _, dep := range deps {
		info.Dependencies = append(info.Dependencies, depmodel.Dependency{Name: dep.Name, Version: dep.Version})
	}
	return info
}

func dependencies(in []depmodel.Dependency) []Dependency {
	out := make([]Dependency, 0, len(in))
	for _, dep := range in {
		out = append(out, Dependency{Name: dep.Name, Version: dep.Version})
	}
	return out
}

func runtimeAssemblies(in []depmodel.RuntimeAssembly) []RuntimeAssembly {
	out := make([]RuntimeAssembly, 0, len(in))
	for _, asm := range in {
		out = append(out, RuntimeAssembly{Name: asm.Name, Path: asm.Path})
	}
	return out
}

func modelAssemblies(in []RuntimeAssembly) []depmodel.RuntimeAssembly {
	out := make([]depmodel.RuntimeAssembly, 0, len(in))
	for _, asm := range in {
		out = append(out, depmodel.RuntimeAssembly{Name: asm.Name, Path: asm.Path})
	}
	return out
}

func copyStrings(in []string) []string {
	return append(make([]string, 0, len(in)), in...)
}
