package exportset

import (
	"fmt"
	"path"
	"strings"

	"depctx/internal/depmodel"
	"depctx/internal/semver"
)

// Scope controls which export sets a library contributes to.
type Scope string

const (
	ScopeBoth    Scope = "both"
	ScopeCompile Scope = "compile"
	ScopeRuntime Scope = "runtime"
)

// Project is a validated export set ready to be handed to the builder.
type Project struct {
	Path string

	framework depmodel.Framework
	runtime   string
	refRoot   string
	options   depmodel.CompilationOptions
	compile   []depmodel.LibraryExport
	run       []depmodel.LibraryExport
}

// Framework returns the target framework declared by the project.
func (p *Project) Framework() depmodel.Framework { return p.framework }

// Runtime returns the runtime identifier, empty for portable builds.
func (p *Project) Runtime() string { return p.runtime }

// ReferenceAssembliesRoot returns the directory reference assemblies are
// resolved under.
func (p *Project) ReferenceAssembliesRoot() string { return p.refRoot }

// Options returns a copy of the compilation options.
func (p *Project) Options() *depmodel.CompilationOptions {
	opts := p.options
	opts.Defines = append([]string(nil), p.options.Defines...)
	return &opts
}

// CompileExports returns the compile-time export set in file order.
func (p *Project) CompileExports() []depmodel.LibraryExport { return p.compile }

// RuntimeExports returns the run-time export set in file order.
func (p *Project) RuntimeExports() []depmodel.LibraryExport { return p.run }

// Project validates the file and converts it into export sets. Unknown
// library types degrade to unresolved rather than failing.
func (f File) Project() (*Project, error) {
	var errs ValidationErrors

	p := &Project{
		runtime: strings.TrimSpace(f.Runtime),
		refRoot: strings.TrimSpace(f.ReferenceAssembliesRoot),
		options: depmodel.CompilationOptions{
			Defines:                  append([]string(nil), f.CompilationOptions.Defines...),
			LanguageVersion:          f.CompilationOptions.LanguageVersion,
			Platform:                 f.CompilationOptions.Platform,
			AllowUnsafe:              f.CompilationOptions.AllowUnsafe,
			WarningsAsErrors:         f.CompilationOptions.WarningsAsErrors,
			Optimize:                 f.CompilationOptions.Optimize,
			KeyFile:                  f.CompilationOptions.KeyFile,
			DelaySign:                f.CompilationOptions.DelaySign,
			PublicSign:               f.CompilationOptions.PublicSign,
			EmitEntryPoint:           f.CompilationOptions.EmitEntryPoint,
			GenerateXmlDocumentation: f.CompilationOptions.XmlDoc,
		},
	}

	if strings.TrimSpace(f.Framework) == "" {
		errs = append(errs, ValidationError{Field: "framework", Message: "framework is required"})
	} else if fw, err := depmodel.ParseFramework(f.Framework); err != nil {
		errs = append(errs, ValidationError{Field: "framework", Message: err.Error()})
	} else {
		p.framework = fw
	}

	for i, spec := range f.Libraries {
		export, scope, libErrs := spec.export(i + 1)
		errs = append(errs, libErrs...)
		if scope != ScopeRuntime {
			p.compile = append(p.compile, compileView(export))
		}
		if scope != ScopeCompile {
			p.run = append(p.run, runtimeView(export))
		}
	}

	if len(errs) > 0 {
		return p, errs
	}
	return p, nil
}

func (s LibrarySpec) export(index int) (depmodel.LibraryExport, Scope, []ValidationError) {
	var errs []ValidationError
	fail := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{
			Index:   index,
			Library: s.Name,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
		})
	}

	name := strings.TrimSpace(s.Name)
	if name == "" {
		fail("name", "name is required")
	}

	scope := Scope(strings.ToLower(strings.TrimSpace(s.Scope)))
	switch scope {
	case "":
		scope = ScopeBoth
	case ScopeBoth, ScopeCompile, ScopeRuntime:
	default:
		fail("scope", "scope must be one of both, compile, runtime (got %q)", s.Scope)
		scope = ScopeBoth
	}

	source := s.descriptor()
	lib := depmodel.Library{
		Name:    name,
		Version: semver.LooseVersion(strings.TrimSpace(s.Version)),
		Source:  source,
	}

	for j, dep := range s.Dependencies {
		field := fmt.Sprintf("dependencies[%d]", j)
		depName := strings.TrimSpace(dep.Name)
		if depName == "" {
			fail(field, "dependency name is required")
			continue
		}
		depType, ok := parseDependencyType(dep.Type)
		if !ok {
			fail(field, "unknown dependency type %q", dep.Type)
			continue
		}
		lib.Dependencies = append(lib.Dependencies, depmodel.LibraryRange{
			Name:         depName,
			VersionRange: strings.TrimSpace(dep.Range),
			Target:       depmodel.ParseLibraryType(dep.Kind),
			Type:         depType,
		})
	}

	resolve := s.assetResolver(source)
	export := depmodel.LibraryExport{
		Library:               lib,
		CompilationAssemblies: assets(s.Compile, resolve),
		RuntimeAssemblies:     assets(s.Runtime, resolve),
	}

	for j, target := range s.RuntimeTargets {
		rid := strings.TrimSpace(target.Runtime)
		if rid == "" {
			fail(fmt.Sprintf("runtimeTargets[%d]", j), "runtime is required")
			continue
		}
		export.RuntimeTargets = append(export.RuntimeTargets, depmodel.LibraryRuntimeTarget{
			Runtime:         rid,
			Assemblies:      assets(target.Assemblies, resolve),
			NativeLibraries: assets(target.Native, resolve),
		})
	}

	for j, res := range s.Resources {
		locale := strings.TrimSpace(res.Locale)
		if strings.TrimSpace(res.Path) == "" || locale == "" {
			fail(fmt.Sprintf("resources[%d]", j), "path and locale are required")
			continue
		}
		export.ResourceAssemblies = append(export.ResourceAssemblies, depmodel.LibraryResourceAssembly{
			Asset:  resolve(res.Path),
			Locale: locale,
		})
	}

	return export, scope, errs
}

func (s LibrarySpec) descriptor() depmodel.Descriptor {
	switch strings.ToLower(strings.TrimSpace(s.Type)) {
	case "", string(depmodel.TypePackage):
		return depmodel.PackageDescriptor{Hash: strings.TrimSpace(s.Hash), Serviceable: s.Serviceable, Path: s.Path}
	case string(depmodel.TypeProject):
		return depmodel.ProjectDescriptor{Path: s.Path}
	case string(depmodel.TypeReferenceAssembly):
		return depmodel.ReferenceAssemblyDescriptor{Path: s.Path}
	default:
		return depmodel.UnresolvedDescriptor{}
	}
}

// assetResolver decides how a path listed in the file maps onto an asset.
// Package and project entries are relative to the library root and resolve
// against its path; everything else is already a resolved location.
func (s LibrarySpec) assetResolver(source depmodel.Descriptor) func(string) depmodel.LibraryAsset {
	root := strings.TrimSpace(s.Path)
	relative := false
	switch source.(type) {
	case depmodel.PackageDescriptor, depmodel.ProjectDescriptor:
		relative = true
	}

	return func(p string) depmodel.LibraryAsset {
		p = strings.TrimSpace(p)
		asset := depmodel.LibraryAsset{Name: assetName(p)}
		if !relative {
			asset.ResolvedPath = p
			return asset
		}
		asset.RelativePath = p
		if root != "" {
			asset.ResolvedPath = path.Join(strings.ReplaceAll(root, `\`, "/"), strings.ReplaceAll(p, `\`, "/"))
		}
		return asset
	}
}

func assets(paths []string, resolve func(string) depmodel.LibraryAsset) []depmodel.LibraryAsset {
	var out []depmodel.LibraryAsset
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, resolve(p))
	}
	return out
}

func assetName(p string) string {
	base := path.Base(strings.ReplaceAll(p, `\`, "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

func parseDependencyType(raw string) (depmodel.DependencyType, bool) {
	switch t := depmodel.DependencyType(strings.ToLower(strings.TrimSpace(raw))); t {
	case "":
		return depmodel.DependencyDefault, true
	case depmodel.DependencyDefault, depmodel.DependencyBuild, depmodel.DependencyPlatform, depmodel.DependencyPreprocess:
		return t, true
	default:
		return "", false
	}
}

func compileView(e depmodel.LibraryExport) depmodel.LibraryExport {
	return depmodel.LibraryExport{
		Library:               e.Library,
		CompilationAssemblies: e.CompilationAssemblies,
	}
}

func runtimeView(e depmodel.LibraryExport) depmodel.LibraryExport {
	return depmodel.LibraryExport{
		Library:            e.Library,
		RuntimeAssemblies:  e.RuntimeAssemblies,
		RuntimeTargets:     e.RuntimeTargets,
		ResourceAssemblies: e.ResourceAssemblies,
	}
}
