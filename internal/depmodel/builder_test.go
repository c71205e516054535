package depmodel

import (
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"depctx/internal/semver"
)

var referenceAssembliesPath = filepath.Join("reference", "assemblies")

func build(t *testing.T, opts *CompilationOptions, compile, runtime []LibraryExport, target *Framework, rid string) *DependencyContext {
	t.Helper()
	if opts == nil {
		opts = &CompilationOptions{}
	}
	if target == nil {
		fw, err := ParseFramework("net451")
		if err != nil {
			t.Fatalf("parse framework: %v", err)
		}
		target = &fw
	}
	ctx, err := NewBuilder(referenceAssembliesPath).Build(opts, compile, runtime, target, rid)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return ctx
}

func packageLibrary(name, version, hash string, serviceable bool, deps ...LibraryRange) Library {
	return Library{
		Name:         name,
		Version:      semver.LooseVersion(version),
		Source:       PackageDescriptor{Hash: hash, Serviceable: serviceable, Path: "PATH"},
		Dependencies: deps,
	}
}

func referenceAssembly(name, version string) Library {
	return Library{
		Name:    name,
		Version: semver.LooseVersion(version),
		Source:  ReferenceAssemblyDescriptor{Path: "PATH"},
	}
}

func projectLibrary(name, version string, deps ...LibraryRange) Library {
	return Library{
		Name:         name,
		Version:      semver.LooseVersion(version),
		Source:       ProjectDescriptor{Path: "src/" + name},
		Dependencies: deps,
	}
}

func edge(name, rng string, typ DependencyType) LibraryRange {
	return LibraryRange{Name: name, VersionRange: rng, Target: TypeReferenceAssembly, Type: typ}
}

func TestBuildPreservesCompilationOptions(t *testing.T) {
	in := &CompilationOptions{
		AllowUnsafe:              true,
		Defines:                  []string{"Define", "D"},
		DelaySign:                true,
		EmitEntryPoint:           true,
		GenerateXmlDocumentation: true,
		KeyFile:                  "Key.snk",
		LanguageVersion:          "C#8",
		Optimize:                 true,
		Platform:                 "Platform",
		PublicSign:               true,
		WarningsAsErrors:         true,
	}

	ctx := build(t, in, nil, nil, nil, "")

	if !reflect.DeepEqual(ctx.CompilationOptions, *in) {
		t.Fatalf("compilation options changed:\n got %+v\nwant %+v", ctx.CompilationOptions, *in)
	}

	in.Defines[0] = "Mutated"
	if ctx.CompilationOptions.Defines[0] != "Define" {
		t.Fatalf("manifest defines alias caller slice")
	}
}

func TestBuildFillsRuntimeAndTarget(t *testing.T) {
	fw := Framework{Identifier: "SomeFramework", Version: FrameworkVersion{Major: 1, Minor: 2}}
	ctx := build(t, nil, nil, nil, &fw, "win8-x86")

	if ctx.Runtime != "win8-x86" {
		t.Fatalf("expected runtime win8-x86, got %q", ctx.Runtime)
	}
	if ctx.TargetFramework != "SomeFramework,Version=v1.2" {
		t.Fatalf("unexpected target framework %q", ctx.TargetFramework)
	}
}

func TestBuildEmptyRuntimeStaysEmpty(t *testing.T) {
	ctx := build(t, nil, nil, nil, nil, "")
	if ctx.Runtime != "" {
		t.Fatalf("expected empty runtime, got %q", ctx.Runtime)
	}
	if ctx.TargetFramework != ".NETFramework,Version=v4.5.1" {
		t.Fatalf("unexpected target framework %q", ctx.TargetFramework)
	}
	if ctx.CompileLibraries == nil || ctx.RuntimeLibraries == nil {
		t.Fatalf("expected empty, non-nil library lists")
	}
}

func TestBuildRequiresOptionsAndFramework(t *testing.T) {
	b := NewBuilder(referenceAssembliesPath)
	fw := Framework{Identifier: "X", Version: FrameworkVersion{Major: 1}}

	if _, err := b.Build(nil, nil, nil, &fw, ""); !errors.Is(err, ErrNilCompilationOptions) {
		t.Fatalf("expected ErrNilCompilationOptions, got %v", err)
	}
	if _, err := b.Build(&CompilationOptions{}, nil, nil, nil, ""); !errors.Is(err, ErrNilFramework) {
		t.Fatalf("expected ErrNilFramework, got %v", err)
	}
}

func TestBuildTakesServiceableFromPackage(t *testing.T) {
	ctx := build(t, nil, nil, []LibraryExport{
		{Library: packageLibrary("Pack.Age", "1.2.3-dev", "Hash", true)},
	}, nil, "")

	if len(ctx.RuntimeLibraries) != 1 {
		t.Fatalf("expected 1 runtime library, got %d", len(ctx.RuntimeLibraries))
	}
	if !ctx.RuntimeLibraries[0].Serviceable {
		t.Fatalf("expected serviceable library")
	}
	if ctx.RuntimeLibraries[0].Version != "1.2.3-dev" {
		t.Fatalf("expected version 1.2.3-dev, got %q", ctx.RuntimeLibraries[0].Version)
	}
}

func TestBuildFillsRuntimeLibraryProperties(t *testing.T) {
	ctx := build(t, nil, nil, []LibraryExport{
		{
			Library: packageLibrary("Pack.Age", "1.2.3", "Hash", true,
				edge("System.Collections", "2.1.2", DependencyDefault)),
			ResourceAssemblies: []LibraryResourceAssembly{{
				Asset:  LibraryAsset{Name: "Dll", RelativePath: "en-US/Pack.Age.resources.dll"},
				Locale: "en-US",
			}},
			RuntimeAssemblies: []LibraryAsset{{Name: "Dll", RelativePath: "lib/Pack.Age.dll"}},
			RuntimeTargets: []LibraryRuntimeTarget{{
				Runtime:         "win8-x64",
				Assemblies:      []LibraryAsset{{Name: "Dll", RelativePath: "win8-x64/Pack.Age.dll"}},
				NativeLibraries: []LibraryAsset{{Name: "Dll", RelativePath: "win8-x64/Pack.Age.native.dll"}},
			}},
		},
		{
			Library:           referenceAssembly("System.Collections", "3.3.3"),
			RuntimeAssemblies: []LibraryAsset{{Name: "Dll", ResolvedPath: "System.Collections.dll"}},
		},
	}, nil, "")

	if len(ctx.RuntimeLibraries) != 2 {
		t.Fatalf("expected 2 runtime libraries, got %d", len(ctx.RuntimeLibraries))
	}

	lib, ok := ctx.RuntimeLibrary("Pack.Age")
	if !ok {
		t.Fatal("Pack.Age not found")
	}
	if lib.Type != TypePackage {
		t.Fatalf("expected type package, got %q", lib.Type)
	}
	if !lib.Serviceable {
		t.Fatalf("expected serviceable")
	}
	if lib.Hash != "sha512-Hash" {
		t.Fatalf("expected hash sha512-Hash, got %q", lib.Hash)
	}
	if lib.Version != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %q", lib.Version)
	}
	wantDeps := []Dependency{{Name: "System.Collections", Version: "3.3.3"}}
	if !reflect.DeepEqual(lib.Dependencies, wantDeps) {
		t.Fatalf("dependencies = %+v, want %+v", lib.Dependencies, wantDeps)
	}
	if len(lib.Assemblies) != 1 || lib.Assemblies[0].Path != "lib/Pack.Age.dll" || lib.Assemblies[0].Name != "Pack.Age" {
		t.Fatalf("unexpected assemblies %+v", lib.Assemblies)
	}
	wantRes := []ResourceAssembly{{Path: "en-US/Pack.Age.resources.dll", Locale: "en-US"}}
	if !reflect.DeepEqual(lib.ResourceAssemblies, wantRes) {
		t.Fatalf("resource assemblies = %+v, want %+v", lib.ResourceAssemblies, wantRes)
	}
	if len(lib.RuntimeTargets) != 1 {
		t.Fatalf("expected 1 runtime target, got %d", len(lib.RuntimeTargets))
	}
	target := lib.RuntimeTargets[0]
	if target.Runtime != "win8-x64" {
		t.Fatalf("expected runtime win8-x64, got %q", target.Runtime)
	}
	if len(target.Assemblies) != 1 || target.Assemblies[0].Path != "win8-x64/Pack.Age.dll" {
		t.Fatalf("unexpected target assemblies %+v", target.Assemblies)
	}
	if !reflect.DeepEqual(target.NativeLibraries, []string{"win8-x64/Pack.Age.native.dll"}) {
		t.Fatalf("unexpected native libraries %+v", target.NativeLibraries)
	}

	asm, ok := ctx.RuntimeLibrary("System.Collections")
	if !ok {
		t.Fatal("System.Collections not found")
	}
	if asm.Type != TypeReferenceAssembly {
		t.Fatalf("expected type referenceassembly, got %q", asm.Type)
	}
	if asm.Version != "3.3.3" {
		t.Fatalf("expected version 3.3.3, got %q", asm.Version)
	}
	if asm.Hash != "" {
		t.Fatalf("expected empty hash, got %q", asm.Hash)
	}
	if len(asm.Dependencies) != 0 {
		t.Fatalf("expected no dependencies, got %+v", asm.Dependencies)
	}
	if len(asm.Assemblies) != 1 || asm.Assemblies[0].Path != "System.Collections.dll" {
		t.Fatalf("unexpected assemblies %+v", asm.Assemblies)
	}
}

func TestBuildFillsCompileLibraryProperties(t *testing.T) {
	ctx := build(t, nil, []LibraryExport{
		{
			Library: packageLibrary("Pack.Age", "1.2.3", "Hash", true,
				edge("System.Collections", "2.1.2", DependencyDefault)),
			CompilationAssemblies: []LibraryAsset{{Name: "Dll", RelativePath: "lib/Pack.Age.dll"}},
		},
		{
			Library:               referenceAssembly("System.Collections", "3.3.3"),
			CompilationAssemblies: []LibraryAsset{{Name: "Dll", ResolvedPath: "System.Collections.dll"}},
		},
	}, nil, nil, "")

	if len(ctx.CompileLibraries) != 2 {
		t.Fatalf("expected 2 compile libraries, got %d", len(ctx.CompileLibraries))
	}

	lib, ok := ctx.CompileLibrary("Pack.Age")
	if !ok {
		t.Fatal("Pack.Age not found")
	}
	if lib.Type != TypePackage || !lib.Serviceable || lib.Hash != "sha512-Hash" || lib.Version != "1.2.3" {
		t.Fatalf("unexpected identity %+v", lib.LibraryInfo)
	}
	if !reflect.DeepEqual(lib.Dependencies, []Dependency{{Name: "System.Collections", Version: "3.3.3"}}) {
		t.Fatalf("unexpected dependencies %+v", lib.Dependencies)
	}
	if !reflect.DeepEqual(lib.Assemblies, []string{"lib/Pack.Age.dll"}) {
		t.Fatalf("unexpected assemblies %+v", lib.Assemblies)
	}

	asm, ok := ctx.CompileLibrary("System.Collections")
	if !ok {
		t.Fatal("System.Collections not found")
	}
	if asm.Type != TypeReferenceAssembly || asm.Version != "3.3.3" || asm.Hash != "" || len(asm.Dependencies) != 0 {
		t.Fatalf("unexpected identity %+v", asm.LibraryInfo)
	}
	if !reflect.DeepEqual(asm.Assemblies, []string{"System.Collections.dll"}) {
		t.Fatalf("unexpected assemblies %+v", asm.Assemblies)
	}
}

func TestBuildReferenceAssembliesPathRelativeToRoot(t *testing.T) {
	ctx := build(t, nil, []LibraryExport{{
		Library: referenceAssembly("System.Collections", "3.3.3"),
		CompilationAssemblies: []LibraryAsset{{
			Name:         "Dll",
			ResolvedPath: filepath.Join(referenceAssembliesPath, "sub", "System.Collections.dll"),
		}},
	}}, nil, nil, "")

	asm, ok := ctx.CompileLibrary("System.Collections")
	if !ok {
		t.Fatal("System.Collections not found")
	}
	if !reflect.DeepEqual(asm.Assemblies, []string{"sub/System.Collections.dll"}) {
		t.Fatalf("unexpected assemblies %+v", asm.Assemblies)
	}
}

func TestBuildSkipsBuildDependencies(t *testing.T) {
	ctx := build(t, nil, []LibraryExport{
		{Library: packageLibrary("Pack.Age", "1.2.3", "Hash", false,
			edge("System.Collections", "2.1.2", DependencyBuild))},
		{Library: referenceAssembly("System.Collections", "3.3.3")},
	}, nil, nil, "")

	lib, ok := ctx.CompileLibrary("Pack.Age")
	if !ok {
		t.Fatal("Pack.Age not found")
	}
	if len(lib.Dependencies) != 0 {
		t.Fatalf("expected build dependency to be skipped, got %+v", lib.Dependencies)
	}
}

func TestBuildDropsDependenciesOutsideExportSet(t *testing.T) {
	ctx := build(t, nil, []LibraryExport{
		{Library: packageLibrary("Pack.Age", "1.2.3", "", false,
			edge("Missing.Lib", "1.0.0", DependencyDefault),
			edge("System.Collections", "2.1.2", DependencyDefault))},
		{Library: referenceAssembly("System.Collections", "3.3.3")},
	}, nil, nil, "")

	lib, _ := ctx.CompileLibrary("Pack.Age")
	if !reflect.DeepEqual(lib.Dependencies, []Dependency{{Name: "System.Collections", Version: "3.3.3"}}) {
		t.Fatalf("unexpected dependencies %+v", lib.Dependencies)
	}
	if lib.Hash != "" {
		t.Fatalf("expected empty hash for package without hash, got %q", lib.Hash)
	}
}

func TestBuildCompileAndRuntimeSetsAreIndependent(t *testing.T) {
	ctx := build(t, nil,
		[]LibraryExport{{Library: packageLibrary("Compile.Only", "1.0.0", "", false)}},
		[]LibraryExport{{Library: packageLibrary("Runtime.Only", "1.0.0", "", false,
			edge("Compile.Only", "1.0.0", DependencyDefault))}},
		nil, "")

	if _, ok := ctx.CompileLibrary("Runtime.Only"); ok {
		t.Fatalf("runtime-only export leaked into compile libraries")
	}
	if _, ok := ctx.RuntimeLibrary("Compile.Only"); ok {
		t.Fatalf("compile-only export leaked into runtime libraries")
	}
	rt, _ := ctx.RuntimeLibrary("Runtime.Only")
	if len(rt.Dependencies) != 0 {
		t.Fatalf("runtime edge resolved against compile set: %+v", rt.Dependencies)
	}
}

func TestBuildProjectLibraries(t *testing.T) {
	ctx := build(t, nil, []LibraryExport{
		{Library: projectLibrary("My.Project", "1.0.0", edge("Pack.Age", "1.0", DependencyDefault))},
		{Library: packageLibrary("Pack.Age", "1.2.3", "Hash", false)},
	}, nil, nil, "")

	lib, ok := ctx.CompileLibrary("My.Project")
	if !ok {
		t.Fatal("My.Project not found")
	}
	if lib.Type != TypeProject {
		t.Fatalf("expected type project, got %q", lib.Type)
	}
	if lib.Hash != "" || lib.Serviceable {
		t.Fatalf("projects carry no hash or serviceable flag: %+v", lib.LibraryInfo)
	}
	if len(lib.Assemblies) != 0 {
		t.Fatalf("expected no assemblies, got %+v", lib.Assemblies)
	}
	if !reflect.DeepEqual(lib.Dependencies, []Dependency{{Name: "Pack.Age", Version: "1.2.3"}}) {
		t.Fatalf("unexpected dependencies %+v", lib.Dependencies)
	}
}

func TestBuildPreservesInputOrder(t *testing.T) {
	names := []string{"Zeta", "alpha", "Mid", "Beta"}
	var exports []LibraryExport
	for _, n := range names {
		exports = append(exports, LibraryExport{Library: packageLibrary(n, "1.0.0", "", false)})
	}
	ctx := build(t, nil, exports, exports, nil, "")

	for i, n := range names {
		if ctx.CompileLibraries[i].Name != n {
			t.Fatalf("compile[%d] = %q, want %q", i, ctx.CompileLibraries[i].Name, n)
		}
		if ctx.RuntimeLibraries[i].Name != n {
			t.Fatalf("runtime[%d] = %q, want %q", i, ctx.RuntimeLibraries[i].Name, n)
		}
	}
}

func TestBuildMergesExportsByName(t *testing.T) {
	ctx := build(t, nil, nil, []LibraryExport{
		{
			Library:           packageLibrary("Pack.Age", "1.2.3", "Hash", false),
			RuntimeAssemblies: []LibraryAsset{{RelativePath: "lib/A.dll"}},
			RuntimeTargets: []LibraryRuntimeTarget{{
				Runtime:         "linux-x64",
				NativeLibraries: []LibraryAsset{{RelativePath: "runtimes/linux-x64/native/a.so"}},
			}},
		},
		{Library: Library{Name: "  ", Source: UnresolvedDescriptor{}}},
		{
			Library:           packageLibrary("pack.age", "9.9.9", "Other", true),
			RuntimeAssemblies: []LibraryAsset{{RelativePath: "lib/A.dll"}, {RelativePath: "lib/B.dll"}},
			RuntimeTargets: []LibraryRuntimeTarget{{
				Runtime:         "linux-x64",
				NativeLibraries: []LibraryAsset{{RelativePath: "runtimes/linux-x64/native/b.so"}},
			}},
		},
	}, nil, "")

	if len(ctx.RuntimeLibraries) != 1 {
		t.Fatalf("expected 1 merged library, got %d: %+v", len(ctx.RuntimeLibraries), ctx.RuntimeLibraries)
	}
	lib := ctx.RuntimeLibraries[0]
	if lib.Name != "Pack.Age" || lib.Version != "1.2.3" || lib.Hash != "sha512-Hash" {
		t.Fatalf("first occurrence should fix identity, got %+v", lib.LibraryInfo)
	}
	if len(lib.Assemblies) != 2 {
		t.Fatalf("expected 2 unique assemblies, got %+v", lib.Assemblies)
	}
	if len(lib.RuntimeTargets) != 1 {
		t.Fatalf("expected runtime targets merged by runtime, got %+v", lib.RuntimeTargets)
	}
	want := []string{"runtimes/linux-x64/native/a.so", "runtimes/linux-x64/native/b.so"}
	if !reflect.DeepEqual(lib.RuntimeTargets[0].NativeLibraries, want) {
		t.Fatalf("native libraries = %+v, want %+v", lib.RuntimeTargets[0].NativeLibraries, want)
	}
}

func TestBuildUnresolvedLibraryIsReference(t *testing.T) {
	ctx := build(t, nil, []LibraryExport{
		{Library: Library{Name: "Ghost", Version: semver.LooseVersion("0.0.1"), Source: UnresolvedDescriptor{}}},
		{Library: Library{Name: "NoSource", Version: semver.LooseVersion("1.0.0")}},
	}, nil, nil, "")

	for _, lib := range ctx.CompileLibraries {
		if lib.Type != TypeReference {
			t.Fatalf("%s: expected type reference, got %q", lib.Name, lib.Type)
		}
	}
}

func TestBuildPassesMalformedVersionsThrough(t *testing.T) {
	ctx := build(t, nil, []LibraryExport{
		{Library: packageLibrary("Four.Part", "1.2.3.4", "", false)},
		{Library: packageLibrary("Negative", "-1.0.0", "", false,
			edge("Four.Part", "1.0", DependencyDefault))},
	}, nil, nil, "")

	four, _ := ctx.CompileLibrary("Four.Part")
	if four.Version != "1.2.3.4" {
		t.Fatalf("expected 1.2.3.4, got %q", four.Version)
	}
	neg, _ := ctx.CompileLibrary("Negative")
	if neg.Version != "-1.0.0" {
		t.Fatalf("expected -1.0.0, got %q", neg.Version)
	}
	if !reflect.DeepEqual(neg.Dependencies, []Dependency{{Name: "Four.Part", Version: "1.2.3.4"}}) {
		t.Fatalf("unexpected dependencies %+v", neg.Dependencies)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	compile := []LibraryExport{
		{
			Library: packageLibrary("Pack.Age", "1.2.3", "Hash", true,
				edge("System.Collections", "2.1.2", DependencyDefault),
				edge("Tooling", "1.0.0", DependencyBuild)),
			CompilationAssemblies: []LibraryAsset{{RelativePath: "lib/Pack.Age.dll"}},
		},
		{Library: referenceAssembly("System.Collections", "3.3.3")},
		{Library: packageLibrary("Tooling", "1.0.0", "", false)},
	}
	runtime := append([]LibraryExport{}, compile...)

	first := build(t, &CompilationOptions{Defines: []string{"DEBUG"}}, compile, runtime, nil, "linux-x64")
	second := build(t, &CompilationOptions{Defines: []string{"DEBUG"}}, compile, runtime, nil, "linux-x64")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("builds differ:\n%+v\n%+v", first, second)
	}
}

func TestBuildConcurrentCalls(t *testing.T) {
	b := NewBuilder(referenceAssembliesPath)
	exports := []LibraryExport{
		{Library: packageLibrary("Pack.Age", "1.2.3", "Hash", true,
			edge("System.Collections", "2.1.2", DependencyDefault))},
		{Library: referenceAssembly("System.Collections", "3.3.3")},
	}
	runtimes := []string{"win8-x64", "linux-x64", "osx-arm64", ""}

	var wg sync.WaitGroup
	results := make([]*DependencyContext, len(runtimes))
	errs := make([]error, len(runtimes))
	for i, rid := range runtimes {
		wg.Add(1)
		go func(i int, rid string) {
			defer wg.Done()
			fw := Framework{Identifier: FrameworkNetCoreApp, Version: FrameworkVersion{Major: 8}}
			results[i], errs[i] = b.Build(&CompilationOptions{}, exports, exports, &fw, rid)
		}(i, rid)
	}
	wg.Wait()

	for i, rid := range runtimes {
		if errs[i] != nil {
			t.Fatalf("build %q: %v", rid, errs[i])
		}
		if results[i].Runtime != rid {
			t.Fatalf("expected runtime %q, got %q", rid, results[i].Runtime)
		}
		if len(results[i].RuntimeLibraries) != 2 {
			t.Fatalf("expected 2 runtime libraries for %q", rid)
		}
	}
}
