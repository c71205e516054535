package depmodel

// DependencyContext is the manifest for one (target framework, runtime)
// pair. It shares no memory with the inputs it was built from and is never
// modified after Build returns.
type DependencyContext struct {
	TargetFramework    string
	Runtime            string
	CompilationOptions CompilationOptions
	CompileLibraries   []CompileLibrary
	RuntimeLibraries   []RuntimeLibrary
}

// Dependency is a filtered dependency edge carrying the resolved version.
type Dependency struct {
	Name    string
	Version string
}

// LibraryInfo holds the fields common to compile and runtime libraries.
type LibraryInfo struct {
	Type         LibraryType
	Name         string
	Version      string
	Hash         string
	Serviceable  bool
	Dependencies []Dependency
}

// CompileLibrary is the compile-time view of a library.
type CompileLibrary struct {
	LibraryInfo
	Assemblies []string
}

// RuntimeAssembly is a managed assembly loaded at run time.
type RuntimeAssembly struct {
	Name string
	Path string
}

// ResourceAssembly is a satellite assembly for one locale.
type ResourceAssembly struct {
	Path   string
	Locale string
}

// RuntimeTarget is the runtime-identifier-specific part of a runtime
// library.
type RuntimeTarget struct {
	Runtime         string
	Assemblies      []RuntimeAssembly
	NativeLibraries []string
}

// RuntimeLibrary is the run-time view of a library.
type RuntimeLibrary struct {
	LibraryInfo
	Assemblies         []RuntimeAssembly
	ResourceAssemblies []ResourceAssembly
	RuntimeTargets     []RuntimeTarget
}

// CompileLibrary returns the compile library with the given name.
func (c *DependencyContext) CompileLibrary(name string) (CompileLibrary, bool) {
	if c == nil {
		return CompileLibrary{}, false
	}
	for _, lib := range c.CompileLibraries {
		if lib.Name == name {
			return lib, true
		}
	}
	return CompileLibrary{}, false
}

// RuntimeLibrary returns the runtime library with the given name.
func (c *DependencyContext) RuntimeLibrary(name string) (RuntimeLibrary, bool) {
	if c == nil {
		return RuntimeLibrary{}, false
	}
	for _, lib := range c.RuntimeLibraries {
		if lib.Name == name {
			return lib, true
		}
	}
	return RuntimeLibrary{}, false
}
