package buildtargets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"depctx/internal/config"
	"depctx/internal/paths"
)

const (
	TargetPrepare           = "Prepare"
	TargetInit              = "Init"
	TargetGenerateVersions  = "GenerateVersions"
	TargetCheckPrereqs      = "CheckPrereqs"
	TargetLocateStage0      = "LocateStage0"
	TargetCheckPackageCache = "CheckPackageCache"
	TargetRestorePackages   = "RestorePackages"

	packageCacheTimeFile = "packageCacheTime.txt"
)

// PrepareTargets returns the build preparation targets.
func PrepareTargets() []Target {
	return []Target{
		{
			Name:        TargetPrepare,
			Description: "Initialize the build and restore packages",
			DependsOn:   []string{TargetInit, TargetRestorePackages},
		},
		{
			Name:        TargetInit,
			Description: "Record the build configuration and environment",
			DependsOn:   []string{TargetGenerateVersions, TargetCheckPrereqs, TargetLocateStage0},
			Run:         initTarget,
		},
		{
			Name:        TargetGenerateVersions,
			Description: "Compute the build version from branchinfo.txt",
			Run:         generateVersions,
		},
		{
			Name:        TargetCheckPrereqs,
			Description: "Verify cmake is installed",
			Run:         checkPrereqs,
		},
		{
			Name:        TargetLocateStage0,
			Description: "Locate the stage 0 SDK",
			Run:         locateStage0,
		},
		{
			Name:        TargetCheckPackageCache,
			Description: "Locate the package cache and expire it on CI",
			Run:         checkPackageCache,
		},
		{
			Name:        TargetRestorePackages,
			Description: "Restore packages for the source and tools trees",
			DependsOn:   []string{TargetCheckPackageCache},
			Run:         restorePackages,
		},
	}
}

// NewPrepareRegistry returns a registry holding PrepareTargets.
func NewPrepareRegistry() *Registry {
	r := NewRegistry()
	for _, t := range PrepareTargets() {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

func initTarget(_ context.Context, tc *Context) error {
	st := tc.state()
	st.Configuration = tc.Env.Configuration
	if st.Configuration == "" {
		st.Configuration = "Debug"
	}

	tc.infof("Building %s to: %s", st.Configuration, tc.Paths.OutputDir)
	tc.infof("Build Environment:")
	tc.infof(" Operating System: %s", tc.goos())
	tc.infof(" Platform: %s", runtime.GOARCH)
	return nil
}

func generateVersions(ctx context.Context, tc *Context) error {
	info, err := config.LoadBranchInfo(tc.Paths.BranchInfoFile)
	if err != nil {
		return err
	}
	tc.infof("Branch Info:")
	for _, key := range []string{"MAJOR_VERSION", "MINOR_VERSION", "PATCH_VERSION", "RELEASE_SUFFIX"} {
		tc.infof(" %s = %s", key, info.Values[key])
	}

	commitCount := 0
	if out, err := tc.Runner.Run(ctx, "git", []string{"rev-list", "--count", "HEAD"}, RunOptions{Dir: tc.Paths.Root}); err != nil {
		tc.warnf("could not count commits, using 0: %v", err)
	} else if n, err := strconv.Atoi(strings.TrimSpace(string(out.Stdout))); err != nil {
		tc.warnf("unexpected commit count %q, using 0", strings.TrimSpace(string(out.Stdout)))
	} else {
		commitCount = n
	}

	commitHash := "unknown"
	if out, err := tc.Runner.Run(ctx, "git", []string{"rev-parse", "HEAD"}, RunOptions{Dir: tc.Paths.Root}); err != nil {
		tc.warnf("could not read commit hash: %v", err)
	} else if hash := strings.TrimSpace(string(out.Stdout)); hash != "" {
		commitHash = hash
	}

	version := config.NewBuildVersion(info, commitCount)
	st := tc.state()
	st.BuildVersion = &version
	st.CommitHash = commitHash

	tc.infof("Building Version: %s (NuGet Packages: %s)", version.SimpleVersion(), version.NuGetVersion())
	tc.infof("From Commit: %s", commitHash)
	return nil
}

func checkPrereqs(ctx context.Context, tc *Context) error {
	cmake := tc.Targets.CMakeCommand
	if cmake == "" {
		cmake = "cmake"
	}
	if _, err := tc.Runner.Run(ctx, cmake, []string{"--version"}, RunOptions{}); err != nil {
		msg := fmt.Sprintf("error running cmake: %v\ncmake is required to build the native host 'corehost'", err)
		if hint := cmakeHint(tc.goos()); hint != "" {
			msg += "\n" + hint
		}
		return errors.New(msg)
	}
	return nil
}

func cmakeHint(goos string) string {
	switch goos {
	case "windows":
		return "Download it from https://www.cmake.org"
	case "linux":
		return "Ubuntu: 'sudo apt-get install cmake'"
	case "darwin":
		return "OS X w/Homebrew: 'brew install cmake'"
	default:
		return ""
	}
}

func locateStage0(_ context.Context, tc *Context) error {
	stage0 := tc.Paths.Stage0Dir
	ok, err := paths.DirExists(stage0)
	if err != nil {
		return fmt.Errorf("stat stage 0 directory: %w", err)
	}
	if !ok {
		return fmt.Errorf("stage 0 directory does not exist: %s", stage0)
	}

	versionFile := filepath.Join(stage0, "..", ".version")
	f, err := os.Open(versionFile)
	if err != nil {
		return fmt.Errorf("read stage 0 version: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() && len(lines) < 2 {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stage 0 version: %w", err)
	}
	if len(lines) < 2 {
		return fmt.Errorf("stage 0 version file %s has no version line", versionFile)
	}

	tc.state().Stage0Version = lines[1]
	tc.infof("Using Stage 0 Version: %s", lines[1])
	return nil
}

func checkPackageCache(_ context.Context, tc *Context) error {
	st := tc.state()

	packages := tc.Env.NuGetPackages
	if tc.Env.CIBuild {
		// CI redirects HOME into the workspace, which is deleted after every
		// build; keep the cache beside it instead.
		abs, err := filepath.Abs(filepath.Join(tc.Paths.Root, "..", ".nuget", "packages"))
		if err != nil {
			return fmt.Errorf("resolve CI package cache: %w", err)
		}
		packages = abs
	}
	if packages == "" {
		def, err := paths.DefaultNuGetPackages()
		if err != nil {
			return err
		}
		packages = def
	}
	st.NuGetPackages = packages
	tc.infof("Package cache: %s", packages)

	if !tc.Env.CIBuild {
		return nil
	}

	limit := tc.Env.PackageCacheTimeLimit
	if limit <= 0 {
		limit = config.DefaultPackageCacheTimeLimit
	}

	stampFile := filepath.Join(packages, packageCacheTimeFile)
	stamp, err := readCacheStamp(stampFile)
	if err != nil {
		tc.warnf("error reading package cache time file, treating the cache as expired: %v", err)
	}

	now := tc.now().UTC()
	if stamp.IsZero() || stamp.Add(limit).Before(now) {
		tc.infof("Clearing package cache")
		if err := os.RemoveAll(packages); err != nil {
			return fmt.Errorf("clear package cache: %w", err)
		}
		if err := os.MkdirAll(packages, 0o755); err != nil {
			return fmt.Errorf("recreate package cache: %w", err)
		}
		if err := os.WriteFile(stampFile, []byte(now.Format(time.RFC3339Nano)), 0o644); err != nil {
			return fmt.Errorf("write package cache time: %w", err)
		}
	}
	return nil
}

// readCacheStamp returns the zero time when the file is missing or empty.
func readCacheStamp(path string) (time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return time.Time{}, nil
	}
	stamp, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return stamp, nil
}

func restorePackages(ctx context.Context, tc *Context) error {
	dotnet := dotnetCommand(tc)
	var env []string
	if pkgs := tc.state().NuGetPackages; pkgs != "" {
		env = append(env, "NUGET_PACKAGES="+pkgs)
	}

	dirs := tc.Targets.SourceDirs
	if len(dirs) == 0 {
		dirs = []string{"src", "tools"}
	}
	for _, dir := range dirs {
		workDir := paths.ResolveIn(tc.Paths.Root, dir)
		tc.infof("Restoring packages in %s", workDir)
		if _, err := tc.Runner.Run(ctx, dotnet, []string{"restore"}, RunOptions{
			Dir:    workDir,
			Env:    env,
			Stdout: tc.Stdout,
			Stderr: tc.Stdout,
		}); err != nil {
			return fmt.Errorf("restore %s: %w", dir, err)
		}
	}
	return nil
}

// dotnetCommand prefers the stage 0 SDK when it is present.
func dotnetCommand(tc *Context) string {
	name := tc.Targets.DotnetCommand
	if name == "" {
		name = "dotnet"
	}
	if filepath.IsAbs(name) {
		return name
	}
	candidate := filepath.Join(tc.Paths.Stage0Dir, name)
	if runtime.GOOS == "windows" {
		candidate += ".exe"
	}
	if ok, _ := paths.FileExists(candidate); ok {
		return candidate
	}
	return name
}
