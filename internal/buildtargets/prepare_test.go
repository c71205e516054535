package buildtargets

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depctx/internal/config"
	"depctx/internal/paths"
)

type call struct {
	command string
	args    []string
	dir     string
	env     []string
}

type fakeRunner struct {
	calls   []call
	outputs map[string]string
	fail    map[string]error
}

func (f *fakeRunner) Run(_ context.Context, command string, args []string, opts RunOptions) (RunResult, error) {
	f.calls = append(f.calls, call{command: filepath.Base(command), args: args, dir: opts.Dir, env: opts.Env})
	key := filepath.Base(command) + " " + strings.Join(args, " ")
	if err, ok := f.fail[key]; ok {
		return RunResult{}, err
	}
	return RunResult{Stdout: []byte(f.outputs[key])}, nil
}

func (f *fakeRunner) commands() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.command + " " + strings.Join(c.args, " ")
	}
	return out
}

type workspace struct {
	tc     *Context
	runner *fakeRunner
	log    *bytes.Buffer
	root   string
}

func newWorkspace(t *testing.T, env config.Environment) workspace {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "repo")
	require.NoError(t, os.MkdirAll(root, 0o755))

	wp, err := paths.Resolve(root, "")
	require.NoError(t, err)

	stage0 := wp.Stage0Dir
	require.NoError(t, os.MkdirAll(stage0, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stage0, "..", ".version"), []byte("abc123\n1.0.0-preview1-001234\n"), 0o644))
	require.NoError(t, os.WriteFile(wp.BranchInfoFile, []byte("# info\nMAJOR_VERSION=1\nMINOR_VERSION=0\nPATCH_VERSION=0\nRELEASE_SUFFIX=beta\n"), 0o644))

	if env.Configuration == "" {
		env.Configuration = "Debug"
	}
	if env.NuGetPackages == "" {
		env.NuGetPackages = filepath.Join(base, "nuget")
	}

	runner := &fakeRunner{outputs: map[string]string{
		"git rev-list --count HEAD": "1234\n",
		"git rev-parse HEAD":        "deadbeef\n",
	}, fail: map[string]error{}}

	var buf bytes.Buffer
	cfg := config.Default().Targets
	tc := NewContext(env, cfg, wp, runner, log.New(&buf, "", 0))
	tc.GOOS = "linux"
	return workspace{tc: tc, runner: runner, log: &buf, root: root}
}

func TestPrepareRunsAllTargets(t *testing.T) {
	ws := newWorkspace(t, config.Environment{Configuration: "Release"})

	results, err := NewPrepareRegistry().Run(context.Background(), ws.tc, TargetPrepare)
	require.NoError(t, err, ws.log.String())

	assert.Equal(t, []string{
		TargetGenerateVersions,
		TargetCheckPrereqs,
		TargetLocateStage0,
		TargetInit,
		TargetCheckPackageCache,
		TargetRestorePackages,
		TargetPrepare,
	}, names(results))

	st := ws.tc.State
	assert.Equal(t, "Release", st.Configuration)
	require.NotNil(t, st.BuildVersion)
	assert.Equal(t, "1.0.0.001234", st.BuildVersion.SimpleVersion())
	assert.Equal(t, "1.0.0-beta-001234", st.BuildVersion.NuGetVersion())
	assert.Equal(t, "deadbeef", st.CommitHash)
	assert.Equal(t, "1.0.0-preview1-001234", st.Stage0Version)

	assert.Equal(t, []string{
		"git rev-list --count HEAD",
		"git rev-parse HEAD",
		"cmake --version",
		"dotnet restore",
		"dotnet restore",
	}, ws.runner.commands())

	restoreSrc := ws.runner.calls[3]
	assert.Equal(t, filepath.Join(ws.root, "src"), restoreSrc.dir)
	assert.Equal(t, []string{"NUGET_PACKAGES=" + st.NuGetPackages}, restoreSrc.env)
	assert.Equal(t, filepath.Join(ws.root, "tools"), ws.runner.calls[4].dir)

	assert.Contains(t, ws.log.String(), "Building Version: 1.0.0.001234 (NuGet Packages: 1.0.0-beta-001234)")
}

func TestGenerateVersionsWithoutGit(t *testing.T) {
	ws := newWorkspace(t, config.Environment{})
	ws.runner.fail["git rev-list --count HEAD"] = errors.New("not a git repository")
	ws.runner.fail["git rev-parse HEAD"] = errors.New("not a git repository")

	_, err := NewPrepareRegistry().Run(context.Background(), ws.tc, TargetGenerateVersions)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0.000000", ws.tc.State.BuildVersion.SimpleVersion())
	assert.Equal(t, "unknown", ws.tc.State.CommitHash)
	assert.Contains(t, ws.log.String(), "WARNING")
}

func TestGenerateVersionsMissingBranchInfo(t *testing.T) {
	ws := newWorkspace(t, config.Environment{})
	require.NoError(t, os.Remove(ws.tc.Paths.BranchInfoFile))

	_, err := NewPrepareRegistry().Run(context.Background(), ws.tc, TargetGenerateVersions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "branch info")
}

func TestCheckPrereqsIncludesPlatformHint(t *testing.T) {
	cases := map[string]string{
		"linux":   "sudo apt-get install cmake",
		"darwin":  "brew install cmake",
		"windows": "https://www.cmake.org",
	}
	for goos, hint := range cases {
		t.Run(goos, func(t *testing.T) {
			ws := newWorkspace(t, config.Environment{})
			ws.tc.GOOS = goos
			ws.runner.fail["cmake --version"] = errors.New("executable file not found")

			results, err := NewPrepareRegistry().Run(context.Background(), ws.tc, TargetPrepare)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "cmake is required to build the native host 'corehost'")
			assert.Contains(t, err.Error(), hint)

			assert.Equal(t, StatusFailed, results[1].Status)
			for _, res := range results[2:] {
				assert.Equal(t, StatusSkipped, res.Status, res.Target)
			}
		})
	}
}

func TestLocateStage0Missing(t *testing.T) {
	ws := newWorkspace(t, config.Environment{})
	require.NoError(t, os.RemoveAll(ws.tc.Paths.Stage0Dir))

	_, err := NewPrepareRegistry().Run(context.Background(), ws.tc, TargetLocateStage0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage 0 directory does not exist")
}

func TestLocateStage0ShortVersionFile(t *testing.T) {
	ws := newWorkspace(t, config.Environment{})
	require.NoError(t, os.WriteFile(filepath.Join(ws.tc.Paths.Stage0Dir, "..", ".version"), []byte("only-one-line\n"), 0o644))

	_, err := NewPrepareRegistry().Run(context.Background(), ws.tc, TargetLocateStage0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no version line")
}

func TestCheckPackageCacheOutsideCI(t *testing.T) {
	ws := newWorkspace(t, config.Environment{})
	pkgs := ws.tc.Env.NuGetPackages
	require.NoError(t, os.MkdirAll(pkgs, 0o755))
	keep := filepath.Join(pkgs, "keep.nupkg")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))

	_, err := NewPrepareRegistry().Run(context.Background(), ws.tc, TargetCheckPackageCache)
	require.NoError(t, err)
	assert.Equal(t, pkgs, ws.tc.State.NuGetPackages)
	assert.FileExists(t, keep)
	assert.NoFileExists(t, filepath.Join(pkgs, packageCacheTimeFile))
}

func TestCheckPackageCacheOnCI(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		stamp   string
		cleared bool
	}{
		{"no stamp", "", true},
		{"fresh stamp", now.Add(-time.Hour).Format(time.RFC3339Nano), false},
		{"expired stamp", now.Add(-200 * time.Hour).Format(time.RFC3339Nano), true},
		{"garbage stamp", "last tuesday", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ws := newWorkspace(t, config.Environment{CIBuild: true, PackageCacheTimeLimit: config.DefaultPackageCacheTimeLimit})
			ws.tc.Now = func() time.Time { return now }

			ciCache := filepath.Join(filepath.Dir(ws.root), ".nuget", "packages")
			require.NoError(t, os.MkdirAll(ciCache, 0o755))
			marker := filepath.Join(ciCache, "marker.nupkg")
			require.NoError(t, os.WriteFile(marker, []byte("x"), 0o644))
			if tc.stamp != "" {
				require.NoError(t, os.WriteFile(filepath.Join(ciCache, packageCacheTimeFile), []byte(tc.stamp), 0o644))
			}

			_, err := NewPrepareRegistry().Run(context.Background(), ws.tc, TargetCheckPackageCache)
			require.NoError(t, err)
			assert.Equal(t, ciCache, ws.tc.State.NuGetPackages)

			if tc.cleared {
				assert.NoFileExists(t, marker)
				data, err := os.ReadFile(filepath.Join(ciCache, packageCacheTimeFile))
				require.NoError(t, err)
				assert.Equal(t, now.Format(time.RFC3339Nano), string(data))
			} else {
				assert.FileExists(t, marker)
			}
		})
	}
}

func TestRestorePackagesFailure(t *testing.T) {
	ws := newWorkspace(t, config.Environment{})
	ws.runner.fail["dotnet restore"] = errors.New("exit status 1")

	_, err := NewPrepareRegistry().Run(context.Background(), ws.tc, TargetRestorePackages)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restore src")
	assert.Len(t, ws.runner.calls, 1)
}

func TestRestorePrefersStage0Dotnet(t *testing.T) {
	ws := newWorkspace(t, config.Environment{})
	if runtime.GOOS == "windows" {
		t.Skip("stage 0 binary name differs on windows")
	}
	bin := filepath.Join(ws.tc.Paths.Stage0Dir, "dotnet")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	assert.Equal(t, bin, dotnetCommand(ws.tc))
}

func TestCommandErrorMessage(t *testing.T) {
	err := &CommandError{Command: "cmake", Args: []string{"--version"}, Stderr: "line one\nfatal: nope\n", Err: errors.New("exit status 2")}
	assert.Equal(t, "cmake --version: exit status 2: fatal: nope", err.Error())
	assert.Equal(t, "exit status 2", errors.Unwrap(err).Error())
}
