package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"depctx/internal/config"
)

// WorkspacePaths captures canonical locations for a depctx workspace.
type WorkspacePaths struct {
	Root           string
	ConfigFile     string
	EnvFile        string
	MetaDir        string
	LogsDir        string
	OutputDir      string
	BranchInfoFile string
	Stage0Dir      string
}

// Resolve determines the workspace root using the optional --workspace flag
// or the current working directory when the flag is empty. A non-empty
// configFlag overrides the default depctx.yaml location.
func Resolve(workspaceFlag, configFlag string) (WorkspacePaths, error) {
	var (
		root string
		err  error
	)

	if workspaceFlag != "" {
		root, err = filepath.Abs(workspaceFlag)
	} else {
		root, err = os.Getwd()
	}
	if err != nil {
		return WorkspacePaths{}, fmt.Errorf("resolve workspace root: %w", err)
	}

	wp := newWorkspacePaths(root)
	if configFlag != "" {
		abs, err := filepath.Abs(configFlag)
		if err != nil {
			return WorkspacePaths{}, fmt.Errorf("resolve config path: %w", err)
		}
		wp.ConfigFile = abs
	}
	return wp, nil
}

func newWorkspacePaths(root string) WorkspacePaths {
	metaDir := filepath.Join(root, ".depctx")
	return WorkspacePaths{
		Root:           root,
		ConfigFile:     filepath.Join(root, "depctx.yaml"),
		EnvFile:        filepath.Join(root, ".env"),
		MetaDir:        metaDir,
		LogsDir:        filepath.Join(metaDir, "logs"),
		OutputDir:      filepath.Join(root, "out"),
		BranchInfoFile: filepath.Join(root, "branchinfo.txt"),
		Stage0Dir:      filepath.Join(root, ".dotnet_stage0", "bin"),
	}
}

// ApplyConfig rebases configurable locations onto the workspace root.
func ApplyConfig(wp WorkspacePaths, cfg config.Config) WorkspacePaths {
	if out := strings.TrimSpace(cfg.Build.OutputDir); out != "" {
		wp.OutputDir = ResolveIn(wp.Root, out)
	}
	if info := strings.TrimSpace(cfg.Targets.BranchInfo); info != "" {
		wp.BranchInfoFile = ResolveIn(wp.Root, info)
	}
	if stage0 := strings.TrimSpace(cfg.Targets.Stage0Dir); stage0 != "" {
		wp.Stage0Dir = ResolveIn(wp.Root, stage0)
	}
	return wp
}

// ResolveIn returns value unchanged when absolute, otherwise joined onto root.
func ResolveIn(root, value string) string {
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(root, value)
}

// ManifestPath returns the output location for a manifest built from the
// given project file.
func (p WorkspacePaths) ManifestPath(projectFile, ext string) string {
	base := filepath.Base(projectFile)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(p.OutputDir, base+".deps"+ext)
}

// EnsureMetaDirs creates the hidden .depctx metadata directory and its logs
// directory.
func (p WorkspacePaths) EnsureMetaDirs() error {
	for _, dir := range []string{p.MetaDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DefaultNuGetPackages returns the per-user package cache (~/.nuget/packages).
func DefaultNuGetPackages() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("detect user home: %w", err)
	}
	return filepath.Join(home, ".nuget", "packages"), nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
