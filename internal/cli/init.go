package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"depctx/internal/paths"
)

const sampleProjectYAML = `# Export set consumed by "depctx build". Each library lists its resolved
# version, its declared dependency ranges and the assets it contributes.
framework: netcoreapp1.0
# runtime: win7-x64
# referenceAssembliesRoot: /usr/lib/mono/xbuild-frameworks
compilationOptions:
  defines: [DEBUG]
  emitEntryPoint: true
libraries:
  - name: App
    version: 1.0.0
    type: project
    path: src/App
    dependencies:
      - name: Newtonsoft.Json
        range: "[9.0.1, )"
    compile: [bin/App.dll]
    runtime: [bin/App.dll]
  - name: Newtonsoft.Json
    version: 9.0.1
    type: package
    hash: sha512-REPLACE
    serviceable: true
    path: packages/newtonsoft.json/9.0.1
    compile: [lib/netstandard1.0/Newtonsoft.Json.dll]
    runtime: [lib/netstandard1.0/Newtonsoft.Json.dll]
`

const sampleEnv = `# Values here are read by depctx but never written back.
# DEPCTX_S3_ENDPOINT=localhost:9000
# DEPCTX_S3_ACCESS_KEY=
# DEPCTX_S3_SECRET_KEY=
# CI_BUILD=1
`

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a depctx workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInit,
	}
}

func resolveInitDir(workspaceFlag string, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return workspaceFlag
}

func runInit(cmd *cobra.Command, args []string) error {
	wp, err := paths.Resolve(resolveInitDir(workspaceDir, args), configPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(wp.Root, 0o755); err != nil {
		return fmt.Errorf("create workspace root: %w", err)
	}
	if err := wp.EnsureMetaDirs(); err != nil {
		return err
	}

	ws := workspace{Paths: wp}
	logger, closeLog := ws.openLogger("init")
	defer closeLog()
	logger.Printf("depctx init: workspace=%s", wp.Root)

	created := make([]string, 0, 3)
	record := func(path string) {
		logger.Printf("created %s", path)
		rel, err := filepath.Rel(wp.Root, path)
		if err != nil {
			rel = path
		}
		created = append(created, rel)
	}

	made, err := ensureConfigFile(wp.ConfigFile)
	if err != nil {
		return err
	}
	if made {
		record(wp.ConfigFile)
	}

	for _, f := range []struct {
		path     string
		contents string
	}{
		{filepath.Join(wp.Root, "project.yaml"), sampleProjectYAML},
		{wp.EnvFile, sampleEnv},
	} {
		made, err := writeIfMissing(f.path, f.contents)
		if err != nil {
			return err
		}
		if made {
			record(f.path)
		} else {
			logger.Printf("exists %s", f.path)
		}
	}

	if len(created) == 0 {
		cmd.Printf("Workspace already initialized at %s\n", wp.Root)
		return nil
	}

	cmd.Printf("Initialized workspace at %s\n", wp.Root)
	for _, entry := range created {
		cmd.Printf("  created %s\n", entry)
	}
	return nil
}

func writeIfMissing(path, contents string) (bool, error) {
	exists, err := paths.FileExists(path)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", filepath.Base(path), err)
	}
	if exists {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return true, nil
}
