package cli

import (
	"context"
	"encoding/json"
	"io"
	"log"

	"github.com/spf13/cobra"

	"depctx/internal/config"
	"depctx/internal/logx"
	"depctx/internal/paths"
)

type workspace struct {
	Paths  paths.WorkspacePaths
	Config config.Config
}

// loadWorkspace resolves the workspace from the persistent flags and loads
// its configuration. A missing depctx.yaml yields the defaults.
func loadWorkspace() (workspace, error) {
	wp, err := paths.Resolve(workspaceDir, configPath)
	if err != nil {
		return workspace{}, err
	}
	cfg, err := config.Load(wp.ConfigFile)
	if err != nil {
		return workspace{}, err
	}
	return workspace{Paths: paths.ApplyConfig(wp, cfg), Config: cfg}, nil
}

func (ws workspace) environment() (config.Environment, error) {
	return config.LoadEnvironment(ws.Paths.EnvFile)
}

// openLogger returns the workspace file logger, or a discarding logger when
// the logs directory cannot be created.
func (ws workspace) openLogger(command string) (*log.Logger, func()) {
	logger, closer, err := logx.New(ws.Paths)
	if err != nil {
		return logx.Discard(), func() {}
	}
	logger.SetPrefix(command + " ")
	return logger, func() { _ = closer.Close() }
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
