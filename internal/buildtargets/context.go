package buildtargets

import (
	"io"
	"log"
	"runtime"
	"time"

	"depctx/internal/config"
	"depctx/internal/paths"
)

// Context is what every target receives. It is built once per run; targets
// communicate through State instead of process environment variables.
type Context struct {
	Env     config.Environment
	Targets config.TargetsConfig
	Paths   paths.WorkspacePaths
	Runner  Runner
	Logger  *log.Logger
	State   *State

	// Stdout receives the output of external commands. Nil discards it.
	Stdout io.Writer
	// GOOS selects platform-specific hints. Defaults to runtime.GOOS.
	GOOS string
	// Now defaults to time.Now.
	Now func() time.Time
}

// State holds values produced by targets for later targets and callers.
type State struct {
	Configuration string
	BuildVersion  *config.BuildVersion
	CommitHash    string
	Stage0Version string
	NuGetPackages string
}

// NewContext fills defaults for optional fields.
func NewContext(env config.Environment, cfg config.TargetsConfig, wp paths.WorkspacePaths, runner Runner, logger *log.Logger) *Context {
	if runner == nil {
		runner = CmdRunner{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Context{
		Env:     env,
		Targets: cfg,
		Paths:   wp,
		Runner:  runner,
		Logger:  logger,
		State:   &State{},
		GOOS:    runtime.GOOS,
		Now:     time.Now,
	}
}

func (c *Context) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *Context) goos() string {
	if c.GOOS == "" {
		return runtime.GOOS
	}
	return c.GOOS
}

func (c *Context) infof(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}

func (c *Context) warnf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf("WARNING: "+format, args...)
	}
}

func (c *Context) state() *State {
	if c.State == nil {
		c.State = &State{}
	}
	return c.State
}
