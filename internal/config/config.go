package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the workspace configuration stored in depctx.yaml.
type Config struct {
	Version int           `yaml:"version"`
	Build   BuildConfig   `yaml:"build"`
	Mirror  MirrorConfig  `yaml:"mirror"`
	Targets TargetsConfig `yaml:"targets"`
	// FeedFiles lists extra feed files merged into Mirror.Feeds at load.
	FeedFiles []string `yaml:"feed_files,omitempty"`
}

// BuildConfig holds defaults for `depctx build`. Command-line flags win.
type BuildConfig struct {
	Framework               string `yaml:"framework,omitempty"`
	Runtime                 string `yaml:"runtime,omitempty"`
	ReferenceAssembliesRoot string `yaml:"reference_assemblies_root,omitempty"`
	Format                  string `yaml:"format"`
	OutputDir               string `yaml:"output_dir"`
	Strict                  *bool  `yaml:"strict,omitempty"`
}

// StrictValue returns the effective strict flag applying defaults.
func (b BuildConfig) StrictValue() bool {
	if b.Strict == nil {
		return false
	}
	return *b.Strict
}

// MirrorConfig describes the package mirror.
type MirrorConfig struct {
	Feeds            []FeedConfig `yaml:"feeds"`
	Workers          int          `yaml:"workers"`
	Retries          int          `yaml:"retries"`
	RetryBaseDelayMs int          `yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int          `yaml:"retry_max_delay_ms"`
	PageSize         int          `yaml:"page_size"`
	SeenCacheSize    int          `yaml:"seen_cache_size"`
	Sink             SinkConfig   `yaml:"sink"`
}

// RetryBaseDelay returns the first retry delay as a duration.
func (m MirrorConfig) RetryBaseDelay() time.Duration {
	return time.Duration(m.RetryBaseDelayMs) * time.Millisecond
}

// RetryMaxDelay returns the retry delay cap as a duration.
func (m MirrorConfig) RetryMaxDelay() time.Duration {
	return time.Duration(m.RetryMaxDelayMs) * time.Millisecond
}

// FeedConfig is a single NuGet v3 feed.
type FeedConfig struct {
	Name string `yaml:"name,omitempty"`
	URL  string `yaml:"url"`
}

// SinkConfig selects where mirrored packages are stored. Credentials come
// from the environment, never from the file.
type SinkConfig struct {
	Kind     string `yaml:"kind"`
	Bucket   string `yaml:"bucket,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// TargetsConfig configures the build preparation targets.
type TargetsConfig struct {
	Default       string   `yaml:"default"`
	Stage0Dir     string   `yaml:"stage0_dir"`
	BranchInfo    string   `yaml:"branch_info"`
	SourceDirs    []string `yaml:"restore_dirs"`
	DotnetCommand string   `yaml:"dotnet"`
	CMakeCommand  string   `yaml:"cmake"`
}

const (
	SinkDir = "dir"
	SinkS3  = "s3"
)

// DefaultFeeds are the feeds mirrored when the configuration lists none.
var DefaultFeeds = []FeedConfig{
	{Name: "dotnet-core-rel", URL: "https://www.myget.org/F/dotnet-core-rel/api/v3/index.json"},
	{Name: "nugetbuild", URL: "https://www.myget.org/F/nugetbuild/api/v3/index.json"},
	{Name: "aspnetcidev", URL: "https://www.myget.org/F/aspnetcidev/api/v3/index.json"},
	{Name: "roslyn-nightly", URL: "https://www.myget.org/F/roslyn-nightly/api/v3/index.json"},
	{Name: "dotnet-corefxlab", URL: "https://www.myget.org/F/dotnet-corefxlab/api/v3/index.json"},
	{Name: "netcore-package-prototyping", URL: "https://www.myget.org/F/netcore-package-prototyping/api/v3/index.json"},
	{Name: "dotnet", URL: "https://www.myget.org/F/dotnet/api/v3/index.json"},
	{Name: "dotnet-buildtools", URL: "https://www.myget.org/F/dotnet-buildtools/api/v3/index.json"},
	{Name: "fsharp-daily", URL: "https://www.myget.org/F/fsharp-daily/api/v3/index.json"},
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version: 1,
		Build: BuildConfig{
			Format:    "json",
			OutputDir: "out",
			Strict:    boolPtr(false),
		},
		Mirror: MirrorConfig{
			Workers:          8,
			Retries:          3,
			RetryBaseDelayMs: 500,
			RetryMaxDelayMs:  10_000,
			PageSize:         500,
			SeenCacheSize:    65_536,
			Sink:             SinkConfig{Kind: SinkDir},
		},
		Targets: TargetsConfig{
			Default:       "Prepare",
			Stage0Dir:     filepath.Join(".dotnet_stage0", "bin"),
			BranchInfo:    "branchinfo.txt",
			SourceDirs:    []string{"src", "tools"},
			DotnetCommand: "dotnet",
			CMakeCommand:  "cmake",
		},
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration. Feed files are resolved relative to the
// directory holding the configuration file.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	cfg.Mirror.Feeds = nil
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.loadFeedFiles(filepath.Dir(path)); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults ensures nested fields fall back to sensible defaults when the
// YAML omits them.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.Build.Format == "" {
		c.Build.Format = defaults.Build.Format
	}
	if c.Build.OutputDir == "" {
		c.Build.OutputDir = defaults.Build.OutputDir
	}
	if c.Build.Strict == nil {
		c.Build.Strict = boolPtr(false)
	}
	if len(c.Mirror.Feeds) == 0 {
		c.Mirror.Feeds = append([]FeedConfig(nil), DefaultFeeds...)
	}
	if c.Mirror.Workers <= 0 {
		c.Mirror.Workers = defaults.Mirror.Workers
	}
	if c.Mirror.Retries <= 0 {
		c.Mirror.Retries = defaults.Mirror.Retries
	}
	if c.Mirror.RetryBaseDelayMs <= 0 {
		c.Mirror.RetryBaseDelayMs = defaults.Mirror.RetryBaseDelayMs
	}
	if c.Mirror.RetryMaxDelayMs <= 0 {
		c.Mirror.RetryMaxDelayMs = defaults.Mirror.RetryMaxDelayMs
	}
	if c.Mirror.PageSize <= 0 {
		c.Mirror.PageSize = defaults.Mirror.PageSize
	}
	if c.Mirror.SeenCacheSize <= 0 {
		c.Mirror.SeenCacheSize = defaults.Mirror.SeenCacheSize
	}
	if c.Mirror.Sink.Kind == "" {
		c.Mirror.Sink.Kind = defaults.Mirror.Sink.Kind
	}
	if c.Targets.Default == "" {
		c.Targets.Default = defaults.Targets.Default
	}
	if c.Targets.Stage0Dir == "" {
		c.Targets.Stage0Dir = defaults.Targets.Stage0Dir
	}
	if c.Targets.BranchInfo == "" {
		c.Targets.BranchInfo = defaults.Targets.BranchInfo
	}
	if len(c.Targets.SourceDirs) == 0 {
		c.Targets.SourceDirs = defaults.Targets.SourceDirs
	}
	if c.Targets.DotnetCommand == "" {
		c.Targets.DotnetCommand = defaults.Targets.DotnetCommand
	}
	if c.Targets.CMakeCommand == "" {
		c.Targets.CMakeCommand = defaults.Targets.CMakeCommand
	}
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}

func boolPtr(v bool) *bool {
	return &v
}
