package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"depctx/internal/depmodel"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

// ValidateStrict runs all strict validations against the config and returns
// structured results. Relative paths are resolved against workspaceRoot.
func (c Config) ValidateStrict(workspaceRoot string) []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateBuild()...)
	results = append(results, c.validateFeeds()...)
	results = append(results, c.validateMirrorTuning()...)
	results = append(results, c.validateSink()...)
	results = append(results, c.validateExternalFiles(workspaceRoot)...)
	results = append(results, c.validateTargets(workspaceRoot)...)
	return results
}

// HasErrors reports whether any result is an error.
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == "error" {
			return true
		}
	}
	return false
}

func (c Config) validateBuild() []ValidationResult {
	var results []ValidationResult
	switch strings.ToLower(strings.TrimSpace(c.Build.Format)) {
	case "", "json", "cbor":
	default:
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("build.format %q must be json or cbor", c.Build.Format),
		})
	}
	if fw := strings.TrimSpace(c.Build.Framework); fw != "" {
		if _, err := depmodel.ParseFramework(fw); err != nil {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("build.framework: %v", err),
			})
		}
	}
	return results
}

func (c Config) validateFeeds() []ValidationResult {
	var results []ValidationResult
	seen := make(map[string]int, len(c.Mirror.Feeds))
	for i, feed := range c.Mirror.Feeds {
		raw := strings.TrimSpace(feed.URL)
		if raw == "" {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("mirror.feeds[%d]: url is required", i),
			})
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("mirror.feeds[%d]: %q is not an http(s) URL", i, raw),
			})
			continue
		}
		key := feedKey(raw)
		if first, dup := seen[key]; dup {
			results = append(results, ValidationResult{
				Level:   "warning",
				Message: fmt.Sprintf("mirror.feeds[%d] duplicates mirror.feeds[%d] (%s)", i, first, raw),
			})
			continue
		}
		seen[key] = i
	}
	return results
}

func (c Config) validateMirrorTuning() []ValidationResult {
	var results []ValidationResult
	if c.Mirror.Workers > 64 {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: fmt.Sprintf("mirror.workers is %d; feeds may throttle more than 64 concurrent downloads", c.Mirror.Workers),
		})
	}
	if c.Mirror.RetryBaseDelayMs > 0 && c.Mirror.RetryMaxDelayMs > 0 && c.Mirror.RetryBaseDelayMs > c.Mirror.RetryMaxDelayMs {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: "mirror.retry_base_delay_ms exceeds mirror.retry_max_delay_ms; every retry will wait the maximum",
		})
	}
	return results
}

func (c Config) validateSink() []ValidationResult {
	switch strings.ToLower(strings.TrimSpace(c.Mirror.Sink.Kind)) {
	case "", SinkDir:
		return nil
	case SinkS3:
		if strings.TrimSpace(c.Mirror.Sink.Bucket) == "" {
			return []ValidationResult{{Level: "error", Message: "mirror.sink.bucket is required for the s3 sink"}}
		}
		return nil
	default:
		return []ValidationResult{{
			Level:   "error",
			Message: fmt.Sprintf("mirror.sink.kind %q must be dir or s3", c.Mirror.Sink.Kind),
		}}
	}
}

func (c Config) validateExternalFiles(root string) []ValidationResult {
	var results []ValidationResult
	for _, path := range c.FeedFiles {
		if _, err := os.Stat(resolveExternalPath(root, path)); err != nil {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("feed file %q not found", path),
			})
		}
	}
	if ref := strings.TrimSpace(c.Build.ReferenceAssembliesRoot); ref != "" {
		if _, err := os.Stat(resolveExternalPath(root, ref)); err != nil {
			results = append(results, ValidationResult{
				Level:   "warning",
				Message: fmt.Sprintf("build.reference_assemblies_root %q does not exist", ref),
			})
		}
	}
	return results
}

func (c Config) validateTargets(root string) []ValidationResult {
	var results []ValidationResult
	if info := strings.TrimSpace(c.Targets.BranchInfo); info != "" {
		if _, err := os.Stat(resolveExternalPath(root, info)); err != nil {
			results = append(results, ValidationResult{
				Level:   "warning",
				Message: fmt.Sprintf("targets.branch_info %q not found; GenerateVersions will fail", info),
			})
		}
	}
	if stage0 := strings.TrimSpace(c.Targets.Stage0Dir); stage0 != "" {
		if _, err := os.Stat(resolveExternalPath(root, stage0)); err != nil {
			results = append(results, ValidationResult{
				Level:   "warning",
				Message: fmt.Sprintf("targets.stage0_dir %q not found; LocateStage0 will fail", stage0),
			})
		}
	}
	return results
}
