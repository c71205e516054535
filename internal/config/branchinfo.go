package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// BranchInfo is the version information checked into the repository in
// branchinfo.txt.
type BranchInfo struct {
	Major         int
	Minor         int
	Patch         int
	ReleaseSuffix string
	// Values holds every key read from the file, including the ones above.
	Values map[string]string
}

// LoadBranchInfo reads and validates a branch info file.
func LoadBranchInfo(path string) (BranchInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return BranchInfo{}, fmt.Errorf("read branch info: %w", err)
	}
	defer f.Close()

	info, err := ParseBranchInfo(f)
	if err != nil {
		return BranchInfo{}, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

// ParseBranchInfo parses KEY=VALUE lines. Blank lines and lines starting
// with # are ignored; values may themselves contain '='.
func ParseBranchInfo(r io.Reader) (BranchInfo, error) {
	values := map[string]string{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return BranchInfo{}, fmt.Errorf("line %d: expected KEY=VALUE, got %q", lineNo, line)
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return BranchInfo{}, fmt.Errorf("scan branch info: %w", err)
	}

	info := BranchInfo{Values: values}
	var err error
	if info.Major, err = requiredInt(values, "MAJOR_VERSION"); err != nil {
		return BranchInfo{}, err
	}
	if info.Minor, err = requiredInt(values, "MINOR_VERSION"); err != nil {
		return BranchInfo{}, err
	}
	if info.Patch, err = requiredInt(values, "PATCH_VERSION"); err != nil {
		return BranchInfo{}, err
	}
	suffix, ok := values["RELEASE_SUFFIX"]
	if !ok {
		return BranchInfo{}, fmt.Errorf("RELEASE_SUFFIX is required")
	}
	info.ReleaseSuffix = suffix
	return info, nil
}

func requiredInt(values map[string]string, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s %q must be a non-negative integer", key, raw)
	}
	return n, nil
}

// BuildVersion is the version stamped onto build outputs.
type BuildVersion struct {
	Major         int
	Minor         int
	Patch         int
	ReleaseSuffix string
	CommitCount   int
}

// NewBuildVersion combines branch info with the commit count.
func NewBuildVersion(info BranchInfo, commitCount int) BuildVersion {
	return BuildVersion{
		Major:         info.Major,
		Minor:         info.Minor,
		Patch:         info.Patch,
		ReleaseSuffix: info.ReleaseSuffix,
		CommitCount:   commitCount,
	}
}

// CommitCountString is the commit count zero-padded to six digits.
func (v BuildVersion) CommitCountString() string {
	return fmt.Sprintf("%06d", v.CommitCount)
}

// SimpleVersion renders Major.Minor.Patch.CommitCount.
func (v BuildVersion) SimpleVersion() string {
	return fmt.Sprintf("%d.%d.%d.%s", v.Major, v.Minor, v.Patch, v.CommitCountString())
}

// NuGetVersion renders Major.Minor.Patch-Suffix-CommitCount, dropping the
// suffix segment when there is none.
func (v BuildVersion) NuGetVersion() string {
	if v.ReleaseSuffix == "" {
		return fmt.Sprintf("%d.%d.%d-%s", v.Major, v.Minor, v.Patch, v.CommitCountString())
	}
	return fmt.Sprintf("%d.%d.%d-%s-%s", v.Major, v.Minor, v.Patch, v.ReleaseSuffix, v.CommitCountString())
}
