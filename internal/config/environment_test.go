package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEnvironmentFromMapDefaults(t *testing.T) {
	env, err := EnvironmentFromMap(map[string]string{})
	if err != nil {
		t.Fatalf("EnvironmentFromMap: %v", err)
	}
	if env.Configuration != "Debug" {
		t.Fatalf("expected Debug, got %q", env.Configuration)
	}
	if env.CIBuild {
		t.Fatal("CIBuild should default to false")
	}
	if env.PackageCacheTimeLimit != 168*time.Hour {
		t.Fatalf("expected 168h, got %v", env.PackageCacheTimeLimit)
	}
	if env.S3.Region != "us-east-1" || !env.S3.UseSSL {
		t.Fatalf("unexpected S3 defaults %+v", env.S3)
	}
}

func TestEnvironmentFromMapValues(t *testing.T) {
	env, err := EnvironmentFromMap(map[string]string{
		"CONFIGURATION":                   "Release",
		"CI_BUILD":                        "1",
		"NUGET_PACKAGES":                  "/cache/nuget",
		"NUGET_PACKAGES_CACHE_TIME_LIMIT": "12",
		"MINIO_ROOT_USER":                 "minio",
		"DEPCTX_S3_SECRET_KEY":            "secret",
		"DEPCTX_S3_USE_SSL":               "false",
	})
	if err != nil {
		t.Fatalf("EnvironmentFromMap: %v", err)
	}
	if env.Configuration != "Release" || !env.CIBuild || env.NuGetPackages != "/cache/nuget" {
		t.Fatalf("unexpected environment %+v", env)
	}
	if env.PackageCacheTimeLimit != 12*time.Hour {
		t.Fatalf("expected 12h, got %v", env.PackageCacheTimeLimit)
	}
	if env.S3.AccessKey != "minio" || env.S3.SecretKey != "secret" || env.S3.UseSSL {
		t.Fatalf("unexpected S3 credentials %+v", env.S3)
	}
}

func TestEnvironmentCIBuildRequiresExactOne(t *testing.T) {
	for _, raw := range []string{"true", "yes", " 1", "01"} {
		env, err := EnvironmentFromMap(map[string]string{"CI_BUILD": raw})
		if err != nil {
			t.Fatal(err)
		}
		if env.CIBuild {
			t.Fatalf("CI_BUILD=%q should not enable CI mode", raw)
		}
	}
}

func TestEnvironmentFromMapErrors(t *testing.T) {
	cases := []map[string]string{
		{"NUGET_PACKAGES_CACHE_TIME_LIMIT": "a week"},
		{"NUGET_PACKAGES_CACHE_TIME_LIMIT": "-1"},
		{"DEPCTX_S3_USE_SSL": "maybe"},
	}
	for _, values := range cases {
		if _, err := EnvironmentFromMap(values); err == nil {
			t.Fatalf("expected error for %v", values)
		}
	}
}

func TestLoadEnvironmentReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("DEPCTX_TEST_ONLY_KEY=1\nDEPCTX_S3_BUCKET_HINT=x\nCONFIGURATION=FromFile\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIGURATION", "FromProcess")

	env, err := LoadEnvironment(envFile, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("LoadEnvironment: %v", err)
	}
	if env.Configuration != "FromProcess" {
		t.Fatalf("process environment should win, got %q", env.Configuration)
	}
	if _, ok := os.LookupEnv("DEPCTX_TEST_ONLY_KEY"); ok {
		t.Fatal("LoadEnvironment must not modify the process environment")
	}
}

func TestLoadEnvironmentFileFillsGaps(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("NUGET_PACKAGES_CACHE_TIME_LIMIT=48\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NUGET_PACKAGES_CACHE_TIME_LIMIT", "")
	os.Unsetenv("NUGET_PACKAGES_CACHE_TIME_LIMIT")

	env, err := LoadEnvironment(envFile)
	if err != nil {
		t.Fatalf("LoadEnvironment: %v", err)
	}
	if env.PackageCacheTimeLimit != 48*time.Hour {
		t.Fatalf("expected 48h from env file, got %v", env.PackageCacheTimeLimit)
	}
}

func TestParseBranchInfo(t *testing.T) {
	input := `# branch metadata
MAJOR_VERSION=1
MINOR_VERSION=0
PATCH_VERSION=0
RELEASE_SUFFIX=beta
CHANNEL=preview=1
`
	info, err := ParseBranchInfo(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseBranchInfo: %v", err)
	}
	if info.Major != 1 || info.Minor != 0 || info.Patch != 0 || info.ReleaseSuffix != "beta" {
		t.Fatalf("unexpected branch info %+v", info)
	}
	if info.Values["CHANNEL"] != "preview=1" {
		t.Fatalf("value with '=' should be preserved, got %q", info.Values["CHANNEL"])
	}
}

func TestParseBranchInfoErrors(t *testing.T) {
	cases := map[string]string{
		"missing major":  "MINOR_VERSION=0\nPATCH_VERSION=0\nRELEASE_SUFFIX=x\n",
		"bad minor":      "MAJOR_VERSION=1\nMINOR_VERSION=one\nPATCH_VERSION=0\nRELEASE_SUFFIX=x\n",
		"missing suffix": "MAJOR_VERSION=1\nMINOR_VERSION=0\nPATCH_VERSION=0\n",
		"no separator":   "MAJOR_VERSION 1\n",
	}
	for name, input := range cases {
		if _, err := ParseBranchInfo(strings.NewReader(input)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadBranchInfoMissing(t *testing.T) {
	if _, err := LoadBranchInfo(filepath.Join(t.TempDir(), "branchinfo.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestBuildVersion(t *testing.T) {
	v := NewBuildVersion(BranchInfo{Major: 1, Minor: 0, Patch: 2, ReleaseSuffix: "rc2"}, 42)
	if got := v.SimpleVersion(); got != "1.0.2.000042" {
		t.Fatalf("SimpleVersion = %q", got)
	}
	if got := v.NuGetVersion(); got != "1.0.2-rc2-000042" {
		t.Fatalf("NuGetVersion = %q", got)
	}
	v.ReleaseSuffix = ""
	if got := v.NuGetVersion(); got != "1.0.2-000042" {
		t.Fatalf("NuGetVersion without suffix = %q", got)
	}
}
