package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultPackageCacheTimeLimit is how long a CI package cache is kept before
// it is cleared.
const DefaultPackageCacheTimeLimit = 7 * 24 * time.Hour

// Environment is a snapshot of the process environment taken once at
// start-up. Nothing downstream reads or writes environment variables; the
// snapshot is passed explicitly instead.
type Environment struct {
	// Configuration is the build configuration, "Debug" unless CONFIGURATION is set.
	Configuration string
	// CIBuild is true when CI_BUILD is exactly "1".
	CIBuild bool
	// NuGetPackages is the package cache directory from NUGET_PACKAGES.
	NuGetPackages string
	// PackageCacheTimeLimit comes from NUGET_PACKAGES_CACHE_TIME_LIMIT, in hours.
	PackageCacheTimeLimit time.Duration
	S3                    S3Credentials
}

// S3Credentials configure the object-storage sink of the package mirror.
type S3Credentials struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// LoadEnvironment snapshots the process environment. Variables missing from
// the process are filled from the given .env files when they exist; the
// process environment always wins.
func LoadEnvironment(envFiles ...string) (Environment, error) {
	values := map[string]string{}
	for _, file := range envFiles {
		fileValues, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Environment{}, fmt.Errorf("read env file %q: %w", file, err)
		}
		for k, v := range fileValues {
			if _, ok := values[k]; !ok {
				values[k] = v
			}
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			values[k] = v
		}
	}
	return EnvironmentFromMap(values)
}

// EnvironmentFromMap builds an Environment from explicit values.
func EnvironmentFromMap(values map[string]string) (Environment, error) {
	get := func(key string) string { return strings.TrimSpace(values[key]) }

	env := Environment{
		Configuration:         firstNonEmpty(get("CONFIGURATION"), "Debug"),
		CIBuild:               values["CI_BUILD"] == "1",
		NuGetPackages:         get("NUGET_PACKAGES"),
		PackageCacheTimeLimit: DefaultPackageCacheTimeLimit,
		S3: S3Credentials{
			Endpoint:  get("DEPCTX_S3_ENDPOINT"),
			Region:    firstNonEmpty(get("DEPCTX_S3_REGION"), "us-east-1"),
			AccessKey: firstNonEmpty(get("DEPCTX_S3_ACCESS_KEY"), get("MINIO_ROOT_USER")),
			SecretKey: firstNonEmpty(get("DEPCTX_S3_SECRET_KEY"), get("MINIO_ROOT_PASSWORD")),
			UseSSL:    true,
		},
	}

	if raw := get("NUGET_PACKAGES_CACHE_TIME_LIMIT"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours < 0 {
			return Environment{}, fmt.Errorf("NUGET_PACKAGES_CACHE_TIME_LIMIT %q must be a whole number of hours", raw)
		}
		env.PackageCacheTimeLimit = time.Duration(hours) * time.Hour
	}

	if raw := get("DEPCTX_S3_USE_SSL"); raw != "" {
		useSSL, err := strconv.ParseBool(raw)
		if err != nil {
			return Environment{}, fmt.Errorf("DEPCTX_S3_USE_SSL %q must be a boolean", raw)
		}
		env.S3.UseSSL = useSSL
	}

	return env, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
