package depmodel

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	FrameworkNetFramework = ".NETFramework"
	FrameworkNetStandard  = ".NETStandard"
	FrameworkNetCoreApp   = ".NETCoreApp"
	FrameworkDnx          = "DNX"
	FrameworkDnxCore      = "DNXCore"
)

// FrameworkVersion is a four-part framework version. Build and Revision are
// only rendered when non-zero.
type FrameworkVersion struct {
	Major    int
	Minor    int
	Build    int
	Revision int
}

func (v FrameworkVersion) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d", v.Major, v.Minor)
	if v.Build > 0 || v.Revision > 0 {
		fmt.Fprintf(&b, ".%d", v.Build)
		if v.Revision > 0 {
			fmt.Fprintf(&b, ".%d", v.Revision)
		}
	}
	return b.String()
}

// Framework identifies a target framework.
type Framework struct {
	Identifier string
	Version    FrameworkVersion
	Profile    string
}

// Moniker renders the framework as "<Identifier>,Version=v<Version>" with a
// ",Profile=<Profile>" suffix when a profile is set.
func (f Framework) Moniker() string {
	s := f.Identifier + ",Version=v" + f.Version.String()
	if f.Profile != "" {
		s += ",Profile=" + f.Profile
	}
	return s
}

func (f Framework) String() string {
	return f.Moniker()
}

var shortFrameworkNames = []struct {
	prefix     string
	identifier string
}{
	// Longest prefixes first so "netstandard" wins over "net".
	{"netstandard", FrameworkNetStandard},
	{"netcoreapp", FrameworkNetCoreApp},
	{"dnxcore", FrameworkDnxCore},
	{"dnx", FrameworkDnx},
	{"net", FrameworkNetFramework},
}

// ParseFramework accepts either a full moniker
// ("SomeFramework,Version=v1.2[,Profile=Client]") or a short folder name
// such as "net451", "netstandard1.3" or "dnxcore50".
func ParseFramework(raw string) (Framework, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Framework{}, fmt.Errorf("parse framework: empty value")
	}
	if strings.Contains(s, ",") {
		return parseMoniker(s)
	}

	lower := strings.ToLower(s)
	for _, short := range shortFrameworkNames {
		if !strings.HasPrefix(lower, short.prefix) {
			continue
		}
		version, err := parseShortVersion(lower[len(short.prefix):])
		if err != nil {
			return Framework{}, fmt.Errorf("parse framework %q: %w", raw, err)
		}
		identifier := short.identifier
		// net5.0 and later are .NET Core app frameworks.
		if identifier == FrameworkNetFramework && version.Major >= 5 {
			identifier = FrameworkNetCoreApp
		}
		return Framework{Identifier: identifier, Version: version}, nil
	}
	return Framework{}, fmt.Errorf("parse framework %q: unknown framework", raw)
}

func parseMoniker(s string) (Framework, error) {
	parts := strings.Split(s, ",")
	fw := Framework{Identifier: strings.TrimSpace(parts[0])}
	if fw.Identifier == "" {
		return Framework{}, fmt.Errorf("parse framework %q: missing identifier", s)
	}
	sawVersion := false
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return Framework{}, fmt.Errorf("parse framework %q: malformed component %q", s, part)
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "version":
			v, err := parseDottedVersion(strings.TrimPrefix(strings.TrimSpace(value), "v"))
			if err != nil {
				return Framework{}, fmt.Errorf("parse framework %q: %w", s, err)
			}
			fw.Version = v
			sawVersion = true
		case "profile":
			fw.Profile = strings.TrimSpace(value)
		default:
			return Framework{}, fmt.Errorf("parse framework %q: unknown component %q", s, key)
		}
	}
	if !sawVersion {
		return Framework{}, fmt.Errorf("parse framework %q: missing version", s)
	}
	return fw, nil
}

// parseShortVersion handles both "451" (one digit per component) and
// "1.3" forms.
func parseShortVersion(s string) (FrameworkVersion, error) {
	if s == "" {
		return FrameworkVersion{}, fmt.Errorf("missing version")
	}
	if strings.Contains(s, ".") {
		return parseDottedVersion(s)
	}
	var parts [4]int
	if len(s) > len(parts) {
		return FrameworkVersion{}, fmt.Errorf("version %q has too many components", s)
	}
	for i, r := range s {
		if r < '0' || r > '9' {
			return FrameworkVersion{}, fmt.Errorf("invalid version %q", s)
		}
		parts[i] = int(r - '0')
	}
	return FrameworkVersion{Major: parts[0], Minor: parts[1], Build: parts[2], Revision: parts[3]}, nil
}

func parseDottedVersion(s string) (FrameworkVersion, error) {
	fields := strings.Split(s, ".")
	if len(fields) < 1 || len(fields) > 4 {
		return FrameworkVersion{}, fmt.Errorf("invalid version %q", s)
	}
	var parts [4]int
	for i, field := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return FrameworkVersion{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		parts[i] = n
	}
	return FrameworkVersion{Major: parts[0], Minor: parts[1], Build: parts[2], Revision: parts[3]}, nil
}
