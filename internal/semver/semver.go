package semver

import (
	"fmt"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// Version is a library version.
//
// This is a thin wrapper around github.com/Masterminds/semver/v3 that keeps
// the raw text when it does not parse, so malformed versions coming from a
// resolver are carried through unchanged instead of being rejected.
type Version struct {
	v   *mm.Version
	raw string
}

// Range is a dependency version range.
//
// Both NuGet interval notation and semver constraint syntax are accepted:
// - "1.2.0" (minimum version, inclusive)
// - "[1.0, 2.0)"
// - "[1.5]"
// - ">=1.2.0 <2.0.0"
// - "^1.0.0"
//
// NuGet forms only compare against their bounds, so prerelease versions
// inside the interval match. Constraint syntax follows Masterminds rules.
type Range struct {
	c     *mm.Constraints
	lower *mm.Version
	upper *mm.Version
	// inclusive bounds
	lowerIn, upperIn bool
	any              bool
	raw              string
}

func ParseVersion(raw string) (Version, error) {
	trimmed := strings.TrimSpace(raw)
	v, err := mm.NewVersion(trimmed)
	if err != nil {
		return Version{raw: raw}, fmt.Errorf("semver: parse version %q: %w", raw, err)
	}
	return Version{v: v, raw: raw}, nil
}

// LooseVersion parses raw, falling back to a pass-through version when it
// is not valid semver.
func LooseVersion(raw string) Version {
	v, _ := ParseVersion(raw)
	return v
}

func MustParseVersion(raw string) Version {
	v, err := ParseVersion(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// Valid reports whether the version parsed as semver.
func (v Version) Valid() bool {
	return v.v != nil
}

// IsZero reports whether no version text was supplied at all.
func (v Version) IsZero() bool {
	return v.v == nil && strings.TrimSpace(v.raw) == ""
}

// String renders major.minor.patch with the prerelease and build suffixes
// when present. Unparsable versions are returned verbatim.
func (v Version) String() string {
	if v.v == nil {
		return v.raw
	}
	return v.v.String()
}

// Raw returns the text the version was parsed from.
func (v Version) Raw() string {
	return v.raw
}

func ParseRange(raw string) (Range, error) {
	r, err := parseRange(raw)
	if err != nil {
		return Range{raw: raw}, fmt.Errorf("semver: parse range %q: %w", raw, err)
	}
	r.raw = raw
	return r, nil
}

func MustParseRange(raw string) Range {
	r, err := ParseRange(raw)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Range) String() string {
	return r.raw
}

func parseRange(raw string) (Range, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "*" {
		return Range{any: true}, nil
	}

	if v, err := mm.NewVersion(s); err == nil {
		return Range{lower: v, lowerIn: true}, nil
	}

	if !strings.HasPrefix(s, "[") && !strings.HasPrefix(s, "(") {
		c, err := mm.NewConstraint(s)
		if err != nil {
			return Range{}, err
		}
		return Range{c: c}, nil
	}

	if len(s) < 2 {
		return Range{}, fmt.Errorf("unterminated interval")
	}
	open, closing := s[0], s[len(s)-1]
	if closing != ']' && closing != ')' {
		return Range{}, fmt.Errorf("unterminated interval")
	}
	body := strings.TrimSpace(s[1 : len(s)-1])

	if !strings.Contains(body, ",") {
		if open != '[' || closing != ']' || body == "" {
			return Range{}, fmt.Errorf("exact version must use [x]")
		}
		v, err := mm.NewVersion(body)
		if err != nil {
			return Range{}, err
		}
		return Range{lower: v, upper: v, lowerIn: true, upperIn: true}, nil
	}

	lower, upper, _ := strings.Cut(body, ",")
	lower, upper = strings.TrimSpace(lower), strings.TrimSpace(upper)
	if lower == "" && upper == "" {
		return Range{}, fmt.Errorf("interval has no bounds")
	}

	r := Range{lowerIn: open == '[', upperIn: closing == ']'}
	if lower != "" {
		v, err := mm.NewVersion(lower)
		if err != nil {
			return Range{}, fmt.Errorf("lower bound: %w", err)
		}
		r.lower = v
	}
	if upper != "" {
		v, err := mm.NewVersion(upper)
		if err != nil {
			return Range{}, fmt.Errorf("upper bound: %w", err)
		}
		r.upper = v
	}
	return r, nil
}

// Satisfies reports whether v lies inside r. Unparsable versions or ranges
// never satisfy.
func Satisfies(v Version, r Range) bool {
	if v.v == nil {
		return false
	}
	switch {
	case r.any:
		return true
	case r.c != nil:
		return r.c.Check(v.v)
	case r.lower == nil && r.upper == nil:
		return false
	}
	if r.lower != nil {
		cmp := v.v.Compare(r.lower)
		if cmp < 0 || (cmp == 0 && !r.lowerIn) {
			return false
		}
	}
	if r.upper != nil {
		cmp := v.v.Compare(r.upper)
		if cmp > 0 || (cmp == 0 && !r.upperIn) {
			return false
		}
	}
	return true
}
