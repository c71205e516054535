package depmodel

import "strings"

// LibraryType is the type tag written to the manifest.
type LibraryType string

const (
	TypePackage           LibraryType = "package"
	TypeProject           LibraryType = "project"
	TypeReferenceAssembly LibraryType = "referenceassembly"
	TypeReference         LibraryType = "reference"
)

// ParseLibraryType maps a textual kind to a type tag. Unknown kinds fall
// back to TypeReference.
func ParseLibraryType(raw string) LibraryType {
	switch LibraryType(strings.ToLower(strings.TrimSpace(raw))) {
	case TypePackage:
		return TypePackage
	case TypeProject:
		return TypeProject
	case TypeReferenceAssembly:
		return TypeReferenceAssembly
	default:
		return TypeReference
	}
}

// Classify maps a descriptor to its manifest type tag. It never fails:
// unresolved or unknown descriptors are tagged as references.
func Classify(d Descriptor) LibraryType {
	switch d.(type) {
	case PackageDescriptor, *PackageDescriptor:
		return TypePackage
	case ProjectDescriptor, *ProjectDescriptor:
		return TypeProject
	case ReferenceAssemblyDescriptor, *ReferenceAssemblyDescriptor:
		return TypeReferenceAssembly
	default:
		return TypeReference
	}
}

const hashPrefix = "sha512-"

// packageMetadata extracts the hash and serviceable flag. Only packages
// carry either; everything else yields an empty hash and false.
func packageMetadata(d Descriptor) (hash string, serviceable bool) {
	var pkg PackageDescriptor
	switch v := d.(type) {
	case PackageDescriptor:
		pkg = v
	case *PackageDescriptor:
		if v == nil {
			return "", false
		}
		pkg = *v
	default:
		return "", false
	}
	return formatHash(pkg.Hash), pkg.Serviceable
}

func formatHash(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, hashPrefix) {
		return raw
	}
	return hashPrefix + raw
}
