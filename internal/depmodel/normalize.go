package depmodel

import (
	"path"
	"runtime"
	"strings"
)

// Normalizer turns asset locations into manifest-relative paths.
type Normalizer struct {
	root string
	// FoldCase compares the reference-assemblies root case-insensitively.
	// It defaults to the host filesystem convention.
	FoldCase bool
}

// NewNormalizer returns a normalizer stripping the given reference-assemblies
// root. An empty root disables stripping.
func NewNormalizer(referenceAssembliesRoot string) Normalizer {
	root := slashPath(referenceAssembliesRoot)
	root = strings.TrimSuffix(root, "/")
	return Normalizer{
		root:     root,
		FoldCase: runtime.GOOS == "windows" || runtime.GOOS == "darwin",
	}
}

// Root returns the reference-assemblies root in slash form.
func (n Normalizer) Root() string {
	return n.root
}

// Path returns the manifest path for an asset:
//  1. a resolved path under the reference-assemblies root, relative to it;
//  2. otherwise the library-relative path;
//  3. otherwise the resolved path as given.
//
// Output always uses forward slashes.
func (n Normalizer) Path(asset LibraryAsset) string {
	resolved := slashPath(asset.ResolvedPath)
	if rel, ok := n.underRoot(resolved); ok {
		return rel
	}
	if relative := slashPath(asset.RelativePath); relative != "" {
		return relative
	}
	return resolved
}

// Paths normalizes every asset, preserving order.
func (n Normalizer) Paths(assets []LibraryAsset) []string {
	out := make([]string, 0, len(assets))
	for _, asset := range assets {
		out = append(out, n.Path(asset))
	}
	return out
}

func (n Normalizer) underRoot(p string) (string, bool) {
	if n.root == "" || p == "" {
		return "", false
	}
	prefix := n.root + "/"
	if len(p) <= len(prefix) {
		return "", false
	}
	head := p[:len(prefix)]
	if n.FoldCase {
		if !strings.EqualFold(head, prefix) {
			return "", false
		}
	} else if head != prefix {
		return "", false
	}
	return p[len(prefix):], true
}

// slashPath converts either separator style to forward slashes and cleans
// the result. Empty input stays empty.
func slashPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return path.Clean(strings.ReplaceAll(p, `\`, "/"))
}
