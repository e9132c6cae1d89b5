package core

import (
	"fmt"
	"strings"

	packageurl "github.com/package-url/packageurl-go"
)

// PURL returns the npm Package URL for name at version. Scoped names keep
// their @scope as the namespace.
func PURL(name, version string) string {
	namespace, short := "", name
	if strings.HasPrefix(name, "@") {
		if i := strings.Index(name, "/"); i > 0 {
			namespace, short = name[:i], name[i+1:]
		}
	}
	return packageurl.NewPackageURL(packageurl.TypeNPM, namespace, short, version, nil, "").ToString()
}

// ParsePURL parses an npm Package URL and returns the full package name
// (with scope) and the version, which may be empty.
func ParsePURL(purl string) (name, version string, err error) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return "", "", err
	}
	if p.Type != packageurl.TypeNPM {
		return "", "", fmt.Errorf("unsupported package url type %q in %s", p.Type, purl)
	}
	name = p.Name
	if p.Namespace != "" {
		name = p.Namespace + "/" + p.Name
	}
	return name, p.Version, nil
}

// IsPURL reports whether s looks like a Package URL.
func IsPURL(s string) bool {
	return strings.HasPrefix(s, "pkg:")
}
