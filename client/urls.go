package client

import (
	"net/url"
	"strings"
)

// URLBuilder constructs URLs for a package on an npm-compatible registry.
type URLBuilder interface {
	// Metadata is the packument endpoint.
	Metadata(name string) string
	// Registry is the human-facing package page.
	Registry(name, version string) string
	// Download is the tarball URL.
	Download(name, version string) string
	PURL(name, version string) string
}

// NPMURLs is the URLBuilder for npm-style registries.
type NPMURLs struct {
	BaseURL string
	// WebURL hosts the package pages; empty when the registry has none.
	WebURL string
	PURLFn func(name, version string) string
}

func (u *NPMURLs) base() string {
	return strings.TrimSuffix(u.BaseURL, "/")
}

func (u *NPMURLs) Metadata(name string) string {
	return u.base() + "/" + escapeName(name)
}

func (u *NPMURLs) Registry(name, version string) string {
	if u.WebURL == "" {
		return ""
	}
	page := strings.TrimSuffix(u.WebURL, "/") + "/package/" + name
	if version != "" {
		page += "/v/" + version
	}
	return page
}

func (u *NPMURLs) Download(name, version string) string {
	if version == "" {
		return ""
	}
	short := name
	if i := strings.LastIndex(name, "/"); i >= 0 {
		short = name[i+1:]
	}
	return u.base() + "/" + name + "/-/" + short + "-" + version + ".tgz"
}

func (u *NPMURLs) PURL(name, version string) string {
	if u.PURLFn != nil {
		return u.PURLFn(name, version)
	}
	return ""
}

// BuildURLs returns a map of all non-empty URLs for a package.
// Keys are "registry", "download", "metadata" and "purl".
func BuildURLs(urls URLBuilder, name, version string) map[string]string {
	result := make(map[string]string)
	if v := urls.Registry(name, version); v != "" {
		result["registry"] = v
	}
	if v := urls.Download(name, version); v != "" {
		result["download"] = v
	}
	if v := urls.Metadata(name); v != "" {
		result["metadata"] = v
	}
	if v := urls.PURL(name, version); v != "" {
		result["purl"] = v
	}
	return result
}

// escapeName keeps the leading @ of a scoped name and escapes the slash.
func escapeName(name string) string {
	if strings.HasPrefix(name, "@") {
		return "@" + url.PathEscape(name[1:])
	}
	return url.PathEscape(name)
}
