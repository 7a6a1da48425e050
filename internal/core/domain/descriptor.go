package domain

import (
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"
)

// DependencySpec names a dependency and the scopes it is needed in.
type DependencySpec struct {
	Name   string
	Scopes Scopes
}

// NewDependency creates a DependencySpec from a name and scopes.
// With no scopes the dependency is a runtime dependency.
func NewDependency(name string, scopes ...Scope) DependencySpec {
	if len(scopes) == 0 {
		return DependencySpec{Name: name, Scopes: NewScopes(ScopeRuntime)}
	}
	return DependencySpec{Name: name, Scopes: NewScopes(scopes...)}
}

// PackageDescriptor is the parsed, read-only form of a formula.
type PackageDescriptor struct {
	name         string
	desc         string
	homepage     string
	url          string
	checksum     string
	version      string
	dependencies []DependencySpec
}

// DescriptorFields carries the values used to build a PackageDescriptor.
type DescriptorFields struct {
	Name         string
	Desc         string
	Homepage     string
	URL          string
	Checksum     string
	Version      string
	Dependencies []DependencySpec
}

// NewPackageDescriptor copies the given fields into an immutable descriptor.
// Validation is the loader's job; this constructor only normalizes.
func NewPackageDescriptor(f DescriptorFields) *PackageDescriptor {
	return &PackageDescriptor{
		name:         f.Name,
		desc:         f.Desc,
		homepage:     f.Homepage,
		url:          f.URL,
		checksum:     strings.ToLower(f.Checksum),
		version:      f.Version,
		dependencies: slices.Clone(f.Dependencies),
	}
}

// Name returns the package name.
func (d *PackageDescriptor) Name() string { return d.name }

// Desc returns the human readable description.
func (d *PackageDescriptor) Desc() string { return d.desc }

// Homepage returns the project homepage.
func (d *PackageDescriptor) Homepage() string { return d.homepage }

// URL returns the source archive URL.
func (d *PackageDescriptor) URL() string { return d.url }

// Checksum returns the lowercase hex sha256 of the source archive.
func (d *PackageDescriptor) Checksum() string { return d.checksum }

// ExplicitVersion returns the version field as written in the formula, if any.
func (d *PackageDescriptor) ExplicitVersion() string { return d.version }

// Version returns the explicit version, or the one embedded in the URL.
func (d *PackageDescriptor) Version() string {
	if d.version != "" {
		return d.version
	}
	return VersionFromURL(d.url)
}

// Dependencies returns a copy of the declared dependencies in declaration order.
func (d *PackageDescriptor) Dependencies() []DependencySpec {
	return slices.Clone(d.dependencies)
}

// Fields returns the descriptor's values, suitable for building a modified copy.
func (d *PackageDescriptor) Fields() DescriptorFields {
	return DescriptorFields{
		Name:         d.name,
		Desc:         d.desc,
		Homepage:     d.homepage,
		URL:          d.url,
		Checksum:     d.checksum,
		Version:      d.version,
		Dependencies: slices.Clone(d.dependencies),
	}
}

// ArchiveName returns the basename of the source URL.
func (d *PackageDescriptor) ArchiveName() string {
	u, err := url.Parse(d.url)
	if err != nil || u.Path == "" {
		return d.name
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return d.name
	}
	return base
}

var (
	archiveSuffixes = []string{".tar.gz", ".tgz", ".tar.bz2", ".tbz", ".tar.xz", ".txz", ".tar", ".zip"}
	versionPattern  = regexp.MustCompile(`v?(\d+(?:\.\d+)+(?:[-_.]?(?:rc|beta|alpha|pre)\d*)?)`)
)

// VersionFromURL extracts a version number from an archive URL's basename,
// e.g. ".../archive/v2.10.1.tar.gz" yields "2.10.1".
func VersionFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	base := path.Base(u.Path)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(base, suffix) {
			base = strings.TrimSuffix(base, suffix)
			break
		}
	}

	m := versionPattern.FindStringSubmatch(base)
	if m == nil {
		return ""
	}
	return m[1]
}
