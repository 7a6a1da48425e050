// Package config provides the formula loader for pour.
package config

import (
	"bytes"
	"encoding/hex"
	"errors"
	"net/url"
	"os"
	"strings"

	"go.trai.ch/pour/internal/core/domain"
	"go.trai.ch/pour/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Loader implements ports.DescriptorLoader using YAML formula files.
type Loader struct {
	Logger  ports.Logger
	Fetcher ports.Fetcher
}

// NewLoader creates a new formula loader. The fetcher decides which URL
// schemes are retrievable.
func NewLoader(log ports.Logger, fetcher ports.Fetcher) *Loader {
	return &Loader{Logger: log, Fetcher: fetcher}
}

// Load reads a formula file from the given path and returns its descriptor.
func (l *Loader) Load(path string) (*domain.PackageDescriptor, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrConfigReadFailed, err.Error()), "path", path)
	}
	return l.Parse(path, data)
}

// Parse validates formula bytes and returns the descriptor.
func (l *Loader) Parse(source string, data []byte) (*domain.PackageDescriptor, error) {
	var formula Formula
	if err := yaml.Unmarshal(data, &formula); err != nil {
		if errors.Is(err, domain.ErrMalformedDescriptor) {
			return nil, zerr.With(err, "source", source)
		}
		return nil, zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, err.Error()), "source", source)
	}

	if err := l.validate(&formula); err != nil {
		return nil, zerr.With(err, "source", source)
	}

	deps, err := l.dependencies(formula.DependsOn)
	if err != nil {
		return nil, zerr.With(err, "source", source)
	}

	return domain.NewPackageDescriptor(domain.DescriptorFields{
		Name:         strings.TrimSpace(formula.Name),
		Desc:         formula.Desc,
		Homepage:     formula.Homepage,
		URL:          strings.TrimSpace(formula.URL),
		Checksum:     strings.TrimSpace(formula.SHA256),
		Version:      formula.Version,
		Dependencies: deps,
	}), nil
}

// Encode serializes the descriptor in canonical form: fields in schema
// order, runtime-only dependencies as bare names, other tags in scope order.
func (l *Loader) Encode(desc *domain.PackageDescriptor) ([]byte, error) {
	formula := Formula{
		Name:     desc.Name(),
		Desc:     desc.Desc(),
		Homepage: desc.Homepage(),
		URL:      desc.URL(),
		SHA256:   desc.Checksum(),
		Version:  desc.ExplicitVersion(),
	}
	for _, dep := range desc.Dependencies() {
		dto := DependencyDTO{Name: dep.Name}
		if dep.Scopes != domain.NewScopes(domain.ScopeRuntime) {
			dto.Tags = dep.Scopes.Tags()
		}
		formula.DependsOn = append(formula.DependsOn, dto)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&formula); err != nil {
		return nil, zerr.Wrap(err, "failed to encode formula")
	}
	if err := enc.Close(); err != nil {
		return nil, zerr.Wrap(err, "failed to encode formula")
	}
	return buf.Bytes(), nil
}

func (l *Loader) validate(f *Formula) error {
	required := []struct {
		field string
		value string
	}{
		{"name", f.Name},
		{"url", f.URL},
		{"sha256", f.SHA256},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return zerr.With(zerr.Wrap(domain.ErrMalformedDescriptor, "missing required field"), "field", r.field)
		}
	}

	sum, err := hex.DecodeString(strings.TrimSpace(f.SHA256))
	if err != nil || len(sum) != 32 {
		return zerr.With(zerr.Wrap(domain.ErrMalformedDescriptor, "sha256 must be 64 hex characters"), "field", "sha256")
	}

	u, err := url.Parse(strings.TrimSpace(f.URL))
	if err != nil || u.Scheme == "" {
		return zerr.With(zerr.Wrap(domain.ErrMalformedDescriptor, "url must be absolute"), "field", "url")
	}
	if l.Fetcher != nil && !l.Fetcher.Supports(u.Scheme) {
		return zerr.With(zerr.Wrap(domain.ErrUnsupportedScheme, "cannot retrieve source"), "scheme", u.Scheme)
	}

	return nil
}

func (l *Loader) dependencies(dtos []DependencyDTO) ([]domain.DependencySpec, error) {
	var deps []domain.DependencySpec
	seen := make(map[string]bool, len(dtos))

	for _, dto := range dtos {
		name := strings.TrimSpace(dto.Name)
		if name == "" {
			return nil, zerr.With(zerr.Wrap(domain.ErrMalformedDescriptor, "dependency name is empty"), "line", dto.Line)
		}

		scopes, err := domain.ParseScopes(dto.Tags)
		if err != nil {
			return nil, zerr.With(err, "dependency", name)
		}

		if seen[name] && l.Logger != nil {
			l.Logger.Warn("dependency " + name + " is declared more than once, scopes will be merged")
		}
		seen[name] = true

		deps = append(deps, domain.DependencySpec{Name: name, Scopes: scopes})
	}

	return deps, nil
}
