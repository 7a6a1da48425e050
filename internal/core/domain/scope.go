package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// Scope classifies when a dependency is needed.
type Scope uint8

const (
	// ScopeBuild marks a dependency needed while building.
	ScopeBuild Scope = 1 << iota
	// ScopeTest marks a dependency needed to run the package's tests.
	ScopeTest
	// ScopeRuntime marks a dependency needed by the installed package.
	ScopeRuntime
	// ScopeOptional marks a dependency that may be absent.
	ScopeOptional
)

// allScopes lists every scope in canonical order.
var allScopes = [...]Scope{ScopeBuild, ScopeTest, ScopeRuntime, ScopeOptional}

// String returns the tag used in formula files.
func (s Scope) String() string {
	switch s {
	case ScopeBuild:
		return "build"
	case ScopeTest:
		return "test"
	case ScopeRuntime:
		return "runtime"
	case ScopeOptional:
		return "optional"
	default:
		return "unknown"
	}
}

// ParseScope converts a formula tag into a Scope.
func ParseScope(tag string) (Scope, error) {
	switch strings.TrimSpace(tag) {
	case "build":
		return ScopeBuild, nil
	case "test":
		return ScopeTest, nil
	case "runtime":
		return ScopeRuntime, nil
	case "optional":
		return ScopeOptional, nil
	default:
		return 0, zerr.With(zerr.Wrap(ErrMalformedDescriptor, "unknown scope tag"), "scope", tag)
	}
}

// Scopes is a set of Scope values.
type Scopes uint8

// NewScopes builds a set from the given scopes.
func NewScopes(scopes ...Scope) Scopes {
	var set Scopes
	for _, s := range scopes {
		set |= Scopes(s)
	}
	return set
}

// Has reports whether s is in the set.
func (set Scopes) Has(s Scope) bool {
	return set&Scopes(s) != 0
}

// Union returns the set union.
func (set Scopes) Union(other Scopes) Scopes {
	return set | other
}

// Intersects reports whether the two sets share at least one scope.
func (set Scopes) Intersects(other Scopes) bool {
	return set&other != 0
}

// IsEmpty reports whether the set has no members.
func (set Scopes) IsEmpty() bool {
	return set == 0
}

// List returns the members in canonical order.
func (set Scopes) List() []Scope {
	out := make([]Scope, 0, len(allScopes))
	for _, s := range allScopes {
		if set.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// Tags returns the members as formula tags in canonical order.
func (set Scopes) Tags() []string {
	list := set.List()
	tags := make([]string, len(list))
	for i, s := range list {
		tags[i] = s.String()
	}
	return tags
}

// String renders the set as a comma separated tag list.
func (set Scopes) String() string {
	return strings.Join(set.Tags(), ",")
}

// ParseScopes parses a list of tags. An empty list means runtime.
func ParseScopes(tags []string) (Scopes, error) {
	if len(tags) == 0 {
		return NewScopes(ScopeRuntime), nil
	}

	var set Scopes
	for _, tag := range tags {
		s, err := ParseScope(tag)
		if err != nil {
			return 0, err
		}
		set |= Scopes(s)
	}
	return set, nil
}
