// Package resolver orders and deduplicates a formula's dependency list.
package resolver

import "go.trai.ch/pour/internal/core/domain"

// Resolve merges duplicate dependency names into a single entry.
// The first occurrence keeps its position and later occurrences contribute their scopes.
func Resolve(specs []domain.DependencySpec) []domain.DependencySpec {
	if len(specs) == 0 {
		return nil
	}

	index := make(map[string]int, len(specs))
	out := make([]domain.DependencySpec, 0, len(specs))

	for _, spec := range specs {
		if i, ok := index[spec.Name]; ok {
			out[i].Scopes = out[i].Scopes.Union(spec.Scopes)
			continue
		}
		index[spec.Name] = len(out)
		out = append(out, spec)
	}

	return out
}

// Filter keeps the entries whose scopes intersect the requested set, preserving order.
// An empty set keeps everything.
func Filter(specs []domain.DependencySpec, scopes domain.Scopes) []domain.DependencySpec {
	if scopes.IsEmpty() {
		return specs
	}

	var out []domain.DependencySpec
	for _, spec := range specs {
		if spec.Scopes.Intersects(scopes) {
			out = append(out, spec)
		}
	}
	return out
}
