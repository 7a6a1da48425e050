// Package fs provides file system adapters for checking and unpacking source archives.
package fs

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/pour/internal/core/domain"
	"go.trai.ch/pour/internal/core/ports"
)

var _ ports.Hasher = (*Hasher)(nil)

// Hasher computes install fingerprints.
type Hasher struct{}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// Fingerprint hashes the descriptor, the prefix and the extra CMake
// arguments. Dependencies are hashed in name order so that reordering the
// depends_on list does not invalidate an install.
func (h *Hasher) Fingerprint(desc *domain.PackageDescriptor, prefix string, cmakeArgs []string) string {
	hasher := xxhash.New()

	for _, field := range []string{desc.Name(), desc.Version(), desc.URL(), desc.Checksum(), prefix} {
		_, _ = hasher.WriteString(field)
		_, _ = hasher.Write([]byte{0})
	}
	_, _ = hasher.Write([]byte{0}) // Section separator

	deps := desc.Dependencies()
	slices.SortStableFunc(deps, func(a, b domain.DependencySpec) int {
		return cmp.Compare(a.Name, b.Name)
	})
	for _, dep := range deps {
		_, _ = hasher.WriteString(dep.Name)
		_, _ = hasher.Write([]byte{'='})
		_, _ = hasher.WriteString(dep.Scopes.String())
		_, _ = hasher.Write([]byte{0})
	}
	_, _ = hasher.Write([]byte{0})

	for _, arg := range cmakeArgs {
		_, _ = hasher.WriteString(arg)
		_, _ = hasher.Write([]byte{0})
	}

	return fmt.Sprintf("%016x", hasher.Sum64())
}
