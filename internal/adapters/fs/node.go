package fs

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pour/internal/core/ports"
)

const (
	// VerifierNodeID is the unique identifier for the checksum verifier Graft node.
	VerifierNodeID graft.ID = "adapter.fs.verifier"
	// ExtractorNodeID is the unique identifier for the archive extractor Graft node.
	ExtractorNodeID graft.ID = "adapter.fs.extractor"
	// HasherNodeID is the unique identifier for the fingerprint hasher Graft node.
	HasherNodeID graft.ID = "adapter.fs.hasher"
)

func init() {
	graft.Register(graft.Node[ports.ChecksumVerifier]{
		ID:        VerifierNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.ChecksumVerifier, error) {
			return NewVerifier(), nil
		},
	})

	graft.Register(graft.Node[ports.Extractor]{
		ID:        ExtractorNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Extractor, error) {
			return NewExtractor(), nil
		},
	})

	graft.Register(graft.Node[ports.Hasher]{
		ID:        HasherNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Hasher, error) {
			return NewHasher(), nil
		},
	})
}
