package ports

import "go.trai.ch/pour/internal/core/domain"

// Hasher defines the interface for computing install fingerprints.
//
//go:generate mockgen -destination=mocks/hasher_mock.go -package=mocks -source=hasher.go
type Hasher interface {
	// Fingerprint hashes everything that influences the installed result.
	Fingerprint(desc *domain.PackageDescriptor, prefix string, cmakeArgs []string) string
}
