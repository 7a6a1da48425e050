package ports

import "go.trai.ch/pour/internal/core/domain"

// DescriptorLoader defines the interface for loading formula files.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type DescriptorLoader interface {
	// Load reads and validates the formula at path.
	Load(path string) (*domain.PackageDescriptor, error)

	// Parse validates formula bytes. The source name is only used in error metadata.
	Parse(source string, data []byte) (*domain.PackageDescriptor, error)

	// Encode serializes a descriptor back into the formula schema.
	Encode(desc *domain.PackageDescriptor) ([]byte, error)
}
