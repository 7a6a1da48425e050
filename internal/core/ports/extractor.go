package ports

// Extractor unpacks source archives.
//
//go:generate mockgen -destination=mocks/extractor_mock.go -package=mocks -source=extractor.go
type Extractor interface {
	// Extract unpacks archive into dest and returns the source root directory.
	Extract(archive, dest string) (string, error)
}
