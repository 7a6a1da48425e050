package ports

// ChecksumVerifier checks archive integrity.
//
//go:generate mockgen -destination=mocks/verifier_mock.go -package=mocks -source=verifier.go
type ChecksumVerifier interface {
	// Verify returns domain.ErrChecksumMismatch when the file's sha256 differs from expected.
	Verify(path, expected string) error
}
