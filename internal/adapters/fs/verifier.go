package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"go.trai.ch/pour/internal/core/domain"
	"go.trai.ch/pour/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ChecksumVerifier = (*Verifier)(nil)

// Verifier checks archives against their declared SHA-256.
type Verifier struct{}

// NewVerifier creates a new Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Sum returns the lowercase hex SHA-256 of the file at path.
func (v *Verifier) Sum(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrFileOpenFailed, err.Error()), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrFileHashFailed, err.Error()), "path", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify fails with domain.ErrChecksumMismatch when the file does not hash to expected.
func (v *Verifier) Verify(path, expected string) error {
	actual, err := v.Sum(path)
	if err != nil {
		return err
	}

	if actual != strings.ToLower(expected) {
		err := zerr.With(zerr.Wrap(domain.ErrChecksumMismatch, "archive does not match sha256"), "expected", expected)
		err = zerr.With(err, "actual", actual)
		return zerr.With(err, "path", path)
	}
	return nil
}
