package domain

import (
	"fmt"

	"go.trai.ch/zerr"
)

var (
	// ErrMalformedDescriptor is returned when a formula is missing a required field or contains invalid values.
	ErrMalformedDescriptor = zerr.New("malformed descriptor")

	// ErrUnsupportedScheme is returned when the source URL scheme cannot be retrieved by the environment.
	ErrUnsupportedScheme = zerr.New("unsupported url scheme")

	// ErrChecksumMismatch is returned when a downloaded archive does not match the declared sha256.
	ErrChecksumMismatch = zerr.New("checksum mismatch")

	// ErrSubprocessFailure is returned when an external build step exits with a non-zero code.
	ErrSubprocessFailure = zerr.New("subprocess failed")

	// ErrInvalidTransition is returned when the build state machine is asked to make an illegal move.
	ErrInvalidTransition = zerr.New("invalid stage transition")

	// ErrConfigReadFailed is returned when a formula file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read formula file")

	// ErrConfigParseFailed is returned when a formula file is not valid YAML.
	ErrConfigParseFailed = zerr.New("failed to parse formula file")

	// ErrSettingsLoadFailed is returned when the tool settings cannot be loaded.
	ErrSettingsLoadFailed = zerr.New("failed to load settings")

	// ErrFetchFailed is returned when a source archive cannot be downloaded.
	ErrFetchFailed = zerr.New("failed to fetch source archive")

	// ErrExtractFailed is returned when a source archive cannot be unpacked.
	ErrExtractFailed = zerr.New("failed to extract source archive")

	// ErrUnsafeArchivePath is returned when an archive entry would be written outside the destination.
	ErrUnsafeArchivePath = zerr.New("archive entry escapes destination")

	// ErrFileOpenFailed is returned when a file cannot be opened.
	ErrFileOpenFailed = zerr.New("failed to open file")

	// ErrFileHashFailed is returned when hashing a file fails.
	ErrFileHashFailed = zerr.New("failed to hash file content")

	// ErrStoreCreateFailed is returned when the receipt store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create receipt store directory")

	// ErrStoreReadFailed is returned when a receipt cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read receipt")

	// ErrStoreUnmarshalFailed is returned when a receipt cannot be unmarshaled.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal receipt")

	// ErrStoreMarshalFailed is returned when a receipt cannot be marshaled.
	ErrStoreMarshalFailed = zerr.New("failed to marshal receipt")

	// ErrStoreWriteFailed is returned when a receipt cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write receipt")

	// ErrWorkDirFailed is returned when the build working directory cannot be prepared.
	ErrWorkDirFailed = zerr.New("failed to prepare work directory")

	// ErrNoFormulaSpecified is returned when a command needs at least one formula path.
	ErrNoFormulaSpecified = zerr.New("no formula specified")

	// ErrCheckFailed is returned when one or more formulas fail validation.
	ErrCheckFailed = zerr.New("formula check failed")
)

// StepError reports an external build step that exited unsuccessfully.
// It unwraps to ErrSubprocessFailure and to the underlying process error.
type StepError struct {
	Step     Step
	ExitCode int
	Err      error
}

// NewStepError creates a StepError for the given step.
func NewStepError(step Step, exitCode int, err error) *StepError {
	return &StepError{Step: step, ExitCode: exitCode, Err: err}
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed with exit code %d", e.Step, e.ExitCode)
}

// Unwrap exposes both the taxonomy sentinel and the process error to errors.Is / errors.As.
func (e *StepError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSubprocessFailure}
	}
	return []error{ErrSubprocessFailure, e.Err}
}
