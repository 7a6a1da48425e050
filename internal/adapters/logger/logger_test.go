package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pour/internal/adapters/logger"
	"go.trai.ch/pour/internal/core/domain"
	"go.trai.ch/zerr"
)

// newTestLogger creates a logger writing to a buffer with colors disabled.
func newTestLogger(t *testing.T) (*logger.Logger, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	buf := &bytes.Buffer{}
	lg := logger.New().(*logger.Logger)
	lg.SetOutput(buf)
	return lg, buf
}

func TestLogger_Info(t *testing.T) {
	tests := []struct {
		name       string
		msg        string
		goldenName string
	}{
		{"simple message", "some message", "info_basic"},
		{"empty message", "", "info_empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg, buf := newTestLogger(t)
			lg.Info(tt.msg)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestLogger_Warn(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Warn("some warning")

	g := goldie.New(t)
	g.Assert(t, "warn_basic", buf.Bytes())
}

func TestLogger_Error(t *testing.T) {
	checksum := zerr.With(zerr.Wrap(domain.ErrChecksumMismatch, "archive does not match sha256"), "expected", "abc")
	checksum = zerr.With(checksum, "actual", "def")

	tests := []struct {
		name       string
		err        error
		goldenName string
	}{
		{"standard error", os.ErrPermission, "error_simple"},
		{"zerr chain with metadata", checksum, "error_checksum"},
		{"zerr wrapping standard error", zerr.Wrap(errors.New("exit status 2"), "configure failed"), "error_wrapped_std"},
		{"metadata only layer", zerr.With(errors.New("boom"), "path", "/tmp/x"), "error_metadata_only"},
		{
			"multiline message",
			errors.New("failed to parse formula file\nline 3: did not find expected key"),
			"error_multiline",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg, buf := newTestLogger(t)
			lg.Error(tt.err)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestLogger_Error_Nil(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Error(nil)
	assert.Empty(t, buf.String())
}

func TestLogger_JSONMode(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.SetJSON(true)

	lg.Info("installing")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "installing", record["msg"])
}

func TestLogger_JSONMode_Error(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.SetJSON(true)

	lg.Error(zerr.With(zerr.Wrap(domain.ErrFetchFailed, "download"), "url", "https://example.com/a.tar.gz"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "operation failed", record["msg"])
	assert.Contains(t, buf.String(), "https://example.com/a.tar.gz")
}

func TestLogger_SetOutputKeepsMode(t *testing.T) {
	lg, _ := newTestLogger(t)
	lg.SetJSON(true)

	buf := &bytes.Buffer{}
	lg.SetOutput(buf)
	lg.Warn("careful")

	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestCollectErrorEntries(t *testing.T) {
	err := zerr.Wrap(zerr.Wrap(errors.New("root cause"), "middle"), "top")

	entries := logger.CollectErrorEntries(err)
	assert.Equal(t, []string{"top", "middle", "root cause"}, logger.EntryMessages(entries))
	assert.Equal(t, "Error: top\n\n  Caused by:\n    → middle\n    → root cause", logger.FormatErrorEntries(entries))
}
