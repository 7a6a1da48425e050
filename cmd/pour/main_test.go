package main

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pour/internal/core/domain"
)

// fakeTool stands in for cmake and make. cmake remembers the install prefix,
// make install creates it, and make fails with exit code 3 when the source
// tree contains a FAIL_BUILD marker.
const fakeTool = `#!/bin/sh
tool=$(basename "$0")
echo "$tool $*" >> "$POUR_TEST_LOG"
case "$tool" in
cmake)
  for arg in "$@"; do
    case "$arg" in
    -DCMAKE_INSTALL_PREFIX=*) echo "${arg#-DCMAKE_INSTALL_PREFIX=}" > .prefix ;;
    esac
  done
  ;;
make)
  if [ "$1" = "install" ]; then
    mkdir -p "$(cat .prefix)"
  elif [ -f FAIL_BUILD ]; then
    echo "error: build failed" >&2
    exit 3
  fi
  ;;
esac
exit 0
`

func writeArchive(t *testing.T, path, root string, files map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	require.NoError(t, tw.WriteHeader(&tar.Header{Name: root + "/", Typeflag: tar.TypeDir, Mode: 0o755}))
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     root + "/" + name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(body)),
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

func writeFormula(t *testing.T, path, name, archive, sha string) {
	t.Helper()
	content := fmt.Sprintf(`name: %s
desc: Test package
url: file://%s
sha256: %s
depends_on:
  - cmake: build
  - hdf5@1.10
`, name, archive, sha)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func runWithArgs(args ...string) int {
	original := os.Args
	defer func() { os.Args = original }()
	os.Args = append([]string{"pour"}, args...)
	return run()
}

func TestRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake build tools are shell scripts")
	}

	root := t.TempDir()
	bin := filepath.Join(root, "bin")
	require.NoError(t, os.MkdirAll(bin, 0o750))
	for _, tool := range []string{"cmake", "make"} {
		require.NoError(t, os.WriteFile(filepath.Join(bin, tool), []byte(fakeTool), 0o700)) //nolint:gosec // test script
	}

	toolLog := filepath.Join(root, "tools.log")
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	t.Setenv("POUR_TEST_LOG", toolLog)
	t.Setenv("POUR_CELLAR", filepath.Join(root, "Cellar"))
	t.Setenv("POUR_CACHE_DIR", filepath.Join(root, "cache"))
	t.Setenv("POUR_RECEIPT_DIR", filepath.Join(root, "receipts"))
	t.Setenv("POUR_WORK_DIR", filepath.Join(root, "work"))
	t.Setenv("POUR_JOBS", "2")
	t.Setenv("CMAKE_ARGS", "")
	t.Setenv("NO_COLOR", "1")

	okArchive := filepath.Join(root, "ok-1.0.tar.gz")
	okSHA := writeArchive(t, okArchive, "ok-1.0", map[string]string{"CMakeLists.txt": "project(ok)\n"})
	okFormula := filepath.Join(root, "ok.yaml")
	writeFormula(t, okFormula, "ok", okArchive, okSHA)

	failArchive := filepath.Join(root, "fail-1.0.tar.gz")
	failSHA := writeArchive(t, failArchive, "fail-1.0", map[string]string{
		"CMakeLists.txt": "project(fail)\n",
		"FAIL_BUILD":     "",
	})
	failFormula := filepath.Join(root, "fail.yaml")
	writeFormula(t, failFormula, "fail", failArchive, failSHA)

	badSHAFormula := filepath.Join(root, "badsha.yaml")
	writeFormula(t, badSHAFormula, "badsha", okArchive, "0000000000000000000000000000000000000000000000000000000000000000")

	tests := []struct {
		name         string
		args         []string
		expectedExit int
		check        func(t *testing.T)
	}{
		{
			name:         "version",
			args:         []string{"version"},
			expectedExit: 0,
		},
		{
			name:         "install runs every step",
			args:         []string{"install", okFormula},
			expectedExit: 0,
			check: func(t *testing.T) {
				data, err := os.ReadFile(toolLog) //nolint:gosec // test file
				require.NoError(t, err)
				prefix := filepath.Join(root, "Cellar", "ok", "1.0")
				assert.Equal(t,
					"cmake . -DCMAKE_INSTALL_PREFIX="+prefix+
						" -DCMAKE_INSTALL_LIBDIR=lib -DCMAKE_BUILD_TYPE=Release -DCMAKE_FIND_FRAMEWORK=LAST"+
						" -DCMAKE_VERBOSE_MAKEFILE=ON -DBUILD_TESTING=OFF -Wno-dev\n"+
						"make -j2\n"+
						"make install\n",
					string(data))

				_, err = os.Stat(filepath.Join(root, "receipts", "ok.json"))
				require.NoError(t, err)
				_, err = os.Stat(prefix)
				require.NoError(t, err)
			},
		},
		{
			name:         "second install is skipped by receipt",
			args:         []string{"install", okFormula},
			expectedExit: 0,
			check: func(t *testing.T) {
				data, err := os.ReadFile(toolLog) //nolint:gosec // test file
				require.NoError(t, err)
				assert.Equal(t, 1, strings.Count(string(data), "make install"))
			},
		},
		{
			name:         "failing build exits with its code",
			args:         []string{"install", failFormula},
			expectedExit: 3,
		},
		{
			name:         "checksum mismatch",
			args:         []string{"install", badSHAFormula},
			expectedExit: 1,
		},
		{
			name:         "deps",
			args:         []string{"deps", okFormula, "--scope", "build"},
			expectedExit: 0,
		},
		{
			name:         "info",
			args:         []string{"info", okFormula},
			expectedExit: 0,
		},
		{
			name:         "check reports failures",
			args:         []string{"check", okFormula, filepath.Join(root, "missing.yaml")},
			expectedExit: 1,
		},
		{
			name:         "missing formula",
			args:         []string{"install", filepath.Join(root, "missing.yaml")},
			expectedExit: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedExit, runWithArgs(tt.args...))
			if tt.check != nil {
				tt.check(t)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"step error", domain.NewStepError(domain.StepBuild, 2, errors.New("exit status 2")), 2},
		{"wrapped step error", fmt.Errorf("install: %w", domain.NewStepError(domain.StepInstall, 7, nil)), 7},
		{"signaled step", domain.NewStepError(domain.StepBuild, -1, errors.New("signal: interrupt")), 1},
		{"other error", domain.ErrChecksumMismatch, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, exitCode(tt.err))
		})
	}
}
