package settings_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pour/internal/adapters/settings"
	"go.trai.ch/pour/internal/core/domain"
)

func testPaths(t *testing.T) settings.Paths {
	t.Helper()
	root := t.TempDir()
	return settings.Paths{
		ConfigFile: filepath.Join(root, "config", "pour", "config.yaml"),
		DataHome:   filepath.Join(root, "data"),
		CacheHome:  filepath.Join(root, "cache"),
		StateHome:  filepath.Join(root, "state"),
		TempDir:    filepath.Join(root, "tmp"),
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CMAKE_ARGS", "POUR_JOBS", "POUR_CACHE_DIR", "POUR_LOG_JSON", "POUR_CMAKE_ARGS", "POUR_KEEP_WORK"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	paths := testPaths(t)

	s, err := settings.Load(paths)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(paths.DataHome, "pour", "Cellar"), s.Cellar)
	assert.Equal(t, filepath.Join(paths.CacheHome, "pour"), s.CacheDir)
	assert.Equal(t, filepath.Join(paths.StateHome, "pour", "receipts"), s.ReceiptDir)
	assert.Equal(t, filepath.Join(paths.TempDir, "pour-build"), s.WorkDir)
	assert.Positive(t, s.Jobs)
	assert.False(t, s.KeepWork)
	assert.False(t, s.Log.JSON)
	assert.Empty(t, s.CMakeArgs)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	paths := testPaths(t)

	require.NoError(t, os.MkdirAll(filepath.Dir(paths.ConfigFile), 0o750))
	content := `
cellar: /opt/pour/Cellar
jobs: 3
keep_work: true
cmake_args:
  - -DHIGHFIVE_USE_BOOST=OFF
log:
  json: true
`
	require.NoError(t, os.WriteFile(paths.ConfigFile, []byte(content), 0o600))

	s, err := settings.Load(paths)
	require.NoError(t, err)

	assert.Equal(t, "/opt/pour/Cellar", s.Cellar)
	assert.Equal(t, 3, s.Jobs)
	assert.True(t, s.KeepWork)
	assert.True(t, s.Log.JSON)
	assert.Equal(t, []string{"-DHIGHFIVE_USE_BOOST=OFF"}, s.CMakeArgs)
	assert.Equal(t, filepath.Join(paths.CacheHome, "pour"), s.CacheDir, "unset keys keep defaults")
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	paths := testPaths(t)

	require.NoError(t, os.MkdirAll(filepath.Dir(paths.ConfigFile), 0o750))
	require.NoError(t, os.WriteFile(paths.ConfigFile, []byte("jobs: 3\n"), 0o600))

	t.Setenv("POUR_JOBS", "12")
	t.Setenv("POUR_CACHE_DIR", "/var/cache/pour")
	t.Setenv("POUR_LOG_JSON", "true")
	t.Setenv("POUR_CMAKE_ARGS", "-DA=1 -DB=2")

	s, err := settings.Load(paths)
	require.NoError(t, err)

	assert.Equal(t, 12, s.Jobs)
	assert.Equal(t, "/var/cache/pour", s.CacheDir)
	assert.True(t, s.Log.JSON)
	assert.Equal(t, []string{"-DA=1", "-DB=2"}, s.CMakeArgs)
}

func TestLoad_CMakeArgsEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("CMAKE_ARGS", "-DHDF5_ROOT=/opt/hdf5  -DCMAKE_CXX_STANDARD=17")

	s, err := settings.Load(testPaths(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"-DHDF5_ROOT=/opt/hdf5", "-DCMAKE_CXX_STANDARD=17"}, s.CMakeArgs)
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	clearEnv(t)
	paths := testPaths(t)

	require.NoError(t, os.MkdirAll(filepath.Dir(paths.ConfigFile), 0o750))
	require.NoError(t, os.WriteFile(paths.ConfigFile, []byte("jobs: [unterminated"), 0o600))

	_, err := settings.Load(paths)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSettingsLoadFailed))
}

func TestSettings_PrefixFor(t *testing.T) {
	s := &settings.Settings{Cellar: "/opt/Cellar"}
	assert.Equal(t, filepath.Join("/opt/Cellar", "highfive", "2.10.1"), s.PrefixFor("highfive", "2.10.1"))
	assert.Equal(t, filepath.Join("/opt/Cellar", "highfive", "HEAD"), s.PrefixFor("highfive", ""))
}
