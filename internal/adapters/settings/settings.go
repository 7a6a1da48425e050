// Package settings loads pour's own configuration: install locations,
// parallelism and extra CMake arguments.
package settings

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.trai.ch/pour/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	appName   = "pour"
	envPrefix = "POUR_"
)

// Settings holds the resolved tool configuration.
type Settings struct {
	Cellar     string   `koanf:"cellar"`
	CacheDir   string   `koanf:"cache_dir"`
	ReceiptDir string   `koanf:"receipt_dir"`
	WorkDir    string   `koanf:"work_dir"`
	Jobs       int      `koanf:"jobs"`
	KeepWork   bool     `koanf:"keep_work"`
	CMakeArgs  []string `koanf:"cmake_args"`
	Log        struct {
		JSON bool `koanf:"json"`
	} `koanf:"log"`
}

// Paths are the base directories the defaults are derived from.
type Paths struct {
	ConfigFile string
	DataHome   string
	CacheHome  string
	StateHome  string
	TempDir    string
}

// DefaultPaths returns the XDG base directories for the current user.
func DefaultPaths() Paths {
	return Paths{
		ConfigFile: filepath.Join(xdg.ConfigHome, appName, "config.yaml"),
		DataHome:   xdg.DataHome,
		CacheHome:  xdg.CacheHome,
		StateHome:  xdg.StateHome,
		TempDir:    os.TempDir(),
	}
}

// Load merges defaults, the optional config file and POUR_* environment
// variables, in that order. CMAKE_ARGS is appended to cmake_args.
func Load(paths Paths) (*Settings, error) {
	k := koanf.New(".")

	defaults := map[string]any{
		"cellar":      filepath.Join(paths.DataHome, appName, "Cellar"),
		"cache_dir":   filepath.Join(paths.CacheHome, appName),
		"receipt_dir": filepath.Join(paths.StateHome, appName, "receipts"),
		"work_dir":    filepath.Join(paths.TempDir, appName+"-build"),
		"jobs":        runtime.NumCPU(),
		"keep_work":   false,
		"cmake_args":  []string{},
		"log.json":    false,
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, zerr.Wrap(domain.ErrSettingsLoadFailed, err.Error())
	}

	if paths.ConfigFile != "" {
		if _, err := os.Stat(paths.ConfigFile); err == nil {
			if err := k.Load(file.Provider(paths.ConfigFile), yaml.Parser()); err != nil {
				return nil, zerr.With(zerr.Wrap(domain.ErrSettingsLoadFailed, err.Error()), "path", paths.ConfigFile)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, zerr.Wrap(domain.ErrSettingsLoadFailed, err.Error())
	}

	var s Settings
	conf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &s,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.DecodeHookFuncType(fieldsHook),
		},
	}
	if err := k.UnmarshalWithConf("", &s, conf); err != nil {
		return nil, zerr.Wrap(domain.ErrSettingsLoadFailed, err.Error())
	}

	s.CMakeArgs = append(s.CMakeArgs, strings.Fields(os.Getenv("CMAKE_ARGS"))...)
	if s.Jobs < 0 {
		s.Jobs = 0
	}

	return &s, nil
}

// PrefixFor returns the keg directory for a package version inside the cellar.
func (s *Settings) PrefixFor(name, version string) string {
	if version == "" {
		version = "HEAD"
	}
	return filepath.Join(s.Cellar, name, version)
}

// envKey maps POUR_LOG_JSON to log.json and POUR_CACHE_DIR to cache_dir.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if rest, ok := strings.CutPrefix(key, "log_"); ok {
		return "log." + rest
	}
	return key
}

// fieldsHook splits a string into whitespace separated fields when the
// target is a string slice, the way a shell would split CMAKE_ARGS.
func fieldsHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
		return data, nil
	}
	s, _ := data.(string)
	return strings.Fields(s), nil
}
