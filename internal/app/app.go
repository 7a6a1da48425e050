// Package app implements the application layer for pour.
package app

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"

	"go.trai.ch/pour/internal/adapters/settings" //nolint:depguard // Wired in app layer
	"go.trai.ch/pour/internal/core/domain"
	"go.trai.ch/pour/internal/core/ports"
	"go.trai.ch/pour/internal/engine/executor"
	"go.trai.ch/pour/internal/engine/resolver"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Installer runs the install steps for a single descriptor.
type Installer interface {
	Install(ctx context.Context, desc *domain.PackageDescriptor, opts executor.Options) (domain.BuildResult, error)
}

// App represents the main application logic.
type App struct {
	loader    ports.DescriptorLoader
	installer Installer
	fetcher   ports.Fetcher
	verifier  ports.ChecksumVerifier
	settings  *settings.Settings
	logger    ports.Logger
}

// New creates a new App instance.
func New(
	loader ports.DescriptorLoader,
	installer Installer,
	fetcher ports.Fetcher,
	verifier ports.ChecksumVerifier,
	cfg *settings.Settings,
	logger ports.Logger,
) *App {
	return &App{
		loader:    loader,
		installer: installer,
		fetcher:   fetcher,
		verifier:  verifier,
		settings:  cfg,
		logger:    logger,
	}
}

// InstallOptions overrides settings for a single install. Zero values fall back to settings.
type InstallOptions struct {
	Prefix    string
	WorkDir   string
	Jobs      int
	CMakeArgs []string
	Force     bool
	KeepWork  bool
}

// Install loads the formula at path and installs it.
func (a *App) Install(ctx context.Context, path string, opts InstallOptions) (domain.BuildResult, error) {
	if path == "" {
		return domain.BuildResult{}, domain.ErrNoFormulaSpecified
	}

	desc, err := a.loader.Load(path)
	if err != nil {
		return domain.BuildResult{}, err
	}

	execOpts := a.executorOptions(desc, opts)
	a.logger.Info("installing " + desc.Name() + " " + desc.Version())

	return a.installer.Install(ctx, desc, execOpts)
}

func (a *App) executorOptions(desc *domain.PackageDescriptor, opts InstallOptions) executor.Options {
	out := executor.Options{
		Prefix:    opts.Prefix,
		WorkDir:   opts.WorkDir,
		Jobs:      opts.Jobs,
		CMakeArgs: append(slices.Clone(a.settings.CMakeArgs), opts.CMakeArgs...),
		Force:     opts.Force,
		KeepWork:  opts.KeepWork || a.settings.KeepWork,
	}
	if out.Prefix == "" {
		out.Prefix = a.settings.PrefixFor(desc.Name(), desc.Version())
	}
	if out.WorkDir == "" {
		out.WorkDir = a.settings.WorkDir
	}
	if out.Jobs <= 0 {
		out.Jobs = a.settings.Jobs
	}
	if len(out.CMakeArgs) == 0 {
		out.CMakeArgs = nil
	}
	return out
}

// Deps returns the resolved dependencies of the formula at path.
// A non-empty scopes set keeps only the entries needed in one of those scopes.
func (a *App) Deps(path string, scopes domain.Scopes) ([]domain.DependencySpec, error) {
	if path == "" {
		return nil, domain.ErrNoFormulaSpecified
	}

	desc, err := a.loader.Load(path)
	if err != nil {
		return nil, err
	}

	return resolver.Filter(resolver.Resolve(desc.Dependencies()), scopes), nil
}

// Info returns the canonical encoding of the formula at path.
func (a *App) Info(path string) ([]byte, error) {
	if path == "" {
		return nil, domain.ErrNoFormulaSpecified
	}

	desc, err := a.loader.Load(path)
	if err != nil {
		return nil, err
	}

	return a.loader.Encode(desc)
}

// CheckResult is the outcome of validating one formula.
type CheckResult struct {
	Path string
	Name string
	Err  error
}

// Check validates every formula in paths concurrently. With fetch set, each
// archive is also downloaded and its checksum verified. Results keep the order of paths.
func (a *App) Check(ctx context.Context, paths []string, fetch bool) ([]CheckResult, error) {
	if len(paths) == 0 {
		return nil, domain.ErrNoFormulaSpecified
	}

	results := make([]CheckResult, len(paths))

	limit := a.settings.Jobs
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, path := range paths {
		g.Go(func() error {
			results[i] = a.checkOne(gctx, path, fetch)
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		err := zerr.Wrap(domain.ErrCheckFailed, fmt.Sprintf("%d of %d formulas", failed, len(results)))
		return results, zerr.With(err, "failed", failed)
	}
	return results, nil
}

func (a *App) checkOne(ctx context.Context, path string, fetch bool) CheckResult {
	res := CheckResult{Path: path}

	desc, err := a.loader.Load(path)
	if err != nil {
		res.Err = err
		return res
	}
	res.Name = desc.Name()

	if !fetch {
		return res
	}

	archive, err := a.fetcher.Fetch(ctx, desc.URL())
	if err != nil {
		res.Err = err
		return res
	}
	if err := a.verifier.Verify(archive, desc.Checksum()); err != nil {
		if errors.Is(err, domain.ErrChecksumMismatch) {
			if evictErr := a.fetcher.Evict(desc.URL()); evictErr != nil {
				a.logger.Warn(fmt.Sprintf("failed to evict cached download of %s: %v", desc.URL(), evictErr))
			}
		}
		res.Err = err
	}
	return res
}
