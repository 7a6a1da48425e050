// Package executor drives a formula through fetch, verify, configure, build and install.
package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.trai.ch/pour/internal/core/domain"
	"go.trai.ch/pour/internal/core/ports"
	"go.trai.ch/pour/internal/engine/resolver"
	"go.trai.ch/zerr"
)

const workDirPerm = 0o750

// Options controls a single install.
type Options struct {
	// Prefix is the directory the package is installed into.
	Prefix string
	// WorkDir is the parent of the per-package build directory.
	WorkDir string
	// Jobs is passed to make as -j. Zero leaves it to make.
	Jobs int
	// CMakeArgs are appended after the standard configure arguments.
	CMakeArgs []string
	// Force ignores a matching install receipt.
	Force bool
	// KeepWork leaves the build directory in place after a successful install.
	KeepWork bool
}

// StdCMakeArgs returns the arguments every configure step receives.
func StdCMakeArgs(prefix string) []string {
	return []string{
		"-DCMAKE_INSTALL_PREFIX=" + prefix,
		"-DCMAKE_INSTALL_LIBDIR=lib",
		"-DCMAKE_BUILD_TYPE=Release",
		"-DCMAKE_FIND_FRAMEWORK=LAST",
		"-DCMAKE_VERBOSE_MAKEFILE=ON",
		"-DBUILD_TESTING=OFF",
		"-Wno-dev",
	}
}

// Executor installs packages one step at a time.
type Executor struct {
	fetcher   ports.Fetcher
	verifier  ports.ChecksumVerifier
	extractor ports.Extractor
	spawner   ports.ProcessSpawner
	hasher    ports.Hasher
	store     ports.ReceiptStore
	telemetry ports.Telemetry
	logger    ports.Logger
	now       func() time.Time
}

// New creates a new Executor.
func New(
	fetcher ports.Fetcher,
	verifier ports.ChecksumVerifier,
	extractor ports.Extractor,
	spawner ports.ProcessSpawner,
	hasher ports.Hasher,
	store ports.ReceiptStore,
	telemetry ports.Telemetry,
	logger ports.Logger,
) *Executor {
	return &Executor{
		fetcher:   fetcher,
		verifier:  verifier,
		extractor: extractor,
		spawner:   spawner,
		hasher:    hasher,
		store:     store,
		telemetry: telemetry,
		logger:    logger,
		now:       time.Now,
	}
}

// run carries the state of one install.
type run struct {
	desc    *domain.PackageDescriptor
	opts    Options
	result  domain.BuildResult
	archive string
	workDir string
	srcRoot string
}

// Install runs every step for desc in order and stops at the first failure.
// The returned BuildResult is meaningful whether or not err is nil.
func (e *Executor) Install(ctx context.Context, desc *domain.PackageDescriptor, opts Options) (domain.BuildResult, error) {
	fingerprint := e.hasher.Fingerprint(desc, opts.Prefix, opts.CMakeArgs)

	ctx, vertex := e.telemetry.Record(ctx, desc.Name())

	if !opts.Force {
		if receipt := e.upToDate(desc.Name(), fingerprint, opts.Prefix); receipt != nil {
			e.logger.Info(desc.Name() + " " + receipt.Version + " is already installed in " + receipt.Prefix)
			vertex.Cached()
			vertex.Complete(nil)
			return domain.BuildResult{Stage: domain.StageInstalled, Cached: true, Receipt: receipt}, nil
		}
	}

	r := &run{
		desc:    desc,
		opts:    opts,
		result:  domain.BuildResult{Stage: domain.StagePending},
		workDir: filepath.Join(opts.WorkDir, workDirName(desc)),
	}

	steps := []struct {
		step domain.Step
		fn   func(context.Context, ports.Vertex, *run) error
	}{
		{domain.StepFetch, e.fetch},
		{domain.StepVerify, e.verify},
		{domain.StepConfigure, e.configure},
		{domain.StepBuild, e.build},
		{domain.StepInstall, e.install},
	}

	for _, s := range steps {
		if err := e.runStep(ctx, r, s.step, s.fn); err != nil {
			vertex.Complete(err)
			return r.result, err
		}
	}

	receipt := e.newReceipt(desc, opts.Prefix, fingerprint)
	if err := e.store.Put(receipt); err != nil {
		e.logger.Warn("failed to write install receipt for " + desc.Name())
		e.logger.Error(err)
	}
	r.result.Receipt = &receipt

	if !opts.KeepWork {
		if err := os.RemoveAll(r.workDir); err != nil {
			e.logger.Warn("failed to remove work directory " + r.workDir)
		}
	}

	e.logger.Info(desc.Name() + " " + desc.Version() + " installed in " + opts.Prefix)
	vertex.Complete(nil)
	return r.result, nil
}

func (e *Executor) runStep(
	ctx context.Context,
	r *run,
	step domain.Step,
	fn func(context.Context, ports.Vertex, *run) error,
) error {
	if err := ctx.Err(); err != nil {
		return e.fail(r, step, err)
	}

	stepCtx, vertex := e.telemetry.Record(ctx, string(step))
	if err := fn(stepCtx, vertex, r); err != nil {
		vertex.Complete(err)
		return e.fail(r, step, err)
	}

	next, err := r.result.Stage.Transition(step.Reaches())
	if err != nil {
		vertex.Complete(err)
		return e.fail(r, step, err)
	}
	r.result.Stage = next
	vertex.Complete(nil)
	return nil
}

func (e *Executor) fail(r *run, step domain.Step, err error) error {
	if next, tErr := r.result.Stage.Transition(domain.StageFailed); tErr == nil {
		r.result.Stage = next
	}
	r.result.FailedStep = step
	return err
}

func (e *Executor) fetch(ctx context.Context, _ ports.Vertex, r *run) error {
	archive, err := e.fetcher.Fetch(ctx, r.desc.URL())
	if err != nil {
		return err
	}
	r.archive = archive
	return nil
}

func (e *Executor) verify(_ context.Context, vertex ports.Vertex, r *run) error {
	if err := e.verifier.Verify(r.archive, r.desc.Checksum()); err != nil {
		if errors.Is(err, domain.ErrChecksumMismatch) {
			if evictErr := e.fetcher.Evict(r.desc.URL()); evictErr != nil {
				e.logger.Warn("failed to evict cached download for " + r.desc.URL())
			}
		}
		return err
	}
	vertex.Log(domain.LogLevelInfo, "sha256 "+r.desc.Checksum()+" ok")

	if err := os.RemoveAll(r.workDir); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrWorkDirFailed, err.Error()), "path", r.workDir)
	}
	if err := os.MkdirAll(r.workDir, workDirPerm); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrWorkDirFailed, err.Error()), "path", r.workDir)
	}

	root, err := e.extractor.Extract(r.archive, r.workDir)
	if err != nil {
		return err
	}
	r.srcRoot = root
	return nil
}

func (e *Executor) configure(ctx context.Context, vertex ports.Vertex, r *run) error {
	args := append([]string{"."}, StdCMakeArgs(r.opts.Prefix)...)
	args = append(args, r.opts.CMakeArgs...)
	return e.command(ctx, vertex, domain.StepConfigure, domain.Command{Name: "cmake", Args: args, Dir: r.srcRoot})
}

func (e *Executor) build(ctx context.Context, vertex ports.Vertex, r *run) error {
	var args []string
	if r.opts.Jobs > 0 {
		args = append(args, "-j"+strconv.Itoa(r.opts.Jobs))
	}
	return e.command(ctx, vertex, domain.StepBuild, domain.Command{Name: "make", Args: args, Dir: r.srcRoot})
}

func (e *Executor) install(ctx context.Context, vertex ports.Vertex, r *run) error {
	return e.command(ctx, vertex, domain.StepInstall, domain.Command{Name: "make", Args: []string{"install"}, Dir: r.srcRoot})
}

func (e *Executor) command(ctx context.Context, vertex ports.Vertex, step domain.Step, cmd domain.Command) error {
	e.logger.Info(cmd.String())

	proc, err := e.spawner.Spawn(ctx, cmd, vertex.Stdout(), vertex.Stderr())
	if err != nil {
		return zerr.With(err, "step", string(step))
	}

	if err := proc.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zerr.With(zerr.Wrap(ctxErr, "interrupted"), "step", string(step))
		}
		return domain.NewStepError(step, proc.ExitCode(), err)
	}
	return nil
}

// upToDate returns the stored receipt when it matches fingerprint and its prefix still exists.
func (e *Executor) upToDate(name, fingerprint, prefix string) *domain.InstallReceipt {
	receipt, err := e.store.Get(name)
	if err != nil {
		e.logger.Warn("ignoring unreadable install receipt for " + name)
		return nil
	}
	if receipt == nil || receipt.Fingerprint != fingerprint || receipt.Prefix != prefix {
		return nil
	}
	if _, err := os.Stat(prefix); err != nil {
		return nil
	}
	return receipt
}

func (e *Executor) newReceipt(desc *domain.PackageDescriptor, prefix, fingerprint string) domain.InstallReceipt {
	var rdeps []domain.ReceiptDependency
	for _, d := range resolver.Resolve(desc.Dependencies()) {
		rdeps = append(rdeps, domain.ReceiptDependency{Name: d.Name, Scopes: d.Scopes.Tags()})
	}

	return domain.InstallReceipt{
		Name:         desc.Name(),
		Version:      desc.Version(),
		Checksum:     desc.Checksum(),
		Prefix:       prefix,
		Fingerprint:  fingerprint,
		Dependencies: rdeps,
		InstalledAt:  e.now().UTC(),
	}
}

func workDirName(desc *domain.PackageDescriptor) string {
	if v := desc.Version(); v != "" {
		return desc.Name() + "-" + v
	}
	return desc.Name()
}
