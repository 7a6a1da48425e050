package executor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pour/internal/adapters/telemetry"
	"go.trai.ch/pour/internal/core/domain"
	"go.trai.ch/pour/internal/core/ports"
	"go.trai.ch/pour/internal/core/ports/mocks"
	"go.trai.ch/pour/internal/engine/executor"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

const (
	highfiveURL = "https://github.com/BlueBrain/HighFive/archive/v2.10.1.tar.gz"
	highfiveSHA = "5bfb356705c6feb9d46a0507573028b289083ec4b4607a6f36187cb916f085a7"
	archivePath = "/cache/pour/abc--v2.10.1.tar.gz"
	fingerprint = "00000000deadbeef"
)

var installedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func highfive() *domain.PackageDescriptor {
	return domain.NewPackageDescriptor(domain.DescriptorFields{
		Name:     "highfive",
		Desc:     "HighFive - Header-only C++ HDF5 interface",
		Homepage: "https://bluebrain.github.io/HighFive/",
		URL:      highfiveURL,
		Checksum: highfiveSHA,
		Dependencies: []domain.DependencySpec{
			domain.NewDependency("cmake", domain.ScopeBuild),
			domain.NewDependency("boost", domain.ScopeBuild, domain.ScopeTest),
			domain.NewDependency("hdf5@1.10"),
		},
	})
}

type fixture struct {
	fetcher   *mocks.MockFetcher
	verifier  *mocks.MockChecksumVerifier
	extractor *mocks.MockExtractor
	spawner   *mocks.MockProcessSpawner
	hasher    *mocks.MockHasher
	store     *mocks.MockReceiptStore
	exec      *executor.Executor
	ctrl      *gomock.Controller
	opts      executor.Options
	srcRoot   string
}

func newFixture(t *testing.T, tel ports.Telemetry) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any()).AnyTimes()
	log.EXPECT().Error(gomock.Any()).AnyTimes()

	if tel == nil {
		tel = telemetry.NewNoOp()
	}

	root := t.TempDir()
	f := &fixture{
		fetcher:   mocks.NewMockFetcher(ctrl),
		verifier:  mocks.NewMockChecksumVerifier(ctrl),
		extractor: mocks.NewMockExtractor(ctrl),
		spawner:   mocks.NewMockProcessSpawner(ctrl),
		hasher:    mocks.NewMockHasher(ctrl),
		store:     mocks.NewMockReceiptStore(ctrl),
		ctrl:      ctrl,
		opts: executor.Options{
			Prefix:  filepath.Join(root, "Cellar", "highfive", "2.10.1"),
			WorkDir: filepath.Join(root, "work"),
			Jobs:    4,
		},
	}
	f.srcRoot = filepath.Join(f.opts.WorkDir, "highfive-2.10.1", "HighFive-2.10.1")
	f.exec = executor.New(f.fetcher, f.verifier, f.extractor, f.spawner, f.hasher, f.store, tel, log)
	f.exec.SetNow(func() time.Time { return installedAt })
	return f
}

func (f *fixture) expectFingerprint() {
	f.hasher.EXPECT().Fingerprint(gomock.Any(), f.opts.Prefix, f.opts.CMakeArgs).Return(fingerprint)
}

func (f *fixture) expectFetchAndVerify() {
	f.fetcher.EXPECT().Fetch(gomock.Any(), highfiveURL).Return(archivePath, nil)
	f.verifier.EXPECT().Verify(archivePath, highfiveSHA).Return(nil)
	f.extractor.EXPECT().
		Extract(archivePath, filepath.Join(f.opts.WorkDir, "highfive-2.10.1")).
		Return(f.srcRoot, nil)
}

func (f *fixture) configureCmd() domain.Command {
	args := append([]string{"."}, executor.StdCMakeArgs(f.opts.Prefix)...)
	args = append(args, f.opts.CMakeArgs...)
	return domain.Command{Name: "cmake", Args: args, Dir: f.srcRoot}
}

func (f *fixture) expectCommand(cmd domain.Command, waitErr error, exitCode int) *gomock.Call {
	proc := mocks.NewMockProcess(f.ctrl)
	proc.EXPECT().Wait().Return(waitErr)
	if waitErr != nil {
		proc.EXPECT().ExitCode().Return(exitCode)
	}
	return f.spawner.EXPECT().Spawn(gomock.Any(), cmd, gomock.Any(), gomock.Any()).Return(proc, nil)
}

func (f *fixture) expectSuccessfulBuild() {
	gomock.InOrder(
		f.expectCommand(f.configureCmd(), nil, 0),
		f.expectCommand(domain.Command{Name: "make", Args: []string{"-j4"}, Dir: f.srcRoot}, nil, 0),
		f.expectCommand(domain.Command{Name: "make", Args: []string{"install"}, Dir: f.srcRoot}, nil, 0),
	)
}

func TestInstall_HappyPath(t *testing.T) {
	f := newFixture(t, nil)
	f.expectFingerprint()
	f.store.EXPECT().Get("highfive").Return(nil, nil)
	f.expectFetchAndVerify()
	f.expectSuccessfulBuild()

	var stored domain.InstallReceipt
	f.store.EXPECT().Put(gomock.Any()).DoAndReturn(func(r domain.InstallReceipt) error {
		stored = r
		return nil
	})

	result, err := f.exec.Install(context.Background(), highfive(), f.opts)
	require.NoError(t, err)

	assert.Equal(t, domain.StageInstalled, result.Stage)
	assert.False(t, result.Cached)
	assert.Empty(t, result.FailedStep)
	require.NotNil(t, result.Receipt)
	assert.Equal(t, stored, *result.Receipt)

	assert.Equal(t, domain.InstallReceipt{
		Name:        "highfive",
		Version:     "2.10.1",
		Checksum:    highfiveSHA,
		Prefix:      f.opts.Prefix,
		Fingerprint: fingerprint,
		Dependencies: []domain.ReceiptDependency{
			{Name: "cmake", Scopes: []string{"build"}},
			{Name: "boost", Scopes: []string{"build", "test"}},
			{Name: "hdf5@1.10", Scopes: []string{"runtime"}},
		},
		InstalledAt: installedAt,
	}, stored)

	_, statErr := os.Stat(filepath.Join(f.opts.WorkDir, "highfive-2.10.1"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "work dir should be removed")
}

func TestInstall_ExtraCMakeArgsAndNoJobs(t *testing.T) {
	f := newFixture(t, nil)
	f.opts.Jobs = 0
	f.opts.CMakeArgs = []string{"-DHIGHFIVE_USE_BOOST=OFF"}
	f.opts.KeepWork = true

	f.expectFingerprint()
	f.store.EXPECT().Get("highfive").Return(nil, nil)
	f.expectFetchAndVerify()

	configure := f.configureCmd()
	assert.Equal(t, "-DHIGHFIVE_USE_BOOST=OFF", configure.Args[len(configure.Args)-1])

	gomock.InOrder(
		f.expectCommand(configure, nil, 0),
		f.expectCommand(domain.Command{Name: "make", Dir: f.srcRoot}, nil, 0),
		f.expectCommand(domain.Command{Name: "make", Args: []string{"install"}, Dir: f.srcRoot}, nil, 0),
	)
	f.store.EXPECT().Put(gomock.Any()).Return(nil)

	result, err := f.exec.Install(context.Background(), highfive(), f.opts)
	require.NoError(t, err)
	assert.Equal(t, domain.StageInstalled, result.Stage)

	_, statErr := os.Stat(filepath.Join(f.opts.WorkDir, "highfive-2.10.1"))
	assert.NoError(t, statErr, "work dir should be kept")
}

func TestInstall_ChecksumMismatchStopsBeforeBuild(t *testing.T) {
	f := newFixture(t, nil)
	f.expectFingerprint()
	f.store.EXPECT().Get("highfive").Return(nil, nil)

	mismatch := zerr.With(zerr.Wrap(domain.ErrChecksumMismatch, "archive"), "actual", "00ff")
	f.fetcher.EXPECT().Fetch(gomock.Any(), highfiveURL).Return(archivePath, nil)
	f.verifier.EXPECT().Verify(archivePath, highfiveSHA).Return(mismatch)
	f.fetcher.EXPECT().Evict(highfiveURL).Return(nil)

	result, err := f.exec.Install(context.Background(), highfive(), f.opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrChecksumMismatch))

	assert.Equal(t, domain.StageFailed, result.Stage)
	assert.Equal(t, domain.StepVerify, result.FailedStep)
	assert.Nil(t, result.Receipt)
}

func TestInstall_ConfigureFailureAborts(t *testing.T) {
	f := newFixture(t, nil)
	f.expectFingerprint()
	f.store.EXPECT().Get("highfive").Return(nil, nil)
	f.expectFetchAndVerify()

	exitErr := errors.New("exit status 2")
	f.expectCommand(f.configureCmd(), exitErr, 2)

	result, err := f.exec.Install(context.Background(), highfive(), f.opts)
	require.Error(t, err)

	var stepErr *domain.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, domain.StepConfigure, stepErr.Step)
	assert.Equal(t, 2, stepErr.ExitCode)
	assert.True(t, errors.Is(err, domain.ErrSubprocessFailure))
	assert.True(t, errors.Is(err, exitErr))

	assert.Equal(t, domain.StageFailed, result.Stage)
	assert.Equal(t, domain.StepConfigure, result.FailedStep)
}

func TestInstall_InstallFailureReportsExitCode(t *testing.T) {
	f := newFixture(t, nil)
	f.expectFingerprint()
	f.store.EXPECT().Get("highfive").Return(nil, nil)
	f.expectFetchAndVerify()

	gomock.InOrder(
		f.expectCommand(f.configureCmd(), nil, 0),
		f.expectCommand(domain.Command{Name: "make", Args: []string{"-j4"}, Dir: f.srcRoot}, nil, 0),
		f.expectCommand(domain.Command{Name: "make", Args: []string{"install"}, Dir: f.srcRoot}, errors.New("exit status 3"), 3),
	)

	result, err := f.exec.Install(context.Background(), highfive(), f.opts)
	require.Error(t, err)

	var stepErr *domain.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, domain.StepInstall, stepErr.Step)
	assert.Equal(t, 3, stepErr.ExitCode)
	assert.Equal(t, domain.StepInstall, result.FailedStep)
}

func TestInstall_FetchFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.expectFingerprint()
	f.store.EXPECT().Get("highfive").Return(nil, nil)
	f.fetcher.EXPECT().Fetch(gomock.Any(), highfiveURL).Return("", domain.ErrFetchFailed)

	result, err := f.exec.Install(context.Background(), highfive(), f.opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFetchFailed))
	assert.Equal(t, domain.StageFailed, result.Stage)
	assert.Equal(t, domain.StepFetch, result.FailedStep)
}

func TestInstall_CanceledContext(t *testing.T) {
	f := newFixture(t, nil)
	f.expectFingerprint()
	f.store.EXPECT().Get("highfive").Return(nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.exec.Install(ctx, highfive(), f.opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, domain.StepFetch, result.FailedStep)
}

func TestInstall_SkipsWhenReceiptMatches(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.MkdirAll(f.opts.Prefix, 0o750))

	receipt := &domain.InstallReceipt{
		Name:        "highfive",
		Version:     "2.10.1",
		Prefix:      f.opts.Prefix,
		Fingerprint: fingerprint,
	}
	f.expectFingerprint()
	f.store.EXPECT().Get("highfive").Return(receipt, nil)

	result, err := f.exec.Install(context.Background(), highfive(), f.opts)
	require.NoError(t, err)
	assert.True(t, result.Cached)
	assert.Equal(t, domain.StageInstalled, result.Stage)
	assert.Equal(t, receipt, result.Receipt)
}

func TestInstall_RebuildsWhenPrefixMissing(t *testing.T) {
	f := newFixture(t, nil)

	f.expectFingerprint()
	f.store.EXPECT().Get("highfive").Return(&domain.InstallReceipt{
		Name:        "highfive",
		Prefix:      f.opts.Prefix,
		Fingerprint: fingerprint,
	}, nil)
	f.expectFetchAndVerify()
	f.expectSuccessfulBuild()
	f.store.EXPECT().Put(gomock.Any()).Return(nil)

	result, err := f.exec.Install(context.Background(), highfive(), f.opts)
	require.NoError(t, err)
	assert.False(t, result.Cached)
}

func TestInstall_RebuildsWhenFingerprintChanged(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.MkdirAll(f.opts.Prefix, 0o750))

	f.expectFingerprint()
	f.store.EXPECT().Get("highfive").Return(&domain.InstallReceipt{
		Name:        "highfive",
		Prefix:      f.opts.Prefix,
		Fingerprint: "stale",
	}, nil)
	f.expectFetchAndVerify()
	f.expectSuccessfulBuild()
	f.store.EXPECT().Put(gomock.Any()).Return(nil)

	result, err := f.exec.Install(context.Background(), highfive(), f.opts)
	require.NoError(t, err)
	assert.False(t, result.Cached)
}

func TestInstall_ForceIgnoresReceipt(t *testing.T) {
	f := newFixture(t, nil)
	f.opts.Force = true

	f.expectFingerprint()
	f.expectFetchAndVerify()
	f.expectSuccessfulBuild()
	f.store.EXPECT().Put(gomock.Any()).Return(nil)

	result, err := f.exec.Install(context.Background(), highfive(), f.opts)
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Equal(t, domain.StageInstalled, result.Stage)
}

func TestInstall_ReceiptWriteFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, nil)
	f.expectFingerprint()
	f.store.EXPECT().Get("highfive").Return(nil, nil)
	f.expectFetchAndVerify()
	f.expectSuccessfulBuild()
	f.store.EXPECT().Put(gomock.Any()).Return(domain.ErrStoreWriteFailed)

	result, err := f.exec.Install(context.Background(), highfive(), f.opts)
	require.NoError(t, err)
	assert.Equal(t, domain.StageInstalled, result.Stage)
}

func TestInstall_RecordsVertices(t *testing.T) {
	ctrl := gomock.NewController(t)
	tel := mocks.NewMockTelemetry(ctrl)
	pkg := mocks.NewMockVertex(ctrl)

	f := newFixture(t, tel)
	require.NoError(t, os.MkdirAll(f.opts.Prefix, 0o750))

	tel.EXPECT().Record(gomock.Any(), "highfive").Return(context.Background(), pkg)
	gomock.InOrder(
		pkg.EXPECT().Cached(),
		pkg.EXPECT().Complete(nil),
	)

	f.expectFingerprint()
	f.store.EXPECT().Get("highfive").Return(&domain.InstallReceipt{
		Name:        "highfive",
		Prefix:      f.opts.Prefix,
		Fingerprint: fingerprint,
	}, nil)

	result, err := f.exec.Install(context.Background(), highfive(), f.opts)
	require.NoError(t, err)
	assert.True(t, result.Cached)
}

func TestInstall_FailedStepVertexCompletesWithError(t *testing.T) {
	ctrl := gomock.NewController(t)
	tel := mocks.NewMockTelemetry(ctrl)
	pkg := mocks.NewMockVertex(ctrl)
	fetch := mocks.NewMockVertex(ctrl)

	f := newFixture(t, tel)
	f.expectFingerprint()
	f.store.EXPECT().Get("highfive").Return(nil, nil)

	tel.EXPECT().Record(gomock.Any(), "highfive").Return(context.Background(), pkg)
	tel.EXPECT().Record(gomock.Any(), "fetch").Return(context.Background(), fetch)

	f.fetcher.EXPECT().Fetch(gomock.Any(), highfiveURL).Return("", domain.ErrFetchFailed)
	fetch.EXPECT().Complete(domain.ErrFetchFailed)
	pkg.EXPECT().Complete(domain.ErrFetchFailed)

	_, err := f.exec.Install(context.Background(), highfive(), f.opts)
	require.Error(t, err)
}
