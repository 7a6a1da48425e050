package domain

import "go.trai.ch/zerr"

// Stage is a point in the install state machine.
type Stage int

const (
	// StagePending is the initial stage before anything has run.
	StagePending Stage = iota
	// StageFetched means the source archive is on disk.
	StageFetched
	// StageVerified means the archive matched its checksum and was unpacked.
	StageVerified
	// StageConfigured means the configure step succeeded.
	StageConfigured
	// StageBuilt means the build step succeeded.
	StageBuilt
	// StageInstalled means the install step succeeded. Terminal.
	StageInstalled
	// StageFailed means a step failed. Terminal.
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StagePending:
		return "Pending"
	case StageFetched:
		return "Fetched"
	case StageVerified:
		return "Verified"
	case StageConfigured:
		return "Configured"
	case StageBuilt:
		return "Built"
	case StageInstalled:
		return "Installed"
	case StageFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageInstalled || s == StageFailed
}

// Transition returns the next stage if moving from s to next is legal.
// Stages advance one at a time; any non-terminal stage may fail.
func (s Stage) Transition(next Stage) (Stage, error) {
	if s.Terminal() {
		return s, illegal(s, next)
	}
	if next == StageFailed || next == s+1 {
		return next, nil
	}
	return s, illegal(s, next)
}

func illegal(from, to Stage) error {
	err := zerr.With(zerr.Wrap(ErrInvalidTransition, "stage machine"), "from", from.String())
	return zerr.With(err, "to", to.String())
}

// Step is a unit of work that failures are attributed to.
type Step string

const (
	// StepFetch downloads the source archive.
	StepFetch Step = "fetch"
	// StepVerify checks the archive checksum and unpacks it.
	StepVerify Step = "verify"
	// StepConfigure runs cmake.
	StepConfigure Step = "configure"
	// StepBuild runs make.
	StepBuild Step = "build"
	// StepInstall runs make install.
	StepInstall Step = "install"
)

// Steps lists the steps in execution order.
var Steps = []Step{StepFetch, StepVerify, StepConfigure, StepBuild, StepInstall}

// Reaches returns the stage a successful step moves the machine to.
func (s Step) Reaches() Stage {
	switch s {
	case StepFetch:
		return StageFetched
	case StepVerify:
		return StageVerified
	case StepConfigure:
		return StageConfigured
	case StepBuild:
		return StageBuilt
	case StepInstall:
		return StageInstalled
	default:
		return StageFailed
	}
}

// BuildResult summarizes an executor run, successful or not.
type BuildResult struct {
	Stage      Stage
	FailedStep Step
	Cached     bool
	Receipt    *InstallReceipt
}
