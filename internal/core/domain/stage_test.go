package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pour/internal/core/domain"
)

func TestStage_HappyPath(t *testing.T) {
	stage := domain.StagePending
	for _, step := range domain.Steps {
		next, err := stage.Transition(step.Reaches())
		require.NoError(t, err, "step %s", step)
		stage = next
	}
	assert.Equal(t, domain.StageInstalled, stage)
	assert.True(t, stage.Terminal())
}

func TestStage_SkippingIsRejected(t *testing.T) {
	next, err := domain.StagePending.Transition(domain.StageConfigured)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	assert.Equal(t, domain.StagePending, next)
}

func TestStage_AnyNonTerminalCanFail(t *testing.T) {
	for _, s := range []domain.Stage{
		domain.StagePending,
		domain.StageFetched,
		domain.StageVerified,
		domain.StageConfigured,
		domain.StageBuilt,
	} {
		t.Run(s.String(), func(t *testing.T) {
			next, err := s.Transition(domain.StageFailed)
			require.NoError(t, err)
			assert.Equal(t, domain.StageFailed, next)
		})
	}
}

func TestStage_TerminalStagesAreFinal(t *testing.T) {
	_, err := domain.StageFailed.Transition(domain.StageFetched)
	require.Error(t, err)

	_, err = domain.StageInstalled.Transition(domain.StageFailed)
	require.Error(t, err)
}

func TestStepError(t *testing.T) {
	cause := errors.New("exit status 2")
	err := error(domain.NewStepError(domain.StepConfigure, 2, cause))

	assert.True(t, errors.Is(err, domain.ErrSubprocessFailure))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "configure step failed with exit code 2", err.Error())

	var stepErr *domain.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, domain.StepConfigure, stepErr.Step)
	assert.Equal(t, 2, stepErr.ExitCode)
}
