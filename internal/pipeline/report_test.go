package pipeline

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/toolchain"
)

func TestDeriveOutcome(t *testing.T) {
	r := newBuildReport("s", "t")
	assert.Equal(t, OutcomeSuccess, r.DeriveOutcome())

	r.Warnings = append(r.Warnings, stdErrors.New("w"))
	assert.Equal(t, OutcomeWarning, r.DeriveOutcome())
	assert.Equal(t, StateDone, r.State)

	r.Errors = append(r.Errors, newFatalStageError(StageBuilding, stdErrors.New("f")))
	assert.Equal(t, OutcomeFailed, r.DeriveOutcome())
	assert.Equal(t, StateFailed, r.State)

	r.Errors = []error{newCanceledStageError(StageFetching, context.Canceled)}
	assert.Equal(t, OutcomeCanceled, r.DeriveOutcome())
}

func TestClassifyStageResult(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, StageResultSuccess, classifyStageResult(ctx, StageBuilding, nil).Result)

	out := classifyStageResult(ctx, StageBuilding, stdErrors.New("plain"))
	assert.Equal(t, StageResultFatal, out.Result)
	assert.True(t, out.Abort)
	assert.Equal(t, IssueGenericStageError, out.IssueCode)

	out = classifyStageResult(ctx, StageMaterializingAssets, newWarnStageError(StageMaterializingAssets, errors.AssetError("x").Build()))
	assert.Equal(t, StageResultWarning, out.Result)
	assert.False(t, out.Abort)
	assert.Equal(t, IssueAssetFailure, out.IssueCode)

	warned := errors.VerificationWarning("output incomplete").Build()
	out = classifyStageResult(ctx, StageVerifying, warned)
	assert.Equal(t, StageResultWarning, out.Result)
	assert.False(t, out.Abort)

	timeout := errors.WrapError(toolchain.ErrTimeout, errors.CategoryToolchain, "build").Build()
	assert.Equal(t, IssueToolchainTimeout, classifyStageResult(ctx, StageBuilding, timeout).IssueCode)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	out = classifyStageResult(canceled, StageFetching, context.Canceled)
	assert.Equal(t, StageResultCanceled, out.Result)
	assert.Equal(t, IssueCanceled, out.IssueCode)
}

func TestStageState(t *testing.T) {
	assert.Equal(t, StateBuilding, StageBuilding.State())
	assert.Equal(t, StateIdle, StageName("other").State())
}

func TestSummary(t *testing.T) {
	r := newBuildReport("example.com", "default")
	r.finish()
	assert.Contains(t, r.Summary(), "site=example.com")
	assert.Contains(t, r.Summary(), "outcome=success")
}
