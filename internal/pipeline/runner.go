package pipeline

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/content"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/templates"
	"git.home.luguber.info/inful/sitebuilder/internal/toolchain"
)

// stageOutcome is the classified result of one stage execution.
type stageOutcome struct {
	Error     *StageError
	Result    StageResult
	IssueCode ReportIssueCode
	Severity  IssueSeverity
	Transient bool
	Abort     bool
}

// runStages executes stages in order, recording timing and stopping on the
// first fatal or canceled stage.
func runStages(ctx context.Context, bs *buildState, stages []StageDef) error {
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			se := newCanceledStageError(st.Name, err)
			bs.report.StageErrorKinds[st.Name] = se.Kind
			bs.report.AddIssue(IssueCanceled, st.Name, SeverityError, se.Error(), false, se)
			bs.report.recordStageResult(st.Name, StageResultCanceled, bs.recorder)
			bs.observer.OnStageComplete(st.Name, 0, StageResultCanceled)
			return se
		}

		bs.report.State = st.Name.State()
		bs.observer.OnStageStart(st.Name)
		bs.logger.Debug("Stage started", logfields.Stage(string(st.Name)))
		t0 := time.Now()
		err := runStage(ctx, bs, st)
		dur := time.Since(t0)
		bs.report.StageDurations[st.Name] = dur

		out := classifyStageResult(ctx, st.Name, err)
		if out.Error != nil {
			bs.report.StageErrorKinds[st.Name] = out.Error.Kind
			bs.report.AddIssue(out.IssueCode, st.Name, out.Severity, out.Error.Error(), out.Transient, out.Error)
			level := slog.LevelWarn
			if out.Abort {
				level = slog.LevelError
			}
			bs.logger.Log(ctx, level, "Stage finished with error",
				logfields.Stage(string(st.Name)), slog.String("kind", string(out.Error.Kind)),
				logfields.Error(out.Error.Err))
		}
		bs.report.recordStageResult(st.Name, out.Result, bs.recorder)
		bs.observer.OnStageComplete(st.Name, dur, out.Result)
		if out.Abort {
			return out.Error
		}
	}
	return nil
}

// runStage invokes one stage and converts a panic into a fatal stage error.
func runStage(ctx context.Context, bs *buildState, st StageDef) (err error) {
	defer func() {
		if r := recover(); r != nil {
			bs.logger.Error("Stage panicked", logfields.Stage(string(st.Name)),
				slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			err = &StageError{
				Kind:  StageErrorFatal,
				Stage: st.Name,
				Err:   errors.InternalError(fmt.Sprintf("panic in stage %s: %v", st.Name, r)).Build(),
			}
		}
	}()
	return st.Fn(ctx, bs)
}

// classifyStageResult maps a stage error onto kind, issue code and severity.
func classifyStageResult(ctx context.Context, stage StageName, err error) stageOutcome {
	if err == nil {
		return stageOutcome{Result: StageResultSuccess}
	}

	var se *StageError
	if !stdErrors.As(err, &se) {
		switch {
		case ctx.Err() != nil && (stdErrors.Is(err, context.Canceled) || stdErrors.Is(err, context.DeadlineExceeded)):
			se = newCanceledStageError(stage, err)
		case errors.HasSeverity(err, errors.SeverityWarning):
			se = newWarnStageError(stage, err)
		default:
			se = newFatalStageError(stage, err)
		}
	}

	out := stageOutcome{Error: se, IssueCode: issueCodeFor(se)}
	switch se.Kind {
	case StageErrorWarning:
		out.Result = StageResultWarning
		out.Severity = SeverityWarning
	case StageErrorCanceled:
		out.Result = StageResultCanceled
		out.Severity = SeverityError
		out.Abort = true
	default:
		out.Result = StageResultFatal
		out.Severity = SeverityError
		out.Abort = true
	}
	out.Transient = content.IsTransient(se.Err) || errors.GetRetryStrategy(se.Err) == errors.RetryBackoff
	return out
}

func issueCodeFor(se *StageError) ReportIssueCode {
	if se.Kind == StageErrorCanceled {
		return IssueCanceled
	}
	switch {
	case stdErrors.Is(se.Err, templates.ErrTemplateNotFound):
		return IssueTemplateNotFound
	case stdErrors.Is(se.Err, toolchain.ErrTimeout):
		return IssueToolchainTimeout
	case stdErrors.Is(se.Err, toolchain.ErrToolchainFailed):
		return IssueToolchainFailed
	}
	ce, ok := errors.AsClassified(se.Err)
	if !ok {
		return IssueGenericStageError
	}
	switch ce.Category() {
	case errors.CategoryContent:
		return IssueContentFetch
	case errors.CategoryAsset:
		return IssueAssetFailure
	case errors.CategoryTemplate:
		return IssueTemplateNotFound
	case errors.CategoryToolchain:
		return IssueToolchainFailed
	case errors.CategoryVerification:
		return IssueVerification
	case errors.CategoryInternal:
		return IssueStagePanic
	case errors.CategoryFileSystem:
		if se.Stage == StageWritingSiteData {
			return IssueSiteDataWrite
		}
	}
	return IssueGenericStageError
}
