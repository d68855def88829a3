// Package pipeline runs one site build end to end: template resolution,
// content fetch, normalization, asset materialization, site data write,
// toolchain build and verification.
package pipeline

import (
	"context"
	"fmt"
)

// StageName is a strongly-typed identifier for a build stage.
type StageName string

// Canonical stage names, in execution order.
const (
	StageResolveTemplate     StageName = "resolve_template"
	StageFetching            StageName = "fetching"
	StageNormalizing         StageName = "normalizing"
	StageMaterializingAssets StageName = "materializing_assets"
	StageWritingSiteData     StageName = "writing_site_data"
	StageBuilding            StageName = "building"
	StageVerifying           StageName = "verifying"
)

// State is the coordinator state machine position.
type State string

const (
	StateIdle                State = "idle"
	StateResolvingTemplate   State = "resolving_template"
	StateFetching            State = "fetching"
	StateNormalizing         State = "normalizing"
	StateMaterializingAssets State = "materializing_assets"
	StateWritingSiteData     State = "writing_site_data"
	StateBuilding            State = "building"
	StateVerifying           State = "verifying"
	StateDone                State = "done"
	StateFailed              State = "failed"
)

var stageStates = map[StageName]State{
	StageResolveTemplate:     StateResolvingTemplate,
	StageFetching:            StateFetching,
	StageNormalizing:         StateNormalizing,
	StageMaterializingAssets: StateMaterializingAssets,
	StageWritingSiteData:     StateWritingSiteData,
	StageBuilding:            StateBuilding,
	StageVerifying:           StateVerifying,
}

// State returns the coordinator state while the stage runs.
func (s StageName) State() State {
	if st, ok := stageStates[s]; ok {
		return st
	}
	return StateIdle
}

// Stage is a discrete unit of work in the site build.
type Stage func(ctx context.Context, bs *buildState) error

// StageDef pairs a stage name with its executing function.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying kind, stage and cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func newFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}
func newWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}
func newCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// StageResult enumerates per-stage classification outcomes.
type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultWarning  StageResult = "warning"
	StageResultFatal    StageResult = "fatal"
	StageResultCanceled StageResult = "canceled"
)
