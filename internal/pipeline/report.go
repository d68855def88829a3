package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

// ReportFileName is the machine readable report written next to the output.
const ReportFileName = "build-report.json"

// BuildOutcome is the typed enumeration of final build result states.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// ReportIssueCode enumerates machine-parseable issue identifiers.
// Codes are append-only.
type ReportIssueCode string

const (
	IssueTemplateNotFound  ReportIssueCode = "TEMPLATE_NOT_FOUND"
	IssueContentFetch      ReportIssueCode = "CONTENT_FETCH"
	IssueAssetFailure      ReportIssueCode = "ASSET_FAILURE"
	IssueSiteDataWrite     ReportIssueCode = "SITE_DATA_WRITE"
	IssueToolchainFailed   ReportIssueCode = "TOOLCHAIN_FAILED"
	IssueToolchainTimeout  ReportIssueCode = "TOOLCHAIN_TIMEOUT"
	IssueVerification      ReportIssueCode = "VERIFICATION_WARNING"
	IssueStagePanic        ReportIssueCode = "STAGE_PANIC"
	IssueCanceled          ReportIssueCode = "BUILD_CANCELED"
	IssueGenericStageError ReportIssueCode = "GENERIC_STAGE_ERROR"
)

// IssueSeverity represents normalized severity levels.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// ReportIssue is a structured taxonomy entry describing a discrete problem.
type ReportIssue struct {
	Code      ReportIssueCode `json:"code"`
	Stage     StageName       `json:"stage"`
	Severity  IssueSeverity   `json:"severity"`
	Message   string          `json:"message"`
	Transient bool            `json:"transient"`
}

// StageCount aggregates outcome counts for a stage.
type StageCount struct {
	Success  int `json:"success"`
	Warning  int `json:"warning"`
	Fatal    int `json:"fatal"`
	Canceled int `json:"canceled"`
}

// BuildReport captures per-stage timings, results and issues of one build.
type BuildReport struct {
	SchemaVersion    int
	Site             string
	Template         string
	Start            time.Time
	End              time.Time
	Errors           []error // fatal errors causing build abortion (at most one)
	Warnings         []error // non-fatal issues
	StageDurations   map[StageName]time.Duration
	StageErrorKinds  map[StageName]StageErrorKind
	StageCounts      map[StageName]StageCount
	Issues           []ReportIssue
	State            State
	Outcome          BuildOutcome
	Articles         int
	Categories       int
	Authors          int
	ImagesDownloaded int
	TotalImages      int
}

func newBuildReport(siteDomain, template string) *BuildReport {
	return &BuildReport{
		SchemaVersion:   1,
		Site:            siteDomain,
		Template:        template,
		Start:           time.Now(),
		StageDurations:  make(map[StageName]time.Duration),
		StageErrorKinds: make(map[StageName]StageErrorKind),
		StageCounts:     make(map[StageName]StageCount),
		State:           StateIdle,
	}
}

// AddIssue appends a structured issue and mirrors err into Errors or Warnings.
func (r *BuildReport) AddIssue(code ReportIssueCode, stage StageName, severity IssueSeverity, msg string, transient bool, err error) {
	r.Issues = append(r.Issues, ReportIssue{Code: code, Stage: stage, Severity: severity, Message: msg, Transient: transient})
	if err != nil {
		switch severity {
		case SeverityError:
			r.Errors = append(r.Errors, err)
		case SeverityWarning:
			r.Warnings = append(r.Warnings, err)
		}
	}
}

// recordStageResult updates counters and emits metrics.
func (r *BuildReport) recordStageResult(stage StageName, res StageResult, recorder metrics.Recorder) {
	sc := r.StageCounts[stage]
	var label metrics.ResultLabel
	switch res {
	case StageResultSuccess:
		sc.Success++
		label = metrics.ResultSuccess
	case StageResultWarning:
		sc.Warning++
		label = metrics.ResultWarning
	case StageResultFatal:
		sc.Fatal++
		label = metrics.ResultFatal
	case StageResultCanceled:
		sc.Canceled++
		label = metrics.ResultCanceled
	}
	r.StageCounts[stage] = sc
	if recorder != nil {
		recorder.IncStageResult(string(stage), label)
	}
}

func (r *BuildReport) finish() {
	if r.End.IsZero() {
		r.End = time.Now()
	}
	r.DeriveOutcome()
}

// Duration returns the wall time of the build.
func (r *BuildReport) Duration() time.Duration {
	if r.End.IsZero() {
		return time.Since(r.Start)
	}
	return r.End.Sub(r.Start)
}

// DeriveOutcome sets Outcome and the terminal State from recorded errors and warnings.
func (r *BuildReport) DeriveOutcome() BuildOutcome {
	switch {
	case len(r.Errors) > 0:
		r.Outcome = OutcomeFailed
		for _, e := range r.Errors {
			if se, ok := e.(*StageError); ok && se.Kind == StageErrorCanceled {
				r.Outcome = OutcomeCanceled
				break
			}
		}
		r.State = StateFailed
	case len(r.Warnings) > 0:
		r.Outcome = OutcomeWarning
		r.State = StateDone
	default:
		r.Outcome = OutcomeSuccess
		r.State = StateDone
	}
	return r.Outcome
}

// Summary returns a human-readable single-line summary.
func (r *BuildReport) Summary() string {
	return fmt.Sprintf("site=%s template=%s duration=%s articles=%d categories=%d images=%d/%d errors=%d warnings=%d outcome=%s",
		r.Site, r.Template, r.Duration().Truncate(time.Millisecond), r.Articles, r.Categories,
		r.ImagesDownloaded, r.TotalImages, len(r.Errors), len(r.Warnings), r.Outcome)
}

// Persist writes build-report.json and build-report.txt atomically into root.
// Errors are returned for logging and never change the build outcome.
func (r *BuildReport) Persist(root string) error {
	if r.End.IsZero() {
		r.finish()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("ensure root for report: %w", err)
	}
	jb, err := json.MarshalIndent(r.serializable(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	if err := writeAtomic(filepath.Join(root, ReportFileName), jb); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(root, "build-report.txt"), []byte(r.Summary()+"\n"))
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { // #nosec G306 -- report is public build output
		return fmt.Errorf("write temp %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomic rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// BuildReportSerializable mirrors BuildReport with string errors and string-keyed maps.
type BuildReportSerializable struct {
	SchemaVersion    int                   `json:"schema_version"`
	Site             string                `json:"site"`
	Template         string                `json:"template"`
	Start            time.Time             `json:"start"`
	End              time.Time             `json:"end"`
	Errors           []string              `json:"errors"`
	Warnings         []string              `json:"warnings"`
	StageDurationsMS map[string]int64      `json:"stage_durations_ms"`
	StageErrorKinds  map[string]string     `json:"stage_error_kinds"`
	StageCounts      map[string]StageCount `json:"stage_counts"`
	Issues           []ReportIssue         `json:"issues"`
	State            State                 `json:"state"`
	Outcome          BuildOutcome          `json:"outcome"`
	Articles         int                   `json:"articles"`
	Categories       int                   `json:"categories"`
	Authors          int                   `json:"authors"`
	ImagesDownloaded int                   `json:"images_downloaded"`
	TotalImages      int                   `json:"total_images"`
}

func (r *BuildReport) serializable() *BuildReportSerializable {
	s := &BuildReportSerializable{
		SchemaVersion:    r.SchemaVersion,
		Site:             r.Site,
		Template:         r.Template,
		Start:            r.Start,
		End:              r.End,
		Errors:           make([]string, len(r.Errors)),
		Warnings:         make([]string, len(r.Warnings)),
		StageDurationsMS: make(map[string]int64, len(r.StageDurations)),
		StageErrorKinds:  make(map[string]string, len(r.StageErrorKinds)),
		StageCounts:      make(map[string]StageCount, len(r.StageCounts)),
		Issues:           r.Issues,
		State:            r.State,
		Outcome:          r.Outcome,
		Articles:         r.Articles,
		Categories:       r.Categories,
		Authors:          r.Authors,
		ImagesDownloaded: r.ImagesDownloaded,
		TotalImages:      r.TotalImages,
	}
	if s.Issues == nil {
		s.Issues = []ReportIssue{}
	}
	for i, e := range r.Errors {
		s.Errors[i] = e.Error()
	}
	for i, w := range r.Warnings {
		s.Warnings[i] = w.Error()
	}
	for k, v := range r.StageDurations {
		s.StageDurationsMS[string(k)] = v.Milliseconds()
	}
	for k, v := range r.StageErrorKinds {
		s.StageErrorKinds[string(k)] = string(v)
	}
	for k, v := range r.StageCounts {
		s.StageCounts[string(k)] = v
	}
	return s
}
