package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeySite       = "site"
	KeyTemplate   = "template"
	KeyStage      = "stage"
	KeyAsset      = "asset"
	KeyURL        = "url"
	KeyPath       = "path"
	KeyJobID      = "job_id"
	KeyJobStatus  = "job_status"
	KeyCommand    = "command"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyScheduleID = "schedule_id"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Site(domain string) slog.Attr    { return slog.String(KeySite, domain) }
func Template(id string) slog.Attr    { return slog.String(KeyTemplate, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Asset(ref string) slog.Attr      { return slog.String(KeyAsset, truncate(ref, 120)) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func JobID(id string) slog.Attr       { return slog.String(KeyJobID, id) }
func JobStatus(s string) slog.Attr    { return slog.String(KeyJobStatus, s) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func ScheduleID(id string) slog.Attr  { return slog.String(KeyScheduleID, id) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// truncate keeps inline data URIs from flooding log lines.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
