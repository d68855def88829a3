// Package metrics provides build observability for sitebuilder.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so instrumentation calls never need nil checks:
//
//	coord := pipeline.NewCoordinator(cfg, pipeline.WithRecorder(metrics.NoopRecorder{}))
//
// When metrics.enabled is set the daemon swaps in a PrometheusRecorder bound to
// a registry created by NewRegistry and exposes it through HTTPHandler on the
// configured metrics path.
package metrics
