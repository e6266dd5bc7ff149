// Package metrics provides the build and dev-server metrics hooks.
//
// Components depend on the Recorder interface and default to NoopRecorder,
// so metrics collection never needs a nil check. When metrics are enabled
// the CLI swaps in a PrometheusRecorder and exposes it through HTTPHandler:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	sched := scheduler.New(logger, scheduler.WithRecorder(rec))
//	mux.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
