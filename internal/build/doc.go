// Package build assembles the project's tasks from configuration.
//
// It defines the built-in pipelines (resources, html, scripts, styles,
// images, sprites) for each Mode, the development and production sequences
// run by the scheduler, and the watch bindings that rerun a single task when
// its sources change. Every path produced by a full sequence is claimed in one
// shared ledger, so two pipelines can never write the same output file.
package build
