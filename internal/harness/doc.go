// Package harness runs YAML scenarios against the scheduler and cell graph.
//
// A scenario declares elements with cells, links between cells, optionally
// a small reference network, and a list of actions (inject, drain, connect,
// disconnect, set_weight, teardown, input). Each action may carry an expect
// clause checked right after it runs. Every run uses a fixed session id and
// fresh clocks, so the recorded trace is byte-identical across runs and can
// be compared against golden files:
//
//	go test ./internal/harness -update
//
// regenerates testdata/golden.
package harness
