// Package jobs stores render job records and per-task state in SQLite.
//
// A job carries the renderer plugin settings chosen at submission and an
// environment mapping that the submission propagator appends to. Tasks are
// frame chunks of a job; the farm runner moves them through queued, running
// and a terminal status while recording progress, the renderer exit code and
// any failure reason. The store only records state; deciding which task runs
// where is left to whoever invokes `natronfarm render`.
package jobs
