// Package services defines shared utilities consumed by the render driver, the
// farm runner and the submission propagator.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, task indexes, render slots, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent task statuses (failed vs review).
package services
