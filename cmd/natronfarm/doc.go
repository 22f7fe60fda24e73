// Command natronfarm submits Natron render jobs to the local job database and
// renders their frame-range tasks on this machine.
//
// Submission captures the tool environment of the submitting shell (see
// internal/propagator). Rendering drives one NatronRenderer process per task
// through the render task state machine (see internal/render and
// internal/farm), recording progress and exit status in the job database.
package main
