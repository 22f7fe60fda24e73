// Package farm is the host runtime around render.Session.
//
// Runner claims a render slot, launches NatronRenderer through an Executor,
// feeds every output line to the session and persists status, progress and
// the final outcome in the job store. Slots are numbered per machine; each
// owns a temp directory under paths.temp_dir guarded by a file lock, so one
// slot never hosts two live tasks even across processes.
package farm
