// Package render drives one NatronRenderer task from executable lookup to
// exit code classification.
//
// A Session is the per-task execution context. The host calls its steps in
// a fixed order:
//
//	Initialize -> ResolveExecutable -> BuildArguments -> PreRender ->
//	MarkRunning -> HandleLine (per output line) -> PostRender -> CheckExitCode
//
// Steps called out of order return ErrOutOfOrder. Once a step fails the
// session is Failed and every later step except PostRender returns the same
// *TaskError, so cleanup always runs.
//
// Executable lookup is pluggable through Locator. ConfiguredLocator searches
// the semicolon separated lists in render.executables, with a minor to major
// version fallback and 32/64-bit preference on Windows. EnvironmentLocator
// joins the install location propagated into the job environment with a
// fixed relative path.
package render
