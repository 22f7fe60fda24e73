// Package preflight provides readiness checks for the renderer executables
// and filesystem paths natronfarm depends on.
//
// The "natronfarm check" command prints every result; "natronfarm render"
// runs RunAll first and refuses to claim a slot when a directory check fails.
package preflight
