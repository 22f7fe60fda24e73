// Package pathmap rewrites file system prefixes between the machine that
// submitted a job and the machine rendering it.
//
// Rules come from the ordered [[path_mapping]] config section. MapPath
// rewrites a single path using the first matching rule; MapFile rewrites
// every occurrence inside a project file while copying it; Normalize fixes
// separators for the target operating system.
package pathmap
