// Package config loads, normalizes, and validates natronfarm configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ECO_ENV for the tool definition directory. The Config type centralizes the
// render driver knobs (executable lists per renderer version, error policy,
// tolerated exit codes, path mapping) so the CLI and the farm runner agree on
// one sanitized view.
package config
