// Package logs reads the natronfarm log file for the `logs` command.
//
// Tail returns the last N lines (optionally only those mentioning a job or
// task) together with the byte offset reached, so callers can poll from that
// offset to follow new output without rereading the file.
package logs
