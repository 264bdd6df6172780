// Package logs reads vidseg log events for `vidseg logs`.
//
// Events come from a running server's /v1/logs endpoint when one answers,
// and otherwise from the daily JSON log file, tailed with bounded memory.
// Both sources yield logging.LogEvent values so the CLI renders them the
// same way. Follow mode polls until the caller's context ends.
package logs
