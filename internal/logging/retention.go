package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const dailyLayout = "2006-01-02"

// PruneDailyLogs removes daily log files in dir older than retentionDays and
// returns how many were removed. A file's day comes from its name; files
// whose name carries no date fall back to their modification time. Today's
// file is always kept. retentionDays <= 0 disables pruning.
func PruneDailyLogs(logger *slog.Logger, dir string, retentionDays int, now time.Time) int {
	dir = strings.TrimSpace(dir)
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	matches, err := filepath.Glob(filepath.Join(dir, LogFilePattern))
	if err != nil {
		return 0
	}
	today := DailyLogPath(dir, now)
	cutoff := now.AddDate(0, 0, -retentionDays)

	removed := 0
	for _, path := range matches {
		if path == today {
			continue
		}
		day, ok := logDay(path)
		if !ok {
			continue
		}
		if !day.Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check permissions on paths.log_dir"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("log pruned", String("path", path), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}

// logDay reads the day out of a vidseg-YYYY-MM-DD.log name, or stats the
// file when the name does not carry one.
func logDay(path string) (time.Time, bool) {
	name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "vidseg-"), ".log")
	if day, err := time.ParseInLocation(dailyLayout, name, time.Local); err == nil {
		// a day ends at the following midnight
		return day.AddDate(0, 0, 1), true
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
