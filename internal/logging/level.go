package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelCritical sits above slog.LevelError so CRITICAL records can be told
// apart from plain errors. The error tier means >= slog.LevelError.
const LevelCritical = slog.LevelError + 4

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "critical", "fatal":
		return LevelCritical
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= LevelCritical:
		return "CRITICAL"
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARNING"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// paddedLevelLabel renders the label left-aligned in an 8-column field, the
// width used by the file and console line formats.
func paddedLevelLabel(level slog.Level) string {
	return fmt.Sprintf("%-8s", levelLabel(level))
}

func isErrorTier(level slog.Level) bool {
	return level >= slog.LevelError
}
