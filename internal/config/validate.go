package config

import (
	"fmt"
	"strings"
)

var knownLevels = map[string]struct{}{
	"DEBUG":    {},
	"INFO":     {},
	"WARNING":  {},
	"ERROR":    {},
	"CRITICAL": {},
}

var knownServices = map[string]struct{}{
	"api":       {},
	"app":       {},
	"scheduler": {},
	"worker":    {},
}

// Validate checks the configuration for values the logging manager would
// reject or silently coerce.
func (c *Config) Validate() error {
	var problems []string

	if _, ok := knownLevels[c.Logging.Level]; !ok {
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of DEBUG, INFO, WARNING, ERROR, CRITICAL", c.Logging.Level))
	}
	if _, ok := knownServices[c.Logging.Service]; !ok {
		problems = append(problems, fmt.Sprintf("logging.service %q is not one of api, scheduler, worker", c.Logging.Service))
	}
	if err := validateRotateAt(c.Logging.RotateAt); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Logging.MaxSizeMB < 0 {
		problems = append(problems, "logging.max_size_mb must not be negative")
	}
	if c.Archive.Enabled && strings.TrimSpace(c.Archive.Path) == "" {
		problems = append(problems, "archive.path is required when archive.enabled is true")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func validateRotateAt(value string) error {
	var hour, minute int
	if _, err := fmt.Sscanf(value, "%d:%d", &hour, &minute); err != nil {
		return fmt.Errorf("logging.rotate_at %q must be HH:MM", value)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("logging.rotate_at %q is out of range", value)
	}
	return nil
}
