package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"logkit/internal/config"
	"logkit/internal/logging"
)

func newPruneCommand(configFlag *string) *cobra.Command {
	var retentionDays int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove rotated log files beyond the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			retention := retentionDays
			if retention <= 0 {
				retention = cfg.Logging.RetentionDays
			}

			// One pruner at a time per log directory; a running service may
			// prune on rotation as well.
			lock := flock.New(filepath.Join(cfg.Logging.Dir, ".prune.lock"))
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire prune lock: %w", err)
			}
			if !ok {
				return errors.New("another prune is already running for this log directory")
			}
			defer func() { _ = lock.Unlock() }()

			removed := logging.PruneOldLogs(retention, logging.RetentionTarget{
				Dir:     cfg.Logging.Dir,
				Pattern: "*.log",
			})

			out := cmd.OutOrStdout()
			if len(removed) == 0 {
				fmt.Fprintf(out, "Nothing to prune in %s\n", cfg.Logging.Dir)
				return nil
			}
			for _, path := range removed {
				fmt.Fprintf(out, "Removed %s\n", path)
			}
			fmt.Fprintf(out, "Pruned %d file(s) older than %d day(s)\n", len(removed), retention)
			return nil
		},
	}

	cmd.Flags().IntVar(&retentionDays, "days", 0, "Override the configured retention window")
	return cmd
}
