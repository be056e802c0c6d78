package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Prune deletes alerts older than the retention window.
func (a *App) Prune(ctx context.Context, opts PruneOptions) error {
	if opts.OlderThan <= 0 {
		return errors.New("--older-than must be positive")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot prune")
	}
	if closeStore != nil {
		defer closeStore()
	}

	cutoff := time.Now().UTC().Add(-opts.OlderThan)
	if opts.DryRun {
		total, err := store.CountAlerts(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "dry run: would delete alerts fired before %s (%d stored in total)\n", cutoff.Format(time.RFC3339), total)
		return nil
	}

	deleted, err := store.DeleteAlertsBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	a.Logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("alerts pruned")
	fmt.Fprintf(os.Stdout, "deleted %d alert(s) fired before %s\n", deleted, cutoff.Format(time.RFC3339))
	return nil
}
