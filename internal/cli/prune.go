package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

// PruneResult is the outcome of a prune run.
type PruneResult struct {
	Before  time.Time `json:"before"`
	Removed int64     `json:"removed"`
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete rate-limit records that fell out of the window",
		Long: `Delete rate-limit ledger records older than the configured window.

Records inside the window are kept, so running prune never changes an
admission decision. Use --older-than to keep a longer history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(cmd.Context(), rootOpts, olderThan, cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age of records to delete (default: the configured window)")

	return cmd
}

func runPrune(ctx context.Context, opts *RootOptions, olderThan time.Duration, w io.Writer) error {
	cfg, store, err := opts.open()
	if err != nil {
		return err
	}
	defer store.Close()

	if olderThan <= 0 {
		olderThan = cfg.RateLimit.Window
	}
	if olderThan < cfg.RateLimit.Window {
		return fmt.Errorf("--older-than %s is shorter than the rate limit window %s", olderThan, cfg.RateLimit.Window)
	}

	before := opts.now().Add(-olderThan)
	removed, err := store.PruneRateLimitRecords(ctx, before)
	if err != nil {
		return fmt.Errorf("failed to prune rate limit records: %w", err)
	}
	slog.Debug("Pruned rate limit ledger", "before", before, "removed", removed)

	result := PruneResult{Before: before.UTC(), Removed: removed}
	return opts.write(w, result, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Removed %d rate limit records older than %s\n", removed, result.Before.Format(time.RFC3339))
		return err
	})
}
