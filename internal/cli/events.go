package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"authorities/internal/eventlog"
	"authorities/internal/models"

	"github.com/spf13/cobra"
)

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	var query models.ListEventsQuery

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List the most recent contact events",
		Long: `List the most recent contact events, newest first.

Unlike the API this does not count against any caller's rate limit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(cmd.Context(), rootOpts, query, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&query.Limit, "limit", "n", models.DefaultListLimit, "maximum number of events (1-100)")
	cmd.Flags().StringVarP(&query.Target, "target", "t", "", "only show events for this target")

	return cmd
}

func runEvents(ctx context.Context, opts *RootOptions, query models.ListEventsQuery, w io.Writer) error {
	_, store, err := opts.open()
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := eventlog.New(store).ListRecent(ctx, query.Limit, query.Target)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	return opts.write(w, models.NewListEventsResponse(events), func(w io.Writer) error {
		if len(events) == 0 {
			_, err := fmt.Fprintln(w, "No contact events found.")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTARGET\tCREATED\tCALLER\tTITLE")
		for _, e := range events {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				e.ID, e.Target, e.CreatedAt.UTC().Format(time.RFC3339), e.CallerAddress, e.Title)
		}
		return tw.Flush()
	})
}
