package cli

import (
	"context"
	"fmt"
	"io"

	"authorities/internal/ratelimit"

	"github.com/spf13/cobra"
)

// StatusResult reports one caller's quota.
type StatusResult struct {
	CallerAddress string `json:"callerAddress"`
	Count         int    `json:"count"`
	Limit         int    `json:"limit"`
	Remaining     int    `json:"remaining"`
	WindowSeconds int    `json:"windowSeconds"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <caller-address>",
		Short: "Show the rate limit status of a caller address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), rootOpts, args[0], cmd.OutOrStdout())
		},
	}
}

func runStatus(ctx context.Context, opts *RootOptions, callerAddress string, w io.Writer) error {
	cfg, store, err := opts.open()
	if err != nil {
		return err
	}
	defer store.Close()

	limiter, err := ratelimit.NewLimiter(store, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	if err != nil {
		return err
	}
	status, err := limiter.Status(ctx, callerAddress, opts.now())
	if err != nil {
		return err
	}

	result := StatusResult{
		CallerAddress: callerAddress,
		Count:         status.Count,
		Limit:         status.Limit,
		Remaining:     status.Remaining,
		WindowSeconds: int(status.Window.Seconds()),
	}
	return opts.write(w, result, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s: %d/%d requests in the last %s, %d remaining\n",
			callerAddress, status.Count, status.Limit, ratelimit.DescribeWindow(status.Window), status.Remaining)
		return err
	})
}
