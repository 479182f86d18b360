// Package cli implements contactctl, the operator tool for the contact
// service. It works directly against the configured record store and never
// charges the rate limit.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"authorities/internal/config"
	"authorities/internal/models"
	"authorities/internal/storage"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"

	now       func() time.Time
	openStore func(models.StorageConfig) (storage.Storage, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for contactctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{
		now:       time.Now,
		openStore: storage.NewFactory().Create,
	})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contactctl",
		Short: "Operate the contact-authorities service",
		Long: `Operator tool for the contact-authorities service.

Reads the same configuration file and CONTACT_* environment variables as the
server and talks to the record store directly.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewPruneCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewExampleConfigCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// loadConfig loads and validates the configuration named by --config.
func (o *RootOptions) loadConfig() (*models.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// open loads the configuration and opens its record store. The caller closes
// the returned store.
func (o *RootOptions) open() (*models.Config, storage.Storage, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := o.openStore(cfg.Storage)
	if err != nil {
		supported := strings.Join(storage.NewFactory().GetSupportedProviders(), ", ")
		return nil, nil, fmt.Errorf("failed to open %s storage (supported: %s): %w", cfg.Storage.Type, supported, err)
	}
	return cfg, store, nil
}

// write renders data as indented JSON, or calls text for the text format.
func (o *RootOptions) write(w io.Writer, data any, text func(io.Writer) error) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	return text(w)
}
