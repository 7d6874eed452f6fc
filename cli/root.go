package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"vessellog/storage"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DataDir string
	Format  string // "json" | "text"
	Verbose bool
	// MetricsFile receives store metrics in the Prometheus text format
	// when the command finishes.
	MetricsFile string

	storeOptions []storage.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the vessellog CLI.
//
// storeOpts are appended to the options every command opens the store with.
func NewRootCommand(storeOpts ...storage.Option) *cobra.Command {
	opts := &RootOptions{storeOptions: storeOpts}

	cmd := &cobra.Command{
		Use:   "vessellog",
		Short: "Encrypted vessel message log",
		Long: `Inspect and maintain the encrypted vessel message store.

Message bodies are encrypted at rest with the configured master key.
Listings are decrypted on the fly; unreadable fields are shown as
"[Decryption Failed]" and missing ones as "[No Message Received]" or
"[No Message Sent]".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "data directory (default $VESSELLOG_DATA_DIR or the per-user data dir)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on stderr")
	cmd.PersistentFlags().StringVar(&opts.MetricsFile, "metrics-file", "", "write store metrics to this file for a textfile collector")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewSendersCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewHealthCommand(opts))
	cmd.AddCommand(NewKeygenCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
