package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	From     string
	To       string
	Received string
	Sent     string
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Encrypt and store one message",
		Long: `Encrypt and store one message exchanged between two vessels.

Examples:
  vessellog save --from Kestrel --to Harbor --received "ETA 0400"
  vessellog save --from Harbor --to Kestrel --sent "Berth 3 ready"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "sender vessel (required)")
	_ = cmd.MarkFlagRequired("from")
	cmd.Flags().StringVar(&opts.To, "to", "", "recipient vessel (required)")
	_ = cmd.MarkFlagRequired("to")
	cmd.Flags().StringVar(&opts.Received, "received", "", "inbound message body")
	cmd.Flags().StringVar(&opts.Sent, "sent", "", "outbound message body")

	return cmd
}

func runSave(opts *SaveOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	sess, err := opts.openSession(ctx, cmd)
	if err != nil {
		out.Error(err)
		return err
	}
	defer sess.Close()

	if !sess.store.Save(ctx, opts.From, opts.To, opts.Received, opts.Sent) {
		err := NewExitError(ExitFailure, "message was not saved")
		out.Error(err)
		return err
	}

	return out.Success(map[string]bool{"saved": true}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Message saved from %s to %s\n", opts.From, opts.To)
		return err
	})
}
