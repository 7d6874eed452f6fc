package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vessellog/models"
	"vessellog/storage"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Sender      string
	Recipient   string
	Limit       int
	OldestFirst bool
}

// ListResult is the JSON payload of the list command.
type ListResult struct {
	Messages []models.Message `json:"messages"`
	Skipped  []SkippedRow     `json:"skipped,omitempty"`
}

// SkippedRow reports a stored row that could not be decoded.
type SkippedRow struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List decrypted messages, newest first",
		Long: `List decrypted messages, newest first.

Examples:
  vessellog list
  vessellog list --sender Kestrel
  vessellog list --sender Kestrel --recipient Harbor --limit 20
  vessellog list --oldest-first --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Sender, "sender", "", "only messages from this vessel")
	cmd.Flags().StringVar(&opts.Recipient, "recipient", "", "only messages to this vessel")
	cmd.Flags().IntVar(&opts.Limit, "limit", storage.DefaultQueryLimit, "maximum number of messages (0 or negative for all)")
	cmd.Flags().BoolVar(&opts.OldestFirst, "oldest-first", false, "show the selected messages in ascending time order")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	sess, err := opts.openSession(ctx, cmd)
	if err != nil {
		out.Error(err)
		return err
	}
	defer sess.Close()

	limit := opts.Limit
	if limit == 0 {
		limit = -1
	}
	result, err := sess.store.Query(ctx, storage.QueryOptions{
		Sender:    strings.TrimSpace(opts.Sender),
		Recipient: strings.TrimSpace(opts.Recipient),
		Limit:     limit,
	})
	if err != nil {
		err = WrapExitError(ExitCommandError, "message store unavailable", err)
		out.Error(err)
		return err
	}

	records := result.Records
	if opts.OldestFirst {
		records = slices.Clone(records)
		slices.Reverse(records)
	}

	list := ListResult{Messages: make([]models.Message, 0, len(records))}
	for _, r := range records {
		list.Messages = append(list.Messages, models.NewMessage(r.ID, r.Sender, r.Recipient, r.MessageReceived, r.MessageSent, r.Timestamp))
	}
	for _, fault := range result.Skipped {
		list.Skipped = append(list.Skipped, SkippedRow{ID: fault.ID, Error: fault.Err.Error()})
	}

	return out.Success(list, func(w io.Writer) error {
		return renderMessages(w, opts, list)
	})
}

func renderMessages(w io.Writer, opts *ListOptions, list ListResult) error {
	if len(list.Messages) == 0 && len(list.Skipped) == 0 {
		_, err := fmt.Fprintln(w, "No messages found.")
		return err
	}

	fmt.Fprintf(w, "Found %d message(s)\n", len(list.Messages))
	if opts.Sender != "" {
		fmt.Fprintf(w, "Filtered by sender vessel: %s\n", opts.Sender)
	}
	if opts.Recipient != "" {
		fmt.Fprintf(w, "Filtered by recipient vessel: %s\n", opts.Recipient)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tHEADER\tRECEIVED\tSENT\tTIMESTAMP")
	for _, m := range list.Messages {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", m.ID, m.Header, oneLine(m.MessageReceived), oneLine(m.MessageSent), m.FormattedTime)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, row := range list.Skipped {
		fmt.Fprintf(w, "warning: skipped unreadable row %d: %s\n", row.ID, row.Error)
	}
	return nil
}

// oneLine keeps multi-line bodies from breaking table rows.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
