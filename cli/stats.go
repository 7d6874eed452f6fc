package cli

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vessellog/models"
)

// StatsResult is the JSON payload of the stats command.
type StatsResult struct {
	TotalMessages int64            `json:"total_messages"`
	SenderCounts  map[string]int64 `json:"sender_counts"`
	FirstMessage  *string          `json:"first_message"`
	LastMessage   *string          `json:"last_message"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show message counts and date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, cmd)
		},
	}
}

func runStats(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	sess, err := opts.openSession(ctx, cmd)
	if err != nil {
		out.Error(err)
		return err
	}
	defer sess.Close()

	stats, err := sess.store.Stats(ctx)
	if err != nil {
		err = WrapExitError(ExitCommandError, "statistics unavailable", err)
		out.Error(err)
		return err
	}

	result := StatsResult{
		TotalMessages: stats.TotalCount,
		SenderCounts:  stats.PerSender,
	}
	if stats.Earliest != nil {
		first := stats.Earliest.Format(models.DisplayTimeLayout)
		result.FirstMessage = &first
	}
	if stats.Latest != nil {
		last := stats.Latest.Format(models.DisplayTimeLayout)
		result.LastMessage = &last
	}

	return out.Success(result, func(w io.Writer) error {
		return renderStats(w, result)
	})
}

func renderStats(w io.Writer, result StatsResult) error {
	orNone := func(s *string) string {
		if s == nil {
			return "-"
		}
		return *s
	}

	fmt.Fprintf(w, "Total messages: %d\n", result.TotalMessages)
	fmt.Fprintf(w, "First message:  %s\n", orNone(result.FirstMessage))
	fmt.Fprintf(w, "Last message:   %s\n", orNone(result.LastMessage))
	if len(result.SenderCounts) == 0 {
		return nil
	}
	fmt.Fprintln(w)

	senders := make([]string, 0, len(result.SenderCounts))
	for sender := range result.SenderCounts {
		senders = append(senders, sender)
	}
	slices.Sort(senders)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SENDER\tCOUNT")
	for _, sender := range senders {
		fmt.Fprintf(tw, "%s\t%d\n", sender, result.SenderCounts[sender])
	}
	return tw.Flush()
}

// NewSendersCommand creates the senders command.
func NewSendersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "senders",
		Short: "List every vessel that has sent a message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSenders(rootOpts, cmd)
		},
	}
}

func runSenders(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	sess, err := opts.openSession(ctx, cmd)
	if err != nil {
		out.Error(err)
		return err
	}
	defer sess.Close()

	senders, err := sess.store.DistinctSenders(ctx)
	if err != nil {
		err = WrapExitError(ExitCommandError, "message store unavailable", err)
		out.Error(err)
		return err
	}

	return out.Success(senders, func(w io.Writer) error {
		for _, sender := range senders {
			if _, err := fmt.Fprintln(w, sender); err != nil {
				return err
			}
		}
		return nil
	})
}
