package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/chitchat/internal/ir"
	"github.com/roach88/chitchat/internal/notify"
	"github.com/roach88/chitchat/internal/store"
)

// DefaultFollowInterval is how often --follow polls the database for
// events committed by other processes.
const DefaultFollowInterval = 500 * time.Millisecond

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Conversation string
	After        int64
	Limit        int
	Follow       bool
	Interval     time.Duration
}

// EventsResult lists committed change events.
type EventsResult struct {
	Events  []ir.ChangeEvent `json:"events"`
	LastSeq int64            `json:"last_seq"`
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the change-event stream",
		Long: `Print committed change events in seq order.

--conversation accepts a conversation key or an identity pair "0xa,0xb".
With --follow the command keeps running and prints new events as other
processes commit them, one JSON object per line in json format.

Examples:
  chitchat events
  chitchat events --after 120 --limit 20
  chitchat events --conversation 0x...a1,0x...b2 --follow`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Conversation, "conversation", "", "restrict to one conversation (key or \"a,b\" pair)")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only events with seq greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 = no limit; ignored with --follow)")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "keep streaming new events")
	cmd.Flags().DurationVar(&opts.Interval, "interval", DefaultFollowInterval, "poll interval for --follow")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	var key *ir.ConversationKey
	if opts.Conversation != "" {
		k, err := ir.ResolveConversation(opts.Conversation)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --conversation", err)
		}
		key = &k
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	f := newFormatter(opts.RootOptions, cmd)

	if !opts.Follow {
		events, err := s.ledger.Events(ctx, store.EventFilter{Key: key, AfterSeq: opts.After, Limit: opts.Limit})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read events", err)
		}
		lastSeq, err := s.store.LastSeq(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read events", err)
		}

		res := EventsResult{Events: events, LastSeq: lastSeq}
		return f.Result(res, func(w io.Writer) {
			if len(events) == 0 {
				fmt.Fprintln(w, "No events found.")
				return
			}
			for _, e := range events {
				writeEventText(w, e)
			}
		})
	}

	// Record the head before subscribing; Follow then publishes only what
	// the subscription's history replay could not have seen.
	if _, err := s.ledger.Sync(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}
	sub, err := s.ledger.Subscribe(ctx, notify.Filter{Key: key, AfterSeq: opts.After})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to subscribe", err)
	}
	defer sub.Close()

	followErr := make(chan error, 1)
	go func() { followErr <- s.ledger.Follow(ctx, opts.Interval) }()

	enc := json.NewEncoder(f.Writer)
	for {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if f.JSON() {
				if err := enc.Encode(e); err != nil {
					return WrapExitError(ExitCommandError, "failed to write event", err)
				}
				continue
			}
			writeEventText(f.Writer, e)
		case err := <-followErr:
			if err != nil {
				return WrapExitError(ExitCommandError, "follow failed", err)
			}
			return nil
		}
	}
}

func writeEventText(w io.Writer, e ir.ChangeEvent) {
	fmt.Fprintf(w, "%6d  %-7s %s #%d", e.Seq, e.Kind, e.Key, e.Index)
	switch {
	case e.Sent != nil:
		fmt.Fprintf(w, "  %s -> %s  %q", e.Sent.From, e.Sent.To, e.Sent.Content)
	case e.Edited != nil:
		fmt.Fprintf(w, "  %q", e.Edited.NewContent)
	}
	fmt.Fprintln(w)
}
