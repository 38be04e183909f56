package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/chitchat/internal/ir"
	"github.com/roach88/chitchat/internal/ledger"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Conversation string // optional - one conversation only
}

// ReplayResult holds the replay result.
type ReplayResult struct {
	ledger.VerifyReport
	Conversation string `json:"conversation,omitempty"`
	Verified     bool   `json:"verified"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the change-event stream and verify it",
		Long: `Replay the change-event stream into a fresh in-memory replica,
recomputing every digest and chain link, and compare the replica with the
stored conversations.

Exit codes:
  0 - The stream replays to the stored state
  1 - Verification failed (broken chain, digest mismatch, divergent state)
  2 - Command error (database not found, etc.)

Examples:
  chitchat replay
  chitchat replay --conversation 0x...a1,0x...b2
  chitchat replay --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Conversation, "conversation", "", "replay one conversation only (key or \"a,b\" pair)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
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

	report, err := s.ledger.Verify(cmd.Context(), key)
	if err != nil {
		return WrapExitError(ExitFailure, "replay verification failed", err)
	}

	result := ReplayResult{VerifyReport: report, Verified: true}
	if key != nil {
		result.Conversation = key.String()
	}

	f := newFormatter(opts.RootOptions, cmd)
	f.VerboseLog("replayed %d events up to seq %d", report.Events, report.LastSeq)
	return f.Result(result, func(w io.Writer) {
		outputReplayText(w, result)
	})
}

func outputReplayText(w io.Writer, result ReplayResult) {
	if result.Events == 0 {
		fmt.Fprintln(w, "No events found in database.")
		return
	}
	fmt.Fprintf(w, "Replayed %d events across %d conversations (last seq %d)\n",
		result.Events, result.Conversations, result.LastSeq)
	fmt.Fprintln(w, "Stream verified: digests, chain links and stored state agree.")
	if result.Head != "" {
		fmt.Fprintf(w, "Head: %s\n", result.Head)
	}
}
