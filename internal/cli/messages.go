package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/chitchat/internal/ir"
)

// SendResult reports an appended message.
type SendResult struct {
	Key   ir.ConversationKey `json:"key"`
	Index int64              `json:"index"`
}

// ModifyResult reports an edited or deleted message.
type ModifyResult struct {
	Key    ir.ConversationKey `json:"key"`
	Index  int64              `json:"index"`
	Action string             `json:"action"`
}

// LengthResult reports the length of a conversation.
type LengthResult struct {
	Key    ir.ConversationKey `json:"key"`
	Length int64              `json:"length"`
}

// ConversationResult lists a conversation's messages.
type ConversationResult struct {
	Key      ir.ConversationKey `json:"key"`
	Messages []ir.MessageView   `json:"messages"`
}

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <recipient> <content>",
		Short: "Send a message to another identity",
		Long: `Append a message from the caller to the conversation with recipient and
print its index.

Exit codes:
  0 - Message appended
  1 - Rejected (INVALID_IDENTITY, SELF_CONVERSATION, EMPTY_CONTENT, INVALID_CONTENT)
  2 - Command error

Examples:
  chitchat send 0x00000000000000000000000000000000000000b2 "hello"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := parseIdentityArg("recipient", args[0])
			if err != nil {
				return err
			}

			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			caller, err := s.caller()
			if err != nil {
				return err
			}

			index, err := s.ledger.Send(cmd.Context(), caller, recipient, args[1])
			if err != nil {
				return err
			}

			res := SendResult{Key: ir.MustDeriveConversationKey(caller, recipient), Index: index}
			return newFormatter(rootOpts, cmd).Result(res, func(w io.Writer) {
				fmt.Fprintf(w, "sent #%d in %s\n", res.Index, res.Key)
			})
		},
	}
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <peer> <index> <content>",
		Short: "Replace the content of a message you sent",
		Long: `Edit message index in the conversation between the caller and peer.
Only the original sender may edit, and deleted messages stay deleted.

Exit codes:
  0 - Message edited
  1 - Rejected (EMPTY_CONTENT, INDEX_OUT_OF_BOUNDS, NOT_SENDER, ALREADY_DELETED, ...)
  2 - Command error`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModify(rootOpts, cmd, "edited", args[0], args[1], func(s *session, caller, peer ir.Identity, index int64) error {
				return s.ledger.Edit(cmd.Context(), caller, caller, peer, index, args[2])
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <peer> <index>",
		Short: "Soft-delete a message you sent",
		Long: `Delete message index in the conversation between the caller and peer.
The slot remains and the conversation length does not change.

Exit codes:
  0 - Message deleted
  1 - Rejected (INDEX_OUT_OF_BOUNDS, NOT_SENDER, ALREADY_DELETED, ...)
  2 - Command error`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModify(rootOpts, cmd, "deleted", args[0], args[1], func(s *session, caller, peer ir.Identity, index int64) error {
				return s.ledger.Delete(cmd.Context(), caller, caller, peer, index)
			})
		},
	}
}

func runModify(rootOpts *RootOptions, cmd *cobra.Command, action, peerArg, indexArg string,
	apply func(s *session, caller, peer ir.Identity, index int64) error) error {
	peer, err := parseIdentityArg("peer", peerArg)
	if err != nil {
		return err
	}
	index, err := strconv.ParseInt(indexArg, 10, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid index", err)
	}

	s, err := openSession(rootOpts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	caller, err := s.caller()
	if err != nil {
		return err
	}
	if err := apply(s, caller, peer, index); err != nil {
		return err
	}

	res := ModifyResult{Key: ir.MustDeriveConversationKey(caller, peer), Index: index, Action: action}
	return newFormatter(rootOpts, cmd).Result(res, func(w io.Writer) {
		fmt.Fprintf(w, "%s #%d in %s\n", res.Action, res.Index, res.Key)
	})
}

// NewLengthCommand creates the length command.
func NewLengthCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "length <user1> <user2>",
		Short: "Print the number of messages between two identities",
		Long: `Print how many messages were ever sent between user1 and user2,
deleted ones included. Argument order does not matter.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u1, u2, err := parsePairArgs(args)
			if err != nil {
				return err
			}

			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.ledger.ConversationLength(cmd.Context(), u1, u2)
			if err != nil {
				return err
			}

			res := LengthResult{Key: ir.MustDeriveConversationKey(u1, u2), Length: n}
			return newFormatter(rootOpts, cmd).Result(res, func(w io.Writer) {
				fmt.Fprintln(w, res.Length)
			})
		},
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user1> <user2>",
		Short: "Print every message between two identities",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u1, u2, err := parsePairArgs(args)
			if err != nil {
				return err
			}

			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			msgs, err := s.ledger.Conversation(cmd.Context(), u1, u2)
			if err != nil {
				return err
			}

			res := ConversationResult{
				Key:      ir.MustDeriveConversationKey(u1, u2),
				Messages: make([]ir.MessageView, len(msgs)),
			}
			for i, m := range msgs {
				res.Messages[i] = m.View(int64(i))
			}
			return newFormatter(rootOpts, cmd).Result(res, func(w io.Writer) {
				writeConversationText(w, res)
			})
		},
	}
}

func writeConversationText(w io.Writer, res ConversationResult) {
	fmt.Fprintf(w, "Conversation %s (%d messages)\n", res.Key, len(res.Messages))
	for _, m := range res.Messages {
		if m.Deleted {
			fmt.Fprintf(w, "  [%d] %s -> %s  (deleted)\n", m.Index, m.Sender, m.Recipient)
			continue
		}
		fmt.Fprintf(w, "  [%d] %s -> %s  %s\n", m.Index, m.Sender, m.Recipient, m.Content)
	}
}

func parsePairArgs(args []string) (ir.Identity, ir.Identity, error) {
	u1, err := parseIdentityArg("user1", args[0])
	if err != nil {
		return u1, u1, err
	}
	u2, err := parseIdentityArg("user2", args[1])
	if err != nil {
		return u1, u2, err
	}
	return u1, u2, nil
}
