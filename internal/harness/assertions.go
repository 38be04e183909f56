package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/chitchat/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the committed stream to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Events   []ir.ChangeEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nCommitted events:\n")
		for _, ev := range e.Events {
			fmt.Fprintf(&buf, "  [%d] %s %s#%d\n", ev.Seq, ev.Kind, shortKey(ev.Key), ev.Index)
		}
	}

	return buf.String()
}

func shortKey(k ir.ConversationKey) string {
	return k.String()[:10]
}

// EvaluateAssertions evaluates all assertions against the ledger state and
// the committed events in result. Returns one message per failed assertion.
func EvaluateAssertions(ctx context.Context, h *Harness, result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := h.evaluate(ctx, result.Events, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func (h *Harness) evaluate(ctx context.Context, events []ir.ChangeEvent, a Assertion) error {
	switch a.Type {
	case AssertLength:
		return h.assertLength(ctx, a)
	case AssertMessage:
		return h.assertMessage(ctx, a)
	case AssertEventCount:
		return h.assertEventCount(events, a)
	case AssertEventOrder:
		return h.assertEventOrder(events, a)
	case AssertCapability:
		return h.assertCapability(ctx, a)
	case AssertReplay:
		if _, err := h.ledger.Verify(ctx, nil); err != nil {
			return &AssertionError{
				Type:     AssertReplay,
				Expected: "event stream folds to stored state",
				Actual:   err.Error(),
				Events:   events,
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func (h *Harness) pair(p []string) (ir.Identity, ir.Identity, error) {
	a, err := h.identity(p[0])
	if err != nil {
		return a, a, err
	}
	b, err := h.identity(p[1])
	return a, b, err
}

func (h *Harness) assertLength(ctx context.Context, a Assertion) error {
	u1, u2, err := h.pair(a.Pair)
	if err != nil {
		return err
	}
	n, err := h.ledger.ConversationLength(ctx, u1, u2)
	if err != nil {
		return err
	}
	if n != int64(*a.Count) {
		return &AssertionError{
			Type:     AssertLength,
			Expected: fmt.Sprintf("length(%s) = %d", strings.Join(a.Pair, ","), *a.Count),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

func (h *Harness) assertMessage(ctx context.Context, a Assertion) error {
	u1, u2, err := h.pair(a.Pair)
	if err != nil {
		return err
	}
	msg, err := h.ledger.Message(ctx, u1, u2, *a.Index)
	if err != nil {
		return &AssertionError{
			Type:     AssertMessage,
			Expected: fmt.Sprintf("message %d in %s", *a.Index, strings.Join(a.Pair, ",")),
			Actual:   err.Error(),
		}
	}

	var diffs []string
	if a.Content != nil && msg.Content() != *a.Content {
		diffs = append(diffs, fmt.Sprintf("content %q, want %q", msg.Content(), *a.Content))
	}
	if a.Deleted != nil && msg.IsDeleted() != *a.Deleted {
		diffs = append(diffs, fmt.Sprintf("deleted %v, want %v", msg.IsDeleted(), *a.Deleted))
	}
	if a.Sender != "" {
		want, err := h.identity(a.Sender)
		if err != nil {
			return err
		}
		if msg.Sender != want {
			diffs = append(diffs, fmt.Sprintf("sender %s, want %s", msg.Sender, want))
		}
	}
	if len(diffs) > 0 {
		return &AssertionError{
			Type:     AssertMessage,
			Expected: fmt.Sprintf("message %d in %s", *a.Index, strings.Join(a.Pair, ",")),
			Actual:   strings.Join(diffs, "; "),
		}
	}
	return nil
}

// filterEvents applies the optional pair filter.
func (h *Harness) filterEvents(events []ir.ChangeEvent, pair []string) ([]ir.ChangeEvent, error) {
	if pair == nil {
		return events, nil
	}
	u1, u2, err := h.pair(pair)
	if err != nil {
		return nil, err
	}
	key, err := ir.DeriveConversationKey(u1, u2)
	if err != nil {
		return nil, err
	}
	var out []ir.ChangeEvent
	for _, e := range events {
		if e.Key == key {
			out = append(out, e)
		}
	}
	return out, nil
}

func (h *Harness) assertEventCount(events []ir.ChangeEvent, a Assertion) error {
	filtered, err := h.filterEvents(events, a.Pair)
	if err != nil {
		return err
	}
	count := 0
	for _, e := range filtered {
		if a.Kind == "" || string(e.Kind) == a.Kind {
			count++
		}
	}
	if count != *a.Count {
		what := "events"
		if a.Kind != "" {
			what = a.Kind + " events"
		}
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s", *a.Count, what),
			Actual:   fmt.Sprintf("%d", count),
			Events:   events,
		}
	}
	return nil
}

func (h *Harness) assertEventOrder(events []ir.ChangeEvent, a Assertion) error {
	filtered, err := h.filterEvents(events, a.Pair)
	if err != nil {
		return err
	}
	kinds := make([]string, len(filtered))
	for i, e := range filtered {
		kinds[i] = string(e.Kind)
	}
	if strings.Join(kinds, ",") != strings.Join(a.Kinds, ",") {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: fmt.Sprintf("%v", a.Kinds),
			Actual:   fmt.Sprintf("%v", kinds),
			Events:   events,
		}
	}
	return nil
}

func (h *Harness) assertCapability(ctx context.Context, a Assertion) error {
	id, err := h.identity(a.Identity)
	if err != nil {
		return err
	}
	held, err := h.ledger.HasCapability(ctx, ir.Capability(a.Capability), id)
	if err != nil {
		return err
	}
	if held != *a.Held {
		return &AssertionError{
			Type:     AssertCapability,
			Expected: fmt.Sprintf("%s holds %s = %v", a.Identity, a.Capability, *a.Held),
			Actual:   fmt.Sprintf("%v", held),
		}
	}
	return nil
}
