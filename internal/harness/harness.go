package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/roach88/chitchat/internal/ir"
	"github.com/roach88/chitchat/internal/ledger"
	"github.com/roach88/chitchat/internal/store"
	"github.com/roach88/chitchat/internal/testutil"
)

// nullAlias names the null identity in scenario arguments.
const nullAlias = "null"

// OutcomeOK is the trace outcome of a successful step.
const OutcomeOK = "ok"

// Harness executes one scenario against a ledger.
type Harness struct {
	ledger     *ledger.Ledger
	identities map[string]ir.Identity
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a step clock and
// sequential request ids, so runs are reproducible. A non-nil error means
// the scenario could not be executed at all (bad alias, failing setup,
// storage failure); expectation and assertion failures are reported in
// Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	l := ledger.New(st,
		ledger.WithClock(testutil.NewStepClock(testutil.DefaultStart, 0)),
		ledger.WithRequestIDs(testutil.NewSequentialIDs("")),
	)
	defer l.Close()

	h := &Harness{ledger: l, identities: make(map[string]ir.Identity)}
	for alias, addr := range scenario.Identities {
		id, err := ir.ParseIdentity(addr)
		if err != nil {
			return nil, fmt.Errorf("identity %s: %w", alias, err)
		}
		h.identities[alias] = id
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Setup {
		if _, err := h.execute(ctx, step); err != nil {
			return nil, fmt.Errorf("setup step %d (%s): %w", i, step.Op, err)
		}
	}

	for i, step := range scenario.Flow {
		if err := h.runFlowStep(ctx, i, step, result); err != nil {
			return nil, err
		}
	}

	events, err := l.Events(ctx, store.EventFilter{})
	if err != nil {
		return nil, err
	}
	result.Events = events

	for _, msg := range EvaluateAssertions(ctx, h, result, scenario.Assertions) {
		result.AddError(msg)
	}

	slog.Debug("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"events", len(result.Events),
	)
	return result, nil
}

func (h *Harness) runFlowStep(ctx context.Context, i int, step Step, result *Result) error {
	caller, err := h.identity(step.Caller)
	if err != nil {
		return fmt.Errorf("flow step %d: caller: %w", i, err)
	}

	value, err := h.execute(ctx, step)
	trace := TraceStep{Step: i, Op: step.Op, Caller: caller.String(), Outcome: OutcomeOK, Result: value}

	if err != nil {
		e, ok := ir.AsError(err)
		if !ok {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Op, err)
		}
		trace.Outcome = string(e.Code)
		trace.Result = nil
	}
	result.AddStep(trace)

	switch {
	case step.Expect == nil || step.Expect.Error == "":
		if trace.Outcome != OutcomeOK {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected success, got %s", i, step.Op, trace.Outcome))
			return nil
		}
		if step.Expect != nil && step.Expect.Result != nil && !resultEqual(step.Expect.Result, value) {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected result %v, got %v", i, step.Op, step.Expect.Result, value))
		}
	default:
		if trace.Outcome != step.Expect.Error {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected %s, got %s", i, step.Op, step.Expect.Error, trace.Outcome))
		}
	}
	return nil
}

// execute runs one step and returns its result value, if the operation
// has one. Argument errors are returned as plain errors, rejections as
// *ir.Error.
func (h *Harness) execute(ctx context.Context, step Step) (any, error) {
	caller, err := h.identity(step.Caller)
	if err != nil {
		return nil, fmt.Errorf("caller: %w", err)
	}
	args := stepArgs{h: h, op: step.Op, args: step.Args}
	l := h.ledger

	switch step.Op {
	case OpSend:
		recipient, content := args.identity("recipient"), args.str("content")
		if args.err != nil {
			return nil, args.err
		}
		return l.Send(ctx, caller, recipient, content)

	case OpEdit:
		u1, u2, index, content := args.identity("user1"), args.identity("user2"), args.int("index"), args.str("content")
		if args.err != nil {
			return nil, args.err
		}
		return nil, l.Edit(ctx, caller, u1, u2, index, content)

	case OpDelete:
		u1, u2, index := args.identity("user1"), args.identity("user2"), args.int("index")
		if args.err != nil {
			return nil, args.err
		}
		return nil, l.Delete(ctx, caller, u1, u2, index)

	case OpLength:
		u1, u2 := args.identity("user1"), args.identity("user2")
		if args.err != nil {
			return nil, args.err
		}
		return l.ConversationLength(ctx, u1, u2)

	case OpInitialize:
		return nil, l.Initialize(ctx, caller)

	case OpGrant, OpRevoke:
		capability, target := args.str("capability"), args.identity("target")
		if args.err != nil {
			return nil, args.err
		}
		if step.Op == OpGrant {
			return nil, l.Grant(ctx, caller, ir.Capability(capability), target)
		}
		return nil, l.Revoke(ctx, caller, ir.Capability(capability), target)

	case OpGrantUpgrade:
		target := args.identity("target")
		if args.err != nil {
			return nil, args.err
		}
		return nil, l.GrantUpgradeCapability(ctx, caller, target)

	case OpHas:
		capability, id := args.str("capability"), args.identity("identity")
		if args.err != nil {
			return nil, args.err
		}
		return l.HasCapability(ctx, ir.Capability(capability), id)

	default:
		return nil, fmt.Errorf("unknown op %q", step.Op)
	}
}

// identity resolves an alias, "null", or a hex address.
func (h *Harness) identity(ref string) (ir.Identity, error) {
	if ref == nullAlias {
		return ir.Identity{}, nil
	}
	if id, ok := h.identities[ref]; ok {
		return id, nil
	}
	id, err := ir.ParseIdentity(ref)
	if err != nil {
		return ir.Identity{}, fmt.Errorf("unknown identity %q", ref)
	}
	return id, nil
}

// stepArgs decodes YAML arguments, keeping the first error.
type stepArgs struct {
	h    *Harness
	op   string
	args map[string]any
	err  error
}

func (a *stepArgs) fail(name string, err error) {
	if a.err == nil {
		a.err = fmt.Errorf("%s: arg %q: %w", a.op, name, err)
	}
}

func (a *stepArgs) str(name string) string {
	switch v := a.args[name].(type) {
	case string:
		return v
	case nil:
		a.fail(name, fmt.Errorf("missing"))
	default:
		// YAML turns bare words like 0 or true into non-strings.
		return fmt.Sprint(v)
	}
	return ""
}

func (a *stepArgs) int(name string) int64 {
	switch v := a.args[name].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			a.fail(name, err)
		}
		return n
	default:
		a.fail(name, fmt.Errorf("want integer, got %T", v))
	}
	return 0
}

func (a *stepArgs) identity(name string) ir.Identity {
	ref := a.str(name)
	if a.err != nil {
		return ir.Identity{}
	}
	id, err := a.h.identity(ref)
	if err != nil {
		a.fail(name, err)
	}
	return id
}

// resultEqual compares a YAML-decoded expectation with an operation result.
func resultEqual(expected, actual any) bool {
	switch a := actual.(type) {
	case int64:
		switch e := expected.(type) {
		case int:
			return int64(e) == a
		case int64:
			return e == a
		}
	case bool:
		e, ok := expected.(bool)
		return ok && e == a
	}
	return false
}
