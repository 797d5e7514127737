package effects

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/kesa0v0/WeimarPort/internal/game/board"
	"github.com/kesa0v0/WeimarPort/internal/game/faction"
	"github.com/kesa0v0/WeimarPort/internal/game/rules"
	"github.com/kesa0v0/WeimarPort/internal/game/script"
	"github.com/kesa0v0/WeimarPort/internal/game/selection"
	"go.uber.org/zap"
)

var (
	// ErrUnknownCommand marks an instruction whose tag has no handler.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMissingReference marks an entity, type or location that does not exist.
	ErrMissingReference = errors.New("reference not found")
	// ErrNoEvictionCandidates marks a full city with nobody to evict.
	ErrNoEvictionCandidates = errors.New("no eviction candidates")
)

// State bundles the game state an interpreter mutates.
type State struct {
	Bus       *rules.EventBus
	Registry  *board.Registry
	Factions  *faction.Registry
	Tracks    *board.Tracks
	Flags     *board.Flags
	Broker    *selection.Broker
	UnitTypes map[string]*board.UnitType
}

// handler performs one repetition of a command.
type handler func(ctx context.Context, x *execution) error

// Interpreter walks effect node trees and applies them through the board registry.
type Interpreter struct {
	state      State
	predicates *Predicates
	handlers   map[script.Command]handler
	rand       *rand.Rand
	logger     *zap.Logger
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(in *Interpreter) {
		if logger != nil {
			in.logger = logger
		}
	}
}

// WithRand sets the random source used for random locations.
func WithRand(r *rand.Rand) Option {
	return func(in *Interpreter) {
		if r != nil {
			in.rand = r
		}
	}
}

// WithPredicates replaces the predicate registry.
func WithPredicates(p *Predicates) Option {
	return func(in *Interpreter) {
		if p != nil {
			in.predicates = p
		}
	}
}

// NewInterpreter creates an interpreter over state.
func NewInterpreter(state State, opts ...Option) *Interpreter {
	if state.UnitTypes == nil {
		state.UnitTypes = board.DefaultUnitTypes()
	}
	in := &Interpreter{
		state:  state,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.predicates == nil {
		in.predicates = NewPredicates(state)
	}
	in.handlers = in.dispatchTable()
	return in
}

// Predicates returns the predicate registry.
func (in *Interpreter) Predicates() *Predicates {
	return in.predicates
}

// Handles reports whether cmd has a handler.
func (in *Interpreter) Handles(cmd script.Command) bool {
	_, ok := in.handlers[cmd]
	return ok
}

// Execute runs nodes in order. Recoverable problems are logged and the
// smallest affected unit (repetition or instruction) is skipped. Invariant
// violations, malformed identifiers and context cancellation abort the
// script and are returned.
func (in *Interpreter) Execute(ctx context.Context, nodes []script.Node) error {
	for i := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := in.executeNode(ctx, &nodes[i]); err != nil {
			if isFatal(err) {
				return err
			}
			in.skip(&nodes[i], -1, err)
		}
	}
	return nil
}

func (in *Interpreter) executeNode(ctx context.Context, n *script.Node) error {
	h, ok := in.handlers[n.Command]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownCommand, n.Command)
	}

	if n.IsConditional() {
		passed, err := in.predicates.Eval(ctx, *n.Args.Condition)
		if err != nil {
			return err
		}
		in.logger.Debug("condition evaluated",
			zap.String("condition", n.Args.Condition.Type),
			zap.Bool("passed", passed),
		)
		if passed {
			return in.Execute(ctx, n.Args.OnSuccess)
		}
		return in.Execute(ctx, n.Args.OnFailure)
	}

	if n.IsChoice() {
		return in.executeChoice(ctx, n)
	}

	x := newExecution(in, n)
	for rep := 0; rep < n.Repetitions(); rep++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := h(ctx, x); err != nil {
			if isFatal(err) {
				return err
			}
			in.skip(n, rep, err)
		}
	}
	return nil
}

func (in *Interpreter) executeChoice(ctx context.Context, n *script.Node) error {
	candidates := make([]rules.Choice, len(n.Args.Options))
	for i, opt := range n.Args.Options {
		candidates[i] = rules.Choice{Value: strconv.Itoa(i), Label: opt.Label}
	}
	chooser, err := faction.ParseOptional(n.Args.PartyID)
	if err != nil {
		return err
	}
	pending, err := in.state.Broker.Request(selection.Request{
		Purpose:    selection.PurposeChoice,
		Prompt:     n.Args.ChoicePrompt,
		Chooser:    chooser,
		Candidates: candidates,
	})
	if err != nil {
		return err
	}
	choice, err := pending.Await(ctx)
	if err != nil {
		return err
	}
	idx, err := strconv.Atoi(choice.Value)
	if err != nil || idx < 0 || idx >= len(n.Args.Options) {
		return &selection.InvariantError{Expected: pending.ID, Actual: choice.Value}
	}
	return in.Execute(ctx, n.Args.Options[idx].Effects)
}

// skip logs a recoverable failure and announces it on the bus. rep is -1
// when the whole instruction was skipped.
func (in *Interpreter) skip(n *script.Node, rep int, err error) {
	fields := []zap.Field{
		zap.String("command", string(n.Command)),
		zap.Error(err),
	}
	if rep >= 0 {
		fields = append(fields, zap.Int("repetition", rep))
	}
	in.logger.Warn("instruction skipped", fields...)

	if in.state.Bus != nil {
		evt := rules.NewEvent(rules.EventCommandSkipped, "", n.Args.PartyID)
		evt.Data = string(n.Command)
		evt.Description = err.Error()
		in.state.Bus.Publish(evt)
	}
}

// isFatal reports whether err must abort the script.
func isFatal(err error) bool {
	var boardInv *board.InvariantError
	var brokerInv *selection.InvariantError
	switch {
	case errors.As(err, &boardInv), errors.As(err, &brokerInv):
		return true
	case errors.Is(err, faction.ErrMalformedIdentifier):
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}
