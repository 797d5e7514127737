package selection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/kesa0v0/WeimarPort/internal/game/faction"
	"github.com/kesa0v0/WeimarPort/internal/game/rules"
	"go.uber.org/zap"
)

var (
	// ErrCancelled is returned by Await when the request was cancelled.
	ErrCancelled = errors.New("selection cancelled")
	// ErrNoCandidates is returned when a request has nothing to choose from.
	ErrNoCandidates = errors.New("selection has no candidates")
)

// Purpose tags what a selection is for.
const (
	PurposeChoice   = "choice"
	PurposeCity     = "city"
	PurposeEviction = "eviction"
)

// State is the lifecycle state of a pending selection.
type State int

const (
	StateOpen State = iota
	StateResolved
	StateCancelled
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateResolved:
		return "RESOLVED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// InvariantError reports a pending selection resolved by a response meant
// for another request.
type InvariantError struct {
	Expected string
	Actual   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated: selection %s resolved with correlation id %s", e.Expected, e.Actual)
}

// Request describes a decision a player has to make.
type Request struct {
	Purpose    string
	Prompt     string
	Chooser    faction.Type
	Candidates []rules.Choice
}

// Pending is an open request. Await blocks until it is resolved or cancelled.
type Pending struct {
	Request
	ID string

	broker     *Broker
	mu         sync.Mutex
	state      State
	selected   rules.Choice
	resolvedBy string
	handles    []int
	done       chan struct{}
}

// State returns the current state.
func (p *Pending) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Await blocks until the request reaches a terminal state. Cancelling ctx
// cancels the request and returns ctx.Err().
func (p *Pending) Await(ctx context.Context) (rules.Choice, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		p.broker.Cancel(p)
		// A response may have won the race.
		if p.State() != StateResolved {
			return rules.Choice{}, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateCancelled {
		return rules.Choice{}, ErrCancelled
	}
	if p.resolvedBy != p.ID {
		return rules.Choice{}, &InvariantError{Expected: p.ID, Actual: p.resolvedBy}
	}
	return p.selected, nil
}

func (p *Pending) candidate(value string) (rules.Choice, bool) {
	for _, c := range p.Candidates {
		if c.Value == value {
			return c, true
		}
	}
	return rules.Choice{}, false
}

// finish moves the request to a terminal state. Only the first call wins.
func (p *Pending) finish(state State, choice rules.Choice, correlationID string) bool {
	p.mu.Lock()
	if p.state != StateOpen {
		p.mu.Unlock()
		return false
	}
	p.state = state
	p.selected = choice
	p.resolvedBy = correlationID
	handles := p.handles
	p.handles = nil
	p.mu.Unlock()

	for _, h := range handles {
		p.broker.bus.Unsubscribe(h)
	}
	p.broker.forget(p.ID)
	close(p.done)
	return true
}

// Broker turns player decisions into request/response pairs on the event bus.
type Broker struct {
	bus    *rules.EventBus
	logger *zap.Logger
	mu     sync.RWMutex
	open   map[string]*Pending
}

// NewBroker creates a broker on bus.
func NewBroker(bus *rules.EventBus, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		bus:    bus,
		logger: logger,
		open:   make(map[string]*Pending),
	}
}

// Request opens a selection. The response handlers are subscribed before
// SELECTION_REQUESTED is published, so a synchronous response is not lost.
func (b *Broker) Request(req Request) (*Pending, error) {
	if len(req.Candidates) == 0 {
		return nil, ErrNoCandidates
	}
	p := &Pending{
		Request: req,
		ID:      uuid.NewString(),
		broker:  b,
		done:    make(chan struct{}),
	}
	p.Candidates = append([]rules.Choice(nil), req.Candidates...)

	made := b.bus.SubscribeTyped(rules.EventSelectionMade, func(e rules.Event) {
		b.onMade(p, e)
	})
	cancelled := b.bus.SubscribeTyped(rules.EventSelectionCancelled, func(e rules.Event) {
		if e.CorrelationID == p.ID {
			p.finish(StateCancelled, rules.Choice{}, e.CorrelationID)
		}
	})
	p.mu.Lock()
	p.handles = []int{made, cancelled}
	p.mu.Unlock()

	b.mu.Lock()
	b.open[p.ID] = p
	b.mu.Unlock()

	b.logger.Debug("selection requested",
		zap.String("correlation_id", p.ID),
		zap.String("purpose", req.Purpose),
		zap.Int("candidates", len(req.Candidates)),
	)

	evt := rules.NewEvent(rules.EventSelectionRequested, "", string(req.Chooser))
	evt.CorrelationID = p.ID
	evt.Purpose = req.Purpose
	evt.Prompt = req.Prompt
	evt.Candidates = append([]rules.Choice(nil), p.Candidates...)
	b.bus.Publish(evt)
	return p, nil
}

func (b *Broker) onMade(p *Pending, e rules.Event) {
	if e.CorrelationID != p.ID {
		return
	}
	choice, ok := p.candidate(e.Selected)
	if !ok {
		b.logger.Warn("selection value is not a candidate",
			zap.String("correlation_id", p.ID),
			zap.String("value", e.Selected),
		)
		return
	}
	if p.finish(StateResolved, choice, e.CorrelationID) {
		b.logger.Debug("selection resolved",
			zap.String("correlation_id", p.ID),
			zap.String("value", choice.Value),
		)
	}
}

// Cancel discards an open request and publishes SELECTION_CANCELLED so
// presenters can tear down their prompt. It reports whether p was open.
func (b *Broker) Cancel(p *Pending) bool {
	if p == nil || !p.finish(StateCancelled, rules.Choice{}, p.ID) {
		return false
	}
	evt := rules.NewEvent(rules.EventSelectionCancelled, "", string(p.Chooser))
	evt.CorrelationID = p.ID
	b.bus.Publish(evt)
	return true
}

// Resolve publishes a SELECTION_MADE response.
func (b *Broker) Resolve(correlationID, value string) {
	evt := rules.NewEvent(rules.EventSelectionMade, "", "")
	evt.CorrelationID = correlationID
	evt.Selected = value
	b.bus.Publish(evt)
}

// Decline publishes a SELECTION_CANCELLED response.
func (b *Broker) Decline(correlationID string) {
	evt := rules.NewEvent(rules.EventSelectionCancelled, "", "")
	evt.CorrelationID = correlationID
	b.bus.Publish(evt)
}

// Lookup returns the open request with the given correlation id.
func (b *Broker) Lookup(correlationID string) (*Pending, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.open[correlationID]
	return p, ok
}

// Open returns the open requests ordered by correlation id.
func (b *Broker) Open() []*Pending {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Pending, 0, len(b.open))
	for _, p := range b.open {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Broker) forget(id string) {
	b.mu.Lock()
	delete(b.open, id)
	b.mu.Unlock()
}
