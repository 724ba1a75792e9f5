// Package credential tracks whether a usable generation API key has been
// selected, as an explicit state machine.
package credential

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

type State int

const (
	Unknown State = iota
	Checking
	Available
	Unavailable
)

func (s State) String() string {
	switch s {
	case Checking:
		return "checking"
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Provider is the host side of key selection.
type Provider interface {
	HasSelectedKey(ctx context.Context) (bool, error)
	SelectKey(ctx context.Context) error
}

type Options struct {
	Provider Provider
	Logger   *slog.Logger
}

type Gate struct {
	provider Provider
	logger   *slog.Logger

	mu    sync.Mutex
	state State
}

func NewGate(opts Options) *Gate {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gate{provider: opts.Provider, logger: logger}
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) Available() bool {
	return g.State() == Available
}

// Check queries the provider unless the gate is already available or a check
// is in flight. Provider errors leave the gate unavailable.
func (g *Gate) Check(ctx context.Context) State {
	prev, ok := g.begin(false)
	if !ok {
		return prev
	}

	has, err := g.provider.HasSelectedKey(ctx)
	if err != nil {
		g.logger.Error("credential check failed", "err", err)
		has = false
	}
	return g.finish(has)
}

// Connect asks the provider to select a key. A successful selection makes the
// gate available; a failed one leaves it as it was before, or unavailable if
// it was never resolved.
func (g *Gate) Connect(ctx context.Context) State {
	prev, ok := g.begin(true)
	if !ok {
		return prev
	}

	if err := g.provider.SelectKey(ctx); err != nil {
		g.logger.Error("credential selection failed", "err", err)
		if prev == Available {
			return g.finish(true)
		}
		return g.finish(false)
	}
	return g.finish(true)
}

// begin moves the gate to Checking. It reports false, with the current state,
// when the transition is not taken.
func (g *Gate) begin(force bool) (State, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.provider == nil {
		g.state = Unavailable
		return g.state, false
	}
	switch g.state {
	case Checking:
		return g.state, false
	case Available:
		if !force {
			return g.state, false
		}
	}
	prev := g.state
	g.state = Checking
	return prev, true
}

func (g *Gate) finish(available bool) State {
	g.mu.Lock()
	defer g.mu.Unlock()

	if available {
		g.state = Available
	} else {
		g.state = Unavailable
	}
	g.logger.Info("credential state", "state", g.state.String())
	return g.state
}
