package generate

import (
	"context"
	"sync"
	"time"

	"creator-studio-ai/internal/brand"
	"creator-studio-ai/internal/gemini"
	"creator-studio-ai/internal/platform"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

type Result struct {
	Platform    platform.ID
	Label       string
	AspectRatio string
	Status      Status
	Image       *gemini.Image
	Error       string
	// Omitted lists attachments left out of the request because they could
	// not be read.
	Omitted []brand.AttachmentKind
}

func (r Result) Settled() bool {
	return r.Status != StatusPending
}

// slot is owned by exactly one task for the lifetime of a run.
type slot struct {
	mu     sync.Mutex
	result Result
}

func (s *slot) get() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// settle moves a pending slot to its terminal state. Later calls are ignored.
func (s *slot) settle(status Status, img *gemini.Image, errText string, omitted []brand.AttachmentKind) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result.Status != StatusPending {
		return s.result, false
	}
	s.result.Status = status
	s.result.Image = img
	s.result.Error = errText
	s.result.Omitted = omitted
	return s.result, true
}

type Run struct {
	ID        string
	Session   string
	Config    brand.Configuration
	StartedAt time.Time

	slots []*slot
	done  chan struct{}

	mu         sync.Mutex
	finishedAt time.Time
}

func newRun(id, session string, cfg brand.Configuration, now time.Time) *Run {
	r := &Run{
		ID:        id,
		Session:   session,
		Config:    cfg,
		StartedAt: now,
		done:      make(chan struct{}),
	}
	for _, id := range cfg.Platforms {
		res := Result{Platform: id, Label: string(id), Status: StatusPending}
		if p, ok := platform.Lookup(id); ok {
			res.Label = p.Label
			res.AspectRatio = p.AspectRatio
		}
		r.slots = append(r.slots, &slot{result: res})
	}
	return r
}

// Snapshot returns the results in selection order.
func (r *Run) Snapshot() []Result {
	out := make([]Result, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, s.get())
	}
	return out
}

func (r *Run) Result(id platform.ID) (Result, bool) {
	for _, s := range r.slots {
		res := s.get()
		if res.Platform == id {
			return res, true
		}
	}
	return Result{}, false
}

// Pending reports how many slots have not settled.
func (r *Run) Pending() int {
	n := 0
	for _, s := range r.slots {
		if !s.get().Settled() {
			n++
		}
	}
	return n
}

// Done is closed once every slot has settled.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Run) FinishedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finishedAt
}

func (r *Run) markFinished(now time.Time) {
	r.mu.Lock()
	r.finishedAt = now
	r.mu.Unlock()
}

// close releases Wait. It runs after the session accepts a new run.
func (r *Run) close() {
	close(r.done)
}

// Event is published when a run starts, each time a slot settles, and once
// when the run completes.
type Event struct {
	RunID   string
	Session string
	Results []Result
	Changed *Result
	Done    bool
}
