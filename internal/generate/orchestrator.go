// Package generate fans a brand kit out to one image request per selected
// platform and tracks each platform's result independently.
package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"creator-studio-ai/internal/brand"
	"creator-studio-ai/internal/credential"
	"creator-studio-ai/internal/gemini"
	"creator-studio-ai/internal/platform"
	"creator-studio-ai/internal/prompt"
)

var (
	ErrRunInProgress         = errors.New("generation already in progress")
	ErrCredentialUnavailable = errors.New("api key not connected")
)

type Generator interface {
	GenerateImage(ctx context.Context, req gemini.ImageRequest) (gemini.Image, error)
}

// Gate reports whether generation is allowed. *credential.Gate satisfies it.
type Gate interface {
	Check(ctx context.Context) credential.State
}

type Options struct {
	Generator      Generator
	Builder        *prompt.Builder
	Gate           Gate
	Limit          int
	RequestTimeout time.Duration
	ImageSize      string
	Logger         *slog.Logger
	// BaseContext parents every request. Runs outlive the call that
	// submitted them; cancelling it aborts all in-flight requests.
	BaseContext context.Context
}

type Orchestrator struct {
	generator      Generator
	builder        *prompt.Builder
	gate           Gate
	limit          int
	requestTimeout time.Duration
	imageSize      string
	logger         *slog.Logger
	base           context.Context
	now            func() time.Time

	mu         sync.Mutex
	runs       map[string]*Run
	generating map[string]bool
}

func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	builder := opts.Builder
	if builder == nil {
		builder = prompt.NewBuilder(prompt.Options{Logger: logger})
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 4
	}
	base := opts.BaseContext
	if base == nil {
		base = context.Background()
	}
	return &Orchestrator{
		generator:      opts.Generator,
		builder:        builder,
		gate:           opts.Gate,
		limit:          limit,
		requestTimeout: opts.RequestTimeout,
		imageSize:      opts.ImageSize,
		logger:         logger,
		base:           base,
		now:            time.Now,
		runs:           make(map[string]*Run),
		generating:     make(map[string]bool),
	}
}

// Submit starts a run for the session and returns once every slot is
// published as pending. An empty platform selection is a no-op and returns a
// nil run. observe, if set, receives events one at a time.
func (o *Orchestrator) Submit(ctx context.Context, session string, cfg brand.Configuration, observe func(Event)) (*Run, error) {
	snap := cfg.Snapshot()
	if len(snap.Platforms) == 0 {
		return nil, nil
	}
	if o.generator == nil {
		return nil, errors.New("generator is nil")
	}
	if o.gate != nil && o.gate.Check(ctx) != credential.Available {
		return nil, ErrCredentialUnavailable
	}

	o.mu.Lock()
	if o.generating[session] {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}
	run := newRun(uuid.NewString(), session, snap, o.now())
	o.runs[session] = run
	o.generating[session] = true
	o.mu.Unlock()

	p := &publisher{run: run, observe: observe}
	p.publish(nil, false)

	o.logger.Info("generation started", "session", session, "run", run.ID, "platforms", len(run.slots))
	go o.execute(run, p)
	return run, nil
}

// Generate submits a run and waits for it to complete.
func (o *Orchestrator) Generate(ctx context.Context, session string, cfg brand.Configuration, observe func(Event)) (*Run, error) {
	run, err := o.Submit(ctx, session, cfg, observe)
	if err != nil || run == nil {
		return run, err
	}
	return run, run.Wait(ctx)
}

// Current returns the session's latest run, finished or not.
func (o *Orchestrator) Current(session string) (*Run, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	run, ok := o.runs[session]
	return run, ok
}

func (o *Orchestrator) Generating(session string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generating[session]
}

// Forget drops the session's run. It is a no-op while the run is generating.
func (o *Orchestrator) Forget(session string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.generating[session] {
		return false
	}
	delete(o.runs, session)
	return true
}

func (o *Orchestrator) execute(run *Run, p *publisher) {
	start := o.now()

	var g errgroup.Group
	g.SetLimit(o.limit)
	for _, s := range run.slots {
		g.Go(func() error {
			res, changed := o.fill(run, s)
			if changed {
				p.publish(&res, false)
			}
			return nil
		})
	}
	_ = g.Wait()
	run.markFinished(o.now())

	o.mu.Lock()
	delete(o.generating, run.Session)
	o.mu.Unlock()

	failed := 0
	for _, res := range run.Snapshot() {
		if res.Status == StatusFailed {
			failed++
		}
	}
	o.logger.Info("generation finished", "session", run.Session, "run", run.ID, "platforms", len(run.slots), "failed", failed, "dur_ms", o.now().Sub(start).Milliseconds())

	p.publish(nil, true)
	run.close()
}

func (o *Orchestrator) fill(run *Run, s *slot) (Result, bool) {
	id := s.get().Platform
	desc, ok := platform.Lookup(id)
	if !ok {
		return s.settle(StatusFailed, nil, "unknown platform", nil)
	}

	req := o.builder.Build(desc, run.Config)
	images := make([]gemini.InlineImage, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		images = append(images, gemini.InlineImage{MimeType: a.MimeType, Data: a.Data, Caption: a.Caption})
	}

	ctx := o.base
	if o.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}

	img, err := o.generator.GenerateImage(ctx, gemini.ImageRequest{
		Prompt:      req.Text,
		Images:      images,
		AspectRatio: req.AspectRatio,
		ImageSize:   o.imageSize,
	})
	if err == nil && len(img.Data) == 0 {
		err = gemini.ErrNoImage
	}
	if err != nil {
		o.logger.Error("generation failed", "session", run.Session, "run", run.ID, "platform", id, "err", err)
		return s.settle(StatusFailed, nil, DescribeError(err), req.Omitted)
	}
	return s.settle(StatusSucceeded, &img, "", req.Omitted)
}

// publisher serializes events for one run so observers see them in order.
type publisher struct {
	mu      sync.Mutex
	run     *Run
	observe func(Event)
}

func (p *publisher) publish(changed *Result, done bool) {
	if p.observe == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observe(Event{
		RunID:   p.run.ID,
		Session: p.run.Session,
		Results: p.run.Snapshot(),
		Changed: changed,
		Done:    done,
	})
}

// DescribeError turns a request failure into a short message for the user.
func DescribeError(err error) string {
	var apiErr *gemini.APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, gemini.ErrNoImage):
		return "no image generated"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.As(err, &apiErr):
		return fmt.Sprintf("service error (%d)", apiErr.StatusCode)
	default:
		return "failed to generate"
	}
}
