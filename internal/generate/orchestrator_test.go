package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-studio-ai/internal/brand"
	"creator-studio-ai/internal/credential"
	"creator-studio-ai/internal/gemini"
	"creator-studio-ai/internal/platform"
)

type fakeGenerator struct {
	mu       sync.Mutex
	requests []gemini.ImageRequest
	respond  func(ctx context.Context, req gemini.ImageRequest) (gemini.Image, error)

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeGenerator) GenerateImage(ctx context.Context, req gemini.ImageRequest) (gemini.Image, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.respond == nil {
		return gemini.Image{MimeType: "image/png", Data: []byte("img")}, nil
	}
	return f.respond(ctx, req)
}

func (f *fakeGenerator) calls() []gemini.ImageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gemini.ImageRequest(nil), f.requests...)
}

type events struct {
	mu  sync.Mutex
	all []Event
}

func (e *events) observe(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, ev)
}

func (e *events) list() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event(nil), e.all...)
}

func connectedGate() *credential.Gate {
	return credential.NewGate(credential.Options{Provider: &credential.StaticProvider{Key: "k"}})
}

func newOrchestrator(gen Generator, limit int) *Orchestrator {
	return New(Options{Generator: gen, Gate: connectedGate(), Limit: limit, ImageSize: "2K"})
}

func kit(ids ...platform.ID) brand.Configuration {
	cfg := brand.DefaultConfiguration()
	cfg.Headline = "Launch Day"
	cfg.Platforms = ids
	return cfg
}

func TestSubmitPublishesPendingSlots(t *testing.T) {
	release := make(chan struct{})
	gen := &fakeGenerator{respond: func(ctx context.Context, req gemini.ImageRequest) (gemini.Image, error) {
		<-release
		return gemini.Image{MimeType: "image/png", Data: []byte("x")}, nil
	}}
	o := newOrchestrator(gen, 4)
	var ev events

	run, err := o.Submit(context.Background(), "s1", kit(platform.FacebookCover, platform.TwitterHeader, platform.ZoomBackground), ev.observe)
	require.NoError(t, err)
	require.NotNil(t, run)

	results := run.Snapshot()
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, StatusPending, r.Status)
	}
	assert.Equal(t, platform.FacebookCover, results[0].Platform)
	assert.Equal(t, platform.ZoomBackground, results[2].Platform)
	assert.True(t, o.Generating("s1"))
	assert.Equal(t, 3, run.Pending())

	first := ev.list()[0]
	assert.False(t, first.Done)
	assert.Nil(t, first.Changed)
	assert.Len(t, first.Results, 3)

	close(release)
	require.NoError(t, run.Wait(context.Background()))
	assert.False(t, o.Generating("s1"))
	assert.Zero(t, run.Pending())
	assert.False(t, run.FinishedAt().IsZero())

	all := ev.list()
	require.Len(t, all, 5)
	assert.True(t, all[4].Done)
	for _, e := range all[1:4] {
		require.NotNil(t, e.Changed)
		assert.Equal(t, StatusSucceeded, e.Changed.Status)
	}
}

func TestSubmitEmptySelectionIsNoop(t *testing.T) {
	gen := &fakeGenerator{}
	o := newOrchestrator(gen, 4)

	run, err := o.Submit(context.Background(), "s1", kit(), nil)
	require.NoError(t, err)
	assert.Nil(t, run)
	assert.False(t, o.Generating("s1"))
	assert.Empty(t, gen.calls())
	_, ok := o.Current("s1")
	assert.False(t, ok)
}

func TestFailureIsIsolated(t *testing.T) {
	gen := &fakeGenerator{respond: func(ctx context.Context, req gemini.ImageRequest) (gemini.Image, error) {
		if strings.Contains(req.Prompt, "premium YouTube Channel design") {
			return gemini.Image{}, &gemini.APIError{StatusCode: 500, Status: "500 Internal Server Error"}
		}
		return gemini.Image{MimeType: "image/png", Data: []byte("ok")}, nil
	}}
	o := newOrchestrator(gen, 2)

	run, err := o.Generate(context.Background(), "s1", kit(platform.FacebookCover, platform.YouTubeChannel), nil)
	require.NoError(t, err)

	fb, ok := run.Result(platform.FacebookCover)
	require.True(t, ok)
	assert.Equal(t, StatusSucceeded, fb.Status)
	require.NotNil(t, fb.Image)
	assert.Equal(t, []byte("ok"), fb.Image.Data)

	yt, ok := run.Result(platform.YouTubeChannel)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, yt.Status)
	assert.Nil(t, yt.Image)
	assert.Equal(t, "service error (500)", yt.Error)
}

func TestNoImageFails(t *testing.T) {
	gen := &fakeGenerator{respond: func(ctx context.Context, req gemini.ImageRequest) (gemini.Image, error) {
		return gemini.Image{}, nil
	}}
	o := newOrchestrator(gen, 1)

	run, err := o.Generate(context.Background(), "s1", kit(platform.EmailSignature), nil)
	require.NoError(t, err)
	res := run.Snapshot()[0]
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "no image generated", res.Error)
}

func TestFacebookAndTwitterRoundTrip(t *testing.T) {
	gen := &fakeGenerator{}
	o := newOrchestrator(gen, 4)

	run, err := o.Generate(context.Background(), "s1", kit(platform.FacebookCover, platform.TwitterHeader), nil)
	require.NoError(t, err)

	calls := gen.calls()
	require.Len(t, calls, 2)
	for _, c := range calls {
		assert.Equal(t, "16:9", c.AspectRatio)
		assert.Equal(t, "2K", c.ImageSize)
		assert.Equal(t, 1, strings.Count(c.Prompt, `"Launch Day"`))
		assert.Empty(t, c.Images)
	}

	results := run.Snapshot()
	require.Len(t, results, 2)
	assert.Equal(t, "Facebook Cover", results[0].Label)
	for _, r := range results {
		assert.Equal(t, StatusSucceeded, r.Status)
		assert.Equal(t, "16:9", r.AspectRatio)
	}
}

func TestAttachmentsForwardedInOrder(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	cfg := kit(platform.LinkedInPersonal)
	require.NoError(t, cfg.Attach(brand.KindHeadshot, brand.Attachment{Name: "me.png", Data: buf.Bytes()}))
	require.NoError(t, cfg.Attach(brand.KindLogo, brand.Attachment{Name: "logo.png", Data: buf.Bytes()}))

	gen := &fakeGenerator{}
	o := newOrchestrator(gen, 1)
	_, err := o.Generate(context.Background(), "s1", cfg, nil)
	require.NoError(t, err)

	calls := gen.calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Images, 2)
	assert.Equal(t, "image/png", calls[0].Images[0].MimeType)
	assert.Contains(t, calls[0].Images[0].Caption, "BRAND LOGO")
	assert.Contains(t, calls[0].Images[1].Caption, "REFERENCE FACE")
}

func TestUnreadableAttachmentOmitted(t *testing.T) {
	cfg := kit(platform.GoogleBusiness)
	require.NoError(t, cfg.Attach(brand.KindLogo, brand.Attachment{Name: "logo.png", Data: []byte("not an image")}))

	gen := &fakeGenerator{}
	o := newOrchestrator(gen, 1)
	run, err := o.Generate(context.Background(), "s1", cfg, nil)
	require.NoError(t, err)

	require.Len(t, gen.calls(), 1)
	assert.Empty(t, gen.calls()[0].Images)
	res := run.Snapshot()[0]
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, []brand.AttachmentKind{brand.KindLogo}, res.Omitted)
}

func TestRerunReplacesResults(t *testing.T) {
	gen := &fakeGenerator{}
	o := newOrchestrator(gen, 4)
	ctx := context.Background()

	first, err := o.Generate(ctx, "s1", kit(platform.FacebookCover, platform.TwitterHeader), nil)
	require.NoError(t, err)
	second, err := o.Generate(ctx, "s1", kit(platform.ZoomBackground), nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	current, ok := o.Current("s1")
	require.True(t, ok)
	assert.Same(t, second, current)
	results := current.Snapshot()
	require.Len(t, results, 1)
	assert.Equal(t, platform.ZoomBackground, results[0].Platform)

	// earlier run keeps its own results
	assert.Len(t, first.Snapshot(), 2)
}

func TestConcurrencyLimit(t *testing.T) {
	gen := &fakeGenerator{respond: func(ctx context.Context, req gemini.ImageRequest) (gemini.Image, error) {
		time.Sleep(20 * time.Millisecond)
		return gemini.Image{Data: []byte("x")}, nil
	}}
	o := newOrchestrator(gen, 2)

	run, err := o.Generate(context.Background(), "s1", kit(platform.IDs()...), nil)
	require.NoError(t, err)
	assert.Len(t, run.Snapshot(), len(platform.IDs()))
	assert.LessOrEqual(t, gen.maxInFlight.Load(), int32(2))
	assert.Len(t, gen.calls(), len(platform.IDs()))
}

func TestResubmitWhileGenerating(t *testing.T) {
	release := make(chan struct{})
	gen := &fakeGenerator{respond: func(ctx context.Context, req gemini.ImageRequest) (gemini.Image, error) {
		<-release
		return gemini.Image{Data: []byte("x")}, nil
	}}
	o := newOrchestrator(gen, 4)
	ctx := context.Background()

	run, err := o.Submit(ctx, "s1", kit(platform.FacebookCover), nil)
	require.NoError(t, err)

	_, err = o.Submit(ctx, "s1", kit(platform.TwitterHeader), nil)
	assert.ErrorIs(t, err, ErrRunInProgress)

	// other sessions are independent
	other, err := o.Submit(ctx, "s2", kit(platform.TwitterHeader), nil)
	require.NoError(t, err)

	close(release)
	require.NoError(t, run.Wait(ctx))
	require.NoError(t, other.Wait(ctx))
	assert.True(t, o.Forget("s1"))
	_, ok := o.Current("s1")
	assert.False(t, ok)
}

func TestCredentialUnavailable(t *testing.T) {
	gen := &fakeGenerator{}
	gate := credential.NewGate(credential.Options{Provider: &credential.StaticProvider{}})
	o := New(Options{Generator: gen, Gate: gate})

	run, err := o.Submit(context.Background(), "s1", kit(platform.FacebookCover), nil)
	assert.ErrorIs(t, err, ErrCredentialUnavailable)
	assert.Nil(t, run)
	assert.Empty(t, gen.calls())
	assert.False(t, o.Generating("s1"))
}

func TestRequestTimeout(t *testing.T) {
	gen := &fakeGenerator{respond: func(ctx context.Context, req gemini.ImageRequest) (gemini.Image, error) {
		<-ctx.Done()
		return gemini.Image{}, fmt.Errorf("request: %w", ctx.Err())
	}}
	o := New(Options{Generator: gen, Gate: connectedGate(), RequestTimeout: 10 * time.Millisecond})

	run, err := o.Generate(context.Background(), "s1", kit(platform.LinkedInEvent), nil)
	require.NoError(t, err)
	assert.Equal(t, "request timed out", run.Snapshot()[0].Error)
}

func TestRunOutlivesCallerContext(t *testing.T) {
	release := make(chan struct{})
	gen := &fakeGenerator{respond: func(ctx context.Context, req gemini.ImageRequest) (gemini.Image, error) {
		<-release
		if err := ctx.Err(); err != nil {
			return gemini.Image{}, err
		}
		return gemini.Image{Data: []byte("x")}, nil
	}}
	o := newOrchestrator(gen, 1)

	ctx, cancel := context.WithCancel(context.Background())
	run, err := o.Submit(ctx, "s1", kit(platform.FacebookCover), nil)
	require.NoError(t, err)
	cancel()
	close(release)

	require.NoError(t, run.Wait(context.Background()))
	assert.Equal(t, StatusSucceeded, run.Snapshot()[0].Status)
}

func TestSnapshotIsolatedFromLaterEdits(t *testing.T) {
	release := make(chan struct{})
	gen := &fakeGenerator{respond: func(ctx context.Context, req gemini.ImageRequest) (gemini.Image, error) {
		<-release
		return gemini.Image{Data: []byte("x")}, nil
	}}
	o := newOrchestrator(gen, 1)

	cfg := kit(platform.FacebookCover)
	run, err := o.Submit(context.Background(), "s1", cfg, nil)
	require.NoError(t, err)

	cfg.Headline = "Changed"
	cfg.Platforms[0] = platform.ZoomBackground
	close(release)
	require.NoError(t, run.Wait(context.Background()))

	calls := gen.calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, `"Launch Day"`)
	assert.NotContains(t, calls[0].Prompt, "Changed")
	assert.Equal(t, platform.FacebookCover, run.Snapshot()[0].Platform)
}

func TestDescribeError(t *testing.T) {
	assert.Equal(t, "", DescribeError(nil))
	assert.Equal(t, "no image generated", DescribeError(fmt.Errorf("wrap: %w", gemini.ErrNoImage)))
	assert.Equal(t, "request timed out", DescribeError(context.DeadlineExceeded))
	assert.Equal(t, "service error (429)", DescribeError(&gemini.APIError{StatusCode: 429}))
	assert.Equal(t, "failed to generate", DescribeError(errors.New("dial tcp: refused")))
}
