package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/sdpanel/internal/gallery"
	"github.com/five82/sdpanel/internal/params"
	"github.com/five82/sdpanel/internal/sdapi"
)

type fakeBackend struct {
	mu          sync.Mutex
	submits     int
	polls       int
	interrupts  int
	pollErr     error
	interruptEr error
	submitted   params.Generation
	// submit runs inside SubmitGeneration when set.
	submit func(ctx context.Context) (*sdapi.GenerationResult, error)
}

func (f *fakeBackend) SubmitGeneration(ctx context.Context, p params.Generation) (*sdapi.GenerationResult, error) {
	f.mu.Lock()
	f.submits++
	f.submitted = p
	submit := f.submit
	f.mu.Unlock()
	if submit == nil {
		return &sdapi.GenerationResult{Images: [][]byte{[]byte("img")}}, nil
	}
	return submit(ctx)
}

func (f *fakeBackend) PollProgress(context.Context) (*sdapi.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	frac := float64(f.polls) / 100
	if frac > 1 {
		frac = 1
	}
	return &sdapi.Progress{Fraction: frac, Job: sdapi.JobState{Step: f.polls, Steps: 100}}, nil
}

func (f *fakeBackend) Interrupt(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interrupts++
	return f.interruptEr
}

func (f *fakeBackend) counts() (submits, polls, interrupts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits, f.polls, f.interrupts
}

// blockingSubmit waits until release is closed or ctx ends.
func blockingSubmit(release <-chan struct{}, result *sdapi.GenerationResult) func(context.Context) (*sdapi.GenerationResult, error) {
	return func(ctx context.Context) (*sdapi.GenerationResult, error) {
		select {
		case <-release:
			return result, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func newSession(backend Backend, sink Sink) *Session {
	logger, _ := test.NewNullLogger()
	return NewSession(backend, sink, Options{PollInterval: 5 * time.Millisecond, Logger: logger})
}

func withPrompt(s *Session, prompt string) {
	s.UpdateParams(params.Patch{Prompt: params.Ptr(prompt)})
}

func TestGenerate_EmptyPromptRejectedWithoutNetwork(t *testing.T) {
	backend := &fakeBackend{}
	store := gallery.New(0)
	s := newSession(backend, store)
	withPrompt(s, "   ")

	images, err := s.Generate(context.Background())

	var verr *params.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Nil(t, images)
	assert.Equal(t, 0, store.Len())
	assert.False(t, s.IsGenerating())
	submits, polls, _ := backend.counts()
	assert.Zero(t, submits)
	assert.Zero(t, polls)
}

func TestGenerate_BatchPrependedInResponseOrder(t *testing.T) {
	backend := &fakeBackend{submit: func(context.Context) (*sdapi.GenerationResult, error) {
		return &sdapi.GenerationResult{
			Images: [][]byte{[]byte("a"), []byte("b")},
			Info:   `{"seed":42}`,
		}, nil
	}}
	store := gallery.New(0)
	store.Add(gallery.Image{ID: "old", Data: []byte("old")})
	s := newSession(backend, store)
	s.UpdateParams(params.Patch{Prompt: params.Ptr("harbor at dusk"), BatchSize: params.Ptr(2)})

	images, err := s.Generate(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 2)

	list := store.List()
	require.Len(t, list, 3)
	assert.Equal(t, "a", string(list[0].Data))
	assert.Equal(t, "b", string(list[1].Data))
	assert.Equal(t, "old", list[2].ID)
	for _, img := range list[:2] {
		require.NotNil(t, img.Result)
		assert.Equal(t, int64(42), img.Result.Seed)
		assert.Equal(t, "harbor at dusk", img.Params.Prompt)
		assert.Equal(t, 2, img.Params.BatchSize)
	}
	assert.Equal(t, 2, backend.submitted.BatchSize)
}

func TestGenerate_ParamsSnapshotIsDetached(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{submit: blockingSubmit(release, &sdapi.GenerationResult{Images: [][]byte{{1}}})}
	store := gallery.New(0)
	s := newSession(backend, store)
	withPrompt(s, "first")

	done := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background())
		done <- err
	}()
	require.Eventually(t, s.IsGenerating, time.Second, time.Millisecond)

	withPrompt(s, "edited mid-flight")
	close(release)
	require.NoError(t, <-done)

	list := store.List()
	require.Len(t, list, 1)
	assert.Equal(t, "first", list[0].Params.Prompt)
	assert.Equal(t, "edited mid-flight", s.Params().Prompt)
}

func TestGenerate_ProgressLifecycle(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{submit: blockingSubmit(release, &sdapi.GenerationResult{Images: [][]byte{{1}}})}
	s := newSession(backend, gallery.New(0))
	withPrompt(s, "lighthouse")

	assert.Nil(t, s.Progress())

	done := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool {
		p := s.Progress()
		return p != nil && p.Fraction >= 0.03
	}, time.Second, time.Millisecond)

	var last float64
	for i := 0; i < 5; i++ {
		p := s.Progress()
		require.NotNil(t, p)
		assert.GreaterOrEqual(t, p.Fraction, last)
		last = p.Fraction
		time.Sleep(5 * time.Millisecond)
	}

	close(release)
	require.NoError(t, <-done)
	assert.Nil(t, s.Progress())
	assert.False(t, s.IsGenerating())

	_, pollsAtEnd, _ := backend.counts()
	time.Sleep(30 * time.Millisecond)
	_, pollsLater, _ := backend.counts()
	assert.Equal(t, pollsAtEnd, pollsLater, "poller kept running after completion")
}

func TestGenerate_SecondCallRejectedWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{submit: blockingSubmit(release, &sdapi.GenerationResult{Images: [][]byte{{1}}})}
	store := gallery.New(0)
	s := newSession(backend, store)
	withPrompt(s, "lighthouse")

	done := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background())
		done <- err
	}()
	require.Eventually(t, s.IsGenerating, time.Second, time.Millisecond)

	_, err := s.Generate(context.Background())
	assert.ErrorIs(t, err, ErrInFlight)

	close(release)
	require.NoError(t, <-done)
	submits, _, _ := backend.counts()
	assert.Equal(t, 1, submits)
	assert.Equal(t, 1, store.Len())
}

func TestGenerate_FailureAddsNothing(t *testing.T) {
	backendErr := &sdapi.BackendError{Op: "/sdapi/v1/txt2img", Status: 500, Body: "CUDA out of memory"}
	backend := &fakeBackend{submit: func(context.Context) (*sdapi.GenerationResult, error) {
		return nil, backendErr
	}}
	store := gallery.New(0)
	s := newSession(backend, store)
	withPrompt(s, "lighthouse")

	images, err := s.Generate(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, sdapi.ErrBackendUnavailable)
	assert.Nil(t, images)
	assert.Equal(t, 0, store.Len())
	assert.False(t, s.IsGenerating())
	assert.Nil(t, s.Progress())
}

func TestGenerate_PollFailuresAreSwallowed(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{
		pollErr: errors.New("connection reset"),
		submit:  blockingSubmit(release, &sdapi.GenerationResult{Images: [][]byte{{1}}}),
	}
	s := newSession(backend, gallery.New(0))
	withPrompt(s, "lighthouse")

	done := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool {
		_, polls, _ := backend.counts()
		return polls >= 3
	}, time.Second, time.Millisecond)

	assert.True(t, s.IsGenerating())
	close(release)
	assert.NoError(t, <-done)
}

func TestInterrupt_DoesNotFlipInFlight(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{
		interruptEr: errors.New("backend gone"),
		submit:      blockingSubmit(release, &sdapi.GenerationResult{Images: [][]byte{{1}}}),
	}
	s := newSession(backend, gallery.New(0))
	withPrompt(s, "lighthouse")

	done := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background())
		done <- err
	}()
	require.Eventually(t, s.IsGenerating, time.Second, time.Millisecond)

	s.Interrupt(context.Background())
	assert.True(t, s.IsGenerating())
	_, _, interrupts := backend.counts()
	assert.Equal(t, 1, interrupts)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, s.IsGenerating())
}

func TestCancel_DiscardsPendingSubmission(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	backend := &fakeBackend{submit: blockingSubmit(release, &sdapi.GenerationResult{Images: [][]byte{{1}}})}
	store := gallery.New(0)
	s := newSession(backend, store)
	withPrompt(s, "lighthouse")

	done := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background())
		done <- err
	}()
	require.Eventually(t, s.IsGenerating, time.Second, time.Millisecond)

	s.Cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Generate did not return after Cancel")
	}
	assert.Equal(t, 0, store.Len())
	assert.False(t, s.IsGenerating())
}

func TestGenerate_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	backend := &fakeBackend{submit: blockingSubmit(release, nil)}
	logger, _ := test.NewNullLogger()
	s := NewSession(backend, gallery.New(0), Options{
		PollInterval: 5 * time.Millisecond,
		Timeout:      20 * time.Millisecond,
		Logger:       logger,
	})
	withPrompt(s, "lighthouse")

	_, err := s.Generate(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timed out")
	assert.False(t, s.IsGenerating())
}

func TestParams_ReuseRoundTrip(t *testing.T) {
	store := gallery.New(0)
	snap := params.Default()
	snap.Prompt = "castle"
	snap.Seed = 1234
	snap.Steps = 42
	snap.Model = "modelB"
	store.Add(gallery.Image{ID: "x", Params: snap})

	s := newSession(&fakeBackend{}, store)
	reused, ok := store.ReuseParams("x")
	require.True(t, ok)
	got := s.UpdateParams(reused.AsPatch())

	assert.Equal(t, snap, got)
	assert.Equal(t, snap, s.Params())
}

func TestParams_UpdateClampsAndReset(t *testing.T) {
	s := newSession(&fakeBackend{}, nil)
	got := s.UpdateParams(params.Patch{Steps: params.Ptr(999), BatchSize: params.Ptr(0)})
	assert.Equal(t, params.MaxSteps, got.Steps)
	assert.Equal(t, params.MinBatchSize, got.BatchSize)

	s.ResetParams()
	assert.Equal(t, params.Default(), s.Params())
}

func TestParams_RandomizeSeed(t *testing.T) {
	s := newSession(&fakeBackend{}, nil)
	for i := 0; i < 50; i++ {
		seed := s.RandomizeSeed()
		assert.GreaterOrEqual(t, seed, int64(0))
		assert.Less(t, seed, int64(1<<31-1))
		assert.Equal(t, seed, s.Params().Seed)
	}
}

func TestCancel_RacingResponseDiscardsImages(t *testing.T) {
	store := gallery.New(0)
	var s *Session
	backend := &fakeBackend{submit: func(context.Context) (*sdapi.GenerationResult, error) {
		// The cancel lands after the backend answered but before delivery.
		s.Cancel()
		return &sdapi.GenerationResult{Images: [][]byte{{1}, {2}}}, nil
	}}
	s = newSession(backend, store)
	withPrompt(s, "lighthouse")

	images, err := s.Generate(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, images)
	assert.Equal(t, 0, store.Len())
	assert.False(t, s.IsGenerating())
}
