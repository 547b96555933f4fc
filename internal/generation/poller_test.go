package generation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/sdpanel/internal/params"
	"github.com/five82/sdpanel/internal/sdapi"
)

// slowProgress records when each poll starts and takes delay to answer.
type slowProgress struct {
	delay time.Duration

	mu     sync.Mutex
	starts []time.Time
}

func (s *slowProgress) SubmitGeneration(context.Context, params.Generation) (*sdapi.GenerationResult, error) {
	return &sdapi.GenerationResult{}, nil
}

func (s *slowProgress) PollProgress(ctx context.Context) (*sdapi.Progress, error) {
	s.mu.Lock()
	s.starts = append(s.starts, time.Now())
	s.mu.Unlock()
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
	}
	return &sdapi.Progress{}, nil
}

func (s *slowProgress) Interrupt(context.Context) error {
	return nil
}

func (s *slowProgress) pollStarts() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.starts...)
}

func TestPoller_SlowPollSkipsTicks(t *testing.T) {
	const (
		interval = 20 * time.Millisecond
		delay    = 30 * time.Millisecond
	)
	backend := &slowProgress{delay: delay}
	p := startPoller(context.Background(), backend, interval, func(*sdapi.Progress) {}, func(error) {})

	require.Eventually(t, func() bool {
		return len(backend.pollStarts()) >= 4
	}, 2*time.Second, time.Millisecond)
	p.stop()

	starts := backend.pollStarts()
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, interval+delay-2*time.Millisecond,
			"poll %d started %s after the previous one", i, gap)
	}
}

func TestPoller_StopIsIdempotentAndJoins(t *testing.T) {
	backend := &slowProgress{delay: time.Millisecond}
	published := make(chan struct{}, 16)
	p := startPoller(context.Background(), backend, 2*time.Millisecond, func(*sdapi.Progress) {
		select {
		case published <- struct{}{}:
		default:
		}
	}, func(error) {})

	<-published
	p.stop()
	p.stop()

	after := len(backend.pollStarts())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, len(backend.pollStarts()))
}
