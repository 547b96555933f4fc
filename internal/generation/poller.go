package generation

import (
	"context"
	"sync"
	"time"

	"github.com/five82/sdpanel/internal/sdapi"
)

// DefaultPollInterval is the progress polling cadence while a generation runs.
const DefaultPollInterval = 500 * time.Millisecond

// poller runs one progress loop for the lifetime of a single generation.
type poller struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// startPoller launches the loop and returns immediately. Polls run one at a
// time and the next one is scheduled a full interval after the previous one
// returns, so a slow poll never causes back-to-back polls.
func startPoller(ctx context.Context, backend Backend, interval time.Duration, publish func(*sdapi.Progress), onError func(error)) *poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &poller{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(p.done)
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			snap, err := backend.PollProgress(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				onError(err)
			} else {
				publish(snap)
			}
			timer.Reset(interval)
		}
	}()
	return p
}

// stop cancels the loop and waits for it to exit. Safe to call repeatedly.
func (p *poller) stop() {
	p.once.Do(func() {
		p.cancel()
		<-p.done
	})
}
