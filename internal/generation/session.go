// Package generation runs text-to-image submissions one at a time and tracks
// their progress while they are in flight.
package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/five82/sdpanel/internal/gallery"
	"github.com/five82/sdpanel/internal/params"
	"github.com/five82/sdpanel/internal/sdapi"
)

// ErrInFlight is returned by Generate while another generation is running.
var ErrInFlight = errors.New("a generation is already in progress")

// Backend is the subset of the sdapi client a session drives.
type Backend interface {
	SubmitGeneration(ctx context.Context, p params.Generation) (*sdapi.GenerationResult, error)
	PollProgress(ctx context.Context) (*sdapi.Progress, error)
	Interrupt(ctx context.Context) error
}

// Sink receives every completed batch as one call.
type Sink interface {
	Add(images ...gallery.Image) []string
}

// Options configures a Session.
type Options struct {
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Timeout bounds a single submission. Zero means no limit.
	Timeout time.Duration
	Logger  logrus.FieldLogger
	// Now is used to timestamp images; defaults to time.Now.
	Now func() time.Time
}

// Session owns the working parameters and the in-flight flag.
type Session struct {
	backend Backend
	sink    Sink
	opts    Options
	log     logrus.FieldLogger

	mu        sync.RWMutex
	params    params.Generation
	inFlight  bool
	progress  *sdapi.Progress
	cancelRun context.CancelFunc
}

// NewSession returns an idle session holding default parameters.
func NewSession(backend Backend, sink Sink, opts Options) *Session {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{
		backend: backend,
		sink:    sink,
		opts:    opts,
		log:     log.WithField("component", "generation"),
		params:  params.Default(),
	}
}

// Generate submits the current parameters and blocks until the backend
// answers. The produced images are handed to the sink in response order and
// returned. Progress is tracked only while the call is running.
func (s *Session) Generate(ctx context.Context) ([]gallery.Image, error) {
	s.mu.Lock()
	snapshot := s.params
	if err := snapshot.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrInFlight
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if s.opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	s.inFlight = true
	s.progress = &sdapi.Progress{}
	s.cancelRun = cancel
	s.mu.Unlock()

	log := s.log.WithFields(logrus.Fields{
		"batch": snapshot.BatchSize,
		"size":  fmt.Sprintf("%dx%d", snapshot.Width, snapshot.Height),
		"seed":  snapshot.Seed,
	})
	log.Info("generation started")
	started := s.opts.Now()

	p := startPoller(runCtx, s.backend, s.opts.PollInterval, s.setProgress, func(err error) {
		log.WithError(err).Debug("progress poll failed")
	})
	defer s.finish(p, cancel)

	result, err := s.backend.SubmitGeneration(runCtx, snapshot)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && s.opts.Timeout > 0 {
			err = fmt.Errorf("generation timed out after %s: %w", s.opts.Timeout, err)
		}
		log.WithError(err).Warn("generation failed")
		return nil, err
	}
	images := gallery.NewImages(result.Images, snapshot, result.Info, s.opts.Now())
	if err := s.deliver(runCtx, images); err != nil {
		log.WithError(err).Info("generation cancelled")
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"images":  len(images),
		"elapsed": s.opts.Now().Sub(started).Round(time.Millisecond),
	}).Info("generation finished")
	return images, nil
}

// deliver hands images to the sink unless the run was cancelled. Cancel takes
// the same lock, so a cancel that raced the response still discards it.
func (s *Session) deliver(runCtx context.Context, images []gallery.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := runCtx.Err(); err != nil {
		return err
	}
	if len(images) > 0 && s.sink != nil {
		s.sink.Add(images...)
	}
	return nil
}

func (s *Session) finish(p *poller, cancel context.CancelFunc) {
	p.stop()
	cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	s.progress = nil
	s.cancelRun = nil
}

func (s *Session) setProgress(snap *sdapi.Progress) {
	if snap == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inFlight {
		return
	}
	s.progress = snap.Clone()
}

// Interrupt asks the backend to stop the running job. It never changes the
// in-flight flag; the pending Generate returns when the backend answers.
func (s *Session) Interrupt(ctx context.Context) {
	if err := s.backend.Interrupt(ctx); err != nil {
		s.log.WithError(err).Debug("interrupt failed")
	}
}

// Cancel abandons the in-flight submission on the client side. The running
// Generate returns a context error and adds nothing to the gallery.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelRun != nil {
		s.cancelRun()
	}
}

// UpdateParams merges patch into the working parameters.
func (s *Session) UpdateParams(patch params.Patch) params.Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = s.params.Apply(patch).Clamp()
	return s.params
}

// SetParams replaces the working parameters.
func (s *Session) SetParams(p params.Generation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p.Clamp()
}

// ResetParams restores the defaults.
func (s *Session) ResetParams() {
	s.SetParams(params.Default())
}

// RandomizeSeed picks a fresh seed and returns it.
func (s *Session) RandomizeSeed() int64 {
	seed := params.NewSeed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params.Seed = seed
	return seed
}

// Params returns a copy of the working parameters.
func (s *Session) Params() params.Generation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// IsGenerating reports whether a submission is in flight.
func (s *Session) IsGenerating() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight
}

// Progress returns a copy of the latest snapshot, or nil when idle.
func (s *Session) Progress() *sdapi.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress.Clone()
}
