package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/five82/sdpanel/internal/connection"
	"github.com/five82/sdpanel/internal/state"
)

const (
	defaultReconnectInterval = 5 * time.Second
	maxBackoff               = 30 * time.Second
)

// reconnectTarget is the part of state.Store the reconnector drives.
type reconnectTarget interface {
	Snapshot() state.Snapshot
	Reconnect(ctx context.Context) error
}

// StartReconnector launches a goroutine that repeats the handshake while the
// connection is in the Error state. A user Disconnect is left alone. It
// returns immediately.
func StartReconnector(ctx context.Context, store reconnectTarget, interval time.Duration, log logrus.FieldLogger) {
	if interval <= 0 {
		interval = defaultReconnectInterval
	}
	log = log.WithField("component", "reconnect")
	go func() {
		failures := 0
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			snap := store.Snapshot()
			if snap.Connection != connection.Error || snap.IsGenerating {
				failures = 0
				timer.Reset(interval)
				continue
			}
			if err := store.Reconnect(ctx); err != nil {
				failures++
				delay := calculateBackoff(failures, interval)
				log.WithError(err).WithField("retry_in", delay.String()).Debug("reconnect failed")
				timer.Reset(delay)
				continue
			}
			log.Info("reconnected")
			failures = 0
			timer.Reset(interval)
		}
	}()
}

// calculateBackoff doubles base for every consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	delay := base
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
