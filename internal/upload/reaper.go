package upload

import (
	"context"
	"log"
	"time"
)

// RunReaper periodically deletes sessions older than the configured TTL,
// regardless of completeness, to bound storage used by abandoned uploads.
// Call with a cancellable context for graceful shutdown.
func (s *Service) RunReaper(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.SessionSweep):
			if n := s.SweepExpired(ctx); n > 0 {
				log.Printf("[reaper] removed %d expired upload sessions", n)
			}
		}
	}
}

// SweepExpired deletes every session past its TTL and returns how many were
// removed.
func (s *Service) SweepExpired(ctx context.Context) int {
	cutoff := time.Now().UTC().Add(-s.cfg.SessionTTL)
	expired, err := s.store.ExpiredSessions(ctx, cutoff)
	if err != nil {
		log.Printf("[reaper] list expired sessions: %v", err)
		return 0
	}

	removed := 0
	for _, sess := range expired {
		if err := s.store.DeleteSession(ctx, sess.ID); err != nil {
			// Already gone: completed or aborted while sweeping.
			continue
		}
		_ = s.chunks.RemoveSession(sess.ID)
		removed++
	}
	return removed
}
