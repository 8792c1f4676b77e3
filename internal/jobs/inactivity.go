package jobs

import (
	"log"
	"time"

	"github.com/atendezap/atendezap-backend/internal/services"
	"github.com/atendezap/atendezap-backend/internal/storage"
)

// InactivityReaper force-deactivates sessions whose training has been idle
// past its configured timeout. Runs on a fixed interval plus once at
// startup, independent of message traffic.
type InactivityReaper struct {
	store    storage.Store
	sessions *services.ChatSessionService
	interval time.Duration
	done     chan struct{}
}

// NewInactivityReaper creates a new inactivity reaper
func NewInactivityReaper(store storage.Store, sessions *services.ChatSessionService) *InactivityReaper {
	return &InactivityReaper{
		store:    store,
		sessions: sessions,
		interval: 5 * time.Minute,
	}
}

// Start launches the sweep loop with an immediate first pass
func (r *InactivityReaper) Start() {
	if r.done != nil {
		log.Println("Inactivity reaper already running")
		return
	}

	r.done = make(chan struct{})
	log.Printf("🧹 Inactivity reaper started (interval %v)", r.interval)

	go func() {
		r.Sweep()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.Sweep()
			case <-r.done:
				return
			}
		}
	}()
}

// Stop halts the sweep loop and clears its timer
func (r *InactivityReaper) Stop() {
	if r.done == nil {
		return
	}
	close(r.done)
	r.done = nil
	log.Println("🧹 Inactivity reaper stopped")
}

// Sweep runs one pass over all sessions with an active training.
// Per-session failures are logged and never abort the sweep.
func (r *InactivityReaper) Sweep() {
	sessions, err := r.store.GetSessionsWithActiveTraining()
	if err != nil {
		log.Printf("❌ Inactivity sweep failed to query sessions: %v", err)
		return
	}

	deactivated := 0
	for _, session := range sessions {
		training, err := r.store.GetTraining(*session.ActiveTrainingID)
		if err != nil {
			log.Printf("⚠️  Session %s references unknown training %s: %v", session.SessionKey, *session.ActiveTrainingID, err)
			continue
		}
		if training.InactivityTimeout <= 0 {
			continue
		}

		// Sessions that never saw a message fall back to the training start
		lastActivity := session.LastMessageAt
		if lastActivity.IsZero() && session.TrainingStartedAt != nil {
			lastActivity = *session.TrainingStartedAt
		}
		if lastActivity.IsZero() {
			continue
		}

		elapsed := time.Since(lastActivity)
		if elapsed < time.Duration(training.InactivityTimeout)*time.Minute {
			continue
		}

		if err := r.sessions.Deactivate(session.ConnectionID, session.Counterparty); err != nil {
			log.Printf("❌ Failed to deactivate idle session %s: %v", session.SessionKey, err)
			continue
		}
		log.Printf("💤 Session %s idle for %v - training %s deactivated", session.SessionKey, elapsed.Round(time.Minute), training.ID)
		deactivated++
	}

	if deactivated > 0 {
		log.Printf("🧹 Inactivity sweep deactivated %d session(s)", deactivated)
	}
}
