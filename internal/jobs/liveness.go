package jobs

import (
	"log"
	"time"

	"github.com/atendezap/atendezap-backend/internal/services"
)

// LivenessMonitor watches live sockets that never finished authenticating
// and nudges them through the connection manager's reconnect path. A
// lower-frequency status report logs per-connection state for
// observability; the report never mutates anything.
type LivenessMonitor struct {
	cm             *services.ConnectionManager
	checkInterval  time.Duration
	reportInterval time.Duration
	done           chan struct{}
}

// NewLivenessMonitor creates a new liveness monitor
func NewLivenessMonitor(cm *services.ConnectionManager) *LivenessMonitor {
	return &LivenessMonitor{
		cm:             cm,
		checkInterval:  5 * time.Minute,
		reportInterval: 1 * time.Minute,
	}
}

// Start launches the reconnect check and status report loops
func (m *LivenessMonitor) Start() {
	if m.done != nil {
		log.Println("Liveness monitor already running")
		return
	}

	m.done = make(chan struct{})
	log.Printf("💓 Liveness monitor started (check %v, report %v)", m.checkInterval, m.reportInterval)

	go func() {
		ticker := time.NewTicker(m.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.CheckConnections()
			case <-m.done:
				return
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(m.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.ReportStatus()
			case <-m.done:
				return
			}
		}
	}()
}

// Stop halts both loops and clears their timers
func (m *LivenessMonitor) Stop() {
	if m.done == nil {
		return
	}
	close(m.done)
	m.done = nil
	log.Println("💓 Liveness monitor stopped")
}

// CheckConnections reconnects sockets that are live but unauthenticated,
// subject to the manager's attempt cap
func (m *LivenessMonitor) CheckConnections() {
	stale := m.cm.UnauthenticatedLive()
	for _, id := range stale {
		log.Printf("💓 Connection %s has a socket but no authenticated identity - reconnecting", id)
		if err := m.cm.Reconnect(id); err != nil {
			log.Printf("❌ Liveness reconnect for %s failed: %v", id, err)
		}
	}
}

// ReportStatus logs the authenticated state of every known connection
func (m *LivenessMonitor) ReportStatus() {
	for _, info := range m.cm.Statuses() {
		if info.Authenticated {
			log.Printf("💓 %s: authenticated (%s)", info.ID, info.PhoneNumber)
		} else {
			log.Printf("💓 %s: not authenticated (status=%s)", info.ID, info.Status)
		}
	}
}
