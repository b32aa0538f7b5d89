package websocket

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// SessionInfo is a point-in-time view of one live session
type SessionInfo struct {
	ID         string
	RemoteAddr string
	State      string
	Age        time.Duration
}

// Snapshot returns the live sessions, oldest first
func (h *Hub) Snapshot() []SessionInfo {
	now := time.Now()

	h.mu.RLock()
	infos := make([]SessionInfo, 0, len(h.sessions))
	for _, s := range h.sessions {
		infos = append(infos, SessionInfo{
			ID:         s.ID,
			RemoteAddr: s.RemoteAddr,
			State:      string(s.State()),
			Age:        now.Sub(s.StartedAt),
		})
	}
	h.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Age > infos[j].Age })
	return infos
}

// SessionReporter periodically logs the live sessions of a hub. Relays have no
// duration bound, so long-lived sessions show up here.
type SessionReporter struct {
	hub      *Hub
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
}

// NewSessionReporter creates a reporter logging every interval
func NewSessionReporter(hub *Hub, interval time.Duration, logger *zap.Logger) *SessionReporter {
	return &SessionReporter{
		hub:      hub,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background reporting loop
func (r *SessionReporter) Start() {
	go r.reportLoop()
	r.logger.Info("Session reporter started", zap.Duration("interval", r.interval))
}

// Stop stops the reporting loop
func (r *SessionReporter) Stop() {
	close(r.stopChan)
	r.logger.Info("Session reporter stopped")
}

func (r *SessionReporter) reportLoop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *SessionReporter) report() {
	sessions := r.hub.Snapshot()
	if len(sessions) == 0 {
		r.logger.Debug("No live transcription sessions")
		return
	}

	oldest := sessions[0]
	r.logger.Info("Live transcription sessions",
		zap.Int("count", len(sessions)),
		zap.String("oldestSessionID", oldest.ID),
		zap.String("oldestRemoteAddr", oldest.RemoteAddr),
		zap.String("oldestState", oldest.State),
		zap.Duration("oldestAge", oldest.Age))
}
