package core

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// StatusMonitor feeds the passive backend health indicator
type StatusMonitor struct {
	session *SessionStore
	source  StatusSource
	clock   Clock
	logger  *zap.Logger
}

// NewStatusMonitor creates a status monitor
func NewStatusMonitor(session *SessionStore, source StatusSource, clock Clock, logger *zap.Logger) *StatusMonitor {
	if clock == nil {
		clock = RealClock()
	}
	m := &StatusMonitor{
		session: session,
		source:  source,
		clock:   clock,
		logger:  logger,
	}
	if inv, ok := source.(interface{ Invalidate() }); ok {
		session.Subscribe(func(ev SessionEvent) {
			if ev.Kind == SessionEnded {
				inv.Invalidate()
			}
		})
	}
	return m
}

// Status reports backend readiness. Any failure reads as offline; an
// authorization failure also ends the session.
func (m *StatusMonitor) Status(ctx context.Context) BackendStatus {
	offline := BackendStatus{CheckedAt: m.clock.Now()}

	token, gen, ok := m.session.Snapshot()
	if !ok {
		return offline
	}

	status, err := m.source.Status(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			m.logger.Warn("Status check rejected as unauthorized, ending session")
			m.session.Expire(ctx, gen)
		} else {
			m.logger.Debug("Backend status unavailable", zap.Error(err))
		}
		return offline
	}

	out := *status
	out.Online = true
	if out.CheckedAt.IsZero() {
		out.CheckedAt = m.clock.Now()
	}
	return out
}
