package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStatusSource struct {
	status *BackendStatus
	err    error
	tokens []string
}

func (f *fakeStatusSource) Status(ctx context.Context, token string) (*BackendStatus, error) {
	f.tokens = append(f.tokens, token)
	return f.status, f.err
}

func TestStatusMonitor(t *testing.T) {
	clock := newManualClock()

	tests := []struct {
		name      string
		loggedIn  bool
		source    *fakeStatusSource
		want      BackendStatus
		wantCalls int
		wantAuth  bool
	}{
		{
			name:     "anonymous session reads offline",
			source:   &fakeStatusSource{status: &BackendStatus{AILoaded: true}},
			want:     BackendStatus{CheckedAt: clock.Now()},
			wantAuth: false,
		},
		{
			name:      "healthy backend",
			loggedIn:  true,
			source:    &fakeStatusSource{status: &BackendStatus{AILoaded: true, FeaturesSync: true}},
			want:      BackendStatus{Online: true, AILoaded: true, FeaturesSync: true, CheckedAt: clock.Now()},
			wantCalls: 1,
			wantAuth:  true,
		},
		{
			name:      "unreachable backend",
			loggedIn:  true,
			source:    &fakeStatusSource{err: errors.New("connection refused")},
			want:      BackendStatus{CheckedAt: clock.Now()},
			wantCalls: 1,
			wantAuth:  true,
		},
		{
			name:      "rejected token ends the session",
			loggedIn:  true,
			source:    &fakeStatusSource{err: ErrUnauthorized},
			want:      BackendStatus{CheckedAt: clock.Now()},
			wantCalls: 1,
			wantAuth:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := NewSessionStore(&fakeAuth{}, &fakeStore{}, zap.NewNop())
			if tt.loggedIn {
				require.NoError(t, session.Login(context.Background(), "tok-1", "astro"))
			}
			m := NewStatusMonitor(session, tt.source, clock, zap.NewNop())

			got := m.Status(context.Background())
			assert.Equal(t, tt.want, got)
			assert.Len(t, tt.source.tokens, tt.wantCalls)

			_, authed := session.Current()
			assert.Equal(t, tt.wantAuth, authed)
		})
	}
}

func TestBackendStatusOperational(t *testing.T) {
	assert.True(t, BackendStatus{Online: true, AILoaded: true, FeaturesSync: true}.Operational())
	assert.False(t, BackendStatus{Online: true, AILoaded: true}.Operational())
	assert.False(t, BackendStatus{AILoaded: true, FeaturesSync: true}.Operational())
}

type invalidatingSource struct {
	fakeStatusSource
	invalidations int
}

func (s *invalidatingSource) Invalidate() { s.invalidations++ }

func TestStatusMonitorDropsCachedStatusOnLogout(t *testing.T) {
	session := NewSessionStore(&fakeAuth{}, &fakeStore{}, zap.NewNop())
	src := &invalidatingSource{}
	NewStatusMonitor(session, src, newManualClock(), zap.NewNop())

	require.NoError(t, session.Login(context.Background(), "tok-1", "astro"))
	assert.Equal(t, 0, src.invalidations)

	session.Logout(context.Background())
	assert.Equal(t, 1, src.invalidations)
}
