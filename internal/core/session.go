package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// SessionEventKind describes a credential transition
type SessionEventKind int

const (
	SessionStarted SessionEventKind = iota
	SessionEnded
)

const reasonReplaced = "replaced by new login"

// SessionEvent is delivered to session listeners after a transition
type SessionEvent struct {
	Kind        SessionEventKind
	DisplayName string
	Reason      string
}

// SessionStore owns the current credential and its persisted copy
type SessionStore struct {
	auth   AuthBackend
	store  CredentialStore
	logger *zap.Logger

	mu         sync.RWMutex
	cred       Credential
	generation uint64
	listeners  []func(SessionEvent)
}

// NewSessionStore creates an anonymous session
func NewSessionStore(auth AuthBackend, store CredentialStore, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		auth:   auth,
		store:  store,
		logger: logger,
	}
}

// Subscribe registers fn to be called after every login or logout
func (s *SessionStore) Subscribe(fn func(SessionEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Current returns the credential and whether the session is authenticated
func (s *SessionStore) Current() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.cred.Valid()
}

// Snapshot returns the token together with the generation it belongs to.
// The generation changes on every login and logout.
func (s *SessionStore) Snapshot() (string, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.Token, s.generation, s.cred.Valid()
}

// Generation returns the current session generation
func (s *SessionStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Login stores and persists a credential issued by the auth backend
func (s *SessionStore) Login(ctx context.Context, token, displayName string) error {
	token = strings.TrimSpace(token)
	if token == "" || displayName == "" {
		return errors.New("login requires both a token and a display name")
	}
	s.start(ctx, Credential{Token: token, DisplayName: displayName})

	if err := s.store.Save(ctx, &Credential{Token: token, DisplayName: displayName}); err != nil {
		s.logger.Warn("Failed to persist credential", zap.Error(err))
	}
	return nil
}

// Authenticate performs the login exchange and starts a session with the result
func (s *SessionStore) Authenticate(ctx context.Context, username, password string) error {
	cred, err := s.auth.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	name := cred.DisplayName
	if name == "" {
		name = username
	}
	return s.Login(ctx, cred.Token, name)
}

// Restore loads a persisted credential and verifies it with the backend.
// It returns true when the restored session survived verification.
func (s *SessionStore) Restore(ctx context.Context) (bool, error) {
	cred, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load persisted credential: %w", err)
	}
	if !cred.Valid() {
		s.logger.Warn("Discarding incomplete persisted credential")
		if err := s.store.Clear(ctx); err != nil {
			s.logger.Warn("Failed to erase persisted credential", zap.Error(err))
		}
		return false, nil
	}

	gen := s.start(ctx, *cred)
	s.logger.Debug("Restored credential, verifying",
		zap.String("user", cred.DisplayName),
		zap.String("token", RedactToken(cred.Token)))

	valid, err := s.auth.Verify(ctx, cred.Token)
	if err != nil || !valid {
		reason := "token rejected by backend"
		if err != nil {
			reason = fmt.Sprintf("verification failed: %v", err)
		}
		s.endIfCurrent(ctx, gen, reason)
		return false, nil
	}

	return true, nil
}

// Logout ends the session locally and tells the backend on a best-effort basis
func (s *SessionStore) Logout(ctx context.Context) {
	s.end(ctx, "logout", nil)
}

// Expire ends the session after an authorization failure, provided the failing
// request was issued under the current session generation
func (s *SessionStore) Expire(ctx context.Context, generation uint64) bool {
	return s.endIfCurrent(ctx, generation, "authorization failure")
}

// start installs cred as the current credential, ending any active session first
func (s *SessionStore) start(ctx context.Context, cred Credential) uint64 {
	s.mu.Lock()
	prev := s.cred
	if prev.Valid() {
		s.generation++
	}
	s.cred = cred
	s.generation++
	gen := s.generation
	listeners := s.listeners
	s.mu.Unlock()

	if prev.Valid() {
		for _, fn := range listeners {
			fn(SessionEvent{Kind: SessionEnded, DisplayName: prev.DisplayName, Reason: reasonReplaced})
		}
		if prev.Token != cred.Token {
			if err := s.auth.Logout(ctx, prev.Token); err != nil {
				s.logger.Debug("Backend logout notification failed", zap.Error(err))
			}
		}
		s.logger.Info("Session ended", zap.String("user", prev.DisplayName), zap.String("reason", reasonReplaced))
	}

	s.logger.Info("Session started", zap.String("user", cred.DisplayName))
	for _, fn := range listeners {
		fn(SessionEvent{Kind: SessionStarted, DisplayName: cred.DisplayName})
	}
	return gen
}

func (s *SessionStore) endIfCurrent(ctx context.Context, generation uint64, reason string) bool {
	return s.end(ctx, reason, func() bool {
		return s.generation == generation && s.cred.Valid()
	})
}

// end clears the credential when cond, evaluated under the lock, allows it
func (s *SessionStore) end(ctx context.Context, reason string, cond func() bool) bool {
	s.mu.Lock()
	if cond != nil && !cond() {
		s.mu.Unlock()
		return false
	}
	prev := s.cred
	s.cred = Credential{}
	s.generation++
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(SessionEvent{Kind: SessionEnded, DisplayName: prev.DisplayName, Reason: reason})
	}

	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("Failed to erase persisted credential", zap.Error(err))
	}

	if prev.Token != "" {
		if err := s.auth.Logout(ctx, prev.Token); err != nil {
			s.logger.Debug("Backend logout notification failed", zap.Error(err))
		}
	}
	s.logger.Info("Session ended", zap.String("user", prev.DisplayName), zap.String("reason", reason))
	return true
}

// RedactToken shortens a token for logging
func RedactToken(tok string) string {
	if tok == "" {
		return ""
	}
	if len(tok) <= 4 {
		return "***"
	}
	return tok[:4] + "***"
}
