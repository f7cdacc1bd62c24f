package core

import (
	"context"
	"time"
)

// AnalysisBackend runs acquisition, feature extraction and inference for a target
type AnalysisBackend interface {
	// Analyze returns ErrUnauthorized on a 401 and *APIError for other failure responses
	Analyze(ctx context.Context, token, target string) (*AnalysisResult, error)
}

// AuthBackend issues and validates bearer tokens
type AuthBackend interface {
	// Login exchanges a username and password for a credential
	Login(ctx context.Context, username, password string) (*Credential, error)

	// Logout tells the backend to drop the token
	Logout(ctx context.Context, token string) error

	// Verify reports whether the backend still accepts the token
	Verify(ctx context.Context, token string) (bool, error)
}

// StatusSource reports backend readiness
type StatusSource interface {
	Status(ctx context.Context, token string) (*BackendStatus, error)
}

// CredentialStore persists the credential between runs
type CredentialStore interface {
	// Load returns ErrCredentialNotFound when nothing is persisted
	Load(ctx context.Context) (*Credential, error)

	// Save replaces any persisted credential
	Save(ctx context.Context, cred *Credential) error

	// Clear erases the persisted credential; clearing an empty store is not an error
	Clear(ctx context.Context) error
}

// Clock paces staggered batch submission
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

// RealClock returns the wall clock
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
