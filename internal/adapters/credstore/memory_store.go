package credstore

import (
	"context"

	"github.com/mikey/exodetect/internal/core"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const credentialKey = "current"

// MemoryStore is a volatile implementation of core.CredentialStore. It keeps the
// credential for the life of the process only, which suits tests and one-shot runs.
type MemoryStore struct {
	entries *cache.Cache
	logger  *zap.Logger
}

// NewMemoryStore creates an empty in-memory credential store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		entries: cache.New(cache.NoExpiration, 0),
		logger:  logger,
	}
}

// Load returns the stored credential
func (s *MemoryStore) Load(ctx context.Context) (*core.Credential, error) {
	v, ok := s.entries.Get(credentialKey)
	if !ok {
		return nil, core.ErrCredentialNotFound
	}
	cred := v.(core.Credential)
	return &cred, nil
}

// Save replaces the stored credential
func (s *MemoryStore) Save(ctx context.Context, cred *core.Credential) error {
	s.entries.Set(credentialKey, *cred, cache.NoExpiration)
	s.logger.Debug("Stored credential in memory", zap.String("user", cred.DisplayName))
	return nil
}

// Clear removes the stored credential
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.entries.Delete(credentialKey)
	return nil
}
