package core

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const waitFor = 2 * time.Second

type outcome struct {
	result *AnalysisResult
	err    error
}

// gatedBackend blocks every Analyze call until the test releases it
type gatedBackend struct {
	mu      sync.Mutex
	calls   map[string][]chan outcome
	tokens  []string
	started chan string
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{
		calls:   make(map[string][]chan outcome),
		started: make(chan string, 64),
	}
}

func (b *gatedBackend) Analyze(ctx context.Context, token, target string) (*AnalysisResult, error) {
	gate := make(chan outcome, 1)
	b.mu.Lock()
	b.calls[target] = append(b.calls[target], gate)
	b.tokens = append(b.tokens, token)
	b.mu.Unlock()
	b.started <- target

	o := <-gate
	return o.result, o.err
}

func (b *gatedBackend) callCount(target string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls[target])
}

// release completes the n-th call (0-based) made for target
func (b *gatedBackend) release(t *testing.T, target string, n int, result *AnalysisResult, err error) {
	t.Helper()
	require.Eventually(t, func() bool { return b.callCount(target) > n }, waitFor, time.Millisecond)
	b.mu.Lock()
	gate := b.calls[target][n]
	b.mu.Unlock()
	gate <- outcome{result: result, err: err}
}

func (b *gatedBackend) awaitStart(t *testing.T) string {
	t.Helper()
	select {
	case target := <-b.started:
		return target
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for a backend call")
		return ""
	}
}

type fakeAuth struct {
	mu         sync.Mutex
	loginCred  *Credential
	loginErr   error
	verifyOK   bool
	verifyErr  error
	logouts    []string
	verifyHits int
}

func (a *fakeAuth) Login(ctx context.Context, username, password string) (*Credential, error) {
	if a.loginErr != nil {
		return nil, a.loginErr
	}
	return a.loginCred, nil
}

func (a *fakeAuth) Logout(ctx context.Context, token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logouts = append(a.logouts, token)
	return nil
}

func (a *fakeAuth) Verify(ctx context.Context, token string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.verifyHits++
	return a.verifyOK, a.verifyErr
}

func (a *fakeAuth) loggedOut() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.logouts...)
}

type fakeStore struct {
	mu      sync.Mutex
	cred    *Credential
	saveErr error
	clears  int
}

func (s *fakeStore) Load(ctx context.Context) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil, ErrCredentialNotFound
	}
	c := *s.cred
	return &c, nil
}

func (s *fakeStore) Save(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	c := *cred
	s.cred = &c
	return nil
}

func (s *fakeStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	s.clears++
	return nil
}

func (s *fakeStore) saved() *Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred
}

type afterRequest struct {
	d  time.Duration
	ch chan time.Time
}

// manualClock hands every After request to the test instead of sleeping
type manualClock struct {
	now    time.Time
	afters chan afterRequest
}

func newManualClock() *manualClock {
	return &manualClock{
		now:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		afters: make(chan afterRequest, 16),
	}
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.afters <- afterRequest{d: d, ch: ch}
	return ch
}

func (c *manualClock) awaitAfter(t *testing.T) afterRequest {
	t.Helper()
	select {
	case req := <-c.afters:
		return req
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for a timer")
		return afterRequest{}
	}
}

type harness struct {
	backend *gatedBackend
	auth    *fakeAuth
	store   *fakeStore
	clock   *manualClock
	session *SessionStore
	cache   *ResultCache
	view    *ViewController
	orch    *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	// fetches may outlive the test, so no test-bound logger
	logger := zap.NewNop()
	h := &harness{
		backend: newGatedBackend(),
		auth:    &fakeAuth{verifyOK: true},
		store:   &fakeStore{},
		clock:   newManualClock(),
		cache:   NewResultCache(),
	}
	h.session = NewSessionStore(h.auth, h.store, logger)
	h.view = NewViewController(h.cache)
	h.orch = NewOrchestrator(h.session, h.backend, h.cache, h.view, h.clock, logger,
		Settings{BatchInterval: DefaultBatchInterval})
	return h
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	require.NoError(t, h.session.Login(context.Background(), "tok-1", "astro"))
}

type analyzeCall struct {
	result *AnalysisResult
	err    error
}

// analyzeAsync runs Analyze in the background and returns its future
func (h *harness) analyzeAsync(ctx context.Context, target string) <-chan analyzeCall {
	ch := make(chan analyzeCall, 1)
	go func() {
		r, err := h.orch.Analyze(ctx, target)
		ch <- analyzeCall{result: r, err: err}
	}()
	return ch
}

func await(t *testing.T, ch <-chan analyzeCall) analyzeCall {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for Analyze to return")
		return analyzeCall{}
	}
}

func sampleResult(target string, score float64) *AnalysisResult {
	return &AnalysisResult{
		Target:      target,
		Mission:     "Kepler",
		Score:       score,
		Period:      1.5,
		PointsCount: 1000,
		Series:      []LightPoint{{Time: 0, Flux: 1}},
	}
}

func nan() float64 { return math.NaN() }

func inf() float64 { return math.Inf(1) }
