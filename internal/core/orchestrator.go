package core

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// MaxTopFeatures is the number of ranked features kept per result
const MaxTopFeatures = 5

// DefaultBatchInterval spaces out batch submissions
const DefaultBatchInterval = 500 * time.Millisecond

// errSessionEnded marks a fetch whose session ended before it completed
var errSessionEnded = errors.New("session ended before the request completed")

var errEmptyResult = errors.New("backend returned an empty analysis")

// Settings tunes the orchestrator
type Settings struct {
	BatchInterval time.Duration
}

// BatchOutcome is the result of one target of a batch
type BatchOutcome struct {
	Target string
	Result *AnalysisResult
	Err    error
}

// Orchestrator turns analyze requests into cached, deduplicated backend calls.
// Cache, request state and view transitions are serialised behind mu; the
// backend call itself runs outside the lock. Cache and view listeners run with
// mu held and must not call back into the orchestrator.
type Orchestrator struct {
	session *SessionStore
	backend AnalysisBackend
	cache   *ResultCache
	view    *ViewController
	clock   Clock
	logger  *zap.Logger

	batchInterval time.Duration

	mu        sync.Mutex
	inFlight  map[string]uint64
	lastError string
	group     singleflight.Group
}

// NewOrchestrator creates the analysis orchestrator and subscribes it to session changes
func NewOrchestrator(
	session *SessionStore,
	backend AnalysisBackend,
	cache *ResultCache,
	view *ViewController,
	clock Clock,
	logger *zap.Logger,
	settings Settings,
) *Orchestrator {
	if clock == nil {
		clock = RealClock()
	}
	interval := settings.BatchInterval
	if interval < 0 {
		interval = 0
	}

	o := &Orchestrator{
		session:       session,
		backend:       backend,
		cache:         cache,
		view:          view,
		clock:         clock,
		logger:        logger,
		batchInterval: interval,
		inFlight:      make(map[string]uint64),
	}
	session.Subscribe(o.onSessionEvent)
	return o
}

// Analyze returns the result for target, from the cache when known.
// Concurrent calls for the same target share one backend call. A nil result
// with a nil error means there is nothing to show: the target was blank or the
// session ended while the request was pending.
func (o *Orchestrator) Analyze(ctx context.Context, target string) (*AnalysisResult, error) {
	return o.analyze(ctx, target, false)
}

// Refresh re-runs the analysis of target even when it is cached. The cached
// entry stays in place until the new result replaces it.
func (o *Orchestrator) Refresh(ctx context.Context, target string) (*AnalysisResult, error) {
	return o.analyze(ctx, target, true)
}

func (o *Orchestrator) analyze(ctx context.Context, target string, force bool) (*AnalysisResult, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, nil
	}

	o.mu.Lock()
	if !force {
		if cached, ok := o.cache.Get(target); ok {
			_ = o.view.Open(target)
			o.mu.Unlock()
			o.logger.Debug("Cache hit for target", zap.String("target", target))
			return cached, nil
		}
	}

	token, gen, ok := o.session.Snapshot()
	if !ok {
		o.mu.Unlock()
		return nil, ErrNotAuthenticated
	}

	if pendingGen, pending := o.inFlight[target]; pending && pendingGen == gen {
		o.logger.Debug("Joining in-flight analysis", zap.String("target", target))
	} else {
		if pending {
			// left over from an earlier session; its outcome will be discarded
			o.group.Forget(target)
		}
		o.inFlight[target] = gen
		o.lastError = ""
	}
	ch := o.group.DoChan(target, func() (interface{}, error) {
		return o.fetch(token, gen, target)
	})
	o.mu.Unlock()

	select {
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, errSessionEnded) {
				return nil, nil
			}
			return nil, res.Err
		}
		return res.Val.(*AnalysisResult), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetch performs the backend call and applies its outcome. It runs detached
// from any caller context; only the transport bounds its duration.
func (o *Orchestrator) fetch(token string, gen uint64, target string) (*AnalysisResult, error) {
	attempt := ulid.Make().String()
	started := o.clock.Now()
	o.logger.Info("Analysis started", zap.String("target", target), zap.String("attempt", attempt))

	result, err := o.backend.Analyze(context.Background(), token, target)
	if err == nil && result == nil {
		err = errEmptyResult
	}

	o.mu.Lock()
	if o.inFlight[target] != gen || o.session.Generation() != gen {
		o.releaseLocked(target, gen)
		o.mu.Unlock()
		o.logger.Debug("Discarding analysis from an ended session",
			zap.String("target", target), zap.String("attempt", attempt))
		return nil, errSessionEnded
	}

	if err != nil && errors.Is(err, ErrUnauthorized) {
		o.mu.Unlock()
		o.logger.Warn("Analysis rejected as unauthorized, ending session",
			zap.String("target", target), zap.String("attempt", attempt))
		if !o.session.Expire(context.Background(), gen) {
			o.mu.Lock()
			o.releaseLocked(target, gen)
			o.mu.Unlock()
		}
		return nil, errSessionEnded
	}

	o.releaseLocked(target, gen)

	if err != nil {
		o.lastError = UserMessage(err)
		o.mu.Unlock()
		o.logger.Error("Analysis failed",
			zap.String("target", target),
			zap.String("attempt", attempt),
			zap.Error(err))
		return nil, err
	}

	if result.Target != target {
		o.logger.Debug("Backend renamed target, keeping requested identifier",
			zap.String("requested", target), zap.String("returned", result.Target))
		result.Target = target
	}
	if len(result.TopFeatures) > MaxTopFeatures {
		result.TopFeatures = result.TopFeatures[:MaxTopFeatures]
	}
	result.AttemptID = attempt
	result.AnalyzedAt = o.clock.Now()

	o.lastError = ""
	o.cache.Upsert(result)
	_ = o.view.Open(target)
	o.mu.Unlock()

	o.logger.Info("Analysis completed",
		zap.String("target", target),
		zap.String("attempt", attempt),
		zap.Float64("score", result.Score),
		zap.Duration("elapsed", o.clock.Now().Sub(started)))
	return result, nil
}

// releaseLocked drops the in-flight marker for target if it still belongs to gen
func (o *Orchestrator) releaseLocked(target string, gen uint64) {
	if o.inFlight[target] != gen {
		return
	}
	delete(o.inFlight, target)
	o.group.Forget(target)
}

// AnalyzeBatch submits every target in input order, one batch interval apart.
// Each target is independent; a failure never blocks the others. Targets not
// yet submitted when ctx is done report ctx.Err().
func (o *Orchestrator) AnalyzeBatch(ctx context.Context, targets []string) []BatchOutcome {
	queue := make([]string, 0, len(targets))
	for _, t := range targets {
		if t = strings.TrimSpace(t); t != "" {
			queue = append(queue, t)
		}
	}

	outcomes := make([]BatchOutcome, len(queue))
	var g errgroup.Group
	for i, target := range queue {
		i, target := i, target
		if i > 0 && o.batchInterval > 0 {
			select {
			case <-o.clock.After(o.batchInterval):
			case <-ctx.Done():
			}
		}
		if err := ctx.Err(); err != nil {
			outcomes[i] = BatchOutcome{Target: target, Err: err}
			continue
		}
		g.Go(func() error {
			result, err := o.Analyze(ctx, target)
			outcomes[i] = BatchOutcome{Target: target, Result: result, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// Remove evicts target from the cache. Targets with a request in flight are
// left untouched until that request settles.
func (o *Orchestrator) Remove(target string) bool {
	target = strings.TrimSpace(target)

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, pending := o.inFlight[target]; pending {
		o.logger.Debug("Not evicting target with a request in flight", zap.String("target", target))
		return false
	}
	return o.cache.Evict(target)
}

// State returns the in-flight targets, sorted, and the last request error
func (o *Orchestrator) State() RequestState {
	o.mu.Lock()
	defer o.mu.Unlock()

	inFlight := make([]string, 0, len(o.inFlight))
	for target := range o.inFlight {
		inFlight = append(inFlight, target)
	}
	sort.Strings(inFlight)
	return RequestState{InFlight: inFlight, LastError: o.lastError}
}

// InFlight reports whether target has a request pending
func (o *Orchestrator) InFlight(target string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inFlight[strings.TrimSpace(target)]
	return ok
}

// Cache returns the result cache the orchestrator writes to
func (o *Orchestrator) Cache() *ResultCache {
	return o.cache
}

// View returns the view controller the orchestrator drives
func (o *Orchestrator) View() *ViewController {
	return o.view
}

func (o *Orchestrator) onSessionEvent(ev SessionEvent) {
	if ev.Kind != SessionEnded {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	for target := range o.inFlight {
		o.group.Forget(target)
	}
	o.inFlight = make(map[string]uint64)
	o.lastError = ""
	o.cache.Clear()
	o.view.Reset()
}
