package frontend

import (
	"context"
	"fmt"

	"github.com/mikey/exodetect/internal/core"
	"go.uber.org/zap"
)

// BatchRunner analyses a fixed list of targets and prints the dashboard
type BatchRunner struct {
	orch    *core.Orchestrator
	session *core.SessionStore
	render  *Renderer
	targets []string
	detail  bool
	logger  *zap.Logger
}

// NewBatchRunner creates a one-shot frontend. With detail set and a single
// target the detail view is printed instead of the dashboard.
func NewBatchRunner(
	orch *core.Orchestrator,
	session *core.SessionStore,
	render *Renderer,
	targets []string,
	detail bool,
	logger *zap.Logger,
) *BatchRunner {
	return &BatchRunner{
		orch:    orch,
		session: session,
		render:  render,
		targets: targets,
		detail:  detail,
		logger:  logger,
	}
}

// Run submits every target and renders the outcome. It fails when any target failed.
func (b *BatchRunner) Run(ctx context.Context) error {
	if _, ok := b.session.Current(); !ok {
		return core.ErrNotAuthenticated
	}

	outcomes := b.orch.AnalyzeBatch(ctx, b.targets)
	b.render.Batch(outcomes)

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			b.logger.Debug("Target failed", zap.String("target", o.Target), zap.Error(o.Err))
		}
	}

	if _, ok := b.session.Current(); !ok {
		return fmt.Errorf("session ended during the batch: %w", core.ErrUnauthorized)
	}

	cache := b.orch.Cache()
	if b.detail && len(outcomes) == 1 && outcomes[0].Result != nil {
		b.render.Detail(outcomes[0].Result)
	} else {
		b.render.Dashboard(cache.Aggregate(), cache.List(), b.orch.State())
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(outcomes))
	}
	return nil
}

// Stop is a no-op for the batch runner
func (b *BatchRunner) Stop() error {
	return nil
}
