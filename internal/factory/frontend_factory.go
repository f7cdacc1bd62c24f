package factory

import (
	"io"

	"github.com/fatih/color"
	"github.com/mikey/exodetect/internal/adapters/frontend"
	"github.com/mikey/exodetect/internal/config"
	"github.com/mikey/exodetect/internal/core"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// FrontendFactory creates operator frontends wired to the session controller
type FrontendFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	orch    *core.Orchestrator
	session *core.SessionStore
	status  *core.StatusMonitor
}

// NewFrontendFactory creates a new frontend factory
func NewFrontendFactory(
	cfg *config.Config,
	logger *zap.Logger,
	orch *core.Orchestrator,
	session *core.SessionStore,
	status *core.StatusMonitor,
) *FrontendFactory {
	return &FrontendFactory{
		cfg:     cfg,
		logger:  logger,
		orch:    orch,
		session: session,
		status:  status,
	}
}

// CreateRenderer creates a renderer for out honouring the color and locale settings
func (f *FrontendFactory) CreateRenderer(out io.Writer) *frontend.Renderer {
	colors := !color.NoColor
	switch f.cfg.GetString("frontend.color") {
	case "always":
		colors = true
	case "never":
		colors = false
	}

	tag, err := language.Parse(f.cfg.GetString("frontend.locale"))
	if err != nil {
		f.logger.Warn("Invalid frontend locale, using English", zap.Error(err))
		tag = language.English
	}
	return frontend.NewRenderer(out, colors, tag)
}

// CreateShell creates the interactive frontend
func (f *FrontendFactory) CreateShell(in io.Reader, out io.Writer, secret frontend.PasswordReader) *frontend.Shell {
	return frontend.NewShell(f.orch, f.session, f.status, f.CreateRenderer(out), in, out, secret, f.logger)
}

// CreateBatchRunner creates the one-shot frontend for targets
func (f *FrontendFactory) CreateBatchRunner(out io.Writer, targets []string, detail bool) *frontend.BatchRunner {
	return frontend.NewBatchRunner(f.orch, f.session, f.CreateRenderer(out), targets, detail, f.logger)
}
