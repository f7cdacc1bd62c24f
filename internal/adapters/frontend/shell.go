package frontend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/mikey/exodetect/internal/core"
	"go.uber.org/zap"
)

const shellPrompt = "exodetect> "

// PasswordReader reads a secret without echoing it. A nil reader takes the
// next input line instead.
type PasswordReader func() (string, error)

// Shell is the interactive line-oriented frontend. It renders the dashboard or
// the selected result after every command that changes what is shown.
type Shell struct {
	orch    *core.Orchestrator
	session *core.SessionStore
	status  *core.StatusMonitor
	render  *Renderer
	in      io.Reader
	out     io.Writer
	secret  PasswordReader
	logger  *zap.Logger

	requests chan struct{}
	lines    chan lineResult

	mu      sync.Mutex
	notices []string
}

// NewShell creates the interactive frontend
func NewShell(
	orch *core.Orchestrator,
	session *core.SessionStore,
	status *core.StatusMonitor,
	render *Renderer,
	in io.Reader,
	out io.Writer,
	secret PasswordReader,
	logger *zap.Logger,
) *Shell {
	s := &Shell{
		orch:    orch,
		session: session,
		status:  status,
		render:  render,
		in:      in,
		out:     out,
		secret:  secret,
		logger:  logger,
	}
	session.Subscribe(s.onSessionEvent)
	return s
}

// Run reads commands until EOF, quit or ctx is done
func (s *Shell) Run(ctx context.Context) error {
	s.render.Status(s.status.Status(ctx))
	if cred, ok := s.session.Current(); ok {
		s.render.Message("Logged in as %s.", cred.DisplayName)
	} else {
		s.render.Message("Not logged in. Use 'login <username>'.")
	}
	s.render.Message("Type 'help' for commands.")

	s.startReader()
	for {
		s.flushNotices()
		fmt.Fprint(s.out, shellPrompt)

		line, err := s.nextLine(ctx)
		if err != nil {
			fmt.Fprintln(s.out)
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if quit := s.Execute(ctx, line); quit {
			return nil
		}
	}
}

type lineResult struct {
	text string
	err  error
}

// startReader reads one input line per request so nothing else competes
// for the input between commands
func (s *Shell) startReader() {
	s.requests = make(chan struct{})
	s.lines = make(chan lineResult, 1)
	go func() {
		scanner := bufio.NewScanner(s.in)
		var done error
		for range s.requests {
			if done == nil && scanner.Scan() {
				s.lines <- lineResult{text: scanner.Text()}
				continue
			}
			if done == nil {
				if done = scanner.Err(); done == nil {
					done = io.EOF
				}
			}
			s.lines <- lineResult{err: done}
		}
	}()
}

func (s *Shell) nextLine(ctx context.Context) (string, error) {
	if s.requests == nil {
		s.startReader()
	}
	select {
	case s.requests <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case res := <-s.lines:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Execute runs a single command line and reports whether the shell should exit
func (s *Shell) Execute(ctx context.Context, line string) bool {
	cmd, arg := splitCommand(line)
	switch cmd {
	case "":
	case "help", "?":
		s.help()
	case "quit", "exit", "q":
		return true
	case "analyze", "a":
		s.analyze(ctx, arg, false)
	case "refresh":
		s.analyze(ctx, arg, true)
	case "batch":
		s.batch(ctx, splitTargets(arg))
	case "examples":
		for i, q := range QuickTargets {
			s.render.Message("  %d. %-12s %s", i+1, q.ID, q.Note)
		}
		s.batch(ctx, QuickTargetIDs())
	case "open", "o":
		s.open(arg)
	case "dashboard", "d":
		s.orch.View().ShowDashboard()
		s.show()
	case "detail":
		if err := s.orch.View().ShowDetail(); err != nil {
			s.render.Error("No result selected yet.")
			return false
		}
		s.show()
	case "list", "ls":
		s.show()
	case "remove", "rm":
		s.remove(arg)
	case "status":
		s.render.Status(s.status.Status(ctx))
	case "whoami":
		if cred, ok := s.session.Current(); ok {
			s.render.Message("%s (token %s)", cred.DisplayName, core.RedactToken(cred.Token))
		} else {
			s.render.Message("Not logged in.")
		}
	case "login":
		s.login(ctx, arg)
	case "logout":
		s.session.Logout(ctx)
	default:
		s.render.Error("Unknown command %q. Type 'help' for commands.", cmd)
	}
	return false
}

// Stop is a no-op for the shell
func (s *Shell) Stop() error {
	return nil
}

func (s *Shell) help() {
	s.render.Message(`Commands:
  analyze <target>     analyse a target, or show it if already analysed
  refresh <target>     re-run the analysis of a target
  batch <t1>, <t2>...  analyse several targets, comma separated
  examples             analyse the built-in example targets
  open <target|#>      show one analysed target
  detail               return to the last opened target
  dashboard            show the summary of every analysed target
  remove <target|#>    forget an analysed target
  status               show backend readiness
  login <username>     log in
  logout               log out and forget every result
  whoami               show the logged in operator
  quit                 leave the shell`)
}

func (s *Shell) analyze(ctx context.Context, target string, force bool) {
	if strings.TrimSpace(target) == "" {
		s.render.Error("Usage: analyze <target>")
		return
	}

	var err error
	if force {
		_, err = s.orch.Refresh(ctx, target)
	} else {
		_, err = s.orch.Analyze(ctx, target)
	}
	if err != nil {
		s.reportError(err)
		return
	}
	s.show()
}

func (s *Shell) batch(ctx context.Context, targets []string) {
	if len(targets) == 0 {
		s.render.Error("Usage: batch <target>, <target>...")
		return
	}
	if _, ok := s.session.Current(); !ok {
		s.reportError(core.ErrNotAuthenticated)
		return
	}
	s.render.Batch(s.orch.AnalyzeBatch(ctx, targets))
	s.orch.View().ShowDashboard()
	s.show()
}

func (s *Shell) open(arg string) {
	target := s.resolve(arg)
	if target == "" {
		s.render.Error("Usage: open <target|#>")
		return
	}
	if err := s.orch.View().Open(target); err != nil {
		s.render.Error("%s has not been analysed.", target)
		return
	}
	s.show()
}

func (s *Shell) remove(arg string) {
	target := s.resolve(arg)
	if target == "" {
		s.render.Error("Usage: remove <target|#>")
		return
	}
	if s.orch.InFlight(target) {
		s.render.Error("%s is still being analysed.", target)
		return
	}
	if !s.orch.Remove(target) {
		s.render.Error("%s has not been analysed.", target)
		return
	}
	s.show()
}

func (s *Shell) login(ctx context.Context, username string) {
	username = strings.TrimSpace(username)
	if username == "" {
		s.render.Error("Usage: login <username>")
		return
	}
	fmt.Fprint(s.out, "Password: ")
	var password string
	var err error
	if s.secret != nil {
		password, err = s.secret()
		fmt.Fprintln(s.out)
	} else {
		password, err = s.nextLine(ctx)
	}
	if err != nil {
		s.render.Error("Could not read password: %v", err)
		return
	}
	if err := s.session.Authenticate(ctx, username, password); err != nil {
		s.logger.Debug("Login failed", zap.Error(err))
		s.render.Error("Login failed: %s", core.UserMessage(err))
		return
	}
	cred, _ := s.session.Current()
	s.render.Message("Logged in as %s.", cred.DisplayName)
}

// resolve maps a dashboard row number to its target; anything else is a name
func (s *Shell) resolve(arg string) string {
	arg = strings.TrimSpace(arg)
	if n, err := strconv.Atoi(arg); err == nil {
		targets := s.orch.Cache().Targets()
		if n >= 1 && n <= len(targets) {
			return targets[n-1]
		}
	}
	return arg
}

func (s *Shell) show() {
	sel := s.orch.View().Current()
	if sel.Mode == core.ViewDetail {
		res, _ := s.orch.Cache().Get(sel.Target)
		s.render.Detail(res)
		s.render.RequestState(s.orch.State())
		return
	}
	cache := s.orch.Cache()
	s.render.Dashboard(cache.Aggregate(), cache.List(), s.orch.State())
}

func (s *Shell) reportError(err error) {
	switch {
	case errors.Is(err, core.ErrNotAuthenticated):
		s.render.Error("Not logged in. Use 'login <username>'.")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.render.Error("Cancelled.")
	default:
		s.render.Error("Error: %s", core.UserMessage(err))
	}
}

func (s *Shell) onSessionEvent(ev core.SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Kind {
	case core.SessionEnded:
		s.notices = append(s.notices, fmt.Sprintf("Session ended (%s).", ev.Reason))
	case core.SessionStarted:
		s.logger.Debug("Session started", zap.String("user", ev.DisplayName))
	}
}

func (s *Shell) flushNotices() {
	s.mu.Lock()
	notices := s.notices
	s.notices = nil
	s.mu.Unlock()
	for _, n := range notices {
		s.render.Message("%s", n)
	}
}

func splitCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	cmd, arg, _ := strings.Cut(line, " ")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

func splitTargets(arg string) []string {
	var out []string
	for _, t := range strings.Split(arg, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
