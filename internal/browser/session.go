// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// Snapshot is the textual view of the current page handed back to the agent
// after every action. The agent reasons over text only, never raw DOM.
type Snapshot struct {
	URL         string
	Title       string
	VisibleText string
}

// Session owns one browser tab and serializes all access to it. One session
// serves one goal sequence for its whole run.
type Session struct {
	id     string
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	mu sync.Mutex
}

// NewSession launches a browser and opens a fresh tab. The caller must Close
// the session to release the browser process.
func NewSession(parent context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}
	for _, arg := range cfg.Args {
		name, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if found {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	id := uuid.NewString()
	log := logger.Named("browser").With(zap.String("session_id", id))

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
	)

	s := &Session{
		id:          id,
		logger:      log,
		cfg:         cfg,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
	}

	// Starting the browser eagerly surfaces launch failures here, not on
	// the first navigation.
	startup := []chromedp.Action{network.Enable()}
	if cfg.DisableCache {
		startup = append(startup, network.SetCacheDisabled(true))
	}
	if err := chromedp.Run(ctx, startup...); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.Info("Browser session started", zap.Bool("headless", cfg.Headless))
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Navigate loads the URL and waits for the page to settle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !strings.Contains(url, "://") {
		url = "https://" + url
	}
	s.logger.Debug("Navigating", zap.String("url", url))

	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return s.stabilize(ctx)
}

// Click clicks the first visible node matching the query.
func (s *Session) Click(ctx context.Context, query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("Clicking", zap.String("query", query))
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Click(query, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click on %q failed: %w", query, err)
	}
	return s.stabilize(ctx)
}

// Fill clears the matching input and types the value into it.
func (s *Session) Fill(ctx context.Context, query, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("Filling input", zap.String("query", query))
	err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.WaitVisible(query, chromedp.ByQuery),
		chromedp.Clear(query, chromedp.ByQuery),
		chromedp.SendKeys(query, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("fill on %q failed: %w", query, err)
	}
	return nil
}

// ExtractText returns the text content of the first node matching the query.
func (s *Session) ExtractText(ctx context.Context, query string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var text string
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Text(query, &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("text extraction from %q failed: %w", query, err)
	}
	return strings.TrimSpace(text), nil
}

// CaptureSnapshot reads the current URL, title and visible text.
func (s *Session) CaptureSnapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var url, title, html string
	err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.Location(&url),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot capture failed: %w", err)
	}

	text, err := VisibleText(html)
	if err != nil {
		s.logger.Warn("Failed to extract visible text from snapshot", zap.Error(err))
		text = ""
	}

	return &Snapshot{URL: url, Title: title, VisibleText: text}, nil
}

// Close tears down the tab and the browser process.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	s.allocCancel()
	s.logger.Info("Browser session closed")
	return nil
}

// stabilize waits for the document body and then the configured quiet
// period, since SPA navigations keep mutating the DOM after load.
func (s *Session) stabilize(ctx context.Context) error {
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("page did not become ready: %w", err)
	}
	if s.cfg.PostLoadWait > 0 {
		select {
		case <-time.After(s.cfg.PostLoadWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// run executes chromedp actions bound to both the session lifetime and the
// caller's context.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := mergeContexts(s.ctx, ctx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, timeout)
		defer tcancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// mergeContexts derives a context from the session context that is also
// cancelled when the caller's context is.
func mergeContexts(session, caller context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(session)
	stop := context.AfterFunc(caller, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
