// Package browser manages the bounded pool of headless browser sessions
// that automation jobs lease for driving provider portals.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
)

// Config holds browser connection settings
type Config struct {
	// ControlURL connects to an already-running browser (e.g. a container);
	// when empty a local browser is launched.
	ControlURL string
	Headless   bool
}

// Session is one leased automation context. Each session is an isolated
// incognito browser context so cookies and storage from one provider run
// never leak into the next.
type Session struct {
	id        string
	browser   *rod.Browser
	createdAt time.Time
	uses      int
	broken    bool
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Page opens a fresh page in this session bound to ctx. The caller owns the
// page and must close it when the automation task finishes.
func (s *Session) Page(ctx context.Context) (*rod.Page, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return page.Context(ctx), nil
}

// MarkBroken flags the session so the pool discards it instead of reusing it.
// Called by the lease holder after a crash, timeout, or navigation wreck.
func (s *Session) MarkBroken() {
	s.broken = true
}

// Close disposes the session's browser context
func (s *Session) Close() error {
	if s.browser == nil {
		return nil
	}
	return proto.TargetDisposeBrowserContext{
		BrowserContextID: s.browser.BrowserContextID,
	}.Call(s.browser)
}

// Connect launches or attaches to the shared browser process
func Connect(cfg *Config) (*rod.Browser, error) {
	controlURL := cfg.ControlURL
	if controlURL == "" {
		url, err := launcher.New().
			NoSandbox(true).
			Headless(cfg.Headless).
			Set("disable-gpu", "").
			Set("disable-dev-shm-usage", "").
			Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = url
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return b, nil
}

// Factory creates a fresh session on demand
type Factory func() (*Session, error)

// NewSessionFactory returns a Factory that spawns incognito contexts off
// the shared browser
func NewSessionFactory(b *rod.Browser) Factory {
	return func() (*Session, error) {
		inc, err := b.Incognito()
		if err != nil {
			return nil, fmt.Errorf("failed to create browser context: %w", err)
		}
		return &Session{
			id:        uuid.New().String(),
			browser:   inc,
			createdAt: time.Now(),
		}, nil
	}
}
