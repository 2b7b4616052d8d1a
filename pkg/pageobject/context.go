// pkg/pageobject/context.go
package pageobject

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pagecraft/internal/observability"
	"github.com/xkilldash9x/pagecraft/pkg/driver"
	"github.com/xkilldash9x/pagecraft/pkg/driver/launch"
)

// Settings holds the fixed per-call-site timeouts.
type Settings struct {
	ElementTimeout         time.Duration
	ElementPollInterval    time.Duration
	VisibilityTimeout      time.Duration
	VisibilityPollInterval time.Duration
	TextEntryAttempts      int
	TextEntryPause         time.Duration
	// BodyTextLimit caps the page text quoted in lookup failures.
	BodyTextLimit int
}

// DefaultSettings returns the stock timeouts.
func DefaultSettings() Settings {
	return Settings{
		ElementTimeout:         10 * time.Second,
		ElementPollInterval:    500 * time.Millisecond,
		VisibilityTimeout:      20 * time.Second,
		VisibilityPollInterval: time.Second,
		TextEntryAttempts:      5,
		TextEntryPause:         200 * time.Millisecond,
		BodyTextLimit:          1000,
	}
}

func (s Settings) normalized() Settings {
	d := DefaultSettings()
	if s.ElementTimeout <= 0 {
		s.ElementTimeout = d.ElementTimeout
	}
	if s.ElementPollInterval <= 0 {
		s.ElementPollInterval = d.ElementPollInterval
	}
	if s.VisibilityTimeout <= 0 {
		s.VisibilityTimeout = d.VisibilityTimeout
	}
	if s.VisibilityPollInterval <= 0 {
		s.VisibilityPollInterval = d.VisibilityPollInterval
	}
	if s.TextEntryAttempts <= 0 {
		s.TextEntryAttempts = d.TextEntryAttempts
	}
	if s.TextEntryPause < 0 {
		s.TextEntryPause = d.TextEntryPause
	}
	if s.BodyTextLimit <= 0 {
		s.BodyTextLimit = d.BodyTextLimit
	}
	return s
}

// Launcher starts a named driver.
type Launcher func(ctx context.Context, name string, opts driver.Options) (driver.Driver, error)

// DebugHook is invoked by Page.Debug.
type DebugHook func(ctx context.Context, p *Page) error

// Session is a driver started or attached by a TestContext.
type Session struct {
	ID     string
	Name   string
	Driver driver.Driver
}

// TestContext owns the browser sessions, the registry and the settings a test
// runs with. Pages borrow its sessions.
type TestContext struct {
	registry   *Registry
	logger     *zap.Logger
	settings   Settings
	launcher   Launcher
	driverOpts driver.Options
	debugHook  DebugHook

	mu       sync.Mutex
	sessions []Session
}

// Option configures a TestContext.
type Option func(*TestContext)

func WithRegistry(r *Registry) Option { return func(tc *TestContext) { tc.registry = r } }
func WithLogger(l *zap.Logger) Option { return func(tc *TestContext) { tc.logger = l } }
func WithSettings(s Settings) Option  { return func(tc *TestContext) { tc.settings = s } }
func WithLauncher(l Launcher) Option  { return func(tc *TestContext) { tc.launcher = l } }
func WithDriverOptions(o driver.Options) Option {
	return func(tc *TestContext) { tc.driverOpts = o }
}
func WithDebugHook(h DebugHook) Option { return func(tc *TestContext) { tc.debugHook = h } }

// NewTestContext builds a context. Without WithRegistry it gets an empty registry.
func NewTestContext(opts ...Option) *TestContext {
	tc := &TestContext{
		settings: DefaultSettings(),
		launcher: launch.Open,
	}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.logger == nil {
		tc.logger = observability.GetLogger()
	}
	tc.logger = tc.logger.Named("pageobject")
	if tc.registry == nil {
		tc.registry = NewRegistry(tc.logger)
	}
	tc.settings = tc.settings.normalized()
	return tc
}

// ForTest builds a context that logs through t and closes its browsers when the test ends.
func ForTest(t testing.TB, opts ...Option) *TestContext {
	t.Helper()
	tc := NewTestContext(append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
	t.Cleanup(func() {
		if err := tc.Close(); err != nil {
			t.Errorf("closing browsers: %v", err)
		}
	})
	return tc
}

func (tc *TestContext) Registry() *Registry { return tc.registry }
func (tc *TestContext) Logger() *zap.Logger { return tc.logger }
func (tc *TestContext) Settings() Settings  { return tc.settings }

// StartBrowser launches the named driver and makes it the current browser.
func (tc *TestContext) StartBrowser(ctx context.Context, name string) (driver.Driver, error) {
	opts := tc.driverOpts
	if opts.Logger == nil {
		opts.Logger = tc.logger.Named("driver")
	}
	d, err := tc.launcher(ctx, name, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser %q: %w", name, err)
	}
	id := tc.attach(name, d)
	tc.logger.Info("Browser started.", zap.String("driver", name), zap.String("session_id", id))
	return d, nil
}

// Attach adopts an already open driver as the current browser. The context closes it.
func (tc *TestContext) Attach(name string, d driver.Driver) string {
	return tc.attach(name, d)
}

func (tc *TestContext) attach(name string, d driver.Driver) string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	id := uuid.New().String()
	tc.sessions = append(tc.sessions, Session{ID: id, Name: name, Driver: d})
	return id
}

// Browser returns the most recently started browser.
func (tc *TestContext) Browser() (driver.Driver, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if len(tc.sessions) == 0 {
		return nil, ErrNoBrowser
	}
	return tc.sessions[len(tc.sessions)-1].Driver, nil
}

// Sessions lists started browsers in start order.
func (tc *TestContext) Sessions() []Session {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]Session(nil), tc.sessions...)
}

// Open navigates the current browser to class and returns the page.
func (tc *TestContext) Open(ctx context.Context, class *PageClass) (Entity, error) {
	return NewPage(ctx, tc, class, nil)
}

// Close closes every browser. It is safe to call more than once.
func (tc *TestContext) Close() error {
	tc.mu.Lock()
	sessions := tc.sessions
	tc.sessions = nil
	tc.mu.Unlock()

	errs := make([]error, len(sessions))
	var g errgroup.Group
	for i, s := range sessions {
		g.Go(func() error {
			if err := s.Driver.Close(); err != nil {
				errs[i] = fmt.Errorf("session %s (%s): %w", s.ID, s.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
