// pkg/driver/driver.go
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// By selects the lookup strategy for a Searcher.
type By int

const (
	// ByCSS looks elements up by CSS selector.
	ByCSS By = iota
	// ByLinkText looks anchors up by their exact, trimmed visible text.
	ByLinkText
)

func (b By) String() string {
	switch b {
	case ByCSS:
		return "css"
	case ByLinkText:
		return "link text"
	default:
		return fmt.Sprintf("By(%d)", int(b))
	}
}

// Sentinel errors every adapter translates its native failures into.
var (
	// ErrNoSuchElement is returned by FindElement when nothing matches.
	ErrNoSuchElement = errors.New("no such element")
	// ErrStaleElement is returned when an element handle no longer refers to a node
	// in the live document, typically after navigation or a re-render.
	ErrStaleElement = errors.New("stale element reference")
	// ErrInvalidElementState is returned when an element refuses an operation,
	// e.g. clearing a read-only field.
	ErrInvalidElementState = errors.New("invalid element state")
)

// Searcher finds elements. Drivers search the whole document; elements that
// implement it search their own subtree.
type Searcher interface {
	// FindElement returns the first match or ErrNoSuchElement. It never waits.
	FindElement(ctx context.Context, by By, value string) (Element, error)
	// FindElements returns every match in document order. An empty result is not an error.
	FindElements(ctx context.Context, by By, value string) ([]Element, error)
}

// Driver is the capability set consumed from a live browser session.
type Driver interface {
	Searcher
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Close() error
}

// Element is the capability set consumed from a single DOM element handle.
type Element interface {
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Text(ctx context.Context) (string, error)
	// Attribute returns the attribute (or, for "value", the live property).
	// ok is false when the attribute is null.
	Attribute(ctx context.Context, name string) (value string, ok bool, err error)
	IsDisplayed(ctx context.Context) (bool, error)
	Clear(ctx context.Context) error
}

// Options configures how an adapter starts or attaches to a browser.
type Options struct {
	// Browser selects the engine for adapters that drive several (playwright, selenium).
	Browser  string
	Headless bool
	// RemoteURL attaches to an existing endpoint (CDP websocket, WebDriver hub)
	// instead of launching a local browser.
	RemoteURL string
	// BinaryPath overrides the browser executable.
	BinaryPath string
	// ServicePath points at a chromedriver/geckodriver binary for selenium.
	ServicePath string
	ServicePort int
	Args        []string
	// CommandTimeout bounds a single driver command.
	CommandTimeout time.Duration
	// NavigationTimeout bounds a single Navigate call.
	NavigationTimeout time.Duration
	Logger            *zap.Logger
}

// Normalized returns a copy with zero values replaced by defaults.
func (o Options) Normalized() Options {
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = 5 * time.Second
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	if o.ServicePort <= 0 {
		o.ServicePort = 9515
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
