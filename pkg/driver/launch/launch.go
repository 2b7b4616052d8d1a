// pkg/driver/launch/launch.go

// Package launch maps driver names onto the adapter packages.
package launch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/pagecraft/pkg/driver"
	"github.com/xkilldash9x/pagecraft/pkg/driver/chromedp"
	"github.com/xkilldash9x/pagecraft/pkg/driver/playwright"
	"github.com/xkilldash9x/pagecraft/pkg/driver/rod"
	"github.com/xkilldash9x/pagecraft/pkg/driver/selenium"
)

// ErrUnsupportedDriver is matched by every *UnsupportedDriverError.
var ErrUnsupportedDriver = errors.New("unsupported driver")

// UnsupportedDriverError names the rejected driver and the ones Open accepts.
type UnsupportedDriverError struct {
	Name      string
	Supported []string
}

func (e *UnsupportedDriverError) Error() string {
	return fmt.Sprintf("unsupported driver %q (supported: %s)", e.Name, strings.Join(e.Supported, ", "))
}

func (e *UnsupportedDriverError) Is(target error) bool { return target == ErrUnsupportedDriver }

// Factory starts one driver session.
type Factory func(ctx context.Context, opts driver.Options) (driver.Driver, error)

// withBrowser pins opts.Browser unless the caller already chose one.
func withBrowser(browser string, f Factory) Factory {
	return func(ctx context.Context, opts driver.Options) (driver.Driver, error) {
		if opts.Browser == "" {
			opts.Browser = browser
		}
		return f(ctx, opts)
	}
}

var factories = map[string]Factory{
	"chromedp": func(ctx context.Context, opts driver.Options) (driver.Driver, error) {
		return chromedp.New(ctx, opts)
	},
	"rod": func(ctx context.Context, opts driver.Options) (driver.Driver, error) {
		return rod.New(ctx, opts)
	},
	"playwright": withBrowser("chromium", func(ctx context.Context, opts driver.Options) (driver.Driver, error) {
		return playwright.New(ctx, opts)
	}),
	"selenium": withBrowser("chrome", func(ctx context.Context, opts driver.Options) (driver.Driver, error) {
		return selenium.New(ctx, opts)
	}),
}

func init() {
	factories["playwright-firefox"] = browserVariant("firefox", "playwright")
	factories["playwright-webkit"] = browserVariant("webkit", "playwright")
	factories["selenium-firefox"] = browserVariant("firefox", "selenium")
}

// browserVariant forces the engine, so "selenium-firefox" never runs chrome.
func browserVariant(browser, base string) Factory {
	f := factories[base]
	return func(ctx context.Context, opts driver.Options) (driver.Driver, error) {
		opts.Browser = browser
		return f(ctx, opts)
	}
}

// Names returns the supported driver names, sorted.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open starts the named driver.
func Open(ctx context.Context, name string, opts driver.Options) (driver.Driver, error) {
	f, ok := factories[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, &UnsupportedDriverError{Name: name, Supported: Names()}
	}
	return f(ctx, opts)
}
