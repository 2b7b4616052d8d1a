// pkg/driver/playwright/playwright.go

// Package playwright adapts a playwright-go page to the driver capability sets.
// playwright-go calls take no context, so each call is bounded by the
// configured timeouts and a context that is already done short-circuits it.
package playwright

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagecraft/pkg/driver"
)

// Browsers lists the engines New accepts in Options.Browser.
var Browsers = []string{"chromium", "firefox", "webkit"}

// Driver is one playwright page in its own browser.
type Driver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	opts    driver.Options
	logger  *zap.Logger
}

var _ driver.Driver = (*Driver)(nil)

// New starts the playwright driver and launches opts.Browser (chromium by
// default), or connects to a playwright server at opts.RemoteURL.
func New(ctx context.Context, opts driver.Options) (*Driver, error) {
	opts = opts.Normalized()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := opts.Browser
	if name == "" {
		name = "chromium"
	}
	logger := opts.Logger.Named("playwright").With(zap.String("browser", name))

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright driver: %w", err)
	}
	bt, err := browserType(pw, name)
	if err != nil {
		_ = pw.Stop()
		return nil, err
	}

	var browser playwright.Browser
	if opts.RemoteURL != "" {
		logger.Info("Connecting to remote playwright server.", zap.String("url", opts.RemoteURL))
		browser, err = bt.Connect(opts.RemoteURL)
	} else {
		launch := playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(opts.Headless),
			Args:     opts.Args,
			Timeout:  playwright.Float(ms(opts.NavigationTimeout)),
		}
		if opts.BinaryPath != "" {
			launch.ExecutablePath = playwright.String(opts.BinaryPath)
		}
		browser, err = bt.Launch(launch)
	}
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch %s: %w", name, err)
	}

	page, err := browser.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	page.SetDefaultTimeout(ms(opts.CommandTimeout))
	page.SetDefaultNavigationTimeout(ms(opts.NavigationTimeout))

	logger.Debug("Page ready.")
	return &Driver{pw: pw, browser: browser, page: page, opts: opts, logger: logger}, nil
}

func browserType(pw *playwright.Playwright, name string) (playwright.BrowserType, error) {
	switch name {
	case "chromium", "chrome":
		return pw.Chromium, nil
	case "firefox":
		return pw.Firefox, nil
	case "webkit":
		return pw.WebKit, nil
	}
	return nil, fmt.Errorf("unknown playwright browser %q (want one of %s)", name, strings.Join(Browsers, ", "))
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.logger.Debug("Navigating.", zap.String("url", url))
	if _, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.page.URL(), nil
}

func (d *Driver) FindElement(ctx context.Context, by driver.By, value string) (driver.Element, error) {
	return first(d.FindElements(ctx, by, value))
}

func (d *Driver) FindElements(ctx context.Context, by driver.By, value string) ([]driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.wrap(by, value, d.page.QuerySelectorAll)
}

func (d *Driver) wrap(by driver.By, value string, query func(string) ([]playwright.ElementHandle, error)) ([]driver.Element, error) {
	selector := value
	if by == driver.ByLinkText {
		selector = "a"
	}
	handles, err := query(selector)
	if err != nil {
		return nil, translate(err)
	}
	out := make([]driver.Element, 0, len(handles))
	for _, h := range handles {
		if by == driver.ByLinkText {
			text, err := h.InnerText()
			if err != nil {
				return nil, translate(err)
			}
			if strings.TrimSpace(text) != value {
				continue
			}
		}
		out = append(out, &Element{d: d, h: h})
	}
	return out, nil
}

func (d *Driver) Close() error {
	d.logger.Debug("Closing browser.")
	return errors.Join(d.browser.Close(), d.pw.Stop())
}

// Element wraps a playwright element handle.
type Element struct {
	d *Driver
	h playwright.ElementHandle
}

var (
	_ driver.Element  = (*Element)(nil)
	_ driver.Searcher = (*Element)(nil)
)

// live fails with ErrStaleElement once the node has left the document.
func (e *Element) live(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	connected, err := e.h.Evaluate(`el => el.isConnected`)
	if err != nil {
		return translate(err)
	}
	if ok, _ := connected.(bool); !ok {
		return driver.ErrStaleElement
	}
	return nil
}

func (e *Element) Click(ctx context.Context) error {
	if err := e.live(ctx); err != nil {
		return err
	}
	visible, err := e.h.IsVisible()
	if err != nil {
		return translate(err)
	}
	if !visible {
		return fmt.Errorf("%w: element not interactable", driver.ErrInvalidElementState)
	}
	return translate(e.h.Click())
}

// SendKeys focuses the element and inserts text; unlike Fill it leaves
// read-only fields untouched instead of failing.
func (e *Element) SendKeys(ctx context.Context, text string) error {
	if err := e.live(ctx); err != nil {
		return err
	}
	if err := e.h.Focus(); err != nil {
		return translate(err)
	}
	return translate(e.d.page.Keyboard().InsertText(text))
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := e.live(ctx); err != nil {
		return "", err
	}
	s, err := e.h.InnerText()
	return s, translate(err)
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := e.live(ctx); err != nil {
		return "", false, err
	}
	v, err := e.h.Evaluate(`(el, name) => {
		if (name === "value" && "value" in el) { return el.value == null ? null : String(el.value); }
		return el.getAttribute(name);
	}`, name)
	if err != nil {
		return "", false, translate(err)
	}
	s, ok := v.(string)
	return s, ok, nil
}

func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	if err := e.live(ctx); err != nil {
		return false, err
	}
	ok, err := e.h.IsVisible()
	return ok, translate(err)
}

func (e *Element) Clear(ctx context.Context) error {
	if err := e.live(ctx); err != nil {
		return err
	}
	editable, err := e.h.IsEditable()
	if err != nil {
		return fmt.Errorf("%w: %v", driver.ErrInvalidElementState, err)
	}
	if !editable {
		return fmt.Errorf("%w: element is not editable", driver.ErrInvalidElementState)
	}
	return translate(e.h.Fill(""))
}

func (e *Element) FindElement(ctx context.Context, by driver.By, value string) (driver.Element, error) {
	return first(e.FindElements(ctx, by, value))
}

func (e *Element) FindElements(ctx context.Context, by driver.By, value string) ([]driver.Element, error) {
	if err := e.live(ctx); err != nil {
		return nil, err
	}
	return e.d.wrap(by, value, e.h.QuerySelectorAll)
}

// -- helpers --

func translate(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not attached to the DOM"),
		strings.Contains(msg, "Execution context was destroyed"),
		strings.Contains(msg, "Cannot find context with specified id"),
		strings.Contains(msg, "JSHandle is disposed"):
		return fmt.Errorf("%w: %s", driver.ErrStaleElement, msg)
	case strings.Contains(msg, "Element is not an <input>"),
		strings.Contains(msg, "not editable"):
		return fmt.Errorf("%w: %s", driver.ErrInvalidElementState, msg)
	}
	return err
}

func ms(d time.Duration) float64 { return float64(d.Milliseconds()) }

func first(els []driver.Element, err error) (driver.Element, error) {
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, driver.ErrNoSuchElement
	}
	return els[0], nil
}
