// pkg/driver/rod/rod.go

// Package rod adapts a go-rod page to the driver capability sets.
package rod

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagecraft/pkg/driver"
)

// Driver is one rod page in its own browser.
type Driver struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	opts     driver.Options
	logger   *zap.Logger
}

var _ driver.Driver = (*Driver)(nil)

// New launches a browser with the rod launcher, or connects to opts.RemoteURL
// (a DevTools websocket URL), and opens a blank page.
func New(ctx context.Context, opts driver.Options) (*Driver, error) {
	opts = opts.Normalized()
	d := &Driver{opts: opts, logger: opts.Logger.Named("rod")}

	// The browser outlives ctx; ctx only bounds start-up.
	base := context.WithoutCancel(ctx)
	controlURL := opts.RemoteURL
	if controlURL == "" {
		l := launcher.New().Context(base).Headless(opts.Headless)
		if opts.BinaryPath != "" {
			l = l.Bin(opts.BinaryPath)
		}
		for _, arg := range opts.Args {
			name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
			if hasValue {
				l = l.Set(flags.Flag(name), value)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		d.launcher = l
		controlURL = u
	}

	d.browser = rod.New().Context(base).ControlURL(controlURL)
	if err := d.browser.Connect(); err != nil {
		d.kill()
		return nil, fmt.Errorf("failed to connect to %s: %w", controlURL, err)
	}
	page, err := d.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = d.browser.Close()
		d.kill()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	d.page = page
	d.logger.Debug("Page ready.", zap.String("control_url", controlURL))
	return d, nil
}

func (d *Driver) kill() {
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher.Cleanup()
	}
}

// scoped returns the page bound to ctx and the timeout, plus its release func.
func (d *Driver) scoped(ctx context.Context, timeout time.Duration) (*rod.Page, func()) {
	p := d.page.Context(ctx).Timeout(timeout)
	return p, func() { p.CancelTimeout() }
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	p, done := d.scoped(ctx, d.opts.NavigationTimeout)
	defer done()
	d.logger.Debug("Navigating.", zap.String("url", url))
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, translate(ctx, err))
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("page %s did not load: %w", url, translate(ctx, err))
	}
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	p, done := d.scoped(ctx, d.opts.CommandTimeout)
	defer done()
	info, err := p.Info()
	if err != nil {
		return "", translate(ctx, err)
	}
	return info.URL, nil
}

func (d *Driver) FindElement(ctx context.Context, by driver.By, value string) (driver.Element, error) {
	return first(d.FindElements(ctx, by, value))
}

func (d *Driver) FindElements(ctx context.Context, by driver.By, value string) ([]driver.Element, error) {
	p, done := d.scoped(ctx, d.opts.CommandTimeout)
	defer done()
	return d.wrap(ctx, by, value, p.Elements)
}

// wrap runs query (page or element scoped) and applies the link text filter.
func (d *Driver) wrap(ctx context.Context, by driver.By, value string, query func(string) (rod.Elements, error)) ([]driver.Element, error) {
	selector := value
	if by == driver.ByLinkText {
		selector = "a"
	}
	els, err := query(selector)
	if err != nil {
		return nil, translate(ctx, err)
	}
	out := make([]driver.Element, 0, len(els))
	for _, el := range els {
		if by == driver.ByLinkText {
			text, err := el.Text()
			if err != nil {
				return nil, translate(ctx, err)
			}
			if strings.TrimSpace(text) != value {
				continue
			}
		}
		out = append(out, &Element{d: d, el: el})
	}
	return out, nil
}

func (d *Driver) Close() error {
	d.logger.Debug("Closing browser.")
	err := d.browser.Close()
	d.kill()
	return err
}

// Element wraps a rod element.
type Element struct {
	d  *Driver
	el *rod.Element
}

var (
	_ driver.Element  = (*Element)(nil)
	_ driver.Searcher = (*Element)(nil)
)

// live binds the element to ctx and fails with ErrStaleElement once the node
// has left the document.
func (e *Element) live(ctx context.Context) (*rod.Element, func(), error) {
	el := e.el.Context(ctx).Timeout(e.d.opts.CommandTimeout)
	done := func() { el.CancelTimeout() }
	res, err := el.Eval(`() => this.isConnected`)
	if err != nil {
		done()
		return nil, nil, translate(ctx, err)
	}
	if !res.Value.Bool() {
		done()
		return nil, nil, driver.ErrStaleElement
	}
	return el, done, nil
}

func (e *Element) Click(ctx context.Context) error {
	el, done, err := e.live(ctx)
	if err != nil {
		return err
	}
	defer done()
	visible, err := el.Visible()
	if err != nil {
		return translate(ctx, err)
	}
	if !visible {
		return fmt.Errorf("%w: element not interactable", driver.ErrInvalidElementState)
	}
	return translate(ctx, el.Click(proto.InputMouseButtonLeft, 1))
}

// SendKeys inserts text at the focused element without rod's writability
// wait, so read-only fields behave like they do for a user.
func (e *Element) SendKeys(ctx context.Context, text string) error {
	el, done, err := e.live(ctx)
	if err != nil {
		return err
	}
	defer done()
	if err := el.Focus(); err != nil {
		return translate(ctx, err)
	}
	return translate(ctx, el.Page().Context(el.GetContext()).InsertText(text))
}

func (e *Element) Text(ctx context.Context) (string, error) {
	el, done, err := e.live(ctx)
	if err != nil {
		return "", err
	}
	defer done()
	s, err := el.Text()
	return s, translate(ctx, err)
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	el, done, err := e.live(ctx)
	if err != nil {
		return "", false, err
	}
	defer done()
	if name == "value" {
		v, err := el.Property("value")
		if err != nil {
			return "", false, translate(ctx, err)
		}
		if !v.Nil() {
			return v.Str(), true, nil
		}
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", false, translate(ctx, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	el, done, err := e.live(ctx)
	if err != nil {
		return false, err
	}
	defer done()
	ok, err := el.Visible()
	return ok, translate(ctx, err)
}

func (e *Element) Clear(ctx context.Context) error {
	el, done, err := e.live(ctx)
	if err != nil {
		return err
	}
	defer done()
	res, err := el.Eval(`() => {
		if (this.readOnly || this.disabled) { return false; }
		if ("value" in this) { this.value = ""; }
		else if (this.isContentEditable) { this.textContent = ""; }
		else { return false; }
		this.dispatchEvent(new Event("input", {bubbles: true}));
		this.dispatchEvent(new Event("change", {bubbles: true}));
		return true;
	}`)
	if err != nil {
		return translate(ctx, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("%w: element is not editable", driver.ErrInvalidElementState)
	}
	return nil
}

func (e *Element) FindElement(ctx context.Context, by driver.By, value string) (driver.Element, error) {
	return first(e.FindElements(ctx, by, value))
}

func (e *Element) FindElements(ctx context.Context, by driver.By, value string) ([]driver.Element, error) {
	el, done, err := e.live(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	return e.d.wrap(ctx, by, value, el.Elements)
}

// -- helpers --

func translate(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var notFound *rod.ObjectNotFoundError
	var cdpErr *cdp.Error
	switch {
	case errors.As(err, &notFound),
		errors.Is(err, cdp.ErrCtxNotFound),
		errors.As(err, &cdpErr) && strings.Contains(cdpErr.Message, "Could not find"):
		return fmt.Errorf("%w: %v", driver.ErrStaleElement, err)
	}
	var elNotFound *rod.ElementNotFoundError
	if errors.As(err, &elNotFound) {
		return fmt.Errorf("%w: %v", driver.ErrNoSuchElement, err)
	}
	return err
}

func first(els []driver.Element, err error) (driver.Element, error) {
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, driver.ErrNoSuchElement
	}
	return els[0], nil
}
