// pkg/driver/chromedp/chromedp.go

// Package chromedp adapts a chromedp browser tab to the driver capability sets.
// Element handles are remote object references, so every element operation is a
// single Runtime.callFunctionOn against the node.
package chromedp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagecraft/pkg/driver"
)

// Driver is one chromedp tab.
type Driver struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	opts        driver.Options
	logger      *zap.Logger
}

var _ driver.Driver = (*Driver)(nil)

// New launches Chrome (or attaches to opts.RemoteURL) and opens a tab. ctx
// bounds start-up only; the browser lives until Close.
func New(ctx context.Context, opts driver.Options) (*Driver, error) {
	opts = opts.Normalized()
	logger := opts.Logger.Named("chromedp")

	base := context.WithoutCancel(ctx)
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.RemoteURL != "" {
		logger.Info("Attaching to remote browser.", zap.String("url", opts.RemoteURL))
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(base, opts.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(base, allocatorOptions(opts)...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Errorf),
	)

	// The first Run starts the browser.
	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx)
	stop()
	if err != nil {
		tabCancel()
		allocCancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	logger.Debug("Browser tab ready.")
	return &Driver{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		opts:        opts,
		logger:      logger,
	}, nil
}

func allocatorOptions(opts driver.Options) []chromedp.ExecAllocatorOption {
	out := make([]chromedp.ExecAllocatorOption, 0, len(chromedp.DefaultExecAllocatorOptions)+len(opts.Args)+4)
	for _, o := range chromedp.DefaultExecAllocatorOptions {
		out = append(out, o)
	}
	out = append(out, chromedp.Flag("headless", opts.Headless))
	if opts.BinaryPath != "" {
		out = append(out, chromedp.ExecPath(opts.BinaryPath))
	}
	for _, arg := range opts.Args {
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if hasValue {
			out = append(out, chromedp.Flag(name, value))
		} else {
			out = append(out, chromedp.Flag(name, true))
		}
	}
	// Containers rarely provide the sandbox or a large /dev/shm.
	if runtime.GOOS == "linux" {
		out = append(out,
			chromedp.NoSandbox,
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}
	return out
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (d *Driver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(d.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.logger.Debug("Navigating.", zap.String("url", url))
	if err := d.run(ctx, d.opts.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var u string
	if err := d.run(ctx, d.opts.CommandTimeout, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

func (d *Driver) FindElement(ctx context.Context, by driver.By, value string) (driver.Element, error) {
	return first(d.FindElements(ctx, by, value))
}

func (d *Driver) FindElements(ctx context.Context, by driver.By, value string) ([]driver.Element, error) {
	var out []driver.Element
	err := d.run(ctx, d.opts.CommandTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		doc, exc, err := cdpruntime.Evaluate("document").Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		defer release(ctx, doc.ObjectID)
		out, err = d.queryAll(ctx, doc.ObjectID, by, value)
		return err
	}))
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// Close shuts the tab and, for a launched browser, the browser process.
func (d *Driver) Close() error {
	d.logger.Debug("Closing browser.")
	err := chromedp.Cancel(d.tabCtx)
	d.tabCancel()
	d.allocCancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// queryAll runs the lookup in the scope of the object and wraps each match.
func (d *Driver) queryAll(ctx context.Context, scope cdpruntime.RemoteObjectID, by driver.By, value string) ([]driver.Element, error) {
	arr, err := callOn(ctx, scope, fmt.Sprintf(jsQueryAll, quote(by.String()), quote(value)), false)
	if err != nil {
		return nil, err
	}
	defer release(ctx, arr.ObjectID)

	props, _, _, exc, err := cdpruntime.GetProperties(arr.ObjectID).WithOwnProperties(true).Do(ctx)
	if err != nil {
		return nil, err
	}
	if exc != nil {
		return nil, exc
	}
	out := []driver.Element{}
	for _, p := range props {
		// Array entries are the numeric own properties; "length" and friends have no object.
		if p.Value == nil || p.Value.ObjectID == "" || !isIndex(p.Name) {
			continue
		}
		out = append(out, &Element{d: d, id: p.Value.ObjectID})
	}
	return out, nil
}

// Element is a remote reference to a DOM node.
type Element struct {
	d  *Driver
	id cdpruntime.RemoteObjectID
}

var (
	_ driver.Element  = (*Element)(nil)
	_ driver.Searcher = (*Element)(nil)
)

// call runs fn on the element and decodes its JSON result into out when non-nil.
func (e *Element) call(ctx context.Context, fn string, out any) error {
	err := e.d.run(ctx, e.d.opts.CommandTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		res, err := callOn(ctx, e.id, fn, true)
		if err != nil {
			return err
		}
		if out == nil || len(res.Value) == 0 {
			return nil
		}
		return json.Unmarshal([]byte(res.Value), out)
	}))
	return translate(err)
}

func (e *Element) Click(ctx context.Context) error {
	var box struct {
		X, Y      float64
		Displayed bool
	}
	if err := e.call(ctx, jsClickPoint, &box); err != nil {
		return err
	}
	if !box.Displayed {
		return fmt.Errorf("%w: element not interactable", driver.ErrInvalidElementState)
	}
	return translate(e.d.run(ctx, e.d.opts.CommandTimeout, chromedp.MouseClickXY(box.X, box.Y)))
}

func (e *Element) SendKeys(ctx context.Context, text string) error {
	if err := e.call(ctx, jsFocus, nil); err != nil {
		return err
	}
	return translate(e.d.run(ctx, e.d.opts.CommandTimeout, chromedp.KeyEvent(text)))
}

func (e *Element) Text(ctx context.Context) (string, error) {
	var s string
	err := e.call(ctx, jsText, &s)
	return s, err
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	var v *string
	if err := e.call(ctx, fmt.Sprintf(jsAttribute, quote(name)), &v); err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	var ok bool
	err := e.call(ctx, jsDisplayed, &ok)
	return ok, err
}

func (e *Element) Clear(ctx context.Context) error {
	return e.call(ctx, jsClear, nil)
}

func (e *Element) FindElement(ctx context.Context, by driver.By, value string) (driver.Element, error) {
	return first(e.FindElements(ctx, by, value))
}

func (e *Element) FindElements(ctx context.Context, by driver.By, value string) ([]driver.Element, error) {
	var out []driver.Element
	err := e.d.run(ctx, e.d.opts.CommandTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		out, err = e.d.queryAll(ctx, e.id, by, value)
		return err
	}))
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// -- helpers --

func callOn(ctx context.Context, id cdpruntime.RemoteObjectID, fn string, byValue bool) (*cdpruntime.RemoteObject, error) {
	res, exc, err := cdpruntime.CallFunctionOn(fn).
		WithObjectID(id).
		WithReturnByValue(byValue).
		WithAwaitPromise(false).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if exc != nil {
		return nil, exceptionError(exc)
	}
	return res, nil
}

func release(ctx context.Context, id cdpruntime.RemoteObjectID) {
	if id != "" {
		_ = cdpruntime.ReleaseObject(id).Do(ctx)
	}
}

func exceptionError(exc *cdpruntime.ExceptionDetails) error {
	msg := exc.Text
	if exc.Exception != nil && exc.Exception.Description != "" {
		msg = exc.Exception.Description
	}
	return errors.New(msg)
}

// translate maps protocol and script failures onto the driver sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "stale element reference"),
		strings.Contains(msg, "Could not find object with given id"),
		strings.Contains(msg, "Cannot find context with specified id"),
		strings.Contains(msg, "No node with given id"),
		strings.Contains(msg, "Could not find node"):
		return fmt.Errorf("%w: %s", driver.ErrStaleElement, msg)
	case strings.Contains(msg, "invalid element state"):
		return fmt.Errorf("%w: %s", driver.ErrInvalidElementState, msg)
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

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func isIndex(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
