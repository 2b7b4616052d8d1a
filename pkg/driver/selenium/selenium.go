// pkg/driver/selenium/selenium.go

// Package selenium adapts a WebDriver session to the driver capability sets.
// It either drives a local chromedriver/geckodriver service or attaches to a
// remote hub. WebDriver calls take no context; a done context short-circuits them.
package selenium

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"

	"github.com/xkilldash9x/pagecraft/pkg/driver"
)

// Driver is one WebDriver session.
type Driver struct {
	wd      selenium.WebDriver
	service *selenium.Service
	output  *zapio.Writer
	opts    driver.Options
	logger  *zap.Logger
}

var _ driver.Driver = (*Driver)(nil)

// New starts a session for opts.Browser ("chrome" by default, or "firefox").
// With opts.RemoteURL set it talks to that hub; otherwise it starts the
// browser's driver service from opts.ServicePath on opts.ServicePort.
func New(ctx context.Context, opts driver.Options) (*Driver, error) {
	opts = opts.Normalized()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := opts.Browser
	if name == "" {
		name = "chrome"
	}
	d := &Driver{opts: opts, logger: opts.Logger.Named("selenium").With(zap.String("browser", name))}

	caps, err := capabilities(name, opts)
	if err != nil {
		return nil, err
	}

	url := opts.RemoteURL
	if url == "" {
		d.output = &zapio.Writer{Log: d.logger.Named("service"), Level: zap.DebugLevel}
		svc, err := startService(name, opts, selenium.Output(d.output))
		if err != nil {
			return nil, err
		}
		d.service = svc
		url = fmt.Sprintf("http://localhost:%d", opts.ServicePort)
	} else {
		d.logger.Info("Connecting to remote WebDriver hub.", zap.String("url", url))
	}

	wd, err := selenium.NewRemote(caps, url)
	if err != nil {
		d.stopService()
		return nil, fmt.Errorf("failed to create webdriver session: %w", err)
	}
	d.wd = wd

	if err := wd.SetImplicitWaitTimeout(0); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to reset implicit wait: %w", err)
	}
	if err := wd.SetPageLoadTimeout(opts.NavigationTimeout); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to set page load timeout: %w", err)
	}
	d.logger.Debug("Session ready.", zap.String("url", url))
	return d, nil
}

func capabilities(name string, opts driver.Options) (selenium.Capabilities, error) {
	args := append([]string(nil), opts.Args...)
	if opts.Headless {
		args = append(args, "--headless")
	}
	switch name {
	case "chrome", "chromium":
		caps := selenium.Capabilities{"browserName": "chrome"}
		caps.AddChrome(chrome.Capabilities{
			Path: opts.BinaryPath,
			Args: append(args, "--no-sandbox", "--disable-dev-shm-usage"),
		})
		return caps, nil
	case "firefox":
		caps := selenium.Capabilities{"browserName": "firefox"}
		caps.AddFirefox(firefox.Capabilities{
			Binary: opts.BinaryPath,
			Args:   args,
		})
		return caps, nil
	}
	return nil, fmt.Errorf("unknown selenium browser %q (want chrome or firefox)", name)
}

func startService(name string, opts driver.Options, svcOpts ...selenium.ServiceOption) (*selenium.Service, error) {
	path := opts.ServicePath
	var (
		svc *selenium.Service
		err error
	)
	switch name {
	case "firefox":
		if path == "" {
			path = "geckodriver"
		}
		svc, err = selenium.NewGeckoDriverService(path, opts.ServicePort, svcOpts...)
	default:
		if path == "" {
			path = "chromedriver"
		}
		svc, err = selenium.NewChromeDriverService(path, opts.ServicePort, svcOpts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start %s on port %d: %w", path, opts.ServicePort, err)
	}
	return svc, nil
}

func (d *Driver) stopService() {
	if d.service != nil {
		if err := d.service.Stop(); err != nil {
			d.logger.Warn("Failed to stop driver service.", zap.Error(err))
		}
		d.service = nil
	}
	if d.output != nil {
		_ = d.output.Close()
		d.output = nil
	}
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.logger.Debug("Navigating.", zap.String("url", url))
	if err := d.wd.Get(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, translate(err))
	}
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	u, err := d.wd.CurrentURL()
	return u, translate(err)
}

func (d *Driver) FindElement(ctx context.Context, by driver.By, value string) (driver.Element, error) {
	return first(d.FindElements(ctx, by, value))
}

func (d *Driver) FindElements(ctx context.Context, by driver.By, value string) ([]driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.wrap(by, value, d.wd.FindElements)
}

func (d *Driver) wrap(by driver.By, value string, query func(by, value string) ([]selenium.WebElement, error)) ([]driver.Element, error) {
	els, err := query(strategy(by), value)
	if err != nil {
		err = translate(err)
		if errors.Is(err, driver.ErrNoSuchElement) {
			return []driver.Element{}, nil
		}
		return nil, err
	}
	out := make([]driver.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &Element{d: d, el: el})
	}
	return out, nil
}

// Close ends the session and stops a locally started service.
func (d *Driver) Close() error {
	d.logger.Debug("Closing session.")
	var err error
	if d.wd != nil {
		err = translate(d.wd.Quit())
	}
	d.stopService()
	return err
}

// Element wraps a WebDriver element reference.
type Element struct {
	d  *Driver
	el selenium.WebElement
}

var (
	_ driver.Element  = (*Element)(nil)
	_ driver.Searcher = (*Element)(nil)
)

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translate(e.el.Click())
}

func (e *Element) SendKeys(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translate(e.el.SendKeys(text))
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := e.el.Text()
	return s, translate(err)
}

// Attribute reports ok=false when WebDriver returns null for the attribute.
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, err := e.el.GetAttribute(name)
	if err != nil {
		if isNullValue(err) {
			return "", false, nil
		}
		return "", false, translate(err)
	}
	return v, true, nil
}

func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := e.el.IsDisplayed()
	return ok, translate(err)
}

func (e *Element) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translate(e.el.Clear())
}

func (e *Element) FindElement(ctx context.Context, by driver.By, value string) (driver.Element, error) {
	return first(e.FindElements(ctx, by, value))
}

func (e *Element) FindElements(ctx context.Context, by driver.By, value string) ([]driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.d.wrap(by, value, e.el.FindElements)
}

// -- helpers --

func strategy(by driver.By) string {
	if by == driver.ByLinkText {
		return selenium.ByLinkText
	}
	return selenium.ByCSSSelector
}

// translate maps W3C WebDriver error codes onto the driver sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	code := err.Error()
	var wdErr *selenium.Error
	if errors.As(err, &wdErr) {
		code = wdErr.Err
	}
	switch {
	case strings.Contains(code, "no such element"):
		return fmt.Errorf("%w: %v", driver.ErrNoSuchElement, err)
	case strings.Contains(code, "stale element reference"):
		return fmt.Errorf("%w: %v", driver.ErrStaleElement, err)
	case strings.Contains(code, "invalid element state"),
		strings.Contains(code, "element not interactable"),
		strings.Contains(code, "element click intercepted"):
		return fmt.Errorf("%w: %v", driver.ErrInvalidElementState, err)
	}
	return err
}

func isNullValue(err error) bool {
	return err != nil && strings.Contains(err.Error(), "nil return value")
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
