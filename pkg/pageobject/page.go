// pkg/pageobject/page.go
package pageobject

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagecraft/internal/wait"
	"github.com/xkilldash9x/pagecraft/pkg/driver"
)

// Page models one URL-addressable screen. Author page types embed *Page:
//
//	type LoginPage struct{ *pageobject.Page }
//
//	var LoginClass = &pageobject.PageClass{
//		Name: "LoginPage",
//		URL:  "https://site.test/login",
//		Wrap: func(p *pageobject.Page) pageobject.Entity { return &LoginPage{p} },
//	}
//
//	func (l *LoginPage) Login(ctx context.Context, user, pass string) (pageobject.Entity, error) {
//		if err := l.EnterText(ctx, "input[name=username]", user); err != nil {
//			return nil, err
//		}
//		if err := l.EnterText(ctx, "input[name=password]", pass); err != nil {
//			return nil, err
//		}
//		return l.Click(ctx, "input[type=submit]")
//	}
type Page struct {
	*entity
	class *PageClass
}

// NewPage navigates drv (or the context's current browser when drv is nil) to
// the class URL and blocks until the body element is present.
func NewPage(ctx context.Context, tc *TestContext, class *PageClass, drv driver.Driver) (Entity, error) {
	if class == nil {
		return nil, errors.New("pageobject: nil page class")
	}
	if drv == nil {
		b, err := tc.Browser()
		if err != nil {
			return nil, err
		}
		drv = b
	}

	logger := tc.logger.With(zap.Stringer("page", class))
	logger.Debug("Navigating.", zap.String("url", class.URL))
	if err := drv.Navigate(ctx, class.URL); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", class.URL, err)
	}

	p := &Page{
		entity: &entity{
			tc:       tc,
			drv:      drv,
			scope:    drv,
			origin:   stripQuery(class.URL),
			settings: tc.settings,
			logger:   logger,
		},
		class: class,
	}
	body, err := p.GetElement(ctx, "body")
	if err != nil {
		return nil, fmt.Errorf("%s did not load: %w", class, err)
	}
	p.root = body

	p.self = p
	if class.Wrap != nil {
		if w := class.Wrap(p); w != nil {
			p.self = w
		}
	}
	return p.self, nil
}

// URL returns the registered URL of the page class.
func (p *Page) URL() string { return p.class.URL }

// Class returns the page class the page was built from.
func (p *Page) Class() *PageClass { return p.class }

func (p *Page) String() string { return p.class.String() }

// GetViaCSS looks selector up once, without waiting. A miss quotes the start of
// the page text to aid debugging.
func (p *Page) GetViaCSS(ctx context.Context, selector string) (driver.Element, error) {
	el, err := p.drv.FindElement(ctx, driver.ByCSS, selector)
	if err != nil {
		if errors.Is(err, driver.ErrNoSuchElement) {
			return nil, &ElementNotFoundError{Selector: selector, BodyText: p.bodyExcerpt(ctx), Err: err}
		}
		return nil, err
	}
	return el, nil
}

// GetAllViaCSS lists the current matches for selector without waiting.
func (p *Page) GetAllViaCSS(ctx context.Context, selector string) ([]driver.Element, error) {
	els, err := p.drv.FindElements(ctx, driver.ByCSS, selector)
	if err != nil {
		if errors.Is(err, driver.ErrNoSuchElement) {
			return nil, &ElementNotFoundError{Selector: selector, BodyText: p.bodyExcerpt(ctx), Err: err}
		}
		return nil, err
	}
	if els == nil {
		els = []driver.Element{}
	}
	return els, nil
}

// BodyText returns the text of the current body element.
func (p *Page) BodyText(ctx context.Context) (string, error) {
	body, err := p.GetViaCSS(ctx, "body")
	if err != nil {
		return "", err
	}
	return body.Text(ctx)
}

// WaitForVisibility polls until selector is present and displayed. A zero
// timeout uses the visibility timeout from Settings.
func (p *Page) WaitForVisibility(ctx context.Context, selector string, timeout time.Duration) (driver.Element, error) {
	timeout = p.visibilityTimeout(timeout)
	el, err := wait.Until(ctx, func(ctx context.Context) (driver.Element, bool, error) {
		el, err := p.drv.FindElement(ctx, driver.ByCSS, selector)
		if err != nil {
			if retryable(err) {
				return nil, false, nil
			}
			return nil, false, err
		}
		displayed, err := el.IsDisplayed(ctx)
		if err != nil {
			if errors.Is(err, driver.ErrStaleElement) {
				return nil, false, nil
			}
			return nil, false, err
		}
		return el, displayed, nil
	}, p.visibilityWait(timeout, fmt.Sprintf("visibility of element %q", selector)))
	if err != nil {
		if errors.Is(err, wait.ErrTimeout) {
			return nil, &VisibilityError{Selector: selector, Timeout: timeout, Err: err}
		}
		return nil, err
	}
	return el, nil
}

// WaitForInvisibility polls until selector is absent or hidden. Absence
// returns a nil element straight away; a hidden element is returned.
func (p *Page) WaitForInvisibility(ctx context.Context, selector string, timeout time.Duration) (driver.Element, error) {
	timeout = p.visibilityTimeout(timeout)
	el, err := wait.Until(ctx, func(ctx context.Context) (driver.Element, bool, error) {
		el, err := p.drv.FindElement(ctx, driver.ByCSS, selector)
		if err != nil {
			if retryable(err) {
				return nil, true, nil
			}
			return nil, false, err
		}
		displayed, err := el.IsDisplayed(ctx)
		if err != nil {
			if errors.Is(err, driver.ErrStaleElement) {
				return nil, true, nil
			}
			return nil, false, err
		}
		return el, !displayed, nil
	}, p.visibilityWait(timeout, fmt.Sprintf("invisibility of element %q", selector)))
	if err != nil {
		if errors.Is(err, wait.ErrTimeout) {
			return nil, &VisibilityError{Selector: selector, Timeout: timeout, Visible: true, Err: err}
		}
		return nil, err
	}
	return el, nil
}

func (p *Page) visibilityTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return p.settings.VisibilityTimeout
	}
	return timeout
}

func (p *Page) visibilityWait(timeout time.Duration, desc string) wait.Options {
	return wait.Options{Timeout: timeout, Interval: p.settings.VisibilityPollInterval, Description: desc}
}

// Debug hands the page to the context's debug hook for interactive
// inspection. Without a hook it logs where the browser is.
func (p *Page) Debug(ctx context.Context) error {
	if h := p.tc.debugHook; h != nil {
		return h(ctx, p)
	}
	loc, err := p.Location(ctx)
	if err != nil {
		return err
	}
	p.logger.Info("Debug snapshot.",
		zap.String("location", loc),
		zap.String("body", p.bodyExcerpt(ctx)))
	return nil
}
