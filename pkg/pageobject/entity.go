// pkg/pageobject/entity.go
package pageobject

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagecraft/internal/wait"
	"github.com/xkilldash9x/pagecraft/pkg/driver"
)

// Entity is the capability set shared by pages and components. Author types
// satisfy it by embedding *Page or *Component.
type Entity interface {
	GetElement(ctx context.Context, selector string) (driver.Element, error)
	GetElementByLinkText(ctx context.Context, text string) (driver.Element, error)
	GetElements(ctx context.Context, selector string) ([]driver.Element, error)
	AssertTextInElement(ctx context.Context, selector, text string) error
	AssertElementInvisible(ctx context.Context, selector string) error
	EnterText(ctx context.Context, selector, text string) error
	ClickButtonWithText(ctx context.Context, text string) error
	Click(ctx context.Context, selector string, opts ...ClickOption) (Entity, error)
	ClickLinkText(ctx context.Context, text string, opts ...ClickOption) (Entity, error)
	GetComponent(ctx context.Context, ref ComponentRef) (Entity, error)
	GetComponents(ctx context.Context, ref ComponentRef) ([]Entity, error)
	Text(ctx context.Context) (string, error)
	Location(ctx context.Context) (string, error)
	Driver() driver.Driver
	Root() driver.Element

	base() *entity
}

// As narrows the result of Click, GetComponent or NewPage to an author type.
//
//	home, err := pageobject.As[*HomePage](login.Click(ctx, "#submit"))
func As[T Entity](e Entity, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	t, ok := e.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %T", ErrUnexpectedEntity, e, zero)
	}
	return t, nil
}

// ClickOption configures Click and ClickLinkText.
type ClickOption func(*clickOptions)

type clickOptions struct {
	opens ComponentRef
}

// Opens declares that the click reveals ref. The component is returned whether
// or not the URL changed.
func Opens(ref ComponentRef) ClickOption {
	return func(o *clickOptions) { o.opens = ref }
}

// entity holds the state and behavior common to pages and components.
type entity struct {
	tc       *TestContext
	drv      driver.Driver
	scope    driver.Searcher
	root     driver.Element
	origin   string
	self     Entity
	settings Settings
	logger   *zap.Logger
}

func (e *entity) base() *entity { return e }

func (e *entity) Driver() driver.Driver { return e.drv }
func (e *entity) Root() driver.Element  { return e.root }

func (e *entity) elementWait(desc string) wait.Options {
	return wait.Options{
		Timeout:     e.settings.ElementTimeout,
		Interval:    e.settings.ElementPollInterval,
		Description: desc,
	}
}

// retryable reports lookup failures that polling should absorb.
func retryable(err error) bool {
	return errors.Is(err, driver.ErrNoSuchElement) || errors.Is(err, driver.ErrStaleElement)
}

func (e *entity) waitForElement(ctx context.Context, by driver.By, value string) (driver.Element, error) {
	el, err := wait.Until(ctx, func(ctx context.Context) (driver.Element, bool, error) {
		el, err := e.scope.FindElement(ctx, by, value)
		if err != nil {
			if retryable(err) {
				return nil, false, nil
			}
			return nil, false, err
		}
		return el, true, nil
	}, e.elementWait(fmt.Sprintf("presence of element %s %q", by, value)))
	if err != nil {
		if errors.Is(err, wait.ErrTimeout) {
			return nil, &ElementNotFoundError{Selector: value, BodyText: e.bodyExcerpt(ctx), Err: err}
		}
		return nil, err
	}
	return el, nil
}

// bodyExcerpt never fails; it feeds error messages.
func (e *entity) bodyExcerpt(ctx context.Context) string {
	body, err := e.drv.FindElement(ctx, driver.ByCSS, "body")
	if err != nil {
		return ""
	}
	text, err := body.Text(ctx)
	if err != nil {
		return ""
	}
	if r := []rune(text); len(r) > e.settings.BodyTextLimit {
		return string(r[:e.settings.BodyTextLimit])
	}
	return text
}

// GetElement waits for the first element matching selector in the entity's scope.
func (e *entity) GetElement(ctx context.Context, selector string) (driver.Element, error) {
	return e.waitForElement(ctx, driver.ByCSS, selector)
}

// GetElementByLinkText waits for the first link whose text is text.
func (e *entity) GetElementByLinkText(ctx context.Context, text string) (driver.Element, error) {
	return e.waitForElement(ctx, driver.ByLinkText, text)
}

// GetElements waits for at least one match and returns all of them in document
// order. A wait that expires with no match yields an empty slice, not an error.
func (e *entity) GetElements(ctx context.Context, selector string) ([]driver.Element, error) {
	els, err := wait.Until(ctx, func(ctx context.Context) ([]driver.Element, bool, error) {
		els, err := e.scope.FindElements(ctx, driver.ByCSS, selector)
		if err != nil {
			if retryable(err) {
				return nil, false, nil
			}
			return nil, false, err
		}
		return els, len(els) > 0, nil
	}, e.elementWait(fmt.Sprintf("presence of elements %q", selector)))
	if err != nil {
		if errors.Is(err, wait.ErrTimeout) {
			e.logger.Debug("No elements matched.", zap.String("selector", selector))
			return []driver.Element{}, nil
		}
		return nil, err
	}
	return els, nil
}

// AssertTextInElement waits until the element's text contains text.
func (e *entity) AssertTextInElement(ctx context.Context, selector, text string) error {
	_, err := wait.Until(ctx, func(ctx context.Context) (struct{}, bool, error) {
		el, err := e.scope.FindElement(ctx, driver.ByCSS, selector)
		if err != nil {
			if retryable(err) {
				return struct{}{}, false, nil
			}
			return struct{}{}, false, err
		}
		got, err := el.Text(ctx)
		if err != nil {
			if retryable(err) {
				return struct{}{}, false, nil
			}
			return struct{}{}, false, err
		}
		return struct{}{}, strings.Contains(got, text), nil
	}, e.elementWait(fmt.Sprintf("text %q in element %q", text, selector)))
	return err
}

// AssertElementInvisible waits until the element is absent, detached or hidden.
func (e *entity) AssertElementInvisible(ctx context.Context, selector string) error {
	_, err := wait.Until(ctx, func(ctx context.Context) (struct{}, bool, error) {
		hidden, err := e.hidden(ctx, selector)
		return struct{}{}, hidden, err
	}, e.elementWait(fmt.Sprintf("invisibility of element %q", selector)))
	if errors.Is(err, wait.ErrTimeout) {
		return &VisibilityError{Selector: selector, Timeout: e.settings.ElementTimeout, Visible: true, Err: err}
	}
	return err
}

func (e *entity) hidden(ctx context.Context, selector string) (bool, error) {
	el, err := e.scope.FindElement(ctx, driver.ByCSS, selector)
	if err != nil {
		if retryable(err) {
			return true, nil
		}
		return false, err
	}
	displayed, err := el.IsDisplayed(ctx)
	if err != nil {
		if errors.Is(err, driver.ErrStaleElement) {
			return true, nil
		}
		return false, err
	}
	return !displayed, nil
}

// EnterText types text into the element and reads it back, retrying when
// keystrokes were lost. A stale element on read-back means the page already
// reacted and counts as success. An element that refuses to be cleared cannot
// converge, so the first clear failure ends the attempt without error.
func (e *entity) EnterText(ctx context.Context, selector, text string) error {
	el, err := e.GetElement(ctx, selector)
	if err != nil {
		return err
	}
	attempts := e.settings.TextEntryAttempts
	var last string
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := el.SendKeys(ctx, text); err != nil {
			return fmt.Errorf("failed to send keys to %q: %w", selector, err)
		}
		got, err := readBack(ctx, el)
		if err != nil {
			if errors.Is(err, driver.ErrStaleElement) {
				e.logger.Debug("Element went stale after text entry.", zap.String("selector", selector))
				return nil
			}
			return fmt.Errorf("failed to read back %q: %w", selector, err)
		}
		if got == text {
			return nil
		}
		last = got
		e.logger.Debug("Text entry mismatch, retrying.",
			zap.String("selector", selector),
			zap.Int("attempt", attempt),
			zap.String("read", got))

		if err := el.Clear(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			e.logger.Debug("Element cannot be cleared, giving up on text entry.",
				zap.String("selector", selector), zap.Error(err))
			return nil
		}
		if attempt < attempts {
			if err := wait.Sleep(ctx, e.settings.TextEntryPause); err != nil {
				return err
			}
		}
	}
	return &TextEntryError{Selector: selector, Text: text, Attempts: attempts, Last: last}
}

// readBack prefers the value attribute and falls back to the element text.
func readBack(ctx context.Context, el driver.Element) (string, error) {
	v, ok, err := el.Attribute(ctx, "value")
	if err != nil {
		return "", err
	}
	if ok && v != "" {
		return v, nil
	}
	return el.Text(ctx)
}

// ClickButtonWithText clicks the first displayed button whose text is text. It
// does not wait.
func (e *entity) ClickButtonWithText(ctx context.Context, text string) error {
	buttons, err := e.scope.FindElements(ctx, driver.ByCSS, "button")
	if err != nil {
		return fmt.Errorf("failed to list buttons: %w", err)
	}
	for _, b := range buttons {
		got, err := b.Text(ctx)
		if err != nil {
			if errors.Is(err, driver.ErrStaleElement) {
				continue
			}
			return err
		}
		if got != text {
			continue
		}
		displayed, err := b.IsDisplayed(ctx)
		if err != nil {
			if errors.Is(err, driver.ErrStaleElement) {
				continue
			}
			return err
		}
		if !displayed {
			continue
		}
		e.logger.Debug("Clicking button.", zap.String("text", text))
		return b.Click(ctx)
	}
	return &ButtonNotFoundError{Text: text}
}

// Click clicks the element matching selector and returns the entity the click
// led to: the Opens component if given, else the registered page for a changed
// URL, else the receiver itself.
func (e *entity) Click(ctx context.Context, selector string, opts ...ClickOption) (Entity, error) {
	el, err := e.GetElement(ctx, selector)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Clicking element.", zap.String("selector", selector))
	return e.resolveAfterClick(ctx, el, opts)
}

// ClickLinkText is Click for a link identified by its text.
func (e *entity) ClickLinkText(ctx context.Context, text string, opts ...ClickOption) (Entity, error) {
	el, err := e.GetElementByLinkText(ctx, text)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Clicking link.", zap.String("text", text))
	return e.resolveAfterClick(ctx, el, opts)
}

func (e *entity) resolveAfterClick(ctx context.Context, el driver.Element, opts []ClickOption) (Entity, error) {
	var o clickOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := el.Click(ctx); err != nil {
		return nil, fmt.Errorf("click failed: %w", err)
	}
	if o.opens != nil {
		return e.GetComponent(ctx, o.opens)
	}
	loc, err := e.Location(ctx)
	if err != nil {
		return nil, err
	}
	if loc != e.origin {
		if class, ok := e.tc.registry.ResolvePage(loc); ok {
			e.logger.Debug("Click navigated to a registered page.",
				zap.String("from", e.origin), zap.String("to", loc), zap.Stringer("page", class))
			return NewPage(ctx, e.tc, class, e.drv)
		}
	}
	return e.self, nil
}

// GetComponent constructs the referenced component inside this entity. A
// component whose root element never appears yields *ComponentMissingError.
func (e *entity) GetComponent(ctx context.Context, ref ComponentRef) (Entity, error) {
	class := e.tc.registry.ResolveOrSynthesize(ref)
	c, err := NewComponent(ctx, e.self, class, nil)
	if err != nil {
		if errors.Is(err, wait.ErrTimeout) {
			return nil, &ComponentMissingError{Component: class.String(), Err: err}
		}
		return nil, err
	}
	return c, nil
}

// GetComponents returns one component per element matching the class selector,
// in document order. No match yields an empty slice.
func (e *entity) GetComponents(ctx context.Context, ref ComponentRef) ([]Entity, error) {
	class := e.tc.registry.ResolveOrSynthesize(ref)
	els, err := e.GetElements(ctx, class.Selector)
	if err != nil {
		return nil, err
	}
	out := make([]Entity, 0, len(els))
	for _, el := range els {
		c, err := NewComponent(ctx, e.self, class, el)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Text returns the text of the entity's root element.
func (e *entity) Text(ctx context.Context) (string, error) {
	return e.root.Text(ctx)
}

// Location returns the current URL without its query string.
func (e *entity) Location(ctx context.Context) (string, error) {
	u, err := e.drv.CurrentURL(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read current url: %w", err)
	}
	return stripQuery(u), nil
}

func stripQuery(u string) string {
	base, _, _ := strings.Cut(u, "?")
	return base
}
