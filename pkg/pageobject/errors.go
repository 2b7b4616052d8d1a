// pkg/pageobject/errors.go
package pageobject

import (
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/pagecraft/internal/wait"
)

var (
	// ErrTimeout matches every bounded wait that expired.
	ErrTimeout = wait.ErrTimeout

	ErrElementNotFound       = errors.New("element not found")
	ErrComponentMissing      = errors.New("component missing")
	ErrTextEntryFailed       = errors.New("text entry failed")
	ErrElementNotVisible     = errors.New("element not visible")
	ErrElementStillVisible   = errors.New("element still visible")
	ErrButtonNotFound        = errors.New("button not found")
	ErrNoBrowser             = errors.New("no browser started")
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrUnexpectedEntity      = errors.New("unexpected entity type")
)

// ElementNotFoundError reports a failed lookup. When the lookup waited, Err holds
// the wait timeout so errors.Is(err, ErrTimeout) also holds.
type ElementNotFoundError struct {
	Selector string
	// BodyText is a prefix of the page text at the time of failure, when known.
	BodyText string
	Err      error
}

func (e *ElementNotFoundError) Error() string {
	msg := fmt.Sprintf("could not find element identified by %q", e.Selector)
	if e.BodyText != "" {
		msg += fmt.Sprintf(" in page with text: %s", e.BodyText)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ElementNotFoundError) Is(target error) bool { return target == ErrElementNotFound }
func (e *ElementNotFoundError) Unwrap() error        { return e.Err }

// ComponentMissingError reports that a component's root element never appeared.
type ComponentMissingError struct {
	Component string
	Err       error
}

func (e *ComponentMissingError) Error() string {
	return fmt.Sprintf("%s could not be found in page", e.Component)
}

func (e *ComponentMissingError) Is(target error) bool { return target == ErrComponentMissing }
func (e *ComponentMissingError) Unwrap() error        { return e.Err }

// TextEntryError reports text that never read back correctly.
type TextEntryError struct {
	Selector string
	Text     string
	Attempts int
	// Last is the value read back on the final attempt.
	Last string
}

func (e *TextEntryError) Error() string {
	return fmt.Sprintf("unable to correctly type %q into %q after %d attempts (last read %q)",
		e.Text, e.Selector, e.Attempts, e.Last)
}

func (e *TextEntryError) Is(target error) bool { return target == ErrTextEntryFailed }

// VisibilityError reports a visibility or invisibility wait that expired.
type VisibilityError struct {
	Selector string
	Timeout  time.Duration
	// Visible is the state that was still observed when the wait gave up.
	Visible bool
	Err     error
}

func (e *VisibilityError) Error() string {
	if e.Visible {
		return fmt.Sprintf("element %s is visible despite waiting for %v", e.Selector, e.Timeout)
	}
	return fmt.Sprintf("element %s not visible despite waiting for %v", e.Selector, e.Timeout)
}

func (e *VisibilityError) Is(target error) bool {
	if e.Visible {
		return target == ErrElementStillVisible
	}
	return target == ErrElementNotVisible
}

func (e *VisibilityError) Unwrap() error { return e.Err }

// ButtonNotFoundError reports that no displayed button carried the requested text.
type ButtonNotFoundError struct {
	Text string
}

func (e *ButtonNotFoundError) Error() string {
	return fmt.Sprintf("could not find a button with the text %q", e.Text)
}

func (e *ButtonNotFoundError) Is(target error) bool { return target == ErrButtonNotFound }
