// internal/flow/runner.go
package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagecraft/pkg/driver"
	"github.com/xkilldash9x/pagecraft/pkg/pageobject"
)

// ErrUnexpectedLocation is returned by expect_location on a mismatch.
var ErrUnexpectedLocation = errors.New("unexpected location")

// StepError reports the step that stopped a run. Index is one-based; nested
// component steps are dotted ("4.2").
type StepError struct {
	Index string
	Kind  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// StepResult records one executed step.
type StepResult struct {
	Index    string        `yaml:"index"`
	Kind     string        `yaml:"kind"`
	Target   string        `yaml:"target,omitempty"`
	Entity   string        `yaml:"entity,omitempty"`
	Duration time.Duration `yaml:"duration"`
	Error    string        `yaml:"error,omitempty"`
}

// Report is the outcome of one Run.
type Report struct {
	RunID    string        `yaml:"run_id"`
	Flow     string        `yaml:"flow"`
	Started  time.Time     `yaml:"started"`
	Duration time.Duration `yaml:"duration"`
	Steps    []StepResult  `yaml:"steps"`
}

// Failed reports whether the last recorded step failed.
func (r *Report) Failed() bool {
	return len(r.Steps) > 0 && r.Steps[len(r.Steps)-1].Error != ""
}

type runner struct {
	tc         *pageobject.TestContext
	flow       *Flow
	pages      map[string]*pageobject.PageClass
	components map[string]*pageobject.ComponentClass
	logger     *zap.Logger
	report     *Report
}

// Run registers the flow's classes with tc and executes its steps against
// tc's current browser. The report is returned even when a step fails.
func Run(ctx context.Context, tc *pageobject.TestContext, f *Flow) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Flow: f.Name, Started: time.Now()}
	r := &runner{
		tc:         tc,
		flow:       f,
		pages:      make(map[string]*pageobject.PageClass, len(f.Pages)),
		components: make(map[string]*pageobject.ComponentClass, len(f.Components)),
		logger:     tc.Logger().Named("flow").With(zap.String("run_id", report.RunID), zap.String("flow", f.Name)),
		report:     report,
	}
	if err := r.register(); err != nil {
		return report, err
	}

	r.logger.Info("Flow started.", zap.Int("steps", len(f.Steps)))
	_, err := r.run(ctx, f.Steps, "", nil)
	report.Duration = time.Since(report.Started)
	if err != nil {
		r.logger.Warn("Flow failed.", zap.Error(err), zap.Duration("duration", report.Duration))
		return report, err
	}
	r.logger.Info("Flow finished.", zap.Duration("duration", report.Duration))
	return report, nil
}

func (r *runner) register() error {
	for _, p := range r.flow.Pages {
		u, err := r.flow.resolveURL(p.URL)
		if err != nil {
			return fmt.Errorf("page %q: %w", p.Name, err)
		}
		r.pages[p.Name] = &pageobject.PageClass{Name: p.Name, URL: u}
	}
	for _, c := range r.flow.Components {
		r.components[c.Name] = &pageobject.ComponentClass{Name: c.Name, Selector: c.Selector}
	}

	classes := make([]pageobject.Class, 0, len(r.pages)+len(r.components))
	for _, p := range r.flow.Pages {
		classes = append(classes, r.pages[p.Name])
	}
	for _, c := range r.flow.Components {
		classes = append(classes, r.components[c.Name])
	}
	if err := r.tc.Registry().Register(classes...); err != nil {
		return fmt.Errorf("failed to register flow classes: %w", err)
	}
	return nil
}

func (r *runner) run(ctx context.Context, steps []Step, prefix string, current pageobject.Entity) (pageobject.Entity, error) {
	for i, s := range steps {
		idx := prefix + strconv.Itoa(i+1)
		start := time.Now()
		next, err := r.step(ctx, s, idx, current)

		var nested *StepError
		if errors.As(err, &nested) {
			return current, err
		}
		res := StepResult{Index: idx, Kind: s.Kind(), Target: target(s), Duration: time.Since(start)}
		if next != nil {
			res.Entity = describe(next)
		}
		if err != nil {
			res.Error = err.Error()
			r.report.Steps = append(r.report.Steps, res)
			return current, &StepError{Index: idx, Kind: s.Kind(), Err: err}
		}
		r.report.Steps = append(r.report.Steps, res)
		r.logger.Debug("Step done.", zap.String("index", idx), zap.String("kind", res.Kind), zap.String("entity", res.Entity))
		current = next
	}
	return current, nil
}

func (r *runner) step(ctx context.Context, s Step, idx string, current pageobject.Entity) (pageobject.Entity, error) {
	if s.Open == "" && current == nil {
		return nil, errors.New("no page is open")
	}
	switch s.Kind() {
	case "open":
		return r.tc.Open(ctx, r.pages[s.Open])

	case "click":
		next, err := current.Click(ctx, s.Click.Selector, r.clickOptions(s.Click)...)
		return r.expect(next, err, s.Click.Expect)

	case "click_link":
		next, err := current.ClickLinkText(ctx, s.ClickLink.Text, r.clickOptions(s.ClickLink)...)
		return r.expect(next, err, s.ClickLink.Expect)

	case "enter_text":
		return current, current.EnterText(ctx, s.EnterText.Selector, s.EnterText.Text)

	case "expect_text":
		return current, current.AssertTextInElement(ctx, s.ExpectText.Selector, s.ExpectText.Text)

	case "expect_invisible":
		return current, current.AssertElementInvisible(ctx, s.ExpectInvisible)

	case "wait_visible":
		p, err := pageOf(current)
		if err != nil {
			return nil, err
		}
		_, err = p.WaitForVisibility(ctx, s.WaitVisible.Selector, s.WaitVisible.Timeout)
		return current, err

	case "wait_invisible":
		p, err := pageOf(current)
		if err != nil {
			return nil, err
		}
		_, err = p.WaitForInvisibility(ctx, s.WaitInvisible.Selector, s.WaitInvisible.Timeout)
		return current, err

	case "click_button":
		return current, current.ClickButtonWithText(ctx, s.ClickButton)

	case "component":
		c, err := current.GetComponent(ctx, r.ref(s.Component.Ref))
		if c, err = r.expect(c, err, s.Component.Expect); err != nil {
			return nil, err
		}
		if len(s.Component.Steps) == 0 {
			return c, nil
		}
		if _, err := r.run(ctx, s.Component.Steps, idx+".", c); err != nil {
			return nil, err
		}
		return current, nil

	case "expect_location":
		return current, r.expectLocation(ctx, current, s.ExpectLocation)
	}
	return nil, fmt.Errorf("%w: step has no single action", ErrInvalidFlow)
}

func (r *runner) clickOptions(c *ClickStep) []pageobject.ClickOption {
	if c.Opens == "" {
		return nil
	}
	return []pageobject.ClickOption{pageobject.Opens(r.ref(c.Opens))}
}

// ref prefers a declared component name over a bare selector.
func (r *runner) ref(name string) pageobject.ComponentRef {
	if c, ok := r.components[name]; ok {
		return c
	}
	return pageobject.Selector(name)
}

// expect checks the class of e against want; an empty want accepts anything.
func (r *runner) expect(e pageobject.Entity, err error, want string) (pageobject.Entity, error) {
	if err != nil {
		return nil, err
	}
	if want == "" {
		return e, nil
	}
	if got := className(e); got != want {
		return nil, fmt.Errorf("%w: got %s, want %s", pageobject.ErrUnexpectedEntity, describe(e), want)
	}
	return e, nil
}

// expectLocation accepts a declared page name or a URL.
func (r *runner) expectLocation(ctx context.Context, current pageobject.Entity, want string) error {
	if p, ok := r.pages[want]; ok {
		want = p.URL
	} else {
		u, err := r.flow.resolveURL(want)
		if err != nil {
			return err
		}
		want = u
	}
	want, _, _ = strings.Cut(want, "?")
	got, err := current.Location(ctx)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: at %s, want %s", ErrUnexpectedLocation, got, want)
	}
	return nil
}

type visibilityWaiter interface {
	WaitForVisibility(ctx context.Context, selector string, timeout time.Duration) (driver.Element, error)
	WaitForInvisibility(ctx context.Context, selector string, timeout time.Duration) (driver.Element, error)
}

// pageOf walks up from a component to the page it lives on.
func pageOf(e pageobject.Entity) (visibilityWaiter, error) {
	for e != nil {
		if p, ok := e.(visibilityWaiter); ok {
			return p, nil
		}
		c, ok := e.(interface{ Parent() pageobject.Entity })
		if !ok {
			break
		}
		e = c.Parent()
	}
	return nil, errors.New("current entity is not on a page")
}

func className(e pageobject.Entity) string {
	switch v := e.(type) {
	case *pageobject.Page:
		return v.Class().Name
	case *pageobject.Component:
		return v.Class().Name
	}
	return ""
}

func describe(e pageobject.Entity) string {
	if s, ok := e.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", e)
}

func target(s Step) string {
	switch {
	case s.Open != "":
		return s.Open
	case s.Click != nil:
		return s.Click.Selector
	case s.ClickLink != nil:
		return s.ClickLink.Text
	case s.EnterText != nil:
		return s.EnterText.Selector
	case s.ExpectText != nil:
		return s.ExpectText.Selector
	case s.ExpectInvisible != "":
		return s.ExpectInvisible
	case s.WaitVisible != nil:
		return s.WaitVisible.Selector
	case s.WaitInvisible != nil:
		return s.WaitInvisible.Selector
	case s.ClickButton != "":
		return s.ClickButton
	case s.Component != nil:
		return s.Component.Ref
	case s.ExpectLocation != "":
		return s.ExpectLocation
	}
	return ""
}
