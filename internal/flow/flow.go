// internal/flow/flow.go

// Package flow runs page-object scripts written in YAML. A flow declares the
// pages and components it touches and a list of steps executed in order
// against the current entity.
//
//	name: sign in
//	base_url: https://app.test
//	pages:
//	  - {name: Login, url: /login}
//	  - {name: Home, url: /home}
//	components:
//	  - {name: Menu, selector: nav.menu}
//	steps:
//	  - open: Login
//	  - enter_text: {selector: "input[name=user]", text: ada}
//	  - click: {selector: "#submit", expect: Home}
//	  - component:
//	      ref: Menu
//	      steps:
//	        - click_link: {text: Settings}
package flow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidFlow is matched by every validation failure.
var ErrInvalidFlow = errors.New("invalid flow")

// Flow is a parsed script.
type Flow struct {
	Name       string         `yaml:"name"`
	BaseURL    string         `yaml:"base_url"`
	Pages      []PageDef      `yaml:"pages"`
	Components []ComponentDef `yaml:"components"`
	Steps      []Step         `yaml:"steps"`
}

// PageDef declares a page class. A relative URL is resolved against BaseURL.
type PageDef struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ComponentDef declares a component class.
type ComponentDef struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
}

// Step is one action. Exactly one field is set.
type Step struct {
	Open            string         `yaml:"open,omitempty"`
	Click           *ClickStep     `yaml:"click,omitempty"`
	ClickLink       *ClickStep     `yaml:"click_link,omitempty"`
	EnterText       *TextStep      `yaml:"enter_text,omitempty"`
	ExpectText      *TextStep      `yaml:"expect_text,omitempty"`
	ExpectInvisible string         `yaml:"expect_invisible,omitempty"`
	WaitVisible     *WaitStep      `yaml:"wait_visible,omitempty"`
	WaitInvisible   *WaitStep      `yaml:"wait_invisible,omitempty"`
	ClickButton     string         `yaml:"click_button,omitempty"`
	Component       *ComponentStep `yaml:"component,omitempty"`
	ExpectLocation  string         `yaml:"expect_location,omitempty"`
}

// ClickStep clicks by selector (click) or link text (click_link). Opens names
// a component the click reveals; Expect names the class the click must lead to.
type ClickStep struct {
	Selector string `yaml:"selector,omitempty"`
	Text     string `yaml:"text,omitempty"`
	Opens    string `yaml:"opens,omitempty"`
	Expect   string `yaml:"expect,omitempty"`
}

// TextStep types or expects text in the element at Selector.
type TextStep struct {
	Selector string `yaml:"selector"`
	Text     string `yaml:"text"`
}

// WaitStep polls a page element's visibility. A zero Timeout uses the default.
type WaitStep struct {
	Selector string        `yaml:"selector"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// ComponentStep enters a component (by declared name or selector) and runs
// Steps inside it. Without Steps the component becomes the current entity.
type ComponentStep struct {
	Ref    string `yaml:"ref"`
	Expect string `yaml:"expect,omitempty"`
	Steps  []Step `yaml:"steps,omitempty"`
}

// Kind names the action the step performs.
func (s Step) Kind() string {
	kinds := s.kinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

func (s Step) kinds() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(s.Open != "", "open")
	add(s.Click != nil, "click")
	add(s.ClickLink != nil, "click_link")
	add(s.EnterText != nil, "enter_text")
	add(s.ExpectText != nil, "expect_text")
	add(s.ExpectInvisible != "", "expect_invisible")
	add(s.WaitVisible != nil, "wait_visible")
	add(s.WaitInvisible != nil, "wait_invisible")
	add(s.ClickButton != "", "click_button")
	add(s.Component != nil, "component")
	add(s.ExpectLocation != "", "expect_location")
	return out
}

// Load reads and validates the flow at path.
func Load(path string) (*Flow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open flow: %w", err)
	}
	defer f.Close()
	flow, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return flow, nil
}

// Parse decodes and validates a flow held in memory.
func Parse(data []byte) (*Flow, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads one YAML document. Unknown keys are rejected.
func Decode(r io.Reader) (*Flow, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f Flow
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidFlow)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidFlow, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks names, references and step shapes.
func (f *Flow) Validate() error {
	if f.BaseURL != "" {
		if _, err := url.Parse(f.BaseURL); err != nil {
			return fmt.Errorf("%w: base_url: %v", ErrInvalidFlow, err)
		}
	}
	pages := make(map[string]bool, len(f.Pages))
	for i, p := range f.Pages {
		if p.Name == "" || p.URL == "" {
			return fmt.Errorf("%w: pages[%d] needs a name and a url", ErrInvalidFlow, i)
		}
		if pages[p.Name] {
			return fmt.Errorf("%w: page %q declared twice", ErrInvalidFlow, p.Name)
		}
		pages[p.Name] = true
	}
	components := make(map[string]bool, len(f.Components))
	for i, c := range f.Components {
		if c.Name == "" || c.Selector == "" {
			return fmt.Errorf("%w: components[%d] needs a name and a selector", ErrInvalidFlow, i)
		}
		if components[c.Name] || pages[c.Name] {
			return fmt.Errorf("%w: %q declared twice", ErrInvalidFlow, c.Name)
		}
		components[c.Name] = true
	}
	if len(f.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidFlow)
	}
	if f.Steps[0].Open == "" {
		return fmt.Errorf("%w: the first step must open a page", ErrInvalidFlow)
	}
	known := func(name string) bool { return name == "" || pages[name] || components[name] }
	return validateSteps(f.Steps, "steps", pages, known)
}

func validateSteps(steps []Step, path string, pages map[string]bool, known func(string) bool) error {
	for i, s := range steps {
		at := fmt.Sprintf("%s[%d]", path, i)
		kinds := s.kinds()
		switch len(kinds) {
		case 0:
			return fmt.Errorf("%w: %s has no action", ErrInvalidFlow, at)
		case 1:
		default:
			return fmt.Errorf("%w: %s has several actions (%s)", ErrInvalidFlow, at, strings.Join(kinds, ", "))
		}
		switch {
		case s.Open != "" && !pages[s.Open]:
			return fmt.Errorf("%w: %s opens undeclared page %q", ErrInvalidFlow, at, s.Open)
		case s.Click != nil && s.Click.Selector == "":
			return fmt.Errorf("%w: %s click needs a selector", ErrInvalidFlow, at)
		case s.ClickLink != nil && s.ClickLink.Text == "":
			return fmt.Errorf("%w: %s click_link needs a text", ErrInvalidFlow, at)
		case s.EnterText != nil && s.EnterText.Selector == "",
			s.ExpectText != nil && s.ExpectText.Selector == "":
			return fmt.Errorf("%w: %s needs a selector", ErrInvalidFlow, at)
		case s.WaitVisible != nil && s.WaitVisible.Selector == "",
			s.WaitInvisible != nil && s.WaitInvisible.Selector == "":
			return fmt.Errorf("%w: %s needs a selector", ErrInvalidFlow, at)
		case s.Component != nil && s.Component.Ref == "":
			return fmt.Errorf("%w: %s component needs a ref", ErrInvalidFlow, at)
		}
		for _, c := range []*ClickStep{s.Click, s.ClickLink} {
			if c != nil && !known(c.Expect) {
				return fmt.Errorf("%w: %s expects undeclared class %q", ErrInvalidFlow, at, c.Expect)
			}
		}
		if c := s.Component; c != nil {
			if !known(c.Expect) {
				return fmt.Errorf("%w: %s expects undeclared class %q", ErrInvalidFlow, at, c.Expect)
			}
			if err := validateSteps(c.Steps, at+".component.steps", pages, known); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveURL joins a page URL onto the base URL unless it is already absolute.
func (f *Flow) resolveURL(raw string) (string, error) {
	if f.BaseURL == "" {
		return raw, nil
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return raw, nil
	}
	base, err := url.Parse(f.BaseURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
