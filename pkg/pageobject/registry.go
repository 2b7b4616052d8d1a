// pkg/pageobject/registry.go
package pageobject

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Kind tells page classes from component classes.
type Kind int

const (
	KindPage Kind = iota
	KindComponent
)

func (k Kind) String() string {
	if k == KindPage {
		return "page"
	}
	return "component"
}

// Class is a registrable entity type. Its discriminator is a URL for pages and
// a CSS selector for components.
type Class interface {
	Discriminator() string
	Kind() Kind
	String() string
}

// PageClass binds a URL to a page type.
type PageClass struct {
	Name string
	URL  string
	// Wrap turns the base page into the author's type. Nil keeps *Page.
	Wrap func(*Page) Entity
}

func (c *PageClass) Discriminator() string { return c.URL }
func (c *PageClass) Kind() Kind            { return KindPage }

func (c *PageClass) String() string {
	name := c.Name
	if name == "" {
		name = "Page"
	}
	return fmt.Sprintf("%s(url=%q)", name, c.URL)
}

// ComponentClass binds a CSS selector to a component type.
type ComponentClass struct {
	Name     string
	Selector string
	// Wrap turns the base component into the author's type. Nil keeps *Component.
	Wrap func(*Component) Entity

	dynamic bool
}

func (c *ComponentClass) Discriminator() string { return c.Selector }
func (c *ComponentClass) Kind() Kind            { return KindComponent }

// Dynamic reports whether the class was synthesized for an unregistered selector.
func (c *ComponentClass) Dynamic() bool { return c.dynamic }

func (c *ComponentClass) String() string {
	name := c.Name
	switch {
	case name != "":
	case c.dynamic:
		name = "DynamicComponent"
	default:
		name = "Component"
	}
	return fmt.Sprintf("%s(selector=%q)", name, c.Selector)
}

func (c *ComponentClass) componentClass(*Registry) *ComponentClass { return c }

// ComponentRef names a component either by class or by bare selector.
type ComponentRef interface {
	componentClass(r *Registry) *ComponentClass
}

// Selector refers to a component by CSS selector. Registered selectors resolve
// to their class; anything else gets a dynamic component.
type Selector string

func (s Selector) componentClass(r *Registry) *ComponentClass {
	return r.ResolveOrSynthesize(s)
}

// Registry maps discriminators to classes. Populate it before any click that
// relies on inferring a page transition.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]Class
	logger  *zap.Logger
	strict  bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithStrictRegistration rejects a second class for an already registered
// discriminator instead of replacing the first.
func WithStrictRegistration() RegistryOption {
	return func(r *Registry) { r.strict = true }
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *zap.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		classes: make(map[string]Class),
		logger:  logger.Named("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds classes under their discriminators. Classes with an empty
// discriminator are skipped. A later class replaces an earlier one for the
// same discriminator unless the registry is strict, in which case a duplicate
// rejects the whole call and nothing is registered.
func (r *Registry) Register(classes ...Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make(map[string]Class, len(classes))
	keys := make([]string, 0, len(classes))
	for _, c := range classes {
		if c == nil || c.Discriminator() == "" {
			continue
		}
		key := c.Discriminator()
		prev, ok := pending[key]
		if !ok {
			prev, ok = r.classes[key]
		}
		if ok && prev != c {
			if r.strict {
				return fmt.Errorf("%w: %s already registered as %s", ErrDuplicateRegistration, key, prev)
			}
			r.logger.Warn("Discriminator re-registered; last registration wins.",
				zap.String("discriminator", key),
				zap.Stringer("previous", prev),
				zap.Stringer("current", c))
		}
		if _, seen := pending[key]; !seen {
			keys = append(keys, key)
		}
		pending[key] = c
	}
	for _, key := range keys {
		r.classes[key] = pending[key]
	}
	return nil
}

// MustRegister is Register for package initialization; it panics on error.
func (r *Registry) MustRegister(classes ...Class) {
	if err := r.Register(classes...); err != nil {
		panic(err)
	}
}

// Resolve is a plain lookup.
func (r *Registry) Resolve(discriminator string) (Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[discriminator]
	return c, ok
}

// ResolvePage returns the page class registered for url.
func (r *Registry) ResolvePage(url string) (*PageClass, bool) {
	c, ok := r.Resolve(url)
	if !ok {
		return nil, false
	}
	pc, ok := c.(*PageClass)
	return pc, ok
}

// ResolveOrSynthesize never fails: a class is returned as-is, a registered
// selector yields its class, anything else a dynamic class bound to the selector.
// The dynamic class is not registered.
func (r *Registry) ResolveOrSynthesize(ref ComponentRef) *ComponentClass {
	switch v := ref.(type) {
	case *ComponentClass:
		if v != nil {
			return v
		}
	case Selector:
		if c, ok := r.Resolve(string(v)); ok {
			if cc, ok := c.(*ComponentClass); ok {
				return cc
			}
		}
		return &ComponentClass{Selector: string(v), dynamic: true}
	}
	return &ComponentClass{dynamic: true}
}

// Classes lists registrations ordered by discriminator.
func (r *Registry) Classes() []Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Discriminator() < out[j].Discriminator() })
	return out
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.classes)
}
