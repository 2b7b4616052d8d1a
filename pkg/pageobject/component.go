// pkg/pageobject/component.go
package pageobject

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagecraft/pkg/driver"
)

// Component models a reusable fragment inside a page or another component. Its
// root element is bound once and never looked up again.
type Component struct {
	*entity
	class  *ComponentClass
	parent Entity
}

// NewComponent binds class to element, or to the first match of the class
// selector inside parent when element is nil.
func NewComponent(ctx context.Context, parent Entity, class *ComponentClass, element driver.Element) (Entity, error) {
	if parent == nil {
		return nil, errors.New("pageobject: component needs a parent")
	}
	if class == nil {
		return nil, errors.New("pageobject: nil component class")
	}
	pb := parent.base()
	if element == nil {
		if class.Selector == "" {
			return nil, fmt.Errorf("pageobject: %s has neither a selector nor an element", class)
		}
		el, err := pb.GetElement(ctx, class.Selector)
		if err != nil {
			return nil, err
		}
		element = el
	}
	origin, err := pb.Location(ctx)
	if err != nil {
		return nil, err
	}

	var scope driver.Searcher = pb.drv
	if s, ok := element.(driver.Searcher); ok {
		scope = s
	}
	c := &Component{
		entity: &entity{
			tc:       pb.tc,
			drv:      pb.drv,
			scope:    scope,
			root:     element,
			origin:   origin,
			settings: pb.settings,
			logger:   pb.tc.logger.With(zap.Stringer("component", class)),
		},
		class:  class,
		parent: parent,
	}
	c.self = c
	if class.Wrap != nil {
		if w := class.Wrap(c); w != nil {
			c.self = w
		}
	}
	return c.self, nil
}

// Selector returns the class selector; empty for components built from an
// element alone.
func (c *Component) Selector() string { return c.class.Selector }

func (c *Component) Class() *ComponentClass { return c.class }
func (c *Component) Parent() Entity         { return c.parent }
func (c *Component) String() string         { return c.class.String() }
