// pkg/pageobject/component_test.go
package pageobject_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagecraft/pkg/driver/drivertest"
	"github.com/xkilldash9x/pagecraft/pkg/pageobject"
)

func TestClick_Resolution(t *testing.T) {
	ctx := context.Background()

	t.Run("should return the registered page after a transition", func(t *testing.T) {
		f := newFixture(t)
		f.login.Add(drivertest.NewNode("button").WithText("Sign in").OnClick(func() {
			f.browser.SetURL("/home?x=1")
		}), "#submit")
		f.home.Add(drivertest.NewNode("h1").WithText("Dashboard"), "h1")
		login := f.openLogin(t)

		home, err := pageobject.As[*HomePage](login.Click(ctx, "#submit"))
		require.NoError(t, err)

		loc, err := home.Location(ctx)
		require.NoError(t, err)
		assert.Equal(t, "/home", loc)
		assert.Equal(t, []string{"/login", "/home"}, f.browser.History())
		text, err := home.Text(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Dashboard", text)
	})

	t.Run("should return itself when the new url is unregistered", func(t *testing.T) {
		f := newFixture(t)
		f.login.Add(drivertest.NewNode("a").WithText("Help").OnClick(func() {
			f.browser.SetURL("/help")
		}), "a.help")
		login := f.openLogin(t)

		got, err := login.Click(ctx, "a.help")
		require.NoError(t, err)
		assert.Same(t, login, got)
	})

	t.Run("should return itself when the url is unchanged", func(t *testing.T) {
		f := newFixture(t)
		toggle := f.login.Add(drivertest.NewNode("button"), "#toggle")
		login := f.openLogin(t)

		got, err := login.Click(ctx, "#toggle")
		require.NoError(t, err)
		assert.Same(t, login, got)
		assert.Equal(t, 1, toggle.Clicks())
	})

	t.Run("opens should win over an inferred transition", func(t *testing.T) {
		f := newFixture(t)
		f.login.Add(drivertest.NewNode("button").OnClick(func() {
			f.browser.SetURL("/home")
		}), "#submit")
		f.home.Add(drivertest.NewNode("div").WithText("Welcome back"), ".welcome")
		login := f.openLogin(t)

		got, err := login.Click(ctx, "#submit", pageobject.Opens(pageobject.Selector(".welcome")))
		require.NoError(t, err)
		c, ok := got.(*pageobject.Component)
		require.True(t, ok, "got %T", got)
		assert.Equal(t, ".welcome", c.Selector())
		assert.True(t, c.Class().Dynamic())
		assert.Same(t, login, c.Parent())
	})

	t.Run("opens a registered class returns the author type", func(t *testing.T) {
		f := newFixture(t)
		table := f.login.Add(drivertest.NewNode("table").Hidden(), "table")
		f.login.Add(drivertest.NewNode("button").OnClick(func() {
			table.SetDisplayed(true)
		}), "#show")
		table.Add(drivertest.NewNode("tr"), "tr.row")
		login := f.openLogin(t)

		row, err := pageobject.As[*Row](login.Click(ctx, "#show", pageobject.Opens(rowClass)))
		require.NoError(t, err)
		assert.Equal(t, `Row(selector="tr.row")`, row.String())
	})

	t.Run("opens a missing component fails with ErrComponentMissing", func(t *testing.T) {
		f := newFixture(t)
		f.login.Add(drivertest.NewNode("button"), "#noop")
		login := f.openLogin(t)

		_, err := login.Click(ctx, "#noop", pageobject.Opens(pageobject.Selector("#dialog")))
		assert.ErrorIs(t, err, pageobject.ErrComponentMissing)
	})

	t.Run("should click a link by text", func(t *testing.T) {
		f := newFixture(t)
		f.login.Add(drivertest.NewNode("a").WithText("Home").OnClick(func() {
			f.browser.SetURL("/home")
		}), "a")
		login := f.openLogin(t)

		_, err := pageobject.As[*HomePage](login.ClickLinkText(ctx, "Home"))
		assert.NoError(t, err)
	})

	t.Run("should surface a click failure", func(t *testing.T) {
		f := newFixture(t)
		f.login.Add(drivertest.NewNode("button").Hidden(), "#hidden")
		login := f.openLogin(t)

		_, err := login.Click(ctx, "#hidden")
		assert.Error(t, err)
	})
}

func TestGetComponent(t *testing.T) {
	ctx := context.Background()

	t.Run("should scope lookups to the component root", func(t *testing.T) {
		f := newFixture(t)
		f.login.Add(drivertest.NewNode("span").WithText("outside"), "span.name")
		row := f.login.Add(drivertest.NewNode("tr"), "tr.row")
		row.Add(drivertest.NewNode("span").WithText("inside"), "span.name")
		login := f.openLogin(t)

		r, err := pageobject.As[*Row](login.GetComponent(ctx, rowClass))
		require.NoError(t, err)
		name, err := r.Name(ctx)
		require.NoError(t, err)
		assert.Equal(t, "inside", name)
	})

	t.Run("should resolve a registered selector to its class", func(t *testing.T) {
		f := newFixture(t)
		f.login.Add(drivertest.NewNode("tr"), "tr.row")
		login := f.openLogin(t)

		_, err := pageobject.As[*Row](login.GetComponent(ctx, pageobject.Selector("tr.row")))
		assert.NoError(t, err)
	})

	t.Run("should report a missing component", func(t *testing.T) {
		f := newFixture(t)
		login := f.openLogin(t)

		start := time.Now()
		_, err := login.GetComponent(ctx, pageobject.Selector("#nonexistent"))
		elapsed := time.Since(start)

		var cm *pageobject.ComponentMissingError
		require.True(t, errors.As(err, &cm))
		assert.Equal(t, `DynamicComponent(selector="#nonexistent")`, cm.Component)
		assert.ErrorIs(t, err, pageobject.ErrComponentMissing)
		assert.ErrorIs(t, err, pageobject.ErrTimeout)
		assert.Contains(t, err.Error(), "could not be found in page")
		assert.GreaterOrEqual(t, elapsed, testTimeout-2*testPoll)
	})

	t.Run("should nest components", func(t *testing.T) {
		f := newFixture(t)
		nav := f.login.Add(drivertest.NewNode("nav"), "nav")
		nav.Add(drivertest.NewNode("ul"), "ul.menu")
		login := f.openLogin(t)

		outer, err := login.GetComponent(ctx, pageobject.Selector("nav"))
		require.NoError(t, err)
		inner, err := outer.GetComponent(ctx, pageobject.Selector("ul.menu"))
		require.NoError(t, err)
		assert.Same(t, outer, inner.(*pageobject.Component).Parent())
	})

	t.Run("should not find elements outside its root", func(t *testing.T) {
		f := newFixture(t)
		f.login.Add(drivertest.NewNode("nav"), "nav")
		f.login.Add(drivertest.NewNode("footer"), "footer")
		login := f.openLogin(t)

		nav, err := login.GetComponent(ctx, pageobject.Selector("nav"))
		require.NoError(t, err)
		_, err = nav.GetComponent(ctx, pageobject.Selector("footer"))
		assert.ErrorIs(t, err, pageobject.ErrComponentMissing)
	})
}

func TestGetComponents(t *testing.T) {
	ctx := context.Background()

	t.Run("should build one component per element", func(t *testing.T) {
		f := newFixture(t)
		table := f.login.Add(drivertest.NewNode("table"), "table")
		for _, name := range []string{"ada", "grace", "linus"} {
			tr := table.Add(drivertest.NewNode("tr"), "tr.row")
			tr.Add(drivertest.NewNode("span").WithText(name), "span.name")
		}
		login := f.openLogin(t)

		rows, err := login.GetComponents(ctx, rowClass)
		require.NoError(t, err)
		require.Len(t, rows, 3)

		var names []string
		for _, e := range rows {
			r, ok := e.(*Row)
			require.True(t, ok)
			n, err := r.Name(ctx)
			require.NoError(t, err)
			names = append(names, n)
		}
		assert.Equal(t, []string{"ada", "grace", "linus"}, names)
	})

	t.Run("should return an empty slice on zero matches", func(t *testing.T) {
		f := newFixture(t)
		login := f.openLogin(t)

		rows, err := login.GetComponents(ctx, pageobject.Selector("li.missing"))
		require.NoError(t, err)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)
	})
}
