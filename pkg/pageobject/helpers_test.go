// pkg/pageobject/helpers_test.go
package pageobject_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xkilldash9x/pagecraft/pkg/driver/drivertest"
	"github.com/xkilldash9x/pagecraft/pkg/pageobject"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	testTimeout = 300 * time.Millisecond
	testPoll    = 10 * time.Millisecond
)

// fastSettings shrinks every wait so failure paths finish quickly.
func fastSettings() pageobject.Settings {
	return pageobject.Settings{
		ElementTimeout:         testTimeout,
		ElementPollInterval:    testPoll,
		VisibilityTimeout:      testTimeout,
		VisibilityPollInterval: testPoll,
		TextEntryAttempts:      5,
		TextEntryPause:         time.Millisecond,
		BodyTextLimit:          1000,
	}
}

// -- author types, written the way a test suite would declare them --

type LoginPage struct{ *pageobject.Page }

type HomePage struct{ *pageobject.Page }

type Row struct{ *pageobject.Component }

func (r *Row) Name(ctx context.Context) (string, error) {
	el, err := r.GetElement(ctx, "span.name")
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

var (
	loginClass = &pageobject.PageClass{
		Name: "LoginPage",
		URL:  "/login",
		Wrap: func(p *pageobject.Page) pageobject.Entity { return &LoginPage{p} },
	}
	homeClass = &pageobject.PageClass{
		Name: "HomePage",
		URL:  "/home",
		Wrap: func(p *pageobject.Page) pageobject.Entity { return &HomePage{p} },
	}
	rowClass = &pageobject.ComponentClass{
		Name:     "Row",
		Selector: "tr.row",
		Wrap:     func(c *pageobject.Component) pageobject.Entity { return &Row{c} },
	}
)

// fixture is a fake browser with a login and a home page, attached to a
// context whose registry knows both pages and the row component.
type fixture struct {
	tc      *pageobject.TestContext
	browser *drivertest.Browser
	login   *drivertest.Page
	home    *drivertest.Page
}

func newFixture(t *testing.T, opts ...pageobject.Option) *fixture {
	t.Helper()
	b := drivertest.NewBrowser()
	f := &fixture{
		browser: b,
		login:   b.AddPage("/login"),
		home:    b.AddPage("/home"),
	}
	reg := pageobject.NewRegistry(nil)
	require.NoError(t, reg.Register(loginClass, homeClass, rowClass))

	base := []pageobject.Option{pageobject.WithRegistry(reg), pageobject.WithSettings(fastSettings())}
	f.tc = pageobject.ForTest(t, append(base, opts...)...)
	f.tc.Attach("drivertest", b)
	return f
}

func (f *fixture) openLogin(t *testing.T) *LoginPage {
	t.Helper()
	p, err := pageobject.As[*LoginPage](f.tc.Open(context.Background(), loginClass))
	require.NoError(t, err)
	return p
}
