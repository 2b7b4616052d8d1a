// pkg/pageobject/context_test.go
package pageobject_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagecraft/pkg/driver"
	"github.com/xkilldash9x/pagecraft/pkg/driver/drivertest"
	"github.com/xkilldash9x/pagecraft/pkg/driver/launch"
	"github.com/xkilldash9x/pagecraft/pkg/pageobject"
)

// failingClose is a browser whose Close reports an error.
type failingClose struct {
	*drivertest.Browser
	err error
}

func (f *failingClose) Close() error {
	_ = f.Browser.Close()
	return f.err
}

func fakeLauncher(launched *[]string) pageobject.Launcher {
	return func(ctx context.Context, name string, opts driver.Options) (driver.Driver, error) {
		*launched = append(*launched, name)
		return drivertest.NewBrowser(), nil
	}
}

func TestTestContext_StartBrowser(t *testing.T) {
	ctx := context.Background()

	t.Run("should make the last started browser current", func(t *testing.T) {
		var launched []string
		tc := pageobject.ForTest(t, pageobject.WithLauncher(fakeLauncher(&launched)))

		first, err := tc.StartBrowser(ctx, "chromedp")
		require.NoError(t, err)
		second, err := tc.StartBrowser(ctx, "rod")
		require.NoError(t, err)

		current, err := tc.Browser()
		require.NoError(t, err)
		assert.Same(t, second, current)
		assert.NotSame(t, first, current)
		assert.Equal(t, []string{"chromedp", "rod"}, launched)

		sessions := tc.Sessions()
		require.Len(t, sessions, 2)
		assert.NotEqual(t, sessions[0].ID, sessions[1].ID)
		for _, s := range sessions {
			_, err := uuid.Parse(s.ID)
			assert.NoError(t, err)
		}
	})

	t.Run("should pass driver options and a logger to the launcher", func(t *testing.T) {
		var got driver.Options
		tc := pageobject.ForTest(t,
			pageobject.WithDriverOptions(driver.Options{Headless: true, RemoteURL: "http://grid:4444/wd/hub"}),
			pageobject.WithLauncher(func(ctx context.Context, name string, opts driver.Options) (driver.Driver, error) {
				got = opts
				return drivertest.NewBrowser(), nil
			}))

		_, err := tc.StartBrowser(ctx, "selenium")
		require.NoError(t, err)
		assert.True(t, got.Headless)
		assert.Equal(t, "http://grid:4444/wd/hub", got.RemoteURL)
		assert.NotNil(t, got.Logger)
	})

	t.Run("should reject an unsupported driver", func(t *testing.T) {
		tc := pageobject.ForTest(t)
		_, err := tc.StartBrowser(ctx, "netscape")
		assert.ErrorIs(t, err, launch.ErrUnsupportedDriver)

		_, err = tc.Browser()
		assert.ErrorIs(t, err, pageobject.ErrNoBrowser)
	})
}

func TestTestContext_Close(t *testing.T) {
	t.Run("should close every browser and join errors", func(t *testing.T) {
		tc := pageobject.NewTestContext(pageobject.WithSettings(fastSettings()))
		ok := drivertest.NewBrowser()
		bad := &failingClose{Browser: drivertest.NewBrowser(), err: errors.New("session already gone")}
		tc.Attach("ok", ok)
		tc.Attach("bad", bad)

		err := tc.Close()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session already gone")
		assert.Contains(t, err.Error(), "(bad)")
		assert.True(t, ok.Closed())
		assert.True(t, bad.Closed())

		assert.NoError(t, tc.Close(), "second close is a no-op")
		assert.Empty(t, tc.Sessions())
	})

	t.Run("ForTest should close browsers at cleanup", func(t *testing.T) {
		b := drivertest.NewBrowser()
		t.Run("inner", func(t *testing.T) {
			tc := pageobject.ForTest(t)
			tc.Attach("drivertest", b)
		})
		assert.True(t, b.Closed())
	})
}

func TestSettings(t *testing.T) {
	d := pageobject.DefaultSettings()
	assert.Equal(t, 10*time.Second, d.ElementTimeout)
	assert.Equal(t, 500*time.Millisecond, d.ElementPollInterval)
	assert.Equal(t, 20*time.Second, d.VisibilityTimeout)
	assert.Equal(t, time.Second, d.VisibilityPollInterval)
	assert.Equal(t, 5, d.TextEntryAttempts)
	assert.Equal(t, 200*time.Millisecond, d.TextEntryPause)
	assert.Equal(t, 1000, d.BodyTextLimit)

	tc := pageobject.NewTestContext(pageobject.WithSettings(pageobject.Settings{ElementTimeout: time.Second}))
	got := tc.Settings()
	assert.Equal(t, time.Second, got.ElementTimeout)
	assert.Equal(t, d.VisibilityTimeout, got.VisibilityTimeout, "zero fields fall back to defaults")
}
