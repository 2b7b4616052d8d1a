// pkg/driver/selenium/selenium_test.go
package selenium

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebeka/selenium"

	"github.com/xkilldash9x/pagecraft/pkg/driver"
)

func TestTranslate(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{"no such element", driver.ErrNoSuchElement},
		{"stale element reference", driver.ErrStaleElement},
		{"invalid element state", driver.ErrInvalidElementState},
		{"element not interactable", driver.ErrInvalidElementState},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			err := translate(&selenium.Error{Err: tc.code, Message: "boom"})
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("should pass unknown errors through", func(t *testing.T) {
		orig := errors.New("session not created")
		assert.Same(t, orig, translate(orig))
		assert.NoError(t, translate(nil))
	})
}

func TestCapabilities(t *testing.T) {
	t.Run("should add headless and container flags for chrome", func(t *testing.T) {
		caps, err := capabilities("chrome", driver.Options{Headless: true, Args: []string{"--lang=en"}})
		require.NoError(t, err)
		assert.Equal(t, "chrome", caps["browserName"])
		assert.Contains(t, caps, "goog:chromeOptions")
	})

	t.Run("should build firefox capabilities", func(t *testing.T) {
		caps, err := capabilities("firefox", driver.Options{BinaryPath: "/opt/firefox/firefox"})
		require.NoError(t, err)
		assert.Equal(t, "firefox", caps["browserName"])
		assert.Contains(t, caps, "moz:firefoxOptions")
	})

	t.Run("should reject other browsers", func(t *testing.T) {
		_, err := capabilities("opera", driver.Options{})
		assert.ErrorContains(t, err, "opera")
	})
}

func TestStrategy(t *testing.T) {
	assert.Equal(t, selenium.ByCSSSelector, strategy(driver.ByCSS))
	assert.Equal(t, selenium.ByLinkText, strategy(driver.ByLinkText))
}

func TestIsNullValue(t *testing.T) {
	assert.True(t, isNullValue(errors.New("nil return value")))
	assert.False(t, isNullValue(errors.New("no such element")))
	assert.False(t, isNullValue(nil))
}
