// pkg/driver/launch/launch_test.go
package launch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagecraft/pkg/driver"
	"github.com/xkilldash9x/pagecraft/pkg/driver/launch"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{
		"chromedp",
		"playwright",
		"playwright-firefox",
		"playwright-webkit",
		"rod",
		"selenium",
		"selenium-firefox",
	}, launch.Names())
}

func TestOpen_Unsupported(t *testing.T) {
	_, err := launch.Open(context.Background(), "netscape", driver.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, launch.ErrUnsupportedDriver)

	var unsupported *launch.UnsupportedDriverError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "netscape", unsupported.Name)
	assert.Equal(t, launch.Names(), unsupported.Supported)
	assert.Contains(t, err.Error(), "chromedp, playwright")
}

func TestOpen_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// These adapters check the context before touching any process.
	for _, name := range []string{"playwright", "selenium-firefox"} {
		t.Run(name, func(t *testing.T) {
			d, err := launch.Open(ctx, name, driver.Options{})
			assert.Nil(t, d)
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}
