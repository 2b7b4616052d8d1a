// pkg/driver/chromedp/chromedp_test.go
package chromedp

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagecraft/pkg/driver"
)

func TestTranslate(t *testing.T) {
	cases := map[string]error{
		"Error: stale element reference":               driver.ErrStaleElement,
		"Could not find object with given id (-32000)": driver.ErrStaleElement,
		"No node with given id found":                  driver.ErrStaleElement,
		"Error: invalid element state: read only":      driver.ErrInvalidElementState,
	}
	for msg, want := range cases {
		t.Run(msg, func(t *testing.T) {
			assert.ErrorIs(t, translate(errors.New(msg)), want)
		})
	}

	t.Run("should pass other errors through", func(t *testing.T) {
		orig := errors.New("websocket closed")
		assert.Same(t, orig, translate(orig))
		assert.NoError(t, translate(nil))
	})
}

func TestFirst(t *testing.T) {
	_, err := first([]driver.Element{}, nil)
	assert.ErrorIs(t, err, driver.ErrNoSuchElement)

	boom := errors.New("boom")
	_, err = first(nil, boom)
	assert.ErrorIs(t, err, boom)

	el := &Element{id: "1.2.3"}
	got, err := first([]driver.Element{el, &Element{id: "1.2.4"}}, nil)
	require.NoError(t, err)
	assert.Same(t, el, got)
}

func TestScripts(t *testing.T) {
	t.Run("should splice arguments as JSON literals", func(t *testing.T) {
		fn := fmt.Sprintf(jsQueryAll, quote(driver.ByCSS.String()), quote(`a[title="x"]`))
		assert.Contains(t, fn, `var by = "css", value = "a[title=\"x\"]";`)
	})

	t.Run("should recognise array indexes", func(t *testing.T) {
		assert.True(t, isIndex("0"))
		assert.True(t, isIndex("12"))
		assert.False(t, isIndex("length"))
		assert.False(t, isIndex(""))
	})
}

func TestAllocatorOptions(t *testing.T) {
	base := len(allocatorOptions(driver.Options{}))
	withArgs := allocatorOptions(driver.Options{
		BinaryPath: "/usr/bin/chromium",
		Args:       []string{"--lang=en", "disable-gpu"},
	})
	assert.Equal(t, base+3, len(withArgs))
}
