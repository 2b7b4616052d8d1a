// pkg/driver/rod/rod_test.go
package rod

import (
	"context"
	"errors"
	"testing"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/pagecraft/pkg/driver"
)

func TestTranslate(t *testing.T) {
	ctx := context.Background()

	t.Run("should map detached objects to stale", func(t *testing.T) {
		assert.ErrorIs(t, translate(ctx, &rod.ObjectNotFoundError{}), driver.ErrStaleElement)
		assert.ErrorIs(t, translate(ctx, cdp.ErrCtxNotFound), driver.ErrStaleElement)
		assert.ErrorIs(t, translate(ctx, &cdp.Error{Code: -32000, Message: "Could not find node with given id"}), driver.ErrStaleElement)
	})

	t.Run("should map missing elements", func(t *testing.T) {
		assert.ErrorIs(t, translate(ctx, &rod.ElementNotFoundError{}), driver.ErrNoSuchElement)
	})

	t.Run("should prefer the caller's context error", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, translate(cancelled, errors.New("read: connection reset")), context.Canceled)
	})

	t.Run("should pass other errors through", func(t *testing.T) {
		orig := errors.New("navigation failed")
		assert.Same(t, orig, translate(ctx, orig))
		assert.NoError(t, translate(ctx, nil))
	})
}

func TestFirst(t *testing.T) {
	_, err := first(nil, nil)
	assert.ErrorIs(t, err, driver.ErrNoSuchElement)
}
