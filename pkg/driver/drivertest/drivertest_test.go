// pkg/driver/drivertest/drivertest_test.go
package drivertest

import (
	"context"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_DropKeys(t *testing.T) {
	ctx := context.Background()
	cases := map[string]struct {
		typed string
		want  string
	}{
		"ascii":       {typed: "ada", want: "ad"},
		"accented":    {typed: "café", want: "caf"},
		"emoji":       {typed: "ok👍", want: "ok"},
		"single rune": {typed: "é", want: ""},
		"cjk":         {typed: "東京", want: "東"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			n := NewNode("input").DropKeys(1)
			require.NoError(t, n.SendKeys(ctx, tc.typed))
			assert.Equal(t, tc.want, n.Value())
			assert.True(t, utf8.ValidString(n.Value()))
		})
	}

	t.Run("only the configured number of calls lose a key", func(t *testing.T) {
		n := NewNode("div").DropKeys(1)
		require.NoError(t, n.SendKeys(ctx, "né"))
		require.NoError(t, n.Clear(ctx))
		require.NoError(t, n.SendKeys(ctx, "né"))
		text, err := n.Text(ctx)
		require.NoError(t, err)
		assert.Equal(t, "né", text)
	})
}
