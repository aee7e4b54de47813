package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func padTo(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat("x", n-len(s))
}

func TestEvaluate(t *testing.T) {
	e := NewEvaluator(nil)

	t.Run("too long with keyword", func(t *testing.T) {
		prompt := padTo("ethereum ", 201)
		require.Len(t, prompt, 201)
		assert.False(t, e.Evaluate(prompt))
	})

	t.Run("short without keyword", func(t *testing.T) {
		prompt := padTo("write a newsletter about cats ", 50)
		require.Len(t, prompt, 50)
		assert.False(t, e.Evaluate(prompt))
	})

	t.Run("short with mixed case keyword", func(t *testing.T) {
		prompt := padTo("summarize DeFi news ", 50)
		require.Len(t, prompt, 50)
		assert.True(t, e.Evaluate(prompt))
	})

	t.Run("exactly max length", func(t *testing.T) {
		prompt := padTo("L2 ", 200)
		assert.True(t, e.Evaluate(prompt))
	})

	t.Run("empty prompt", func(t *testing.T) {
		assert.False(t, e.Evaluate(""))
	})
}

func TestCheckReportsEachRule(t *testing.T) {
	e := NewEvaluator(nil)

	r := e.Check(padTo("ethereum ", 300))
	assert.False(t, r.LengthOK)
	assert.True(t, r.KeywordOK)
	assert.False(t, r.Verdict())

	r = e.Check("hello")
	assert.True(t, r.LengthOK)
	assert.False(t, r.KeywordOK)
}

func TestCustomConfig(t *testing.T) {
	e := NewEvaluator(&Config{MaxLength: 10, Keywords: []string{" Rollup "}})

	assert.True(t, e.Evaluate("ROLLUP"))
	assert.False(t, e.Evaluate("ethereum"))
	assert.False(t, e.Evaluate("rollup rollup"))
}

func TestLengthCountsRunes(t *testing.T) {
	e := NewEvaluator(&Config{MaxLength: 5})
	// five runes, more than five bytes
	assert.True(t, e.Evaluate("l2ééé"))
}
