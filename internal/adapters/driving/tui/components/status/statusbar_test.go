package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBar(t *testing.T) {
	bar := NewBar(nil, nil, "hr")

	require.NotNil(t, bar)
	assert.Equal(t, StateReady, bar.State())
	assert.Equal(t, "hr", bar.Scope())
	assert.Zero(t, bar.Turns())
}

func TestBar_ViewShowsScope(t *testing.T) {
	bar := NewBar(nil, nil, "engineering")
	bar.SetWidth(120)

	view := bar.View()

	assert.Contains(t, view, "scope: engineering")
	assert.Contains(t, view, "enter: ask")
}

func TestBar_States(t *testing.T) {
	bar := NewBar(nil, nil, "hr")
	bar.SetWidth(160)

	bar.SetState(StateThinking)
	assert.Contains(t, bar.View(), "thinking...")

	bar.SetState(StateError)
	bar.SetMessage("upstream_unavailable")
	assert.Contains(t, bar.View(), "error: upstream_unavailable")

	bar.Clear()
	assert.Equal(t, StateReady, bar.State())
	assert.Empty(t, bar.Message())
}

func TestBar_Turns(t *testing.T) {
	bar := NewBar(nil, nil, "hr")
	bar.SetWidth(160)

	bar.SetTurns(4)

	assert.Equal(t, 4, bar.Turns())
	assert.Contains(t, bar.View(), "4 turns")
}
