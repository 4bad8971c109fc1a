package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitxp/internal/game"
)

func TestResolveHabit(t *testing.T) {
	habits := []game.Habit{
		{ID: "3f2a9c10-0000-4000-8000-000000000001", Name: "Read"},
		{ID: "3f2a9c10-0000-4000-8000-000000000002", Name: "Stretch"},
		{ID: "a1b2c3d4-0000-4000-8000-000000000003", Name: "Meditate"},
	}

	id, err := resolveHabit(habits, "stretch")
	require.NoError(t, err)
	assert.Equal(t, habits[1].ID, id)

	id, err = resolveHabit(habits, "a1b2")
	require.NoError(t, err)
	assert.Equal(t, habits[2].ID, id)

	_, err = resolveHabit(habits, "3f2a9c10")
	require.ErrorContains(t, err, "ambiguous")

	_, err = resolveHabit(habits, "a1")
	require.ErrorIs(t, err, game.ErrHabitNotFound)
}

func TestParseLimit(t *testing.T) {
	key, n, err := parseLimit("games=3")
	require.NoError(t, err)
	assert.Equal(t, "games", key)
	assert.Equal(t, 3, n)

	_, _, err = parseLimit("games")
	require.Error(t, err)
	_, _, err = parseLimit("games=lots")
	require.Error(t, err)
}

func TestParseXP(t *testing.T) {
	d, err := parseXP(" -2.5 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("-2.5")))

	_, err = parseXP("ten")
	require.ErrorIs(t, err, game.ErrInvalidAmount)
}

func TestSignedXPAndTruncate(t *testing.T) {
	assert.Equal(t, "+5.0", signedXP(decimal.NewFromInt(5)))
	assert.Equal(t, "-1.5", signedXP(decimal.RequireFromString("-1.5")))
	assert.Equal(t, "0.0", signedXP(decimal.Zero))

	assert.Equal(t, "Morning...", truncate("Morning routine", 10))
	assert.Equal(t, "Read", truncate("  Read  ", 10))
}
