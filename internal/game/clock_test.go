package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGameDateGraceWindow(t *testing.T) {
	clock := newTestClock("2024-01-02 09:00")
	state := ClockState{LastLogin: "2024-01-01", LastGameDate: "2024-01-01"}
	c := NewClock(&state, DefaultRules(), clock.Now)

	date, advanced := c.GameDate()
	assert.Equal(t, "2024-01-01", date)
	assert.False(t, advanced)
	assert.Equal(t, "2024-01-01", state.LastGameDate)

	clock.Set("2024-01-02 13:00")
	date, advanced = c.GameDate()
	assert.Equal(t, "2024-01-02", date)
	assert.True(t, advanced)
	assert.Equal(t, "2024-01-02", state.LastGameDate)

	date, advanced = c.GameDate()
	assert.Equal(t, "2024-01-02", date)
	assert.False(t, advanced)
}

func TestGameDateBoundaryHour(t *testing.T) {
	tests := []struct {
		at   string
		want string
	}{
		{at: "2024-01-02 00:30", want: "2024-01-01"},
		{at: "2024-01-02 11:59", want: "2024-01-01"},
		{at: "2024-01-02 12:00", want: "2024-01-02"},
		{at: "2024-01-05 08:00", want: "2024-01-01"},
	}
	for _, tc := range tests {
		clock := newTestClock(tc.at)
		state := ClockState{LastLogin: "2024-01-01", LastGameDate: "2024-01-01"}
		c := NewClock(&state, DefaultRules(), clock.Now)
		date, _ := c.GameDate()
		assert.Equal(t, tc.want, date, "at %s", tc.at)
	}
}

func TestGameDateEmptyStateAdvances(t *testing.T) {
	clock := newTestClock("2024-01-02 09:00")
	state := ClockState{}
	c := NewClock(&state, DefaultRules(), clock.Now)

	date, advanced := c.GameDate()
	assert.Equal(t, "2024-01-02", date)
	assert.True(t, advanced)
}

func TestNeedsResetAndMark(t *testing.T) {
	clock := newTestClock("2024-01-02 14:00")
	state := ClockState{LastLogin: "2024-01-01", LastGameDate: "2024-01-01"}
	c := NewClock(&state, DefaultRules(), clock.Now)

	date, needed, advanced := c.NeedsReset()
	assert.Equal(t, "2024-01-02", date)
	assert.True(t, needed)
	assert.True(t, advanced)

	c.MarkReset(date)
	_, needed, advanced = c.NeedsReset()
	assert.False(t, needed)
	assert.False(t, advanced)
	assert.Equal(t, ClockState{LastLogin: "2024-01-02", LastGameDate: "2024-01-02"}, c.State())
}

func TestTurnManual(t *testing.T) {
	clock := newTestClock("2024-01-02 07:00")
	state := ClockState{LastLogin: "2024-01-01", LastGameDate: "2024-01-01"}
	c := NewClock(&state, DefaultRules(), clock.Now)

	date, changed := c.TurnManual()
	assert.Equal(t, "2024-01-02", date)
	assert.True(t, changed)

	got, _ := c.GameDate()
	assert.Equal(t, "2024-01-02", got)

	_, changed = c.TurnManual()
	assert.False(t, changed)
}
