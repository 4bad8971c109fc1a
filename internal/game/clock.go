package game

import "time"

// Clock tracks the logical game day. Before the grace hour the previous
// logical day stays current, so late-night activity counts for it.
type Clock struct {
	state *ClockState
	rules Rules
	now   func() time.Time
}

func NewClock(state *ClockState, rules Rules, now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{state: state, rules: rules, now: now}
}

// Today is the calendar date.
func (c *Clock) Today() string {
	return c.now().Format(DateLayout)
}

// GameDate returns the logical day. advanced is true when this call moved the
// stored game date forward; the caller owns persisting that.
func (c *Clock) GameDate() (date string, advanced bool) {
	real := c.Today()
	if c.state.LastGameDate == real {
		return real, false
	}
	if c.state.LastGameDate != "" && c.now().Hour() < c.rules.GraceHour {
		return c.state.LastGameDate, false
	}
	c.state.LastGameDate = real
	return real, true
}

// NeedsReset reports whether the daily reset has not yet run for the current
// logical day.
func (c *Clock) NeedsReset() (gameDate string, needed bool, advanced bool) {
	gameDate, advanced = c.GameDate()
	return gameDate, c.state.LastLogin != gameDate, advanced
}

func (c *Clock) MarkReset(gameDate string) {
	c.state.LastLogin = gameDate
	c.state.LastGameDate = gameDate
}

// TurnManual forces the logical day onto the calendar day.
func (c *Clock) TurnManual() (date string, changed bool) {
	real := c.Today()
	changed = c.state.LastGameDate != real
	c.state.LastGameDate = real
	return real, changed
}

func (c *Clock) State() ClockState { return *c.state }
