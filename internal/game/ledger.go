package game

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Roller yields uniform values in [0,1). *math/rand.Rand satisfies it.
type Roller interface {
	Float64() float64
}

// HabitRepository gives the ledger mutable access to habits linked from log
// entries, for reversing counters on undo.
type HabitRepository interface {
	FindHabitByID(id string) *Habit
}

type GainOptions struct {
	Streak      int
	HabitID     string
	Type        string
	ForceFlat   bool
	IsMilestone bool
	// ParentID links a follow-up award to the entry that triggered it. Undoing
	// the parent undoes the follow-up too.
	ParentID string
}

type LevelChange struct {
	From  int   `json:"from"`
	To    int   `json:"to"`
	Ups   []int `json:"ups,omitempty"`
	Downs []int `json:"downs,omitempty"`
}

func (c LevelChange) Changed() bool { return c.From != c.To }

// Award describes one committed gain. Applied is false when the award was
// dropped because the ledger is blocked.
type Award struct {
	Applied bool            `json:"applied"`
	Entry   LogEntry        `json:"entry"`
	Bonus   decimal.Decimal `json:"bonus"`
	Tier    LuckTier        `json:"tier"`
	Levels  LevelChange     `json:"levels"`
	Slots   []SlotResult    `json:"slots,omitempty"`
}

// Reversal describes one undone entry and the linked entries removed with
// it. Applied is false when the requested group or entry no longer exists.
type Reversal struct {
	Applied bool        `json:"applied"`
	Entry   LogEntry    `json:"entry"`
	Linked  []LogEntry  `json:"linked,omitempty"`
	Habit   *Habit      `json:"habit,omitempty"`
	Levels  LevelChange `json:"levels"`
}

// Amount is the XP taken back, linked entries included.
func (r Reversal) Amount() decimal.Decimal {
	total := r.Entry.Amount
	for _, e := range r.Linked {
		total = total.Add(e.Amount)
	}
	return Round1(total)
}

// LogGroup is one row of the consolidated view: all entries sharing a game
// date and habit. Indices point into the raw history, oldest first.
type LogGroup struct {
	Date      string          `json:"date"`
	HabitID   string          `json:"habit_id"`
	Source    string          `json:"source"`
	Amount    decimal.Decimal `json:"amount"`
	Count     int             `json:"count"`
	Luck2     int             `json:"luck2"`
	Luck3     int             `json:"luck3"`
	Time      string          `json:"time"`
	Timestamp int64           `json:"timestamp"`
	Streak    int             `json:"streak"`
	Indices   []int           `json:"indices"`
}

// Ledger converts awards into log entries and drives the level state
// machine. It is not safe for concurrent use; the Service serializes access.
type Ledger struct {
	xp       *XPState
	habits   HabitRepository
	rules    Rules
	roll     Roller
	now      func() time.Time
	gameDate func() string
}

func NewLedger(xp *XPState, habits HabitRepository, rules Rules, roll Roller, now func() time.Time, gameDate func() string) *Ledger {
	if now == nil {
		now = time.Now
	}
	if gameDate == nil {
		gameDate = func() string { return now().Format(DateLayout) }
	}
	return &Ledger{xp: xp, habits: habits, rules: rules, roll: roll, now: now, gameDate: gameDate}
}

// Gain applies one award. It reports false, without touching state, while the
// ledger is blocked.
func (l *Ledger) Gain(base decimal.Decimal, source string, opts GainOptions) (Award, bool) {
	if l.xp.Blocked {
		return Award{}, false
	}

	total := base
	bonus := decimal.Zero
	tier := LuckNone
	if base.IsPositive() && !opts.ForceFlat && !opts.IsMilestone {
		if opts.Streak > 1 {
			bonus = Round1(base.Mul(l.rules.StreakRateFor(opts.Streak)))
			total = total.Add(bonus)
		}
		if l.roll != nil {
			tier = l.rules.LuckFor(l.roll.Float64() * 100)
		}
		total = total.Mul(decimal.NewFromInt(int64(tier)))
	}
	final := Round1(total)

	l.xp.Current = Round1(l.xp.Current.Add(final))
	l.xp.Total = Round1(l.xp.Total.Add(final))

	now := l.now()
	entry := LogEntry{
		ID:        uuid.NewString(),
		Date:      l.gameDate(),
		Time:      now.Format(TimeLayout),
		Timestamp: now.UnixMilli(),
		Source:    source,
		Type:      opts.Type,
		Amount:    final,
		BaseXP:    Round1(base),
		HabitID:   opts.HabitID,
		ParentID:  opts.ParentID,
		Streak:    opts.Streak,
	}
	switch tier {
	case LuckTriple:
		entry.Luck3 = 1
	case LuckDouble:
		entry.Luck2 = 1
	}
	l.xp.History = append(l.xp.History, entry)

	return Award{Applied: true, Entry: entry, Bonus: bonus, Tier: tier, Levels: l.CheckLevel()}, true
}

// CheckLevel settles level and current XP. It is idempotent: calling it on a
// settled state changes nothing.
func (l *Ledger) CheckLevel() LevelChange {
	if l.xp.Level < 1 {
		l.xp.Level = 1
	}
	change := LevelChange{From: l.xp.Level}

	for needed := l.rules.Needed(l.xp.Level); l.xp.Current.GreaterThanOrEqual(needed); needed = l.rules.Needed(l.xp.Level) {
		l.xp.Current = Round1(l.xp.Current.Sub(needed))
		l.xp.Level++
		change.Ups = append(change.Ups, l.xp.Level)
	}
	for l.xp.Current.IsNegative() && l.xp.Level > 1 {
		l.xp.Level--
		l.xp.Current = Round1(l.xp.Current.Add(l.rules.Needed(l.xp.Level)))
		change.Downs = append(change.Downs, l.xp.Level)
	}
	if l.xp.Current.IsNegative() {
		l.xp.Current = decimal.Zero
	}

	change.To = l.xp.Level
	return change
}

// Consolidated groups habit-linked entries by (date, habit). Entries without
// a habit are left out. Linked follow-up entries add to the group's amount
// but not to its count or indices. Groups are ordered newest date first,
// then newest entry first.
func (l *Ledger) Consolidated() []LogGroup {
	byKey := make(map[[2]string]int)
	groups := make([]LogGroup, 0)
	for i, e := range l.xp.History {
		if e.HabitID == "" {
			continue
		}
		key := [2]string{e.Date, e.HabitID}
		gi, ok := byKey[key]
		if !ok {
			groups = append(groups, LogGroup{Date: e.Date, HabitID: e.HabitID, Amount: decimal.Zero})
			gi = len(groups) - 1
			byKey[key] = gi
		}
		g := &groups[gi]
		g.Amount = Round1(g.Amount.Add(e.Amount))
		if e.ParentID != "" {
			continue
		}
		g.Count++
		g.Luck2 += e.Luck2
		g.Luck3 += e.Luck3
		if e.Timestamp >= g.Timestamp {
			g.Timestamp = e.Timestamp
			g.Time = e.Time
			g.Source = e.Source
		}
		if e.Streak > g.Streak {
			g.Streak = e.Streak
		}
		g.Indices = append(g.Indices, i)
	}

	live := groups[:0]
	for _, g := range groups {
		if len(g.Indices) > 0 {
			live = append(live, g)
		}
	}
	groups = live

	sort.SliceStable(groups, func(a, b int) bool {
		ga, gb := groups[a], groups[b]
		if ga.Date != gb.Date {
			return ga.Date > gb.Date
		}
		if ga.Timestamp != gb.Timestamp {
			return ga.Timestamp > gb.Timestamp
		}
		return ga.Indices[len(ga.Indices)-1] > gb.Indices[len(gb.Indices)-1]
	})
	return groups
}

// DeleteGroup removes the most recent raw entry of the consolidated group at
// groupIndex. An index that no longer resolves is a no-op.
func (l *Ledger) DeleteGroup(groupIndex int) (Reversal, bool) {
	groups := l.Consolidated()
	if groupIndex < 0 || groupIndex >= len(groups) {
		return Reversal{}, false
	}
	g := groups[groupIndex]
	return l.DeleteEntry(g.Indices[len(g.Indices)-1])
}

// DeleteEntryByID removes a single raw entry by id.
func (l *Ledger) DeleteEntryByID(id string) (Reversal, bool) {
	for i := range l.xp.History {
		if l.xp.History[i].ID == id {
			return l.DeleteEntry(i)
		}
	}
	return Reversal{}, false
}

// DeleteEntry removes the raw entry at index together with the entries linked
// to it, takes their amounts back out of current and total XP, reverts the
// habit counters of a completion and resettles the level.
func (l *Ledger) DeleteEntry(index int) (Reversal, bool) {
	if index < 0 || index >= len(l.xp.History) {
		return Reversal{}, false
	}
	entry := l.xp.History[index]
	rev := Reversal{Applied: true, Entry: entry}

	kept := l.xp.History[:0]
	for i, e := range l.xp.History {
		switch {
		case i == index:
			continue
		case e.ParentID != "" && e.ParentID == entry.ID:
			rev.Linked = append(rev.Linked, e)
			continue
		}
		kept = append(kept, e)
	}
	l.xp.History = kept

	taken := rev.Amount()
	l.xp.Current = Round1(l.xp.Current.Sub(taken))
	l.xp.Total = Round1(l.xp.Total.Sub(taken))

	if entry.HabitID != "" && entry.ParentID == "" && l.habits != nil {
		if h := l.habits.FindHabitByID(entry.HabitID); h != nil {
			h.revertCompletion()
			cp := *h
			rev.Habit = &cp
		}
	}
	rev.Levels = l.CheckLevel()
	return rev, true
}

// Progress returns current XP and the amount needed to leave the level.
func (l *Ledger) Progress() (current, needed decimal.Decimal) {
	return l.xp.Current, l.rules.Needed(l.xp.Level)
}
