package game

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Document is the single persisted state of the application.
type Document struct {
	XP      XPState       `json:"xp"`
	Wallet  WalletState   `json:"wallet"`
	Rewards []RewardEntry `json:"rewards"`
	ClockState
	Navigation Navigation `json:"navigation"`
	Habits     []Habit    `json:"habits"`
	Gym        GymState   `json:"gym"`
	Diet       DietState  `json:"diet"`
}

type XPState struct {
	Current decimal.Decimal `json:"current"`
	Total   decimal.Decimal `json:"total"`
	Level   int             `json:"level"`

	// PeakLevel is the highest level that has paid its wallet slot.
	PeakLevel int        `json:"peak_level"`
	History   []LogEntry `json:"history"`
	Blocked   bool       `json:"blocked"`
}

type LogEntry struct {
	ID        string          `json:"id"`
	Date      string          `json:"date"`
	Time      string          `json:"time"`
	Timestamp int64           `json:"timestamp"`
	Source    string          `json:"source"`
	Type      string          `json:"type,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	BaseXP    decimal.Decimal `json:"base_xp"`
	HabitID   string          `json:"habit_id,omitempty"`
	ParentID  string          `json:"parent_id,omitempty"`
	Streak    int             `json:"streak"`
	Luck2     int             `json:"luck2"`
	Luck3     int             `json:"luck3"`
}

type DailyPool struct {
	Current     int `json:"current"`
	GainedToday int `json:"gained_today"`
	Max         int `json:"max"`
}

type WeekendPool struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

type CrystalPool struct {
	Current int `json:"current"`
}

type WalletState struct {
	Daily       DailyPool   `json:"daily"`
	Weekend     WeekendPool `json:"weekend"`
	Crystals    CrystalPool `json:"crystals"`
	Consumption Categories  `json:"consumption"`
}

type Category struct {
	Label string `json:"label"`
	Used  int    `json:"used"`
	Limit int    `json:"limit"`
}

// Categories is an insertion-ordered map from category key to Category. It
// encodes as a JSON object whose key order follows insertion order.
type Categories struct {
	keys  []string
	items map[string]*Category
}

func (c *Categories) Len() int { return len(c.keys) }

func (c *Categories) Keys() []string {
	return append([]string(nil), c.keys...)
}

func (c *Categories) Get(key string) (*Category, bool) {
	cat, ok := c.items[key]
	return cat, ok
}

// Set inserts or replaces key. New keys are appended to the order.
func (c *Categories) Set(key string, cat Category) {
	if c.items == nil {
		c.items = make(map[string]*Category)
	}
	if existing, ok := c.items[key]; ok {
		*existing = cat
		return
	}
	v := cat
	c.items[key] = &v
	c.keys = append(c.keys, key)
}

func (c *Categories) Each(fn func(key string, cat *Category)) {
	for _, k := range c.keys {
		fn(k, c.items[k])
	}
}

func (c Categories) Clone() Categories {
	out := Categories{keys: append([]string(nil), c.keys...), items: make(map[string]*Category, len(c.items))}
	for k, v := range c.items {
		cp := *v
		out.items[k] = &cp
	}
	return out
}

func (c Categories) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.items[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON merges the encoded object into c: existing keys are updated
// field-wise, unknown keys are appended in encoded order.
func (c *Categories) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("consumption: expected object, got %v", tok)
	}
	if c.items == nil {
		c.items = make(map[string]*Category)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("consumption: expected key, got %v", tok)
		}
		cat, exists := c.items[key]
		if !exists {
			cat = &Category{}
		}
		if err := dec.Decode(cat); err != nil {
			return fmt.Errorf("consumption %q: %w", key, err)
		}
		if !exists {
			c.items[key] = cat
			c.keys = append(c.keys, key)
		}
	}
	_, err = dec.Token()
	return err
}

type RewardEntry struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
	Date   string `json:"date"`
}

type ClockState struct {
	LastLogin    string `json:"last_login"`
	LastGameDate string `json:"last_game_date"`
}

type Navigation struct {
	CurrentApp string `json:"current_app"`
}

type Habit struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	BaseXP            decimal.Decimal `json:"base_xp"`
	Target            int             `json:"target"`
	CurrentOfDay      int             `json:"current_of_day"`
	TotalCount        int             `json:"total_count"`
	Streak            int             `json:"streak"`
	CompletedToday    bool            `json:"completed_today"`
	LastCompletedDate string          `json:"last_completed_date,omitempty"`
}

func (h *Habit) IsComplete() bool {
	target := h.Target
	if target < 1 {
		target = 1
	}
	return h.CurrentOfDay >= target
}

type GymState struct {
	TimerStartedAt *time.Time `json:"timer_started_at,omitempty"`
	SetsToday      int        `json:"sets_today"`
	TotalSeconds   int64      `json:"total_seconds"`
	TotalKm        float64    `json:"total_km"`
}

type DietState struct {
	WaterML       int     `json:"water_ml"`
	LastWeighIn   string  `json:"last_weigh_in,omitempty"`
	LastWeightKg  float64 `json:"last_weight_kg,omitempty"`
	WeighInStreak int     `json:"weigh_in_streak"`
}

// DefaultDocument returns the first-run state with both clock fields set to
// today.
func DefaultDocument(rules Rules, today string) Document {
	return Document{
		XP: XPState{
			Current:   decimal.Zero,
			Total:     decimal.Zero,
			Level:     1,
			PeakLevel: 1,
			History:   []LogEntry{},
		},
		Wallet: WalletState{
			Daily:   DailyPool{Max: rules.DailySlotMax},
			Weekend: WeekendPool{Max: rules.WeekendSlotMax},
		},
		Rewards:    []RewardEntry{},
		ClockState: ClockState{LastLogin: today, LastGameDate: today},
		Navigation: Navigation{CurrentApp: "habits"},
		Habits:     []Habit{},
	}
}

// Clone returns a deep copy safe to hand to readers.
func (d *Document) Clone() Document {
	out := *d
	out.XP.History = append([]LogEntry(nil), d.XP.History...)
	out.Wallet.Consumption = d.Wallet.Consumption.Clone()
	out.Rewards = append([]RewardEntry(nil), d.Rewards...)
	out.Habits = append([]Habit(nil), d.Habits...)
	if d.Gym.TimerStartedAt != nil {
		t := *d.Gym.TimerStartedAt
		out.Gym.TimerStartedAt = &t
	}
	return out
}

// FindHabitByID returns a pointer into the document's habit list.
func (d *Document) FindHabitByID(id string) *Habit {
	for i := range d.Habits {
		if d.Habits[i].ID == id {
			return &d.Habits[i]
		}
	}
	return nil
}
