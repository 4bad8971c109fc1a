package game

import (
	"fmt"
	"strings"
	"time"
)

type SlotResult struct {
	Message   string `json:"message"`
	Target    string `json:"target"`
	Converted int    `json:"converted,omitempty"`
}

type ConsumeResult struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	Pool      string `json:"pool"`
	Remaining int    `json:"remaining"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
}

type RolloverResult struct {
	Monday      bool `json:"monday"`
	Transferred int  `json:"transferred"`
	Overflowed  int  `json:"overflowed"`
	Converted   int  `json:"converted"`
}

type CategoryView struct {
	Key string `json:"key"`
	Category
}

// Wallet runs the slot economy: daily and weekend pools, crystals and the
// per-category consumption limits.
type Wallet struct {
	state    *WalletState
	rewards  *[]RewardEntry
	rules    Rules
	now      func() time.Time
	gameDate func() string
}

func NewWallet(state *WalletState, rewards *[]RewardEntry, rules Rules, now func() time.Time, gameDate func() string) *Wallet {
	if now == nil {
		now = time.Now
	}
	if gameDate == nil {
		gameDate = func() string { return now().Format(DateLayout) }
	}
	return &Wallet{state: state, rewards: rewards, rules: rules, now: now, gameDate: gameDate}
}

// IsWeekend uses the calendar day, not the logical game day.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// AddSlot credits one slot earned from origin.
func (w *Wallet) AddSlot(origin string) SlotResult {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		origin = "reward"
	}

	var res SlotResult
	weekend := IsWeekend(w.now())
	if !weekend && w.state.Daily.GainedToday < w.state.Daily.Max {
		w.state.Daily.Current++
		w.state.Daily.GainedToday++
		res = SlotResult{
			Message: fmt.Sprintf("+1 daily slot from %s (%d/%d today)", origin, w.state.Daily.GainedToday, w.state.Daily.Max),
			Target:  PoolDaily,
		}
	} else {
		w.state.Weekend.Current++
		res = SlotResult{Target: PoolWeekend}
		if weekend {
			res.Message = fmt.Sprintf("+1 weekend slot from %s", origin)
		} else {
			res.Message = fmt.Sprintf("daily cap reached: +1 weekend slot from %s", origin)
		}
		if n := w.convertOverflow(); n > 0 {
			res.Target = PoolCrystal
			res.Converted = n
			res.Message += fmt.Sprintf(", %d weekend slots became %d crystal(s)", n*w.crystalRate(), n)
		}
	}

	w.record(RewardEntry{Name: origin, Detail: res.Message, Type: RewardGain, Date: w.gameDate()})
	return res
}

// Consume spends one slot on category key. Nothing changes on error.
func (w *Wallet) Consume(key string) (ConsumeResult, error) {
	cat, ok := w.state.Consumption.Get(key)
	if !ok {
		return ConsumeResult{}, ErrUnknownCategory
	}
	if cat.Used >= cat.Limit {
		return ConsumeResult{}, ErrLimitReached
	}

	pool, name := &w.state.Daily.Current, PoolDaily
	if IsWeekend(w.now()) {
		pool, name = &w.state.Weekend.Current, PoolWeekend
	}
	if *pool <= 0 {
		return ConsumeResult{}, ErrInsufficientSlots
	}
	*pool--
	cat.Used++

	w.record(RewardEntry{
		Name:   cat.Label,
		Detail: fmt.Sprintf("-1 %s slot (%d/%d used)", name, cat.Used, cat.Limit),
		Type:   RewardConsume,
		Date:   w.gameDate(),
	})
	return ConsumeResult{Key: key, Label: cat.Label, Pool: name, Remaining: *pool, Used: cat.Used, Limit: cat.Limit}, nil
}

// AddCategory creates a category, or relabels and re-limits an existing one
// while keeping its usage. An empty key is derived from the label.
func (w *Wallet) AddCategory(key, label string, limit int) (string, error) {
	label = strings.TrimSpace(label)
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		key = CategoryKeyFromLabel(label)
	}
	if err := ValidateCategoryKey(key); err != nil {
		return "", err
	}
	if limit < 0 {
		return "", fmt.Errorf("limit must be >= 0")
	}
	if label == "" {
		label = key
	}
	used := 0
	if existing, ok := w.state.Consumption.Get(key); ok {
		used = existing.Used
	}
	w.state.Consumption.Set(key, Category{Label: label, Used: used, Limit: limit})
	return key, nil
}

// SetLimits edits several limits at once. Either all apply or none do.
func (w *Wallet) SetLimits(limits map[string]int) error {
	for key, limit := range limits {
		if _, ok := w.state.Consumption.Get(key); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCategory, key)
		}
		if limit < 0 {
			return fmt.Errorf("limit for %s must be >= 0", key)
		}
	}
	for key, limit := range limits {
		cat, _ := w.state.Consumption.Get(key)
		cat.Limit = limit
	}
	return nil
}

// SeedCategories inserts the seeds only when no category exists yet.
func (w *Wallet) SeedCategories(seeds []CategorySeed) bool {
	if w.state.Consumption.Len() > 0 {
		return false
	}
	for _, s := range seeds {
		w.state.Consumption.Set(s.Key, Category{Label: s.Label, Limit: s.Limit})
	}
	return len(seeds) > 0
}

func (w *Wallet) Categories() []CategoryView {
	out := make([]CategoryView, 0, w.state.Consumption.Len())
	w.state.Consumption.Each(func(key string, cat *Category) {
		out = append(out, CategoryView{Key: key, Category: *cat})
	})
	return out
}

// Rollover starts a new logical day for the wallet.
func (w *Wallet) Rollover(gameDate string) RolloverResult {
	var res RolloverResult

	w.state.Daily.GainedToday = 0
	w.state.Consumption.Each(func(_ string, cat *Category) {
		cat.Used = 0
	})

	day, err := time.ParseInLocation(DateLayout, gameDate, time.Local)
	res.Monday = err == nil && day.Weekday() == time.Monday
	if res.Monday {
		moved := min(w.rules.MondayTransfer, w.state.Weekend.Current)
		if moved > 0 {
			w.state.Weekend.Current -= moved
			w.state.Daily.Current += moved
			res.Transferred = moved
		}
	} else if w.state.Daily.Current > w.rules.DailyCarryOver {
		excess := w.state.Daily.Current - w.rules.DailyCarryOver
		w.state.Daily.Current = w.rules.DailyCarryOver
		w.state.Weekend.Current += excess
		res.Overflowed = excess
	}
	res.Converted = w.convertOverflow()
	w.clamp()
	return res
}

// convertOverflow turns weekend slots above max into crystals, whole batches
// only, and returns the number of crystals created.
func (w *Wallet) convertOverflow() int {
	rate := w.crystalRate()
	excess := w.state.Weekend.Current - w.state.Weekend.Max
	if excess < rate {
		return 0
	}
	n := excess / rate
	w.state.Weekend.Current -= n * rate
	w.state.Crystals.Current += n
	return n
}

func (w *Wallet) crystalRate() int {
	if w.rules.CrystalRate <= 0 {
		return DefaultRules().CrystalRate
	}
	return w.rules.CrystalRate
}

func (w *Wallet) clamp() {
	w.state.Daily.Current = max(w.state.Daily.Current, 0)
	w.state.Weekend.Current = max(w.state.Weekend.Current, 0)
	w.state.Crystals.Current = max(w.state.Crystals.Current, 0)
}

func (w *Wallet) record(e RewardEntry) {
	if w.rewards == nil {
		return
	}
	limit := w.rules.RewardHistoryCap
	if limit <= 0 {
		limit = DefaultRules().RewardHistoryCap
	}
	h := append(*w.rewards, e)
	if len(h) > limit {
		h = append([]RewardEntry(nil), h[len(h)-limit:]...)
	}
	*w.rewards = h
}
