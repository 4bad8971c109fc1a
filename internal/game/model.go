package game

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	PoolDaily   = "daily"
	PoolWeekend = "weekend"
	PoolCrystal = "crystal"

	RewardGain    = "gain"
	RewardConsume = "consume"
)

var (
	ErrInvalidAmount     = errors.New("amount must be a finite number")
	ErrInsufficientSlots = errors.New("insufficient slots in wallet")
	ErrLimitReached      = errors.New("daily limit reached for category")
	ErrUnknownCategory   = errors.New("consumption category not found")
	ErrInvalidCategory   = errors.New("category key must be 1-32 lowercase letters, digits, '-' or '_'")
	ErrHabitNotFound     = errors.New("habit not found")
	ErrTimerRunning      = errors.New("workout timer already running")
	ErrTimerNotRunning   = errors.New("workout timer is not running")
	ErrSaveDisabled      = errors.New("saving disabled: state loaded in safe mode")
	ErrDeclined          = errors.New("action declined")
)

// PersistError is returned next to a result whose in-memory mutation already
// committed but could not be written to storage.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("state kept in memory but not saved: %v", e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// CorruptedLoadError reports persisted data that could not be parsed.
type CorruptedLoadError struct {
	Err error
}

func (e *CorruptedLoadError) Error() string {
	return fmt.Sprintf("persisted state is corrupted, running in safe mode: %v", e.Err)
}

func (e *CorruptedLoadError) Unwrap() error { return e.Err }

var categoryKeyRE = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

func ValidateCategoryKey(key string) error {
	if !categoryKeyRE.MatchString(key) {
		return ErrInvalidCategory
	}
	return nil
}

// CategoryKeyFromLabel derives a map key from a free-form label.
func CategoryKeyFromLabel(label string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
		if b.Len() >= 32 {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}

var tenths = decimal.New(1, -1)

// Round1 rounds to one decimal place. Every XP quantity passes through it
// after each addition or subtraction.
func Round1(d decimal.Decimal) decimal.Decimal {
	return d.Round(1)
}

// XP builds a rounded decimal from a float amount.
func XP(v float64) decimal.Decimal {
	return Round1(decimal.NewFromFloat(v))
}

// IsOneDecimal reports whether d carries at most one fractional digit.
func IsOneDecimal(d decimal.Decimal) bool {
	return d.Mod(tenths).IsZero()
}

type LuckTier int

const (
	LuckNone   LuckTier = 1
	LuckDouble LuckTier = 2
	LuckTriple LuckTier = 3
)

func (t LuckTier) String() string {
	switch t {
	case LuckDouble:
		return "x2"
	case LuckTriple:
		return "x3"
	default:
		return "x1"
	}
}

type CategorySeed struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
	Limit int    `yaml:"limit"`
}

// Rules holds every tunable of the economy. Zero values are never used
// directly; start from DefaultRules.
type Rules struct {
	XPPerLevel       int64   `yaml:"xp_per_level"`
	StreakRate       float64 `yaml:"streak_rate"`
	StreakCapDays    int     `yaml:"streak_cap_days"`
	StreakCapRate    float64 `yaml:"streak_cap_rate"`
	LuckDoubleAt     float64 `yaml:"luck_double_at"`
	LuckTripleAt     float64 `yaml:"luck_triple_at"`
	DailySlotMax     int     `yaml:"daily_slot_max"`
	WeekendSlotMax   int     `yaml:"weekend_slot_max"`
	CrystalRate      int     `yaml:"crystal_rate"`
	DailyCarryOver   int     `yaml:"daily_carry_over"`
	MondayTransfer   int     `yaml:"monday_transfer"`
	RewardHistoryCap int     `yaml:"reward_history_cap"`
	GraceHour        int     `yaml:"grace_hour"`

	DurationRate   float64 `yaml:"duration_xp_per_minute"`
	DistanceScale  float64 `yaml:"distance_scale"`
	DistanceKnee   float64 `yaml:"distance_knee_km"`
	DistanceLinear float64 `yaml:"distance_linear"`
	WaterGoalML    int     `yaml:"water_goal_ml"`
	WaterGoalXP    float64 `yaml:"water_goal_xp"`
	RequireWeighIn bool    `yaml:"require_weigh_in"`

	StreakMilestones []int          `yaml:"streak_milestones"`
	MilestoneXP      float64        `yaml:"milestone_xp"`
	Categories       []CategorySeed `yaml:"categories"`
}

func DefaultRules() Rules {
	return Rules{
		XPPerLevel:       100,
		StreakRate:       0.10,
		StreakCapDays:    30,
		StreakCapRate:    3.0,
		LuckDoubleAt:     85,
		LuckTripleAt:     95,
		DailySlotMax:     9,
		WeekendSlotMax:   30,
		CrystalRate:      3,
		DailyCarryOver:   2,
		MondayTransfer:   2,
		RewardHistoryCap: 50,
		GraceHour:        12,
		DurationRate:     1.0,
		DistanceScale:    40,
		DistanceKnee:     5,
		DistanceLinear:   2,
		WaterGoalML:      2000,
		WaterGoalXP:      10,
		StreakMilestones: []int{7, 30, 100},
		MilestoneXP:      50,
		Categories: []CategorySeed{
			{Key: "games", Label: "Video games", Limit: 2},
			{Key: "series", Label: "Series & movies", Limit: 2},
			{Key: "social", Label: "Social media", Limit: 3},
			{Key: "treat", Label: "Sweet treat", Limit: 1},
		},
	}
}

// Needed returns the XP required to leave the given level.
func (r Rules) Needed(level int) decimal.Decimal {
	if level < 1 {
		level = 1
	}
	per := r.XPPerLevel
	if per <= 0 {
		per = DefaultRules().XPPerLevel
	}
	return decimal.NewFromInt(int64(level) * per)
}

// StreakRateFor returns the bonus rate for a streak length. Streaks up to the
// cap day grow linearly from (streak-1)*rate; longer streaks use the flat cap
// rate.
func (r Rules) StreakRateFor(streak int) decimal.Decimal {
	if streak <= 1 {
		return decimal.Zero
	}
	if streak > r.StreakCapDays {
		return decimal.NewFromFloat(r.StreakCapRate)
	}
	return decimal.NewFromInt(int64(streak - 1)).Mul(decimal.NewFromFloat(r.StreakRate))
}

// LuckFor maps a roll in [0,100) to a multiplier tier.
func (r Rules) LuckFor(roll float64) LuckTier {
	switch {
	case roll >= r.LuckTripleAt:
		return LuckTriple
	case roll >= r.LuckDoubleAt:
		return LuckDouble
	default:
		return LuckNone
	}
}

func (r Rules) Validate() error {
	switch {
	case r.XPPerLevel <= 0:
		return fmt.Errorf("xp_per_level must be > 0")
	case r.CrystalRate <= 0:
		return fmt.Errorf("crystal_rate must be > 0")
	case r.LuckDoubleAt > r.LuckTripleAt:
		return fmt.Errorf("luck_double_at must not exceed luck_triple_at")
	case r.GraceHour < 0 || r.GraceHour > 23:
		return fmt.Errorf("grace_hour must be within 0-23")
	case r.DailySlotMax < 0 || r.WeekendSlotMax < 0:
		return fmt.Errorf("slot maxima must be >= 0")
	case r.RewardHistoryCap <= 0:
		return fmt.Errorf("reward_history_cap must be > 0")
	case r.DistanceKnee <= 0:
		return fmt.Errorf("distance_knee_km must be > 0")
	}
	for _, c := range r.Categories {
		if err := ValidateCategoryKey(c.Key); err != nil {
			return fmt.Errorf("category %q: %w", c.Key, err)
		}
	}
	return nil
}

func (r Rules) IsMilestone(streak int) bool {
	for _, m := range r.StreakMilestones {
		if m == streak {
			return true
		}
	}
	return false
}
