package game

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"habitxp/internal/store"
	"habitxp/internal/syncq"
)

var ErrQueueClosed = syncq.ErrClosed

// Notifier receives award and level feedback. Calls are made after the state
// is committed and saved, and the next award waits until they return.
type Notifier interface {
	OnAward(ctx context.Context, amount decimal.Decimal, tier LuckTier)
	OnLevelUp(ctx context.Context, level int)
	OnLevelDown(ctx context.Context, level int)
}

type SoundKind string

const (
	SoundGain      SoundKind = "gain"
	SoundLuck      SoundKind = "luck"
	SoundLevelUp   SoundKind = "level_up"
	SoundLevelDown SoundKind = "level_down"
	SoundUndo      SoundKind = "undo"
)

// SoundSink paces feedback; Play returns when the sound is over.
type SoundSink interface {
	Play(ctx context.Context, kind SoundKind)
}

// DailyResetter is implemented by modules holding per-day state. It is called
// once per logical day transition, outside the service lock.
type DailyResetter interface {
	ResetDailyState()
}

// Decider answers yes/no questions that would otherwise need a blocking
// confirmation dialog.
type Decider interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

type Options struct {
	Rules    *Rules
	Logger   *slog.Logger
	Now      func() time.Time
	Roller   Roller
	Notifier Notifier
	Sounds   SoundSink
}

type Status struct {
	Level     int             `json:"level"`
	Current   decimal.Decimal `json:"current"`
	Needed    decimal.Decimal `json:"needed"`
	Total     decimal.Decimal `json:"total"`
	Blocked   bool            `json:"blocked"`
	GameDate  string          `json:"game_date"`
	LastLogin string          `json:"last_login"`
	Daily     DailyPool       `json:"daily"`
	Weekend   WeekendPool     `json:"weekend"`
	Crystals  int             `json:"crystals"`
	SafeMode  bool            `json:"safe_mode"`
}

type ResetReport struct {
	GameDate string         `json:"game_date"`
	Ran      bool           `json:"ran"`
	Rollover RolloverResult `json:"rollover"`
}

type Service struct {
	backend store.Backend
	log     *slog.Logger
	mu      sync.Mutex
	rand    Roller
	now     func() time.Time
	rules   Rules

	doc        Document
	safeToSave bool
	corrupted  *CorruptedLoadError

	// synced is the stored body this service last loaded or saved. dirty is
	// set while a save has failed since then.
	synced []byte
	dirty  bool

	queue     *syncq.Queue
	notify    Notifier
	sounds    SoundSink
	resetters []DailyResetter

	ledger *Ledger
	wallet *Wallet
	clock  *Clock
}

// Open loads the document from backend and runs the daily reset check. When
// the service is usable but the initial save failed, Open returns the service
// together with a *PersistError.
func Open(ctx context.Context, backend store.Backend, opts Options) (*Service, error) {
	rules := DefaultRules()
	if opts.Rules != nil {
		rules = *opts.Rules
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	roll := opts.Roller
	if roll == nil {
		roll = mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	}
	notify := opts.Notifier
	if notify == nil {
		notify = nopNotifier{}
	}
	sounds := opts.Sounds
	if sounds == nil {
		sounds = nopSounds{}
	}

	loaded, err := loadDocument(ctx, backend, rules, now().Format(DateLayout))
	if err != nil {
		return nil, err
	}

	s := &Service{
		backend:    backend,
		log:        logger,
		rand:       roll,
		now:        now,
		rules:      rules,
		doc:        loaded.doc,
		safeToSave: loaded.safeToSave,
		corrupted:  loaded.corrupted,
		synced:     loaded.raw,
		queue:      syncq.New(16),
		notify:     notify,
		sounds:     sounds,
	}
	s.clock = NewClock(&s.doc.ClockState, rules, now)
	gameDate := func() string {
		d, _ := s.clock.GameDate()
		return d
	}
	s.ledger = NewLedger(&s.doc.XP, &s.doc, rules, roll, now, gameDate)
	s.wallet = NewWallet(&s.doc.Wallet, &s.doc.Rewards, rules, now, gameDate)

	if s.corrupted != nil {
		logger.Warn("state corrupted, running in safe mode", "err", s.corrupted.Err)
	}

	s.mu.Lock()
	changed := loaded.firstRun
	if s.wallet.SeedCategories(rules.Categories) {
		changed = true
	}
	if levels := s.ledger.CheckLevel(); levels.Changed() {
		s.creditLevelUpsLocked(levels)
		changed = true
	}
	var persistErr error
	if changed && s.safeToSave {
		persistErr = s.saveLocked(ctx)
	}
	s.mu.Unlock()

	if _, err := s.CheckForDailyReset(ctx); err != nil && persistErr == nil {
		persistErr = err
	}
	if loaded.firstRun {
		logger.Info("initialized new state")
	}
	return s, persistErr
}

func (s *Service) Close() error {
	s.queue.Close()
	return s.backend.Close()
}

func (s *Service) Rules() Rules { return s.rules }

// SafeMode returns the load error when persisted state could not be parsed.
// While it is non-nil nothing is written back.
func (s *Service) SafeMode() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corrupted == nil {
		return nil
	}
	return s.corrupted
}

func (s *Service) RegisterResetter(r DailyResetter) {
	if r == nil {
		return
	}
	s.mu.Lock()
	s.resetters = append(s.resetters, r)
	s.mu.Unlock()
}

// GainXP applies one award through the award queue. A blocked ledger drops
// the award and returns it with Applied false and no error.
func (s *Service) GainXP(ctx context.Context, amount decimal.Decimal, source string, opts GainOptions) (Award, error) {
	var award Award
	err := s.mutate(ctx, func(fx *effects) error {
		award = s.gainLocked(amount, source, opts, fx)
		return nil
	})
	return award, err
}

// DeleteLog undoes the most recent raw entry of a consolidated group. An
// index that no longer resolves is a no-op.
func (s *Service) DeleteLog(ctx context.Context, groupIndex int) (Reversal, error) {
	var rev Reversal
	err := s.mutate(ctx, func(fx *effects) error {
		r, ok := s.ledger.DeleteGroup(groupIndex)
		if !ok {
			return nil
		}
		rev = r
		fx.reverse(r)
		s.log.Info("log entry removed", "id", r.Entry.ID, "amount", r.Entry.Amount.String(), "level", s.doc.XP.Level)
		return nil
	})
	return rev, err
}

// DeleteLogEntry undoes one raw entry by id.
func (s *Service) DeleteLogEntry(ctx context.Context, id string) (Reversal, error) {
	var rev Reversal
	err := s.mutate(ctx, func(fx *effects) error {
		r, ok := s.ledger.DeleteEntryByID(id)
		if !ok {
			return nil
		}
		rev = r
		fx.reverse(r)
		s.log.Info("log entry removed", "id", r.Entry.ID, "amount", r.Entry.Amount.String(), "level", s.doc.XP.Level)
		return nil
	})
	return rev, err
}

func (s *Service) AddSlotToWallet(ctx context.Context, origin string) (SlotResult, error) {
	var res SlotResult
	err := s.update(ctx, func() (bool, error) {
		res = s.wallet.AddSlot(origin)
		s.log.Info("slot added", "origin", origin, "target", res.Target)
		return true, nil
	})
	return res, err
}

// ConsumeSlot spends one slot. ErrUnknownCategory, ErrLimitReached and
// ErrInsufficientSlots leave the state untouched.
func (s *Service) ConsumeSlot(ctx context.Context, key string) (ConsumeResult, error) {
	var res ConsumeResult
	err := s.update(ctx, func() (bool, error) {
		r, err := s.wallet.Consume(key)
		if err != nil {
			return false, err
		}
		res = r
		s.log.Info("slot consumed", "category", key, "pool", r.Pool, "remaining", r.Remaining)
		return true, nil
	})
	return res, err
}

func (s *Service) AddCategory(ctx context.Context, key, label string, limit int) (string, error) {
	var created string
	err := s.update(ctx, func() (bool, error) {
		k, err := s.wallet.AddCategory(key, label, limit)
		if err != nil {
			return false, err
		}
		created = k
		return true, nil
	})
	return created, err
}

func (s *Service) SetCategoryLimits(ctx context.Context, limits map[string]int) error {
	return s.update(ctx, func() (bool, error) {
		if err := s.wallet.SetLimits(limits); err != nil {
			return false, err
		}
		return len(limits) > 0, nil
	})
}

func (s *Service) Categories() []CategoryView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallet.Categories()
}

// GameDate returns the logical day, persisting an automatic advance. It does
// not run the daily reset; the next mutation or CheckForDailyReset does.
func (s *Service) GameDate(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	date, advanced := s.clock.GameDate()
	if !advanced {
		return date, nil
	}
	s.log.Info("game date advanced", "date", date)
	return date, s.saveLocked(ctx)
}

// Refresh picks up state another process saved to the backend since this
// service last loaded or saved it.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

// CheckForDailyReset runs the reset sequence at most once per logical day.
// Repeated calls on the same day only report the current game date.
func (s *Service) CheckForDailyReset(ctx context.Context) (ResetReport, error) {
	s.mu.Lock()
	day, err := s.beginLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return ResetReport{}, err
	}
	if day.changed {
		err = s.saveLocked(ctx)
	}
	s.mu.Unlock()

	runResetters(day.resetters)
	return day.report, err
}

// TurnDayManual moves the logical day onto the calendar day, commits, reloads
// the document and runs the daily reset from there. A nil decider proceeds
// without asking.
func (s *Service) TurnDayManual(ctx context.Context, d Decider) (ResetReport, error) {
	if d != nil {
		ok, err := d.Confirm(ctx, "Turn the day now? Daily pools and limits will reset.")
		if err != nil {
			return ResetReport{}, err
		}
		if !ok {
			return ResetReport{}, ErrDeclined
		}
	}

	s.mu.Lock()
	if err := s.refreshLocked(ctx); err != nil {
		s.mu.Unlock()
		return ResetReport{}, err
	}
	date, changed := s.clock.TurnManual()
	if err := s.saveLocked(ctx); err != nil {
		s.mu.Unlock()
		return ResetReport{GameDate: date}, err
	}
	if err := s.reloadLocked(ctx); err != nil {
		s.mu.Unlock()
		return ResetReport{GameDate: date}, err
	}
	s.mu.Unlock()
	s.log.Info("day turned manually", "date", date, "changed", changed)

	return s.CheckForDailyReset(ctx)
}

func (s *Service) SetBlocked(ctx context.Context, blocked bool) error {
	return s.update(ctx, func() (bool, error) {
		if s.doc.XP.Blocked == blocked {
			return false, nil
		}
		s.doc.XP.Blocked = blocked
		s.log.Info("ledger gate changed", "blocked", blocked)
		return true, nil
	})
}

// Snapshot returns a deep copy of the document.
func (s *Service) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

func (s *Service) ConsolidatedView() []LogGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Consolidated()
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, needed := s.ledger.Progress()
	return Status{
		Level:     s.doc.XP.Level,
		Current:   current,
		Needed:    needed,
		Total:     s.doc.XP.Total,
		Blocked:   s.doc.XP.Blocked,
		GameDate:  s.doc.LastGameDate,
		LastLogin: s.doc.LastLogin,
		Daily:     s.doc.Wallet.Daily,
		Weekend:   s.doc.Wallet.Weekend,
		Crystals:  s.doc.Wallet.Crystals.Current,
		SafeMode:  s.corrupted != nil,
	}
}

// effects collects what a queued mutation has to announce once the lock is
// released.
type effects struct {
	changed   bool
	awards    []Award
	reversals []Reversal
}

func (fx *effects) reverse(r Reversal) {
	fx.changed = true
	fx.reversals = append(fx.reversals, r)
}

// mutate runs fn as one unit on the award queue: the document is brought up
// to date, fn changes it under the lock, the document is saved, then the
// collected effects are announced with the lock released. The next unit
// starts only after that. A save failure is returned as *PersistError; the
// mutation stays in memory.
func (s *Service) mutate(ctx context.Context, fn func(fx *effects) error) error {
	var persistErr error
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		var fx effects
		s.mu.Lock()
		day, err := s.beginLocked(ctx)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		err = fn(&fx)
		if fx.changed || day.changed {
			persistErr = s.saveLocked(ctx)
		}
		s.mu.Unlock()
		runResetters(day.resetters)
		if err != nil {
			return err
		}
		s.announce(ctx, fx)
		return nil
	})
	if err != nil {
		return err
	}
	return persistErr
}

// update is mutate for single-step operations with nothing to announce.
func (s *Service) update(ctx context.Context, fn func() (bool, error)) error {
	s.mu.Lock()
	day, err := s.beginLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	changed, err := fn()
	var persistErr error
	if changed || day.changed {
		persistErr = s.saveLocked(ctx)
	}
	s.mu.Unlock()
	runResetters(day.resetters)
	if err != nil {
		return err
	}
	return persistErr
}

// dayStart is what beginLocked did to the document.
type dayStart struct {
	report    ResetReport
	changed   bool
	resetters []DailyResetter
}

// beginLocked readies the document for a write: it picks up external saves,
// then runs the daily reset if the logical day has moved on. The returned
// resetters must be called after the lock is released.
func (s *Service) beginLocked(ctx context.Context) (dayStart, error) {
	if err := s.refreshLocked(ctx); err != nil {
		return dayStart{}, err
	}
	gameDate, needed, advanced := s.clock.NeedsReset()
	if !needed {
		return dayStart{report: ResetReport{GameDate: gameDate}, changed: advanced}, nil
	}
	return dayStart{
		report:    s.resetLocked(gameDate),
		changed:   true,
		resetters: append([]DailyResetter(nil), s.resetters...),
	}, nil
}

func runResetters(resetters []DailyResetter) {
	for _, r := range resetters {
		r.ResetDailyState()
	}
}

// gainLocked applies an award and credits a wallet slot per level gained.
func (s *Service) gainLocked(amount decimal.Decimal, source string, opts GainOptions, fx *effects) Award {
	award, ok := s.ledger.Gain(amount, source, opts)
	if !ok {
		s.log.Debug("award dropped, ledger blocked", "source", source, "amount", amount.String())
		return Award{}
	}
	award.Slots = s.creditLevelUpsLocked(award.Levels)
	fx.changed = true
	fx.awards = append(fx.awards, award)
	s.log.Info("xp gained",
		"source", source,
		"amount", award.Entry.Amount.String(),
		"luck", award.Tier.String(),
		"level", s.doc.XP.Level,
		"current", s.doc.XP.Current.String(),
	)
	return award
}

// creditLevelUpsLocked pays one wallet slot per level reached for the first
// time. Levels regained after an undo or penalty pay nothing.
func (s *Service) creditLevelUpsLocked(levels LevelChange) []SlotResult {
	var slots []SlotResult
	for _, lvl := range levels.Ups {
		s.log.Info("level up", "level", lvl)
		if lvl <= s.doc.XP.PeakLevel {
			continue
		}
		s.doc.XP.PeakLevel = lvl
		slots = append(slots, s.wallet.AddSlot(fmt.Sprintf("Level %d", lvl)))
	}
	for _, lvl := range levels.Downs {
		s.log.Info("level down", "level", lvl)
	}
	return slots
}

func (s *Service) announce(ctx context.Context, fx effects) {
	for _, a := range fx.awards {
		s.notify.OnAward(ctx, a.Entry.Amount, a.Tier)
		if a.Tier > LuckNone {
			s.sounds.Play(ctx, SoundLuck)
		} else {
			s.sounds.Play(ctx, SoundGain)
		}
		s.announceLevels(ctx, a.Levels)
	}
	for _, r := range fx.reversals {
		s.sounds.Play(ctx, SoundUndo)
		s.announceLevels(ctx, r.Levels)
	}
}

func (s *Service) announceLevels(ctx context.Context, levels LevelChange) {
	for _, lvl := range levels.Ups {
		s.sounds.Play(ctx, SoundLevelUp)
		s.notify.OnLevelUp(ctx, lvl)
	}
	for _, lvl := range levels.Downs {
		s.sounds.Play(ctx, SoundLevelDown)
		s.notify.OnLevelDown(ctx, lvl)
	}
}

func (s *Service) resetLocked(gameDate string) ResetReport {
	rollover := s.wallet.Rollover(gameDate)
	s.resetHabitsLocked()
	s.resetGymLocked()
	s.resetDietLocked(gameDate)
	s.clock.MarkReset(gameDate)

	s.log.Info("daily reset",
		"game_date", gameDate,
		"monday", rollover.Monday,
		"transferred", rollover.Transferred,
		"overflowed", rollover.Overflowed,
		"crystals", rollover.Converted,
	)
	return ResetReport{GameDate: gameDate, Ran: true, Rollover: rollover}
}

func (s *Service) saveLocked(ctx context.Context) error {
	if !s.safeToSave {
		return &PersistError{Err: ErrSaveDisabled}
	}
	body, err := encodeDocument(&s.doc)
	if err != nil {
		s.log.Error("encode state failed", "err", err)
		return &PersistError{Err: err}
	}
	if err := s.backend.Save(ctx, body); err != nil {
		s.dirty = true
		s.log.Error("persist state failed", "err", err)
		return &PersistError{Err: err}
	}
	s.synced = body
	s.dirty = false
	return nil
}

// refreshLocked reloads the document when the stored body differs from the
// one this service last loaded or saved, so another writer's changes are not
// overwritten. Unsaved local changes are kept while the store is unchanged.
func (s *Service) refreshLocked(ctx context.Context) error {
	if !s.safeToSave {
		return nil
	}
	raw, err := s.backend.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("refresh state: %w", err)
	}
	if bytes.Equal(raw, s.synced) {
		return nil
	}
	doc, err := decodeDocument(raw, s.rules, s.now().Format(DateLayout))
	if err != nil {
		s.log.Error("stored state unreadable, not overwriting it", "err", err)
		return &CorruptedLoadError{Err: err}
	}
	if s.dirty {
		s.log.Warn("stored state changed elsewhere, dropping unsaved changes")
	} else {
		s.log.Info("picked up external state change")
	}
	s.doc = doc
	s.synced = raw
	s.dirty = false
	return nil
}

// reloadLocked replaces the in-memory document with the stored one. In safe
// mode nothing was stored, so memory is kept.
func (s *Service) reloadLocked(ctx context.Context) error {
	if !s.safeToSave {
		return nil
	}
	loaded, err := loadDocument(ctx, s.backend, s.rules, s.now().Format(DateLayout))
	if err != nil {
		return err
	}
	if loaded.corrupted != nil {
		return loaded.corrupted
	}
	s.doc = loaded.doc
	s.synced = loaded.raw
	s.dirty = false
	return nil
}

// IsPersistError reports whether err only signals a failed save.
func IsPersistError(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}

type nopNotifier struct{}

func (nopNotifier) OnAward(context.Context, decimal.Decimal, LuckTier) {}
func (nopNotifier) OnLevelUp(context.Context, int) {}
func (nopNotifier) OnLevelDown(context.Context, int) {}

type nopSounds struct{}

func (nopSounds) Play(context.Context, SoundKind) {}
