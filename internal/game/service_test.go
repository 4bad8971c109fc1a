package game

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	svc     *Service
	clock   *testClock
	backend *memBackend
	notify  *recordingNotifier
}

func openTestService(t *testing.T, at string, backend *memBackend, tweak ...func(*Options)) serviceFixture {
	t.Helper()
	if backend == nil {
		backend = &memBackend{}
	}
	clock := newTestClock(at)
	notify := &recordingNotifier{}
	opts := Options{Now: clock.Now, Roller: fixedRoll(0), Notifier: notify}
	for _, fn := range tweak {
		fn(&opts)
	}
	svc, err := Open(context.Background(), backend, opts)
	if err != nil && !IsPersistError(err) {
		t.Fatalf("open service: %v", err)
	}
	require.NotNil(t, svc)
	t.Cleanup(func() { _ = svc.Close() })
	return serviceFixture{svc: svc, clock: clock, backend: backend, notify: notify}
}

func persisted(t *testing.T, b *memBackend) Document {
	t.Helper()
	b.mu.Lock()
	body := append([]byte(nil), b.body...)
	b.mu.Unlock()
	doc, err := decodeDocument(body, DefaultRules(), "1970-01-01")
	require.NoError(t, err)
	return doc
}

func TestOpenFirstRun(t *testing.T) {
	f := openTestService(t, "2024-01-03 18:00", nil)

	assert.Equal(t, 1, f.backend.Saves())
	doc := persisted(t, f.backend)
	assert.Equal(t, "2024-01-03", doc.LastLogin)
	assert.Equal(t, "2024-01-03", doc.LastGameDate)
	assert.Equal(t, []string{"games", "series", "social", "treat"}, doc.Wallet.Consumption.Keys())
	assert.Nil(t, f.svc.SafeMode())
}

func TestOpenRunsPendingReset(t *testing.T) {
	seed := DefaultDocument(DefaultRules(), "2024-01-01")
	seed.Wallet.Daily = DailyPool{Current: 5, GainedToday: 4, Max: 9}
	seed.Wallet.Consumption.Set("games", Category{Label: "Games", Used: 2, Limit: 2})
	body, err := json.Marshal(&seed)
	require.NoError(t, err)

	f := openTestService(t, "2024-01-03 18:00", &memBackend{body: body})

	st := f.svc.Status()
	assert.Equal(t, "2024-01-03", st.GameDate)
	assert.Equal(t, "2024-01-03", st.LastLogin)
	assert.Equal(t, 2, st.Daily.Current)
	assert.Equal(t, 0, st.Daily.GainedToday)
	assert.Equal(t, 3, st.Weekend.Current)
	cats := f.svc.Categories()
	require.Len(t, cats, 1)
	assert.Equal(t, 0, cats[0].Used)
}

func TestServiceGainCreditsLevelUpSlots(t *testing.T) {
	f := openTestService(t, "2024-01-03 18:00", nil)
	ctx := context.Background()

	award, err := f.svc.GainXP(ctx, dec("350"), "Marathon", GainOptions{ForceFlat: true})
	require.NoError(t, err)
	assert.True(t, award.Applied)
	assert.Equal(t, []int{2, 3}, award.Levels.Ups)
	require.Len(t, award.Slots, 2)
	assert.Equal(t, PoolDaily, award.Slots[0].Target)

	st := f.svc.Status()
	assert.Equal(t, 3, st.Level)
	assert.True(t, st.Current.Equal(dec("50")))
	assert.True(t, st.Needed.Equal(dec("300")))
	assert.Equal(t, 2, st.Daily.Current)

	assert.Equal(t, []int{2, 3}, f.notify.ups)
	require.Len(t, f.notify.awards, 1)

	doc := persisted(t, f.backend)
	assert.Equal(t, 3, doc.XP.Level)
	require.Len(t, doc.Rewards, 2)
	assert.Equal(t, "Level 2", doc.Rewards[0].Name)
}

func TestServiceBlockedDropsAward(t *testing.T) {
	f := openTestService(t, "2024-01-03 18:00", nil)
	ctx := context.Background()

	require.NoError(t, f.svc.SetBlocked(ctx, true))
	saves := f.backend.Saves()

	award, err := f.svc.GainXP(ctx, dec("25"), "Read", GainOptions{Streak: 4})
	require.NoError(t, err)
	assert.False(t, award.Applied)

	snap := f.svc.Snapshot()
	assert.True(t, snap.XP.Current.IsZero())
	assert.True(t, snap.XP.Total.IsZero())
	assert.Empty(t, snap.XP.History)
	assert.Equal(t, saves, f.backend.Saves())
	assert.Empty(t, f.notify.awards)
}

func TestServiceSerializesConcurrentAwards(t *testing.T) {
	f := openTestService(t, "2024-01-03 18:00", nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.GainXP(ctx, dec("7.3"), "tick", GainOptions{ForceFlat: true})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap := f.svc.Snapshot()
	assert.Len(t, snap.XP.History, 50)
	assert.True(t, snap.XP.Total.Equal(dec("365")), "total %s", snap.XP.Total)
	// 365 = 100 + 200 + 65
	assert.Equal(t, 3, snap.XP.Level)
	assert.True(t, snap.XP.Current.Equal(dec("65")), "current %s", snap.XP.Current)
	assert.Len(t, f.notify.awards, 50)
	assert.Equal(t, []int{2, 3}, f.notify.ups)
}

func TestServiceUndoHabitCompletion(t *testing.T) {
	f := openTestService(t, "2024-01-03 18:00", nil, func(o *Options) {
		o.Roller = &seqRoll{vals: []float64{0, 0.9}}
	})
	ctx := context.Background()

	h, err := f.svc.AddHabit(ctx, "Pushups", dec("4"), 2)
	require.NoError(t, err)

	first, err := f.svc.CompleteHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.False(t, first.Completed)
	second, err := f.svc.CompleteHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.True(t, second.Completed)
	assert.Equal(t, 1, second.Habit.Streak)

	groups := f.svc.ConsolidatedView()
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Count)
	before := f.svc.Status()

	rev, err := f.svc.DeleteLog(ctx, 0)
	require.NoError(t, err)
	assert.True(t, rev.Applied)
	assert.Equal(t, second.Award.Entry.ID, rev.Entry.ID)

	after := f.svc.Status()
	assert.True(t, after.Total.Equal(before.Total.Sub(second.Award.Entry.Amount)))
	groups = f.svc.ConsolidatedView()
	require.Len(t, groups, 1)
	assert.Equal(t, 1, groups[0].Count)

	habits := f.svc.Habits()
	require.Len(t, habits, 1)
	assert.Equal(t, 1, habits[0].CurrentOfDay)
	assert.False(t, habits[0].CompletedToday)
	assert.Equal(t, 0, habits[0].Streak)

	rev, err = f.svc.DeleteLog(ctx, 5)
	require.NoError(t, err)
	assert.False(t, rev.Applied)

	doc := persisted(t, f.backend)
	assert.Len(t, doc.XP.History, 1)
}

func TestServiceConsumeErrorsDoNotSave(t *testing.T) {
	f := openTestService(t, "2024-01-03 18:00", nil)
	ctx := context.Background()
	saves := f.backend.Saves()

	_, err := f.svc.ConsumeSlot(ctx, "games")
	require.ErrorIs(t, err, ErrInsufficientSlots)
	_, err = f.svc.ConsumeSlot(ctx, "missing")
	require.ErrorIs(t, err, ErrUnknownCategory)
	assert.Equal(t, saves, f.backend.Saves())

	_, err = f.svc.AddSlotToWallet(ctx, "bonus")
	require.NoError(t, err)
	res, err := f.svc.ConsumeSlot(ctx, "treat")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Remaining)
	_, err = f.svc.ConsumeSlot(ctx, "treat")
	require.ErrorIs(t, err, ErrLimitReached)
	assert.Equal(t, saves+2, f.backend.Saves())
}

func TestServiceCategoryManagement(t *testing.T) {
	f := openTestService(t, "2024-01-03 18:00", nil)
	ctx := context.Background()

	key, err := f.svc.AddCategory(ctx, "", "Board games", 1)
	require.NoError(t, err)
	assert.Equal(t, "board-games", key)

	require.NoError(t, f.svc.SetCategoryLimits(ctx, map[string]int{"board-games": 3, "games": 0}))
	require.ErrorIs(t, f.svc.SetCategoryLimits(ctx, map[string]int{"ghost": 1}), ErrUnknownCategory)

	doc := persisted(t, f.backend)
	cat, ok := doc.Wallet.Consumption.Get("board-games")
	require.True(t, ok)
	assert.Equal(t, 3, cat.Limit)
	games, _ := doc.Wallet.Consumption.Get("games")
	assert.Equal(t, 0, games.Limit)
}

func TestServicePersistFailureKeepsMemory(t *testing.T) {
	f := openTestService(t, "2024-01-03 18:00", nil)
	ctx := context.Background()

	f.backend.mu.Lock()
	f.backend.saveErr = errors.New("quota exceeded")
	f.backend.mu.Unlock()

	award, err := f.svc.GainXP(ctx, dec("10"), "Read", GainOptions{})
	require.Error(t, err)
	var pe *PersistError
	require.ErrorAs(t, err, &pe)
	assert.True(t, award.Applied)
	assert.True(t, f.svc.Status().Total.Equal(dec("10")))

	f.backend.mu.Lock()
	f.backend.saveErr = nil
	f.backend.mu.Unlock()

	_, err = f.svc.GainXP(ctx, dec("5"), "Read", GainOptions{})
	require.NoError(t, err)
	doc := persisted(t, f.backend)
	assert.True(t, doc.XP.Total.Equal(dec("15")))
}

func TestServiceCorruptedLoadSafeMode(t *testing.T) {
	backend := &memBackend{body: []byte(`{"xp": {"current": tru`)}
	f := openTestService(t, "2024-01-03 18:00", backend)
	ctx := context.Background()

	var ce *CorruptedLoadError
	require.ErrorAs(t, f.svc.SafeMode(), &ce)
	assert.True(t, f.svc.Status().SafeMode)

	award, err := f.svc.GainXP(ctx, dec("10"), "Read", GainOptions{})
	require.ErrorIs(t, err, ErrSaveDisabled)
	assert.True(t, IsPersistError(err))
	assert.True(t, award.Applied)

	assert.Equal(t, 0, backend.Saves())
	assert.Equal(t, `{"xp": {"current": tru`, string(backend.body))
}

func TestCheckForDailyResetIdempotent(t *testing.T) {
	f := openTestService(t, "2024-01-03 18:00", nil)
	ctx := context.Background()
	hook := &countingResetter{}
	f.svc.RegisterResetter(hook)

	report, err := f.svc.CheckForDailyReset(ctx)
	require.NoError(t, err)
	assert.False(t, report.Ran)
	assert.Equal(t, 0, hook.Count())

	f.clock.Set("2024-01-04 09:00")
	report, err = f.svc.CheckForDailyReset(ctx)
	require.NoError(t, err)
	assert.False(t, report.Ran)
	assert.Equal(t, "2024-01-03", report.GameDate)

	f.clock.Set("2024-01-04 13:00")
	var wg sync.WaitGroup
	var mu sync.Mutex
	ran := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := f.svc.CheckForDailyReset(ctx)
			assert.NoError(t, err)
			if r.Ran {
				mu.Lock()
				ran++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, hook.Count())

	st := f.svc.Status()
	assert.Equal(t, "2024-01-04", st.LastLogin)
	assert.Equal(t, st.GameDate, st.LastLogin)
}

func TestServiceGameDatePersistsAdvance(t *testing.T) {
	f := openTestService(t, "2024-01-01 18:00", nil)
	ctx := context.Background()
	saves := f.backend.Saves()

	f.clock.Set("2024-01-02 09:00")
	date, err := f.svc.GameDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", date)
	assert.Equal(t, saves, f.backend.Saves())

	f.clock.Set("2024-01-02 13:00")
	date, err = f.svc.GameDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", date)
	assert.Equal(t, saves+1, f.backend.Saves())
	assert.Equal(t, "2024-01-02", persisted(t, f.backend).LastGameDate)

	date, err = f.svc.GameDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", date)
	assert.Equal(t, saves+1, f.backend.Saves())
}

func TestTurnDayManual(t *testing.T) {
	f := openTestService(t, "2024-01-03 18:00", nil)
	ctx := context.Background()
	hook := &countingResetter{}
	f.svc.RegisterResetter(hook)

	f.clock.Set("2024-01-04 08:00")
	no := &cannedDecider{answer: false}
	_, err := f.svc.TurnDayManual(ctx, no)
	require.ErrorIs(t, err, ErrDeclined)
	assert.Equal(t, 1, no.asked)
	assert.Equal(t, "2024-01-03", f.svc.Status().GameDate)

	yes := &cannedDecider{answer: true}
	report, err := f.svc.TurnDayManual(ctx, yes)
	require.NoError(t, err)
	assert.True(t, report.Ran)
	assert.Equal(t, "2024-01-04", report.GameDate)
	assert.Equal(t, 1, hook.Count())

	st := f.svc.Status()
	assert.Equal(t, "2024-01-04", st.GameDate)
	assert.Equal(t, "2024-01-04", st.LastLogin)

	report, err = f.svc.TurnDayManual(ctx, nil)
	require.NoError(t, err)
	assert.False(t, report.Ran)
	assert.Equal(t, 1, hook.Count())
}

func TestHabitStreakAcrossDays(t *testing.T) {
	rules := DefaultRules()
	rules.StreakMilestones = []int{2}
	f := openTestService(t, "2024-01-03 18:00", nil, func(o *Options) { o.Rules = &rules })
	ctx := context.Background()

	h, err := f.svc.AddHabit(ctx, "Read", dec("10"), 1)
	require.NoError(t, err)
	other, err := f.svc.AddHabit(ctx, "Floss", dec("2"), 1)
	require.NoError(t, err)

	c, err := f.svc.CompleteHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Habit.Streak)
	assert.Nil(t, c.Milestone)
	_, err = f.svc.CompleteHabit(ctx, other.ID)
	require.NoError(t, err)

	f.clock.Set("2024-01-04 13:00")
	_, err = f.svc.CheckForDailyReset(ctx)
	require.NoError(t, err)

	c, err = f.svc.CompleteHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Habit.Streak)
	// 10 + 10% streak bonus
	assert.True(t, c.Award.Entry.Amount.Equal(dec("11")), "amount %s", c.Award.Entry.Amount)
	require.NotNil(t, c.Milestone)
	assert.True(t, c.Milestone.Entry.Amount.Equal(dec("50")))
	assert.Equal(t, h.ID, c.Milestone.Entry.HabitID)
	assert.Equal(t, c.Award.Entry.ID, c.Milestone.Entry.ParentID)

	f.clock.Set("2024-01-05 13:00")
	_, err = f.svc.CheckForDailyReset(ctx)
	require.NoError(t, err)

	for _, hb := range f.svc.Habits() {
		assert.Equal(t, 0, hb.CurrentOfDay)
		assert.False(t, hb.CompletedToday)
		if hb.ID == other.ID {
			assert.Equal(t, 0, hb.Streak)
		} else {
			assert.Equal(t, 2, hb.Streak)
		}
	}

	_, err = f.svc.CompleteHabit(ctx, "missing")
	require.ErrorIs(t, err, ErrHabitNotFound)
}

func TestWorkoutTimer(t *testing.T) {
	f := openTestService(t, "2024-01-03 18:00", nil)
	ctx := context.Background()

	_, err := f.svc.StopWorkout(ctx, "")
	require.ErrorIs(t, err, ErrTimerNotRunning)

	_, err = f.svc.StartWorkout(ctx)
	require.NoError(t, err)
	_, err = f.svc.StartWorkout(ctx)
	require.ErrorIs(t, err, ErrTimerRunning)

	f.clock.Advance(30*time.Minute + 30*time.Second)
	res, err := f.svc.StopWorkout(ctx, "Legs")
	require.NoError(t, err)
	assert.EqualValues(t, 1830, res.Seconds)
	assert.True(t, res.Award.Entry.Amount.Equal(dec("30.5")), "amount %s", res.Award.Entry.Amount)
	assert.Equal(t, TypeGym, res.Award.Entry.Type)

	snap := f.svc.Snapshot()
	assert.Nil(t, snap.Gym.TimerStartedAt)
	assert.Equal(t, 1, snap.Gym.SetsToday)
	assert.Len(t, snap.XP.History, 1)

	award, err := f.svc.LogDistance(ctx, 5, "")
	require.NoError(t, err)
	assert.True(t, award.Entry.Amount.Equal(dec("35.3")))
	_, err = f.svc.LogDistance(ctx, -1, "")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestWaterGoalAndWeighInGate(t *testing.T) {
	rules := DefaultRules()
	rules.RequireWeighIn = true
	f := openTestService(t, "2024-01-03 18:00", nil, func(o *Options) { o.Rules = &rules })
	ctx := context.Background()

	w, err := f.svc.LogWater(ctx, 1500)
	require.NoError(t, err)
	assert.Nil(t, w.Award)

	_, err = f.svc.WeighIn(ctx, 72.4)
	require.NoError(t, err)
	assert.False(t, f.svc.Status().Blocked)

	w, err = f.svc.LogWater(ctx, 600)
	require.NoError(t, err)
	require.NotNil(t, w.Award)
	assert.True(t, w.Award.Entry.Amount.Equal(dec("10")))
	w, err = f.svc.LogWater(ctx, 600)
	require.NoError(t, err)
	assert.Nil(t, w.Award)
	assert.Equal(t, 2700, w.WaterML)

	f.clock.Set("2024-01-04 13:00")
	_, err = f.svc.CheckForDailyReset(ctx)
	require.NoError(t, err)
	st := f.svc.Status()
	assert.True(t, st.Blocked)
	assert.Equal(t, 0, f.svc.Snapshot().Diet.WaterML)

	award, err := f.svc.GainXP(ctx, dec("10"), "Read", GainOptions{})
	require.NoError(t, err)
	assert.False(t, award.Applied)

	d, err := f.svc.WeighIn(ctx, 72.1)
	require.NoError(t, err)
	assert.Equal(t, 2, d.WeighInStreak)
	assert.False(t, f.svc.Status().Blocked)
}

func TestServicesSharingBackendKeepEachOthersWrites(t *testing.T) {
	backend := &memBackend{}
	worker := openTestService(t, "2024-01-03 18:00", backend)
	cli := openTestService(t, "2024-01-03 18:00", backend)
	ctx := context.Background()

	_, err := cli.svc.GainXP(ctx, dec("50"), "Read", GainOptions{ForceFlat: true})
	require.NoError(t, err)

	worker.clock.Set("2024-01-04 13:00")
	report, err := worker.svc.CheckForDailyReset(ctx)
	require.NoError(t, err)
	assert.True(t, report.Ran)

	doc := persisted(t, backend)
	assert.True(t, doc.XP.Total.Equal(dec("50")), "total %s", doc.XP.Total)
	assert.Len(t, doc.XP.History, 1)
	assert.Equal(t, "2024-01-04", doc.LastLogin)

	_, err = worker.svc.GainXP(ctx, dec("10"), "Stretch", GainOptions{ForceFlat: true})
	require.NoError(t, err)

	cli.clock.Set("2024-01-04 13:30")
	hook := &countingResetter{}
	cli.svc.RegisterResetter(hook)
	_, err = cli.svc.GainXP(ctx, dec("5"), "Floss", GainOptions{ForceFlat: true})
	require.NoError(t, err)
	assert.Equal(t, 0, hook.Count(), "the day was already reset by the other writer")

	doc = persisted(t, backend)
	assert.True(t, doc.XP.Total.Equal(dec("65")), "total %s", doc.XP.Total)
	require.Len(t, doc.XP.History, 3)
	assert.Equal(t, "Floss", doc.XP.History[2].Source)
	assert.True(t, cli.svc.Status().Total.Equal(dec("65")))
}

func TestServiceRefreshPicksUpExternalSave(t *testing.T) {
	backend := &memBackend{}
	board := openTestService(t, "2024-01-03 18:00", backend)
	cli := openTestService(t, "2024-01-03 18:00", backend)
	ctx := context.Background()

	_, err := cli.svc.AddSlotToWallet(ctx, "bonus")
	require.NoError(t, err)
	assert.Equal(t, 0, board.svc.Status().Daily.Current)

	require.NoError(t, board.svc.Refresh(ctx))
	assert.Equal(t, 1, board.svc.Status().Daily.Current)
}

func TestUndoCompletionTakesBackMilestone(t *testing.T) {
	rules := DefaultRules()
	rules.StreakMilestones = []int{1}
	f := openTestService(t, "2024-01-03 18:00", nil, func(o *Options) { o.Rules = &rules })
	ctx := context.Background()

	h, err := f.svc.AddHabit(ctx, "Run", dec("60"), 1)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		c, err := f.svc.CompleteHabit(ctx, h.ID)
		require.NoError(t, err)
		require.NotNil(t, c.Milestone, "round %d", i)

		groups := f.svc.ConsolidatedView()
		require.Len(t, groups, 1)
		assert.Equal(t, 1, groups[0].Count)
		assert.True(t, groups[0].Amount.Equal(dec("110")), "amount %s", groups[0].Amount)
		assert.Equal(t, "Run", groups[0].Source)

		rev, err := f.svc.DeleteLog(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, c.Award.Entry.ID, rev.Entry.ID)
		require.Len(t, rev.Linked, 1)
		assert.True(t, rev.Amount().Equal(dec("110")))

		st := f.svc.Status()
		assert.True(t, st.Total.IsZero(), "round %d total %s", i, st.Total)
		assert.Equal(t, 1, st.Level)
		assert.Empty(t, f.svc.Snapshot().XP.History)
		assert.Empty(t, f.svc.ConsolidatedView())
	}

	_, err = f.svc.CompleteHabit(ctx, h.ID)
	require.NoError(t, err)

	snap := f.svc.Snapshot()
	assert.Len(t, snap.XP.History, 2)
	assert.True(t, snap.XP.Total.Equal(dec("110")))
	assert.Equal(t, 2, snap.XP.Level)
	assert.Equal(t, 1, snap.Wallet.Daily.Current, "regained levels pay no extra slot")
	assert.Len(t, snap.Rewards, 1)
}

func TestDeleteMilestoneEntryKeepsCompletion(t *testing.T) {
	rules := DefaultRules()
	rules.StreakMilestones = []int{1}
	f := openTestService(t, "2024-01-03 18:00", nil, func(o *Options) { o.Rules = &rules })
	ctx := context.Background()

	h, err := f.svc.AddHabit(ctx, "Run", dec("20"), 1)
	require.NoError(t, err)
	c, err := f.svc.CompleteHabit(ctx, h.ID)
	require.NoError(t, err)
	require.NotNil(t, c.Milestone)

	rev, err := f.svc.DeleteLogEntry(ctx, c.Milestone.Entry.ID)
	require.NoError(t, err)
	assert.True(t, rev.Applied)
	assert.Nil(t, rev.Habit)

	habits := f.svc.Habits()
	require.Len(t, habits, 1)
	assert.True(t, habits[0].CompletedToday)
	assert.Equal(t, 1, habits[0].Streak)
	assert.True(t, f.svc.Status().Total.Equal(dec("20")))
}

func TestMutationStartsDueDay(t *testing.T) {
	f := openTestService(t, "2024-01-03 18:00", nil)
	ctx := context.Background()
	hook := &countingResetter{}
	f.svc.RegisterResetter(hook)

	h, err := f.svc.AddHabit(ctx, "Read", dec("10"), 1)
	require.NoError(t, err)
	c, err := f.svc.CompleteHabit(ctx, h.ID)
	require.NoError(t, err)
	require.True(t, c.Completed)

	f.clock.Set("2024-01-04 13:00")
	c, err = f.svc.CompleteHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.True(t, c.Completed)
	assert.Equal(t, 2, c.Habit.Streak)
	assert.Equal(t, 1, c.Habit.CurrentOfDay)
	assert.Equal(t, "2024-01-04", c.Award.Entry.Date)
	assert.Equal(t, 1, hook.Count())

	st := f.svc.Status()
	assert.Equal(t, "2024-01-04", st.LastLogin)
	report, err := f.svc.CheckForDailyReset(ctx)
	require.NoError(t, err)
	assert.False(t, report.Ran)
	assert.Equal(t, 1, hook.Count())
}
