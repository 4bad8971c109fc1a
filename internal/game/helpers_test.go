package game

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"habitxp/internal/store"
)

type fixedRoll float64

func (f fixedRoll) Float64() float64 { return float64(f) }

// seqRoll returns its values in order, then repeats the last one.
type seqRoll struct {
	mu   sync.Mutex
	vals []float64
}

func (r *seqRoll) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.vals[0]
	if len(r.vals) > 1 {
		r.vals = r.vals[1:]
	}
	return v
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(layout string) *testClock {
	t, err := time.ParseInLocation("2006-01-02 15:04", layout, time.Local)
	if err != nil {
		panic(err)
	}
	return &testClock{t: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(layout string) {
	t, err := time.ParseInLocation("2006-01-02 15:04", layout, time.Local)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// memBackend is an in-memory store.Backend.
type memBackend struct {
	mu      sync.Mutex
	body    []byte
	saves   int
	saveErr error
	loadErr error
}

func (m *memBackend) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.body == nil {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), m.body...), nil
}

func (m *memBackend) Save(_ context.Context, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.body = append([]byte(nil), doc...)
	m.saves++
	return nil
}

func (m *memBackend) Close() error { return nil }

func (m *memBackend) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type recordingNotifier struct {
	mu     sync.Mutex
	awards []decimal.Decimal
	ups    []int
	downs  []int
}

func (n *recordingNotifier) OnAward(_ context.Context, amount decimal.Decimal, _ LuckTier) {
	n.mu.Lock()
	n.awards = append(n.awards, amount)
	n.mu.Unlock()
}

func (n *recordingNotifier) OnLevelUp(_ context.Context, level int) {
	n.mu.Lock()
	n.ups = append(n.ups, level)
	n.mu.Unlock()
}

func (n *recordingNotifier) OnLevelDown(_ context.Context, level int) {
	n.mu.Lock()
	n.downs = append(n.downs, level)
	n.mu.Unlock()
}

type countingResetter struct {
	mu sync.Mutex
	n  int
}

func (r *countingResetter) ResetDailyState() {
	r.mu.Lock()
	r.n++
	r.mu.Unlock()
}

func (r *countingResetter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

type cannedDecider struct {
	answer bool
	asked  int
}

func (d *cannedDecider) Confirm(context.Context, string) (bool, error) {
	d.asked++
	return d.answer, nil
}
