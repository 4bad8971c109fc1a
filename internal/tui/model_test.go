package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitxp/internal/game"
)

type fakeService struct {
	groups   []game.LogGroup
	undone   []int
	turned   int
	resets   int
	lastDecd game.Decider
}

func (f *fakeService) Status() game.Status {
	return game.Status{Level: 2, Current: decimal.NewFromInt(50), Needed: decimal.NewFromInt(200), GameDate: "2024-01-03"}
}

func (f *fakeService) ConsolidatedView() []game.LogGroup { return f.groups }

func (f *fakeService) Categories() []game.CategoryView {
	return []game.CategoryView{{Key: "games", Category: game.Category{Label: "Video games", Used: 2, Limit: 2}}}
}

func (f *fakeService) DeleteLog(_ context.Context, i int) (game.Reversal, error) {
	f.undone = append(f.undone, i)
	return game.Reversal{Applied: true, Entry: game.LogEntry{Source: "Read", Amount: decimal.NewFromInt(5)}, Levels: game.LevelChange{From: 2, To: 2}}, nil
}

func (f *fakeService) TurnDayManual(_ context.Context, d game.Decider) (game.ResetReport, error) {
	f.turned++
	f.lastDecd = d
	return game.ResetReport{GameDate: "2024-01-04", Ran: true}, nil
}

func (f *fakeService) CheckForDailyReset(context.Context) (game.ResetReport, error) {
	f.resets++
	return game.ResetReport{GameDate: "2024-01-03"}, nil
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, svc *fakeService) boardModel {
	t.Helper()
	m := newBoardModel(context.Background(), svc)
	next, _ := m.Update(m.loadCmd()())
	return next.(boardModel)
}

func TestBoardLoadsAndRenders(t *testing.T) {
	svc := &fakeService{groups: []game.LogGroup{
		{Date: "2024-01-03", Time: "10:00", Source: "Read", Count: 2, Amount: decimal.NewFromInt(10), Luck2: 1},
		{Date: "2024-01-02", Time: "09:00", Source: "Walk", Count: 1, Amount: decimal.NewFromInt(3)},
	}}
	m := loaded(t, svc)

	assert.Equal(t, 1, svc.resets)
	view := m.View()
	assert.Contains(t, view, "Level 2")
	assert.Contains(t, view, "Read")
	assert.Contains(t, view, "Walk")
	assert.Contains(t, view, "Video games")
}

func TestBoardUndoSelectedRow(t *testing.T) {
	svc := &fakeService{groups: []game.LogGroup{{Source: "Read"}, {Source: "Walk"}}}
	m := loaded(t, svc)

	next, _ := m.Update(key("j"))
	m = next.(boardModel)
	next, _ = m.Update(key("j"))
	m = next.(boardModel)
	assert.Equal(t, 1, m.selected)

	next, cmd := m.Update(key("u"))
	m = next.(boardModel)
	require.NotNil(t, cmd)
	next, _ = m.Update(cmd())
	m = next.(boardModel)

	assert.Equal(t, []int{1}, svc.undone)
	assert.True(t, strings.HasPrefix(m.lastLog, "Undid Read"))
}

func TestBoardTurnDayNeedsConfirmation(t *testing.T) {
	svc := &fakeService{}
	m := loaded(t, svc)

	next, _ := m.Update(key("t"))
	m = next.(boardModel)
	assert.True(t, m.confirmingTurn)
	next, cmd := m.Update(key("n"))
	m = next.(boardModel)
	assert.Nil(t, cmd)
	assert.Equal(t, 0, svc.turned)

	next, _ = m.Update(key("t"))
	m = next.(boardModel)
	next, cmd = m.Update(key("y"))
	m = next.(boardModel)
	require.NotNil(t, cmd)
	next, _ = m.Update(cmd())
	m = next.(boardModel)

	assert.Equal(t, 1, svc.turned)
	assert.Equal(t, "Day turned to 2024-01-04.", m.lastLog)
	ok, err := svc.lastDecd.Confirm(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, ok)
}
