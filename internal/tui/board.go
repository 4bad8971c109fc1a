package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"habitxp/internal/game"
)

// Service is the part of game.Service the board drives.
type Service interface {
	Status() game.Status
	ConsolidatedView() []game.LogGroup
	Categories() []game.CategoryView
	DeleteLog(ctx context.Context, groupIndex int) (game.Reversal, error)
	TurnDayManual(ctx context.Context, d game.Decider) (game.ResetReport, error)
	CheckForDailyReset(ctx context.Context) (game.ResetReport, error)
}

func RunBoard(ctx context.Context, svc Service, out io.Writer) error {
	m := newBoardModel(ctx, svc)
	p := tea.NewProgram(m, tea.WithOutput(out), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
