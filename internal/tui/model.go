package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"habitxp/internal/game"
	"habitxp/internal/ui"
)

type boardModel struct {
	ctx context.Context
	svc Service

	width  int
	height int

	status     game.Status
	groups     []game.LogGroup
	categories []game.CategoryView
	bar        progress.Model

	selected       int
	confirmingTurn bool

	lastLog string
	loading bool
	err     error
}

type loadedMsg struct {
	status     game.Status
	groups     []game.LogGroup
	categories []game.CategoryView
	err        error
}

type undoneMsg struct {
	rev game.Reversal
	err error
}

type turnedMsg struct {
	report game.ResetReport
	err    error
}

// confirmed is the decider for a turn the user already approved on the board.
type confirmed struct{}

func (confirmed) Confirm(context.Context, string) (bool, error) { return true, nil }

func newBoardModel(ctx context.Context, svc Service) boardModel {
	return boardModel{
		ctx:     ctx,
		svc:     svc,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(30), progress.WithoutPercentage()),
		loading: true,
		lastLog: "Loaded.",
	}
}

func (m boardModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m boardModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		if _, err := m.svc.CheckForDailyReset(m.ctx); err != nil && !game.IsPersistError(err) {
			return loadedMsg{err: err}
		}
		return loadedMsg{
			status:     m.svc.Status(),
			groups:     m.svc.ConsolidatedView(),
			categories: m.svc.Categories(),
		}
	}
}

func (m boardModel) undoCmd(index int) tea.Cmd {
	return func() tea.Msg {
		rev, err := m.svc.DeleteLog(m.ctx, index)
		return undoneMsg{rev: rev, err: err}
	}
}

func (m boardModel) turnCmd() tea.Cmd {
	return func() tea.Msg {
		report, err := m.svc.TurnDayManual(m.ctx, confirmed{})
		return turnedMsg{report: report, err: err}
	}
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case loadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err != nil {
			m.lastLog = "Load failed: " + msg.err.Error()
			return m, nil
		}
		m.status = msg.status
		m.groups = msg.groups
		m.categories = msg.categories
		if m.selected >= len(m.groups) {
			m.selected = max(len(m.groups)-1, 0)
		}
		if m.lastLog == "Loaded." || strings.HasPrefix(m.lastLog, "Refresh") {
			m.lastLog = fmt.Sprintf("Refreshed at %s.", time.Now().Format("15:04:05"))
		}
		return m, nil
	case undoneMsg:
		switch {
		case msg.err != nil && !game.IsPersistError(msg.err):
			m.lastLog = "Undo failed: " + msg.err.Error()
			return m, nil
		case !msg.rev.Applied:
			m.lastLog = "Nothing to undo there."
		default:
			m.lastLog = fmt.Sprintf("Undid %s %s XP (level %d)", msg.rev.Entry.Source, msg.rev.Amount().Neg().String(), msg.rev.Levels.To)
		}
		if msg.err != nil {
			m.lastLog += " [not saved: " + msg.err.Error() + "]"
		}
		return m, m.loadCmd()
	case turnedMsg:
		if msg.err != nil && !game.IsPersistError(msg.err) {
			m.lastLog = "Turn failed: " + msg.err.Error()
			return m, nil
		}
		if msg.report.Ran {
			m.lastLog = fmt.Sprintf("Day turned to %s.", msg.report.GameDate)
		} else {
			m.lastLog = fmt.Sprintf("Already on %s.", msg.report.GameDate)
		}
		return m, m.loadCmd()
	case tea.KeyMsg:
		if m.confirmingTurn {
			m.confirmingTurn = false
			switch msg.String() {
			case "y", "Y":
				m.lastLog = "Turning the day…"
				return m, m.turnCmd()
			default:
				m.lastLog = "Turn cancelled."
				return m, nil
			}
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.loading = true
			m.lastLog = "Refreshing…"
			return m, m.loadCmd()
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down", "j":
			if m.selected < len(m.groups)-1 {
				m.selected++
			}
			return m, nil
		case "u", "backspace":
			if len(m.groups) == 0 {
				m.lastLog = "Log is empty."
				return m, nil
			}
			return m, m.undoCmd(m.selected)
		case "t":
			m.confirmingTurn = true
			m.lastLog = "Turn the day now? Daily pools and limits reset. (y/n)"
			return m, nil
		}
	}
	return m, nil
}

func (m boardModel) View() string {
	if m.err != nil {
		return "Error: " + m.err.Error() + "\n\nPress q to quit.\n"
	}
	if m.loading && len(m.groups) == 0 && m.status.Level == 0 {
		return "hxp: loading...\n"
	}

	left := lipgloss.JoinVertical(lipgloss.Left, m.renderWallet(), "", m.renderKeys())
	body := lipgloss.JoinHorizontal(lipgloss.Top, ui.Panel.Render(left), "  ", ui.Panel.Render(m.renderLog()))
	return m.renderHeader() + "\n" + body + "\n" + m.renderFooter()
}

func (m boardModel) renderHeader() string {
	st := m.status
	pct := 0.0
	if st.Needed.IsPositive() {
		pct, _ = st.Current.Div(st.Needed).Float64()
	}
	line := fmt.Sprintf("%s | Level %d | %s/%s XP %s | day %s",
		ui.Title.Render("hxp"),
		st.Level,
		st.Current.StringFixed(1),
		st.Needed.String(),
		m.bar.ViewAs(pct),
		st.GameDate,
	)
	if st.Blocked {
		line += " " + ui.Bad.Render("BLOCKED")
	}
	if st.SafeMode {
		line += " " + ui.Warn.Render("SAFE MODE")
	}
	return line
}

func (m boardModel) renderWallet() string {
	st := m.status
	lines := []string{
		ui.H2.Render("Wallet"),
		ui.LabelValue("Daily", fmt.Sprintf("%d (%d/%d gained)", st.Daily.Current, st.Daily.GainedToday, st.Daily.Max)),
		ui.LabelValue("Weekend", fmt.Sprintf("%d/%d", st.Weekend.Current, st.Weekend.Max)),
		ui.LabelValue("Crystals", ui.Crystal.Render(fmt.Sprint(st.Crystals))),
		"",
		ui.H2.Render("Limits"),
	}
	if len(m.categories) == 0 {
		lines = append(lines, ui.Muted.Render("(none)"))
	}
	for _, c := range m.categories {
		style := ui.Good
		if c.Used >= c.Limit {
			style = ui.Bad
		}
		lines = append(lines, fmt.Sprintf("%-16s %s", truncate(c.Label, 16), style.Render(fmt.Sprintf("%d/%d", c.Used, c.Limit))))
	}
	return strings.Join(lines, "\n")
}

func (m boardModel) renderKeys() string {
	return strings.Join([]string{
		ui.H2.Render("Keys"),
		"j/k  move",
		"u    undo last of row",
		"t    turn the day",
		"r    refresh",
		"q    quit",
	}, "\n")
}

func (m boardModel) renderLog() string {
	out := []string{ui.H2.Render("Log")}
	if len(m.groups) == 0 {
		out = append(out, ui.Muted.Render("(no habit activity yet)"))
		return strings.Join(out, "\n")
	}
	rows := m.visibleRows()
	for _, i := range rows {
		g := m.groups[i]
		row := fmt.Sprintf("%s %s %-20s x%-2d %7s %s",
			g.Date,
			g.Time,
			truncate(g.Source, 20),
			g.Count,
			"+"+g.Amount.StringFixed(1),
			ui.Luck(g.Luck2, g.Luck3),
		)
		if i == m.selected {
			row = ui.SelectedRow.Render("> " + row)
		} else {
			row = "  " + row
		}
		out = append(out, row)
	}
	return strings.Join(out, "\n")
}

// visibleRows keeps the selection inside a window sized to the terminal.
func (m boardModel) visibleRows() []int {
	limit := len(m.groups)
	if m.height > 8 && m.height-8 < limit {
		limit = m.height - 8
	}
	start := 0
	if m.selected >= limit {
		start = m.selected - limit + 1
	}
	rows := make([]int, 0, limit)
	for i := start; i < start+limit && i < len(m.groups); i++ {
		rows = append(rows, i)
	}
	return rows
}

func (m boardModel) renderFooter() string {
	return "\n" + m.lastLog
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
