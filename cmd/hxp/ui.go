package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"habitxp/internal/game"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
	gold        = color.New(color.FgHiYellow, color.Bold)
	crystal     = color.New(color.FgHiCyan, color.Bold)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

// promptDecider asks on stdin. It implements game.Decider.
type promptDecider struct{}

func (promptDecider) Confirm(_ context.Context, prompt string) (bool, error) {
	choice, err := promptChoice(prompt, []string{"y", "n"}, "n")
	if err != nil {
		return false, err
	}
	return choice == "y", nil
}

// cliNotifier prints award feedback as it happens. It implements game.Notifier.
type cliNotifier struct {
	out io.Writer
}

func (n cliNotifier) OnAward(_ context.Context, amount decimal.Decimal, tier game.LuckTier) {
	text := signedXP(amount) + " XP"
	switch tier {
	case game.LuckTriple:
		crystal.Fprintf(n.out, "%s  LUCKY x3!\n", text)
	case game.LuckDouble:
		gold.Fprintf(n.out, "%s  lucky x2\n", text)
	default:
		if amount.IsNegative() {
			danger.Fprintln(n.out, text)
		} else {
			success.Fprintln(n.out, text)
		}
	}
}

func (n cliNotifier) OnLevelUp(_ context.Context, level int) {
	gold.Fprintf(n.out, "LEVEL UP! You reached level %d\n", level)
}

func (n cliNotifier) OnLevelDown(_ context.Context, level int) {
	warn.Fprintf(n.out, "Level down: back to level %d\n", level)
}

// bellSounds rings the terminal bell for level changes when stdout is a TTY.
type bellSounds struct {
	out io.Writer
	tty bool
}

func newBellSounds(out *os.File) bellSounds {
	return bellSounds{out: out, tty: term.IsTerminal(int(out.Fd()))}
}

func (b bellSounds) Play(_ context.Context, kind game.SoundKind) {
	if !b.tty {
		return
	}
	switch kind {
	case game.SoundLevelUp, game.SoundLevelDown, game.SoundLuck:
		fmt.Fprint(b.out, "\a")
	}
}

func renderStatus(st game.Status) {
	accent.Printf("\n== LEVEL %d ==\n", st.Level)
	fmt.Printf("XP:           %s / %s  %s\n", st.Current.StringFixed(1), st.Needed.String(), xpBar(st.Current, st.Needed, 24))
	fmt.Printf("Lifetime XP:  %s\n", st.Total.StringFixed(1))
	fmt.Printf("Game day:     %s\n", st.GameDate)
	fmt.Printf("Daily slots:  %d (%d/%d gained today)\n", st.Daily.Current, st.Daily.GainedToday, st.Daily.Max)
	fmt.Printf("Weekend:      %d/%d\n", st.Weekend.Current, st.Weekend.Max)
	fmt.Printf("Crystals:     %s\n", crystal.Sprint(st.Crystals))
	if st.Blocked {
		printWarn("XP gains are blocked.")
	}
	if st.SafeMode {
		printError("Safe mode: saved state could not be read, changes are not written.")
	}
	fmt.Println()
}

func renderAward(a game.Award) {
	if !a.Applied {
		printWarn("XP is blocked; nothing was awarded.")
		return
	}
	e := a.Entry
	detail := fmt.Sprintf("%s: base %s", e.Source, e.BaseXP.StringFixed(1))
	if a.Bonus.IsPositive() {
		detail += fmt.Sprintf(" + streak %s", a.Bonus.StringFixed(1))
	}
	if a.Tier > game.LuckNone {
		detail += " " + a.Tier.String()
	}
	printInfo(detail)
	for _, s := range a.Slots {
		fmt.Printf("  %s\n", s.Message)
	}
}

func renderLog(groups []game.LogGroup) {
	accent.Println("\n== LOG ==")
	if len(groups) == 0 {
		printInfo("No habit activity yet.")
		return
	}
	fmt.Printf("%-4s %-10s %-5s %-24s %5s %9s %6s\n", "#", "DATE", "TIME", "SOURCE", "COUNT", "XP", "LUCK")
	for i, g := range groups {
		luck := ""
		if g.Luck2 > 0 {
			luck += gold.Sprintf("x2:%d ", g.Luck2)
		}
		if g.Luck3 > 0 {
			luck += crystal.Sprintf("x3:%d", g.Luck3)
		}
		fmt.Printf("%-4d %-10s %-5s %-24s %5d %9s %s\n", i, g.Date, g.Time, truncate(g.Source, 24), g.Count, signedXP(g.Amount), luck)
	}
	fmt.Println()
}

func renderRawLog(entries []game.LogEntry) {
	accent.Println("\n== RAW LOG ==")
	if len(entries) == 0 {
		printInfo("History is empty.")
		return
	}
	fmt.Printf("%-36s %-10s %-5s %-24s %9s %7s\n", "ID", "DATE", "TIME", "SOURCE", "XP", "STREAK")
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Printf("%-36s %-10s %-5s %-24s %9s %7d\n", e.ID, e.Date, e.Time, truncate(e.Source, 24), signedXP(e.Amount), e.Streak)
	}
	fmt.Println()
}

func renderCategories(cats []game.CategoryView) {
	accent.Println("\n== LIMITS ==")
	if len(cats) == 0 {
		printInfo("No categories.")
		return
	}
	fmt.Printf("%-16s %-24s %6s\n", "KEY", "LABEL", "USED")
	for _, c := range cats {
		used := fmt.Sprintf("%d/%d", c.Used, c.Limit)
		if c.Used >= c.Limit {
			used = danger.Sprint(used)
		} else {
			used = success.Sprint(used)
		}
		fmt.Printf("%-16s %-24s %6s\n", c.Key, truncate(c.Label, 24), used)
	}
	fmt.Println()
}

func renderRewards(entries []game.RewardEntry) {
	accent.Println("\n== REWARDS ==")
	if len(entries) == 0 {
		printInfo("No wallet activity yet.")
		return
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		kind := success.Sprint("+")
		if e.Type == game.RewardConsume {
			kind = danger.Sprint("-")
		}
		fmt.Printf("%s %s %-24s %s\n", e.Date, kind, truncate(e.Name, 24), e.Detail)
	}
	fmt.Println()
}

func renderHabits(habits []game.Habit) {
	accent.Println("\n== HABITS ==")
	if len(habits) == 0 {
		printInfo("No habits yet. Add one with `hxp habit add`.")
		return
	}
	fmt.Printf("%-8s %-24s %6s %8s %7s %6s\n", "ID", "NAME", "XP", "TODAY", "STREAK", "TOTAL")
	for _, h := range habits {
		today := fmt.Sprintf("%d/%d", h.CurrentOfDay, max(h.Target, 1))
		if h.CompletedToday {
			today = success.Sprint(today)
		}
		fmt.Printf("%-8s %-24s %6s %8s %7d %6d\n", shortID(h.ID), truncate(h.Name, 24), h.BaseXP.StringFixed(1), today, h.Streak, h.TotalCount)
	}
	fmt.Println()
}

func xpBar(current, needed decimal.Decimal, width int) string {
	if !needed.IsPositive() || width <= 0 {
		return ""
	}
	ratio, _ := current.Div(needed).Float64()
	filled := int(ratio * float64(width))
	filled = min(max(filled, 0), width)
	return "[" + success.Sprint(strings.Repeat("#", filled)) + strings.Repeat(".", width-filled) + "]"
}

func signedXP(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(1)
	}
	return d.StringFixed(1)
}

func parseXP(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, game.ErrInvalidAmount
	}
	return d, nil
}

func parseLimit(s string) (string, int, error) {
	key, val, ok := strings.Cut(s, "=")
	if !ok {
		return "", 0, fmt.Errorf("expected key=limit, got %q", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return "", 0, fmt.Errorf("limit for %s must be a whole number", key)
	}
	return strings.TrimSpace(key), n, nil
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
