package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"habitxp/internal/config"
	"habitxp/internal/game"
	"habitxp/internal/store"
	"habitxp/internal/tui"
)

const commandTimeout = 30 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	root := &cobra.Command{
		Use:          "hxp",
		Short:        "HabitXP: level up by keeping your habits",
		SilenceUsage: true,
	}

	root.AddCommand(
		newStatusCmd(),
		newGainCmd(),
		newLogCmd(),
		newUndoCmd(),
		newWalletCmd(),
		newDayCmd(),
		newHabitCmd(),
		newGymCmd(),
		newDietCmd(),
		newRewardsCmd(),
		newBlockCmd(),
		newBoardCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// openService wires config, storage and the game service for one command.
// A save failure during open is reported but does not stop the command.
func openService(ctx context.Context) (*game.Service, error) {
	cfg, err := config.LoadCLIFromEnv()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	rules, err := config.LoadRules(cfg.BalanceFile)
	if err != nil {
		printWarn(fmt.Sprintf("Using default balance: %v", err))
	}

	backend, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	svc, err := game.Open(ctx, backend, game.Options{
		Rules:    &rules,
		Logger:   logger,
		Notifier: cliNotifier{out: os.Stdout},
		Sounds:   newBellSounds(os.Stdout),
	})
	if err != nil {
		if svc == nil {
			_ = backend.Close()
			return nil, err
		}
		warnPersist(err)
	}
	if err := svc.SafeMode(); err != nil {
		printError(fmt.Sprintf("Safe mode: %v", err))
	}
	return svc, nil
}

// withService runs fn against an open service and closes it afterwards.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *game.Service) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	svc, err := openService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()
	return warnPersist(fn(ctx, svc))
}

// warnPersist downgrades save failures to a warning: the change is already
// applied in memory and the command itself succeeded.
func warnPersist(err error) error {
	if err == nil {
		return nil
	}
	if game.IsPersistError(err) {
		printWarn(fmt.Sprintf("Warning: progress not saved: %v", err))
		return nil
	}
	return err
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show level, XP and wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				renderStatus(svc.Status())
				return nil
			})
		},
	}
}

func newGainCmd() *cobra.Command {
	var (
		streak    int
		habitID   string
		flat      bool
		milestone bool
	)
	cmd := &cobra.Command{
		Use:   "gain <amount> <source...>",
		Short: "Award XP (negative amounts are penalties)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseXP(args[0])
			if err != nil {
				return err
			}
			source := strings.Join(args[1:], " ")
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				award, err := svc.GainXP(ctx, amount, source, game.GainOptions{
					Streak:      streak,
					HabitID:     habitID,
					Type:        game.TypeManual,
					ForceFlat:   flat,
					IsMilestone: milestone,
				})
				if award.Applied || err == nil {
					renderAward(award)
				}
				return err
			})
		},
	}
	cmd.Flags().IntVar(&streak, "streak", 0, "streak length for the streak bonus")
	cmd.Flags().StringVar(&habitID, "habit", "", "habit id to link the entry to")
	cmd.Flags().BoolVar(&flat, "flat", false, "skip streak and luck multipliers")
	cmd.Flags().BoolVar(&milestone, "milestone", false, "award as a milestone (flat)")
	return cmd
}

func newLogCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the XP log, grouped by day and habit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				if raw {
					renderRawLog(svc.Snapshot().XP.History)
					return nil
				}
				renderLog(svc.ConsolidatedView())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "show individual entries with their ids")
	return cmd
}

func newUndoCmd() *cobra.Command {
	var entryID string
	cmd := &cobra.Command{
		Use:   "undo [group-index]",
		Short: "Undo the most recent entry of a log group (default: newest group)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index := 0
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 0 {
					return fmt.Errorf("group index must be a non-negative integer")
				}
				index = n
			}
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				var (
					rev game.Reversal
					err error
				)
				if strings.TrimSpace(entryID) != "" {
					rev, err = svc.DeleteLogEntry(ctx, strings.TrimSpace(entryID))
				} else {
					rev, err = svc.DeleteLog(ctx, index)
				}
				if !rev.Applied {
					if err == nil {
						printWarn("Nothing to undo there.")
					}
					return err
				}
				printSuccess(fmt.Sprintf("Undid %s %s XP. Now level %d.", rev.Entry.Source, signedXP(rev.Amount().Neg()), rev.Levels.To))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&entryID, "id", "", "undo one raw entry by id (see `hxp log --raw`)")
	return cmd
}

func newWalletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Show and manage reward slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				renderStatus(svc.Status())
				renderCategories(svc.Categories())
				return nil
			})
		},
	}
	cmd.AddCommand(
		newWalletAddCmd(),
		newWalletConsumeCmd(),
		newWalletCategoriesCmd(),
		newWalletCategoryCmd(),
		newWalletLimitsCmd(),
	)
	return cmd
}

func newWalletAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [origin...]",
		Short: "Credit one reward slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			origin := strings.Join(args, " ")
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				res, err := svc.AddSlotToWallet(ctx, origin)
				if res.Message != "" {
					printSuccess(res.Message)
				}
				return err
			})
		},
	}
}

func newWalletConsumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume <category>",
		Short: "Spend one slot on a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				res, err := svc.ConsumeSlot(ctx, strings.ToLower(strings.TrimSpace(args[0])))
				switch {
				case errors.Is(err, game.ErrLimitReached):
					printError("Limit reached for " + args[0] + " today.")
					return nil
				case errors.Is(err, game.ErrInsufficientSlots):
					printError("No slots left in the current pool.")
					return nil
				case res.Key == "":
					return err
				}
				printSuccess(fmt.Sprintf("Enjoy %s. %d %s slot(s) left, %d/%d used today.", res.Label, res.Remaining, res.Pool, res.Used, res.Limit))
				return err
			})
		},
	}
}

func newWalletCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List consumption categories and today's usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				renderCategories(svc.Categories())
				return nil
			})
		},
	}
}

func newWalletCategoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage consumption categories",
	}
	var (
		key   string
		limit int
	)
	add := &cobra.Command{
		Use:   "add <label...>",
		Short: "Create or relabel a category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label := strings.Join(args, " ")
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				created, err := svc.AddCategory(ctx, key, label, limit)
				if created == "" {
					return err
				}
				printSuccess(fmt.Sprintf("Category %s (%s) limit %d.", created, label, limit))
				return err
			})
		},
	}
	add.Flags().StringVar(&key, "key", "", "category key (derived from the label when empty)")
	add.Flags().IntVar(&limit, "limit", 1, "uses allowed per day")
	cmd.AddCommand(add)
	return cmd
}

func newWalletLimitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "limits <key=limit>...",
		Short: "Set daily limits for several categories at once",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limits := make(map[string]int, len(args))
			for _, arg := range args {
				key, n, err := parseLimit(arg)
				if err != nil {
					return err
				}
				limits[key] = n
			}
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				if err := svc.SetCategoryLimits(ctx, limits); err != nil {
					return err
				}
				printSuccess("Limits updated.")
				return nil
			})
		},
	}
}

func newDayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "day",
		Short: "Show the current game day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				date, err := svc.GameDate(ctx)
				printInfo("Game day: " + date)
				return err
			})
		},
	}

	var yes bool
	turn := &cobra.Command{
		Use:   "turn",
		Short: "Start a new game day now, ignoring the grace hour",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				var d game.Decider = promptDecider{}
				if yes {
					d = nil
				}
				report, err := svc.TurnDayManual(ctx, d)
				if errors.Is(err, game.ErrDeclined) {
					printInfo("Cancelled.")
					return nil
				}
				if err != nil && !game.IsPersistError(err) {
					return err
				}
				renderReset(report)
				return err
			})
		},
	}
	turn.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation")

	check := &cobra.Command{
		Use:   "check",
		Short: "Run the daily reset if it is due",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				report, err := svc.CheckForDailyReset(ctx)
				renderReset(report)
				return err
			})
		},
	}

	cmd.AddCommand(turn, check)
	return cmd
}

func renderReset(r game.ResetReport) {
	if !r.Ran {
		printInfo("Game day " + r.GameDate + " already started.")
		return
	}
	printSuccess("New game day: " + r.GameDate)
	ro := r.Rollover
	if ro.Transferred > 0 {
		printInfo(fmt.Sprintf("Monday: %d weekend slot(s) moved to daily.", ro.Transferred))
	}
	if ro.Overflowed > 0 {
		printInfo(fmt.Sprintf("%d unused daily slot(s) moved to weekend.", ro.Overflowed))
	}
	if ro.Converted > 0 {
		printInfo(fmt.Sprintf("%d crystal(s) formed from weekend overflow.", ro.Converted))
	}
}

func newHabitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "habit",
		Short: "Track habits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				renderHabits(svc.Habits())
				return nil
			})
		},
	}

	var (
		xp     string
		target int
	)
	add := &cobra.Command{
		Use:   "add [name...]",
		Short: "Add a habit",
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			if strings.TrimSpace(name) == "" {
				var err error
				if name, err = promptRequired("Habit name"); err != nil {
					return err
				}
			}
			base, err := parseXP(xp)
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				h, err := svc.AddHabit(ctx, name, base, target)
				if h.ID == "" {
					return err
				}
				printSuccess(fmt.Sprintf("Added %s (%s XP, %dx per day) as %s.", h.Name, h.BaseXP.StringFixed(1), h.Target, shortID(h.ID)))
				return err
			})
		},
	}
	add.Flags().StringVar(&xp, "xp", "10", "base XP per completion")
	add.Flags().IntVar(&target, "target", 1, "completions per day")

	done := &cobra.Command{
		Use:   "done <id|name>",
		Short: "Record one completion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := strings.Join(args, " ")
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				id, err := resolveHabit(svc.Habits(), ref)
				if err != nil {
					return err
				}
				res, err := svc.CompleteHabit(ctx, id)
				if res.Habit.ID == "" {
					return err
				}
				h := res.Habit
				printInfo(fmt.Sprintf("%s: %d/%d today, streak %d.", h.Name, h.CurrentOfDay, max(h.Target, 1), h.Streak))
				renderAward(res.Award)
				if res.Milestone != nil {
					gold.Printf("Milestone! %d-day streak.\n", h.Streak)
				}
				return err
			})
		},
	}

	cmd.AddCommand(add, done)
	return cmd
}

// resolveHabit matches a full id, an id prefix or a case-insensitive name.
func resolveHabit(habits []game.Habit, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	var match string
	for _, h := range habits {
		if h.ID == ref || strings.EqualFold(h.Name, ref) {
			return h.ID, nil
		}
		if len(ref) >= 4 && strings.HasPrefix(h.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("habit %q is ambiguous", ref)
			}
			match = h.ID
		}
	}
	if match == "" {
		return "", game.ErrHabitNotFound
	}
	return match, nil
}

func newGymCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gym",
		Short: "Workout timer and distance log",
	}
	start := &cobra.Command{
		Use:   "start",
		Short: "Start the workout timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				at, err := svc.StartWorkout(ctx)
				if errors.Is(err, game.ErrTimerRunning) {
					printWarn("A workout is already running.")
					return nil
				}
				if at.IsZero() {
					return err
				}
				printSuccess("Workout started at " + at.Format("15:04") + ".")
				return err
			})
		},
	}
	stop := &cobra.Command{
		Use:   "stop [label...]",
		Short: "Stop the timer and collect XP for the elapsed time",
		RunE: func(cmd *cobra.Command, args []string) error {
			label := strings.Join(args, " ")
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				res, err := svc.StopWorkout(ctx, label)
				if errors.Is(err, game.ErrTimerNotRunning) {
					printWarn("No workout is running. Start one with `hxp gym start`.")
					return nil
				}
				if res.Seconds == 0 && !res.Award.Applied {
					return err
				}
				printInfo(fmt.Sprintf("Workout: %s.", (time.Duration(res.Seconds) * time.Second).String()))
				renderAward(res.Award)
				return err
			})
		},
	}
	distance := &cobra.Command{
		Use:   "distance <km> [label...]",
		Short: "Log a run or ride by distance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			km, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
			if err != nil {
				return fmt.Errorf("distance must be a number of kilometers")
			}
			label := strings.Join(args[1:], " ")
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				award, err := svc.LogDistance(ctx, km, label)
				if !award.Applied && err != nil {
					return err
				}
				renderAward(award)
				return err
			})
		},
	}
	cmd.AddCommand(start, stop, distance)
	return cmd
}

func newDietCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diet",
		Short: "Water intake and weigh-ins",
	}
	water := &cobra.Command{
		Use:   "water <ml>",
		Short: "Log water intake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ml, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("water must be a whole number of milliliters")
			}
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				res, err := svc.LogWater(ctx, ml)
				if res.GoalML == 0 && err != nil {
					return err
				}
				printInfo(fmt.Sprintf("Water: %d / %d ml.", res.WaterML, res.GoalML))
				if res.Award != nil {
					renderAward(*res.Award)
				}
				return err
			})
		},
	}
	weigh := &cobra.Command{
		Use:   "weigh <kg>",
		Short: "Record today's weigh-in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kg, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
			if err != nil {
				return fmt.Errorf("weight must be a number of kilograms")
			}
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				diet, err := svc.WeighIn(ctx, kg)
				if diet.LastWeighIn == "" {
					return err
				}
				printSuccess(fmt.Sprintf("Weighed in at %.1f kg. Streak %d.", diet.LastWeightKg, diet.WeighInStreak))
				return err
			})
		},
	}
	cmd.AddCommand(water, weigh)
	return cmd
}

func newRewardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rewards",
		Short: "Show wallet history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				renderRewards(svc.Snapshot().Rewards)
				return nil
			})
		},
	}
}

func newBlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "block <on|off>",
		Short:     "Block or unblock XP gains",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var blocked bool
			switch strings.ToLower(strings.TrimSpace(args[0])) {
			case "on":
				blocked = true
			case "off":
			default:
				return fmt.Errorf("expected on or off")
			}
			return withService(cmd, func(ctx context.Context, svc *game.Service) error {
				if err := svc.SetBlocked(ctx, blocked); err != nil {
					return err
				}
				if blocked {
					printWarn("XP gains blocked.")
				} else {
					printSuccess("XP gains unblocked.")
				}
				return nil
			})
		},
	}
}

func newBoardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Interactive board: log, wallet and undo",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("board needs an interactive terminal")
			}
			svc, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()
			return tui.RunBoard(cmd.Context(), svc, os.Stdout)
		},
	}
}
