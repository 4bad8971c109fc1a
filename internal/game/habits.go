package game

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TypeHabit     = "habit"
	TypeMilestone = "milestone"
	TypeGym       = "gym"
	TypeDiet      = "diet"
	TypeManual    = "manual"
)

type HabitCompletion struct {
	Habit     Habit  `json:"habit"`
	Completed bool   `json:"completed"`
	Award     Award  `json:"award"`
	Milestone *Award `json:"milestone,omitempty"`
}

// revertCompletion undoes one completion step of the habit.
func (h *Habit) revertCompletion() {
	h.CurrentOfDay = max(h.CurrentOfDay-1, 0)
	h.TotalCount = max(h.TotalCount-1, 0)
	if h.CompletedToday && !h.IsComplete() {
		h.CompletedToday = false
		h.Streak = max(h.Streak-1, 0)
	}
}

func previousDay(date string) string {
	d, err := time.ParseInLocation(DateLayout, date, time.Local)
	if err != nil {
		return ""
	}
	return d.AddDate(0, 0, -1).Format(DateLayout)
}

func (s *Service) AddHabit(ctx context.Context, name string, baseXP decimal.Decimal, target int) (Habit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Habit{}, fmt.Errorf("habit name is required")
	}
	if baseXP.IsNegative() {
		return Habit{}, ErrInvalidAmount
	}
	if target < 1 {
		target = 1
	}
	h := Habit{
		ID:     uuid.NewString(),
		Name:   name,
		BaseXP: Round1(baseXP),
		Target: target,
	}
	err := s.update(ctx, func() (bool, error) {
		s.doc.Habits = append(s.doc.Habits, h)
		return true, nil
	})
	return h, err
}

func (s *Service) Habits() []Habit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Habit(nil), s.doc.Habits...)
}

// CompleteHabit records one repetition and awards its XP with the current
// streak. Reaching the daily target advances the streak; hitting a streak
// milestone adds a flat bonus award linked to this completion, so undoing
// the completion takes the bonus back too.
func (s *Service) CompleteHabit(ctx context.Context, id string) (HabitCompletion, error) {
	var out HabitCompletion
	err := s.mutate(ctx, func(fx *effects) error {
		h := s.doc.FindHabitByID(id)
		if h == nil {
			return ErrHabitNotFound
		}
		date, _ := s.clock.GameDate()

		h.CurrentOfDay++
		h.TotalCount++
		if !h.CompletedToday && h.IsComplete() {
			h.CompletedToday = true
			if h.LastCompletedDate == date || h.LastCompletedDate == previousDay(date) {
				h.Streak++
			} else {
				h.Streak = 1
			}
			h.LastCompletedDate = date
			out.Completed = true
		}
		fx.changed = true

		out.Award = s.gainLocked(h.BaseXP, h.Name, GainOptions{Streak: h.Streak, HabitID: h.ID, Type: TypeHabit}, fx)
		if out.Completed && out.Award.Applied && s.rules.IsMilestone(h.Streak) {
			m := s.gainLocked(XP(s.rules.MilestoneXP), fmt.Sprintf("%s: %d-day streak", h.Name, h.Streak), GainOptions{
				Streak:      h.Streak,
				HabitID:     h.ID,
				Type:        TypeMilestone,
				IsMilestone: true,
				ParentID:    out.Award.Entry.ID,
			}, fx)
			if m.Applied {
				out.Milestone = &m
			}
		}
		out.Habit = *h
		return nil
	})
	return out, err
}

func (s *Service) resetHabitsLocked() {
	for i := range s.doc.Habits {
		h := &s.doc.Habits[i]
		if !h.CompletedToday {
			h.Streak = 0
		}
		h.CurrentOfDay = 0
		h.CompletedToday = false
	}
}
