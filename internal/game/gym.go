package game

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type WorkoutResult struct {
	Seconds int64 `json:"seconds"`
	Award   Award `json:"award"`
}

// DurationXP converts elapsed workout seconds into XP at DurationRate per
// minute.
func (r Rules) DurationXP(seconds int64) decimal.Decimal {
	if seconds <= 0 {
		return decimal.Zero
	}
	minutes := decimal.NewFromInt(seconds).Div(decimal.NewFromInt(60))
	return Round1(minutes.Mul(decimal.NewFromFloat(r.DurationRate)))
}

// DistanceXP is a saturating curve plus a linear term.
func (r Rules) DistanceXP(km float64) decimal.Decimal {
	if km <= 0 || math.IsNaN(km) || math.IsInf(km, 0) {
		return decimal.Zero
	}
	v := r.DistanceScale*(1-math.Exp(-km/r.DistanceKnee)) + r.DistanceLinear*km
	return XP(v)
}

func (s *Service) StartWorkout(ctx context.Context) (time.Time, error) {
	var started time.Time
	err := s.update(ctx, func() (bool, error) {
		if s.doc.Gym.TimerStartedAt != nil {
			return false, ErrTimerRunning
		}
		started = s.now()
		s.doc.Gym.TimerStartedAt = &started
		return true, nil
	})
	return started, err
}

// StopWorkout stops the timer and turns the elapsed time into one award.
func (s *Service) StopWorkout(ctx context.Context, label string) (WorkoutResult, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "Workout"
	}
	var out WorkoutResult
	err := s.mutate(ctx, func(fx *effects) error {
		started := s.doc.Gym.TimerStartedAt
		if started == nil {
			return ErrTimerNotRunning
		}
		secs := max(int64(s.now().Sub(*started)/time.Second), 0)
		s.doc.Gym.TimerStartedAt = nil
		s.doc.Gym.SetsToday++
		s.doc.Gym.TotalSeconds += secs
		fx.changed = true

		out.Seconds = secs
		out.Award = s.gainLocked(s.rules.DurationXP(secs), label, GainOptions{Type: TypeGym}, fx)
		return nil
	})
	return out, err
}

func (s *Service) LogDistance(ctx context.Context, km float64, label string) (Award, error) {
	if km <= 0 || math.IsNaN(km) || math.IsInf(km, 0) {
		return Award{}, ErrInvalidAmount
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = "Run"
	}
	var award Award
	err := s.mutate(ctx, func(fx *effects) error {
		s.doc.Gym.TotalKm += km
		fx.changed = true
		award = s.gainLocked(s.rules.DistanceXP(km), label, GainOptions{Type: TypeGym}, fx)
		return nil
	})
	return award, err
}

func (s *Service) resetGymLocked() {
	s.doc.Gym.SetsToday = 0
}
