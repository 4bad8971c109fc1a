package game

import (
	"context"
	"math"
)

type WaterResult struct {
	WaterML int    `json:"water_ml"`
	GoalML  int    `json:"goal_ml"`
	Award   *Award `json:"award,omitempty"`
}

// LogWater adds intake for the day. Crossing the goal pays a flat award once.
func (s *Service) LogWater(ctx context.Context, ml int) (WaterResult, error) {
	if ml <= 0 {
		return WaterResult{}, ErrInvalidAmount
	}
	var out WaterResult
	err := s.mutate(ctx, func(fx *effects) error {
		before := s.doc.Diet.WaterML
		s.doc.Diet.WaterML += ml
		fx.changed = true

		goal := s.rules.WaterGoalML
		out.WaterML, out.GoalML = s.doc.Diet.WaterML, goal
		if goal > 0 && before < goal && s.doc.Diet.WaterML >= goal {
			a := s.gainLocked(XP(s.rules.WaterGoalXP), "Water goal", GainOptions{Type: TypeDiet, ForceFlat: true}, fx)
			if a.Applied {
				out.Award = &a
			}
		}
		return nil
	})
	return out, err
}

// WeighIn records today's weight. With RequireWeighIn set, it also lifts the
// ledger gate for the day.
func (s *Service) WeighIn(ctx context.Context, kg float64) (DietState, error) {
	if kg <= 0 || math.IsNaN(kg) || math.IsInf(kg, 0) {
		return DietState{}, ErrInvalidAmount
	}
	var out DietState
	err := s.update(ctx, func() (bool, error) {
		date, _ := s.clock.GameDate()
		d := &s.doc.Diet
		switch d.LastWeighIn {
		case date:
		case previousDay(date):
			d.WeighInStreak++
		default:
			d.WeighInStreak = 1
		}
		d.LastWeighIn = date
		d.LastWeightKg = kg
		s.syncWeighInGateLocked(date)
		out = *d
		return true, nil
	})
	return out, err
}

// syncWeighInGateLocked blocks awards while the current game day has no
// weigh-in. It does nothing unless RequireWeighIn is set.
func (s *Service) syncWeighInGateLocked(gameDate string) {
	if !s.rules.RequireWeighIn {
		return
	}
	blocked := s.doc.Diet.LastWeighIn != gameDate
	if blocked != s.doc.XP.Blocked {
		s.doc.XP.Blocked = blocked
		s.log.Info("weigh-in gate", "blocked", blocked, "game_date", gameDate)
	}
}

func (s *Service) resetDietLocked(gameDate string) {
	s.doc.Diet.WaterML = 0
	s.syncWeighInGateLocked(gameDate)
}
