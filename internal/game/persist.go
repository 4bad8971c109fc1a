package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"habitxp/internal/store"
)

// decodeDocument merges raw over the default document: objects merge field by
// field, arrays replace, categories merge by key. On a parse error it returns
// fresh defaults, never a half-merged document.
func decodeDocument(raw []byte, rules Rules, today string) (Document, error) {
	doc := DefaultDocument(rules, today)
	if err := json.Unmarshal(raw, &doc); err != nil {
		return DefaultDocument(rules, today), err
	}
	normalizeDocument(&doc, rules, today)
	return doc, nil
}

func normalizeDocument(doc *Document, rules Rules, today string) {
	if doc.XP.History == nil {
		doc.XP.History = []LogEntry{}
	}
	if doc.Rewards == nil {
		doc.Rewards = []RewardEntry{}
	}
	if doc.Habits == nil {
		doc.Habits = []Habit{}
	}
	if doc.XP.Level < 1 {
		doc.XP.Level = 1
	}
	doc.XP.PeakLevel = max(doc.XP.PeakLevel, doc.XP.Level)
	doc.XP.Current = Round1(doc.XP.Current)
	doc.XP.Total = Round1(doc.XP.Total)

	if doc.LastLogin == "" {
		doc.LastLogin = today
	}
	if doc.LastGameDate == "" {
		doc.LastGameDate = doc.LastLogin
	}
	if doc.Wallet.Daily.Max <= 0 {
		doc.Wallet.Daily.Max = rules.DailySlotMax
	}
	if doc.Wallet.Weekend.Max <= 0 {
		doc.Wallet.Weekend.Max = rules.WeekendSlotMax
	}
	for i := range doc.Habits {
		if doc.Habits[i].ID == "" {
			doc.Habits[i].ID = uuid.NewString()
		}
		if doc.Habits[i].Target < 1 {
			doc.Habits[i].Target = 1
		}
	}
}

func encodeDocument(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

type loadResult struct {
	doc        Document
	raw        []byte
	firstRun   bool
	safeToSave bool
	corrupted  *CorruptedLoadError
}

// loadDocument implements the load contract. A backend failure is returned as
// an error; unparseable data is not, it yields defaults with saving disabled.
func loadDocument(ctx context.Context, backend store.Backend, rules Rules, today string) (loadResult, error) {
	raw, err := backend.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return loadResult{doc: DefaultDocument(rules, today), firstRun: true, safeToSave: true}, nil
	}
	if err != nil {
		return loadResult{}, fmt.Errorf("load state: %w", err)
	}
	doc, err := decodeDocument(raw, rules, today)
	if err != nil {
		return loadResult{doc: doc, raw: raw, corrupted: &CorruptedLoadError{Err: err}}, nil
	}
	return loadResult{doc: doc, raw: raw, safeToSave: true}, nil
}
