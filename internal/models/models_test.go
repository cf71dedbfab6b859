package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMarketValidate(t *testing.T) {
	tests := []struct {
		name    string
		market  Market
		wantErr bool
	}{
		{
			name: "valid market",
			market: Market{
				ID:       "m-1",
				Question: "Will X happen?",
				Outcomes: [2]Outcome{{Name: "Yes", Probability: 0.63}, {Name: "No", Probability: 0.37}},
			},
			wantErr: false,
		},
		{
			name: "empty ID",
			market: Market{
				Question: "Will X happen?",
				Outcomes: [2]Outcome{{Name: "Yes", Probability: 0.63}, {Name: "No", Probability: 0.37}},
			},
			wantErr: true,
		},
		{
			name: "empty question",
			market: Market{
				ID:       "m-1",
				Outcomes: [2]Outcome{{Name: "Yes", Probability: 0.63}, {Name: "No", Probability: 0.37}},
			},
			wantErr: true,
		},
		{
			name: "certain outcome",
			market: Market{
				ID:       "m-1",
				Question: "Will X happen?",
				Outcomes: [2]Outcome{{Name: "Yes", Probability: 1}, {Name: "No", Probability: 0.37}},
			},
			wantErr: true,
		},
		{
			name: "zero outcome",
			market: Market{
				ID:       "m-1",
				Question: "Will X happen?",
				Outcomes: [2]Outcome{{Name: "Yes", Probability: 0.5}, {Name: "No", Probability: 0}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.market.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Market.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestActualPercent(t *testing.T) {
	m := Market{Outcomes: [2]Outcome{{Name: "Yes", Probability: 0.625}, {Name: "No", Probability: 0.375}}}
	if got := m.ActualPercent(); got != 63 {
		t.Errorf("ActualPercent() = %d, want 63", got)
	}
}

func TestScoreStateValidate(t *testing.T) {
	if err := (&ScoreState{Score: 3.5, Streak: 2, Rounds: 4}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (&ScoreState{Score: -1}).Validate(); err == nil {
		t.Error("expected error for negative score")
	}
	if err := (&ScoreState{Streak: -1}).Validate(); err == nil {
		t.Error("expected error for negative streak")
	}
	if err := (&ScoreState{Rounds: 5, Played: "2026-10-18"}).Validate(); err != nil {
		t.Errorf("unexpected error for played date: %v", err)
	}
	if err := (&ScoreState{Played: "yesterday"}).Validate(); err == nil {
		t.Error("expected error for malformed played date")
	}
}

func TestPoolsFor(t *testing.T) {
	p := &Pools{Daily: []Market{{ID: "a"}}, Free: []Market{{ID: "b"}, {ID: "c"}}}
	if len(p.For(ModeDaily)) != 1 || len(p.For(ModeFree)) != 2 {
		t.Errorf("unexpected pool sizes: daily=%d free=%d", len(p.For(ModeDaily)), len(p.For(ModeFree)))
	}
	if p.Size() != 3 {
		t.Errorf("Size() = %d, want 3", p.Size())
	}
	var nilPools *Pools
	if nilPools.For(ModeDaily) != nil || nilPools.Size() != 0 {
		t.Error("nil pools should be empty")
	}
}

func decodeRaw(t *testing.T, s string) RawMarket {
	t.Helper()
	var r RawMarket
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return r
}

func TestRawMarketAccessors(t *testing.T) {
	r := decodeRaw(t, `{
		"id": 42,
		"title": "  ",
		"question": "Will it rain?",
		"price": {"mid": "0.41", "yes": true},
		"closed": false,
		"active": "yes",
		"outcomes": "[\"Yes\",\"No\"]",
		"createdAt": "2026-10-01T12:00:00Z",
		"created_time": 1759320000000
	}`)

	if got := r.String("id"); got != "42" {
		t.Errorf("String(id) = %q, want 42", got)
	}
	if got := r.String("title", "question"); got != "Will it rain?" {
		t.Errorf("String(title, question) = %q", got)
	}
	if v, ok := r.Number("price.mid"); !ok || v != 0.41 {
		t.Errorf("Number(price.mid) = %v, %v", v, ok)
	}
	if _, ok := r.Number("price.yes"); ok {
		t.Error("boolean must not count as a number")
	}
	if _, ok := r.Number("price.no"); ok {
		t.Error("missing path must not resolve")
	}
	if _, ok := r.Number("closed.x"); ok {
		t.Error("path through a scalar must not resolve")
	}
	if v, ok := r.Flag("closed"); !ok || v {
		t.Errorf("Flag(closed) = %v, %v", v, ok)
	}
	if _, ok := r.Flag("active"); ok {
		t.Error("non-boolean flag must be reported absent")
	}
	if l, ok := r.List("outcomes"); !ok || len(l) != 2 {
		t.Errorf("List(outcomes) = %v, %v", l, ok)
	}
	ts, ok := r.Time("createdAt")
	if !ok || !ts.Equal(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Time(createdAt) = %v, %v", ts, ok)
	}
	ms, ok := r.Time("created_time")
	if !ok || ms.Unix() != 1759320000 {
		t.Errorf("Time(created_time) = %v, %v", ms, ok)
	}
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{0.5, 0.5, true},
		{"0.25", 0.25, true},
		{json.Number("0.7"), 0.7, true},
		{"abc", 0, false},
		{true, 0, false},
		{nil, 0, false},
		{map[string]any{"a": 1.0}, 0, false},
	}
	for _, tt := range tests {
		got, ok := ToNumber(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ToNumber(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
