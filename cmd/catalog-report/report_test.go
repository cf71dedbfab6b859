package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/rewired-gh/predictle/internal/market"
	"github.com/rewired-gh/predictle/internal/models"
)

func testMarket(id string, pct int) models.Market {
	p := float64(pct) / 100
	return models.Market{
		ID:       id,
		Question: "Will " + id + " happen this year?",
		Outcomes: [2]models.Outcome{{Name: "Yes", Probability: p}, {Name: "No", Probability: 1 - p}},
		Source:   "polymarket",
	}
}

func TestDistribution(t *testing.T) {
	markets := []models.Market{testMarket("a", 5), testMarket("b", 10), testMarket("c", 11), testMarket("d", 60), testMarket("e", 99)}
	got := fmt.Sprint(distribution(markets))
	if got != "[2 1 0 1 0 1]" {
		t.Errorf("Expected [2 1 0 1 0 1], got %s", got)
	}
}

func TestSortedReasons(t *testing.T) {
	got := sortedReasons(map[string]int{"resolved": 2, "denylist": 5, "closed": 2})
	want := []string{"denylist", "closed", "resolved"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"Will the Fed cut rates?", 10, "Will th..."},
		{"Élection présidentielle", 8, "Élect..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d): expected %q, got %q", tt.in, tt.n, tt.want, got)
		}
	}
}

func TestWriteReport(t *testing.T) {
	pools := &models.Pools{
		Date:  "2024-10-18",
		Daily: []models.Market{testMarket("d1", 62)},
		Free:  []models.Market{testMarket("f1", 20), testMarket("f2", 95)},
	}
	stats := market.Stats{Raw: 6, Eligible: 3, Unique: 3, Rejected: map[string]int{"resolved": 2, market.ReasonQuestion: 1}}
	batches := []models.Batch{{Source: "polymarket", Markets: make([]models.RawMarket, 6)}}

	var buf bytes.Buffer
	writeReport(&buf, batches, pools, stats, 1)
	out := buf.String()

	for _, want := range []string{
		fmt.Sprintf("%-15s %d", "polymarket", 6),
		"Unique:   3",
		fmt.Sprintf("%-25s %d", "resolved", 2),
		"Daily: 1",
		"Free:  2",
		"DAILY POOL",
		"Will d1 happen this year?",
		"Will f1 happen this year?",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected report to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Will f2 happen") {
		t.Error("Expected top to limit each pool listing")
	}
}
