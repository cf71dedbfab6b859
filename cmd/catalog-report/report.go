package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rewired-gh/predictle/internal/market"
	"github.com/rewired-gh/predictle/internal/models"
)

// probabilityBuckets are the upper bounds, in percent, of the distribution rows.
var probabilityBuckets = []int{10, 25, 50, 75, 90, 100}

func banner(w io.Writer, title string) {
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func writeReport(w io.Writer, batches []models.Batch, pools *models.Pools, stats market.Stats, top int) {
	banner(w, "SOURCES")
	fmt.Fprintf(w, "%-15s %s\n", "Source", "Raw records")
	fmt.Fprintln(w, strings.Repeat("-", 30))
	for _, b := range batches {
		fmt.Fprintf(w, "%-15s %d\n", b.Source, len(b.Markets))
	}

	fmt.Fprintln(w)
	banner(w, "PIPELINE")
	fmt.Fprintf(w, "Raw:      %d\n", stats.Raw)
	fmt.Fprintf(w, "Eligible: %d\n", stats.Eligible)
	fmt.Fprintf(w, "Unique:   %d\n", stats.Unique)
	if len(stats.Rejected) > 0 {
		fmt.Fprintf(w, "\n%-25s %s\n", "Rejection reason", "Count")
		fmt.Fprintln(w, strings.Repeat("-", 35))
		for _, reason := range sortedReasons(stats.Rejected) {
			fmt.Fprintf(w, "%-25s %d\n", reason, stats.Rejected[reason])
		}
	}

	fmt.Fprintln(w)
	banner(w, "POOLS")
	fmt.Fprintf(w, "Date:  %s\n", pools.Date)
	fmt.Fprintf(w, "Daily: %d\n", len(pools.Daily))
	fmt.Fprintf(w, "Free:  %d\n", len(pools.Free))

	all := append(append([]models.Market(nil), pools.Daily...), pools.Free...)
	if len(all) > 0 {
		fmt.Fprintln(w)
		banner(w, "PROBABILITY DISTRIBUTION")
		fmt.Fprintf(w, "%-12s %s\n", "Actual %", "Markets")
		fmt.Fprintln(w, strings.Repeat("-", 25))
		counts := distribution(all)
		lower := 0
		for i, upper := range probabilityBuckets {
			fmt.Fprintf(w, "%-12s %d\n", fmt.Sprintf("%d-%d", lower, upper), counts[i])
			lower = upper + 1
		}
	}

	writePool(w, "DAILY POOL", pools.Daily, top)
	writePool(w, "FREE POOL", pools.Free, top)
}

func writePool(w io.Writer, title string, pool []models.Market, top int) {
	if len(pool) == 0 || top <= 0 {
		return
	}
	fmt.Fprintln(w)
	banner(w, title)
	fmt.Fprintf(w, "%-5s %-8s %-11s %s\n", "Rank", "Actual", "Source", "Question")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for i := 0; i < top && i < len(pool); i++ {
		m := pool[i]
		fmt.Fprintf(w, "%-5d %-8s %-11s %s\n", i+1, fmt.Sprintf("%d%%", m.ActualPercent()), m.Source, truncate(m.Question, 52))
	}
}

// distribution counts markets per probabilityBuckets row.
func distribution(markets []models.Market) []int {
	counts := make([]int, len(probabilityBuckets))
	for i := range markets {
		pct := markets[i].ActualPercent()
		for j, upper := range probabilityBuckets {
			if pct <= upper {
				counts[j]++
				break
			}
		}
	}
	return counts
}

// sortedReasons orders reasons by count, then name.
func sortedReasons(rejected map[string]int) []string {
	reasons := make([]string, 0, len(rejected))
	for r := range rejected {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool {
		if rejected[reasons[i]] != rejected[reasons[j]] {
			return rejected[reasons[i]] > rejected[reasons[j]]
		}
		return reasons[i] < reasons[j]
	})
	return reasons
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
