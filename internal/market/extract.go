// Package market turns untrusted upstream market records into playable pools.
//
// The pipeline runs leaves first: ExtractOutcomes and NormalizeQuestion read a
// RawMarket, Filter decides eligibility, Dedupe collapses records for the same
// real-world question and Partition deals the survivors into per-mode pools.
// Catalog wires the stages together. Every stage is pure; malformed records
// are dropped, never reported as errors.
package market

import (
	"github.com/rewired-gh/predictle/internal/models"
)

// defaultOutcomeName labels an outcome whose record carries no usable name.
const defaultOutcomeName = "Option"

// outcomeStrategy reads outcomes from one known upstream shape. A strategy
// that finds no valid outcome returns nil so the next one is tried.
type outcomeStrategy func(raw models.RawMarket) []models.Outcome

// outcomeStrategies are tried in priority order; the first non-empty result
// wins. New upstream shapes are supported by adding a strategy here.
var outcomeStrategies = []outcomeStrategy{
	objectList("outcomes"),
	objectList("tokens"),
	pairedLists("outcomes", "outcomePrices"),
}

// ExtractOutcomes returns the valid outcomes of raw in upstream order.
// Entries without a usable probability are dropped.
func ExtractOutcomes(raw models.RawMarket) []models.Outcome {
	if raw == nil {
		return nil
	}
	for _, strategy := range outcomeStrategies {
		if outcomes := strategy(raw); len(outcomes) > 0 {
			return outcomes
		}
	}
	return nil
}

// objectList reads an array of outcome objects under key.
func objectList(key string) outcomeStrategy {
	return func(raw models.RawMarket) []models.Outcome {
		entries, ok := raw.List(key)
		if !ok {
			return nil
		}
		var outcomes []models.Outcome
		for _, entry := range entries {
			obj, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			rec := models.RawMarket(obj)
			p, ok := resolveProbability(rec)
			if !ok {
				continue
			}
			outcomes = append(outcomes, models.Outcome{Name: outcomeName(rec), Probability: p})
		}
		return outcomes
	}
}

// pairedLists reads the Gamma API shape where names and prices are parallel
// arrays, often JSON-encoded inside strings.
func pairedLists(namesKey, pricesKey string) outcomeStrategy {
	return func(raw models.RawMarket) []models.Outcome {
		names, ok := raw.List(namesKey)
		if !ok {
			return nil
		}
		prices, ok := raw.List(pricesKey)
		if !ok {
			return nil
		}
		var outcomes []models.Outcome
		for i := 0; i < len(names) && i < len(prices); i++ {
			p, ok := models.ToNumber(prices[i])
			if !ok {
				continue
			}
			o := models.Outcome{Name: defaultOutcomeName, Probability: p}
			if name, isString := names[i].(string); isString && name != "" {
				o.Name = name
			}
			if o.Valid() {
				outcomes = append(outcomes, o)
			}
		}
		return outcomes
	}
}

func outcomeName(rec models.RawMarket) string {
	if name := rec.String("name", "outcome", "ticker"); name != "" {
		return name
	}
	return defaultOutcomeName
}

// resolveProbability applies the first-match price priority. A candidate that
// is present but outside (0, 1) ends the search: the entry is unusable.
func resolveProbability(rec models.RawMarket) (float64, bool) {
	for _, path := range []string{"price", "last_price", "price.mid", "price.yes"} {
		if p, ok := rec.Number(path); ok {
			return p, validProbability(p)
		}
	}
	if no, ok := rec.Number("price.no"); ok {
		p := 1 - no
		return p, validProbability(p)
	}
	return 0, false
}

func validProbability(p float64) bool {
	return models.Outcome{Probability: p}.Valid()
}
