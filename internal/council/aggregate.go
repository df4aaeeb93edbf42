package council

import (
	"math"
	"sort"
)

// Aggregate turns the parsed rankings into a leaderboard. In a ranking of
// length n the label at position i (0-indexed) earns n-i points for the model
// behind it. Labels not in labels are ignored, repeated labels score every
// time. Models that received no points are left out. The result is sorted by
// AverageScore, highest first; ties keep label order.
func Aggregate(evaluations []Evaluation, labels LabelMap) []AggregateEntry {
	type tally struct {
		points int
		votes  int
	}

	var order []string
	tallies := make(map[string]*tally, labels.Len())
	for _, model := range labels.models {
		if _, seen := tallies[model]; !seen {
			tallies[model] = &tally{}
			order = append(order, model)
		}
	}

	for _, ev := range evaluations {
		n := len(ev.ParsedRanking)
		for i, label := range ev.ParsedRanking {
			model, ok := labels.Model(label)
			if !ok {
				continue
			}
			t := tallies[model]
			t.points += n - i
			t.votes++
		}
	}

	entries := make([]AggregateEntry, 0, len(order))
	for _, model := range order {
		t := tallies[model]
		if t.votes == 0 {
			continue
		}
		entries = append(entries, AggregateEntry{
			Model:        model,
			AverageScore: roundScore(float64(t.points) / float64(t.votes)),
			Votes:        t.votes,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AverageScore > entries[j].AverageScore
	})
	return entries
}

// roundScore rounds to two decimal places, halves away from zero.
func roundScore(x float64) float64 {
	return math.Round(x*100) / 100
}
