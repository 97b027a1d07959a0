package search

import (
	"context"
	"testing"
)

func leadOptions(score float64, confidences map[int]float64) []Option {
	leads := []int{10, 15, 30, 60}
	out := make([]Option, 0, len(leads))
	for _, lead := range leads {
		out = append(out, Option{
			LeadTimeMinutes: lead,
			ExpectedReward:  score * confidences[lead],
		})
	}
	return out
}

func TestOptimize_Empty(t *testing.T) {
	res, err := NewScheduler(0).Optimize(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.SearchCompleted || res.Quality != QualityOptimal {
		t.Errorf("completed=%v quality=%q", res.SearchCompleted, res.Quality)
	}
	if res.TotalExpectedReward != 0 || len(res.Schedule) != 0 {
		t.Errorf("reward=%.2f schedule=%v", res.TotalExpectedReward, res.Schedule)
	}
}

func TestOptimize_SingleCandidatePicksBestOption(t *testing.T) {
	cands := []Candidate{{
		RuleID: 1,
		Title:  "Gym Workout",
		Options: leadOptions(0.8, map[int]float64{
			10: 0.5, 15: 0.9, 30: 0.6, 60: 0.4,
		}),
	}}

	res, err := NewScheduler(0).Optimize(context.Background(), cands)
	if err != nil {
		t.Fatal(err)
	}
	lead, ok := res.ChosenLeadTime(1)
	if !ok || lead != 15 {
		t.Errorf("chosen lead = %d ok=%v, want 15", lead, ok)
	}
	if res.Quality != QualityOptimal {
		t.Errorf("quality = %q", res.Quality)
	}
}

func TestOptimize_TwoTaskJointOptimization(t *testing.T) {
	conf1 := map[int]float64{10: 0.9, 15: 0.7, 30: 0.5, 60: 0.3}
	conf2 := map[int]float64{10: 0.3, 15: 0.5, 30: 0.7, 60: 0.9}

	cands := []Candidate{
		{RuleID: 1, Title: "First", Options: leadOptions(0.75, conf1)},
		{RuleID: 2, Title: "Second", Options: leadOptions(0.75, conf2)},
	}

	res, err := NewScheduler(0).Optimize(context.Background(), cands)
	if err != nil {
		t.Fatal(err)
	}
	if !res.SearchCompleted {
		t.Fatal("search did not complete")
	}

	// The optimum must equal argmax over all (i, j) pairs.
	bestSum := 0.0
	bestPair := [2]int{}
	for l1, c1 := range conf1 {
		for l2, c2 := range conf2 {
			if c1+c2 > bestSum {
				bestSum = c1 + c2
				bestPair = [2]int{l1, l2}
			}
		}
	}

	got1, _ := res.ChosenLeadTime(1)
	got2, _ := res.ChosenLeadTime(2)
	if got1 != bestPair[0] || got2 != bestPair[1] {
		t.Errorf("chose (%d,%d), want (%d,%d)", got1, got2, bestPair[0], bestPair[1])
	}

	// Invariant: completed search is never worse than greedy.
	greedy := Greedy(cands)
	if res.TotalExpectedReward < greedy.TotalExpectedReward {
		t.Errorf("A* reward %.3f < greedy %.3f", res.TotalExpectedReward, greedy.TotalExpectedReward)
	}
}

func TestOptimize_BudgetExhaustionFallsBackToGreedy(t *testing.T) {
	// Eight candidates, four equally-rewarding options each: every branch ties,
	// so a 50-node budget cannot reach a complete schedule.
	uniform := map[int]float64{10: 0.5, 15: 0.5, 30: 0.5, 60: 0.5}
	cands := make([]Candidate, 8)
	for i := range cands {
		cands[i] = Candidate{RuleID: int64(i + 1), Options: leadOptions(0.72, uniform)}
	}

	res, err := NewScheduler(50).Optimize(context.Background(), cands)
	if err != nil {
		t.Fatal(err)
	}
	if res.SearchCompleted {
		t.Error("expected incomplete search")
	}
	if res.Quality != QualityGreedyFallback {
		t.Errorf("quality = %q, want greedy_fallback", res.Quality)
	}
	if res.NodesExplored > 50 {
		t.Errorf("explored %d nodes past budget", res.NodesExplored)
	}

	// Fallback schedule must equal the per-candidate argmax.
	greedy := Greedy(cands)
	if len(res.Schedule) != len(greedy.Schedule) {
		t.Fatalf("schedule length %d vs greedy %d", len(res.Schedule), len(greedy.Schedule))
	}
	for i := range res.Schedule {
		if res.Schedule[i] != greedy.Schedule[i] {
			t.Errorf("assignment %d = %+v, want %+v", i, res.Schedule[i], greedy.Schedule[i])
		}
	}
}

func TestOptimize_Deterministic(t *testing.T) {
	conf := map[int]float64{10: 0.6, 15: 0.6, 30: 0.4, 60: 0.2}
	cands := []Candidate{
		{RuleID: 1, Options: leadOptions(0.7, conf)},
		{RuleID: 2, Options: leadOptions(0.7, conf)},
		{RuleID: 3, Options: leadOptions(0.7, conf)},
	}

	first, err := NewScheduler(0).Optimize(context.Background(), cands)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := NewScheduler(0).Optimize(context.Background(), cands)
		if err != nil {
			t.Fatal(err)
		}
		if again.TotalExpectedReward != first.TotalExpectedReward {
			t.Fatalf("reward changed across runs")
		}
		for j := range again.Schedule {
			if again.Schedule[j] != first.Schedule[j] {
				t.Fatalf("schedule changed across runs: %+v vs %+v", again.Schedule, first.Schedule)
			}
		}
	}
}

func TestOptimize_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cands := []Candidate{{RuleID: 1, Options: leadOptions(0.8, map[int]float64{10: 0.5, 15: 0.5, 30: 0.5, 60: 0.5})}}
	_, err := NewScheduler(0).Optimize(ctx, cands)
	if err == nil {
		t.Error("expected cancellation error")
	}
}

func TestGreedy_SkipsCandidateWithNoOptions(t *testing.T) {
	res := Greedy([]Candidate{{RuleID: 7}})
	if len(res.Schedule) != 1 || !res.Schedule[0].Skipped {
		t.Errorf("schedule = %+v", res.Schedule)
	}
}
