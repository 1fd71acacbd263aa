package routeplan

import "testing"

// symMatrix builds a symmetric matrix from the given distances in meters.
func symMatrix(dist [][]int) Matrix {
	n := len(dist)
	m := newMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m.DistanceM[i][j] = dist[i][j]
			m.TravelS[i][j] = dist[i][j] / 10
		}
	}
	return m
}

func TestPlanSingleDay(t *testing.T) {
	// Three branches close to HQ, well within one day's budget.
	m := symMatrix([][]int{
		{0, 10_000, 20_000, 15_000},
		{10_000, 0, 12_000, 8_000},
		{20_000, 12_000, 0, 9_000},
		{15_000, 8_000, 9_000, 0},
	})

	days, err := PlanDays(m)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("days = %d, want 1", len(days))
	}
	day := days[0]
	if day.Stops[0] != 0 || day.Stops[len(day.Stops)-1] != 0 {
		t.Errorf("route does not start and end at HQ: %v", day.Stops)
	}
	if len(day.Stops) != 5 {
		t.Errorf("stops = %v, want HQ + 3 branches + HQ", day.Stops)
	}
	if day.DistanceM > MaxDistancePerDayM {
		t.Errorf("day distance %d exceeds budget", day.DistanceM)
	}
	// Greedy picks the nearest branch first.
	if day.Stops[1] != 1 {
		t.Errorf("first stop = %d, want nearest branch 1", day.Stops[1])
	}
}

func TestPlanSplitsAcrossDays(t *testing.T) {
	// Each branch is 80km out, so one visit eats 160km of the 180km
	// budget and every branch needs its own day.
	m := symMatrix([][]int{
		{0, 80_000, 80_000, 80_000},
		{80_000, 0, 80_000, 80_000},
		{80_000, 80_000, 0, 80_000},
		{80_000, 80_000, 80_000, 0},
	})

	days, err := PlanDays(m)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(days) != 3 {
		t.Fatalf("days = %d, want 3", len(days))
	}
	visited := map[int]bool{}
	for _, day := range days {
		if day.DistanceM > MaxDistancePerDayM {
			t.Errorf("day distance %d exceeds budget", day.DistanceM)
		}
		for _, s := range day.Stops[1 : len(day.Stops)-1] {
			if visited[s] {
				t.Errorf("branch %d visited twice", s)
			}
			visited[s] = true
		}
	}
	if len(visited) != 3 {
		t.Errorf("visited %d branches, want 3", len(visited))
	}
}

func TestPlanRejectsUnreachableBranch(t *testing.T) {
	// Branch 1 is 100km out: 200km round trip never fits a fresh day.
	m := symMatrix([][]int{
		{0, 100_000},
		{100_000, 0},
	})

	if _, err := PlanDays(m); err == nil {
		t.Fatal("expected error for branch beyond the daily budget")
	}
}

func TestPlanEmptyMatrix(t *testing.T) {
	days, err := PlanDays(newMatrix(1))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if days != nil {
		t.Errorf("days = %v, want none for HQ-only matrix", days)
	}
}
