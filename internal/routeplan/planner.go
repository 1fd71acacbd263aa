package routeplan

import "fmt"

// MaxDistancePerDayM caps how far a single day's route may run, return leg
// to HQ included.
const MaxDistancePerDayM = 180_000

// DayRoute is one day's plan: node indexes into the matrix, starting and
// ending at the HQ node (index 0), plus the total driving distance.
type DayRoute struct {
	Stops     []int `json:"stops"`
	DistanceM int   `json:"distance_m"`
	TravelS   int   `json:"travel_s"`
}

// PlanDays splits all non-HQ nodes into day routes, each within the daily
// distance budget. Node 0 is the HQ and anchors every day. Days are built
// greedily: from the current position, take the nearest unvisited node
// whose visit still allows returning to HQ within budget.
//
// A node that cannot be reached within a fresh day's budget makes the whole
// plan fail; silently dropping it would hide an impossible visit.
func PlanDays(m Matrix) ([]DayRoute, error) {
	n := len(m.DistanceM)
	if n <= 1 {
		return nil, nil
	}

	unvisited := make(map[int]bool, n-1)
	for i := 1; i < n; i++ {
		unvisited[i] = true
	}

	var days []DayRoute
	for len(unvisited) > 0 {
		day := DayRoute{Stops: []int{0}}
		cur := 0
		for {
			next, ok := nearestFeasible(m, cur, day.DistanceM, unvisited)
			if !ok {
				break
			}
			day.DistanceM += m.DistanceM[cur][next]
			day.TravelS += m.TravelS[cur][next]
			day.Stops = append(day.Stops, next)
			delete(unvisited, next)
			cur = next
		}
		if cur == 0 {
			// Nothing fit into a fresh day: some node is unreachable
			// within the budget at all.
			return nil, fmt.Errorf("route plan: %d branch(es) exceed the %dkm daily budget", len(unvisited), MaxDistancePerDayM/1000)
		}
		day.DistanceM += m.DistanceM[cur][0]
		day.TravelS += m.TravelS[cur][0]
		day.Stops = append(day.Stops, 0)
		days = append(days, day)
	}
	return days, nil
}

// nearestFeasible returns the closest unvisited node reachable from cur
// with enough budget left to get back to HQ afterwards.
func nearestFeasible(m Matrix, cur, spent int, unvisited map[int]bool) (int, bool) {
	best, bestDist := -1, 0
	for node := range unvisited {
		d := m.DistanceM[cur][node]
		if spent+d+m.DistanceM[node][0] > MaxDistancePerDayM {
			continue
		}
		if best == -1 || d < bestDist {
			best, bestDist = node, d
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}
