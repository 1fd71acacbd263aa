package routeplan

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHaversineMatrix(t *testing.T) {
	// Munich to Nuremberg is roughly 150km great-circle.
	coords := []Coord{
		{Lat: 48.1372, Lng: 11.5756},
		{Lat: 49.4521, Lng: 11.0767},
	}
	m := HaversineMatrix(coords, 60)

	d := m.DistanceM[0][1]
	if d < 140_000 || d > 160_000 {
		t.Errorf("distance = %dm, want ~150km", d)
	}
	if m.DistanceM[0][0] != 0 {
		t.Errorf("self distance = %d, want 0", m.DistanceM[0][0])
	}
	if m.DistanceM[0][1] != m.DistanceM[1][0] {
		t.Errorf("matrix not symmetric: %d vs %d", m.DistanceM[0][1], m.DistanceM[1][0])
	}
	wantTravel := int(float64(d) / (60.0 / 3.6))
	if diff := m.TravelS[0][1] - wantTravel; math.Abs(float64(diff)) > 1 {
		t.Errorf("travel = %ds, want ~%ds", m.TravelS[0][1], wantTravel)
	}
}

func TestMatrixClientBuild(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"status": "OK",
			"rows": [
				{"elements": [
					{"status": "OK", "distance": {"value": 0}, "duration": {"value": 0}},
					{"status": "OK", "distance": {"value": 12000}, "duration": {"value": 900}, "duration_in_traffic": {"value": 1100}}
				]},
				{"elements": [
					{"status": "OK", "distance": {"value": 12500}, "duration": {"value": 950}},
					{"status": "NOT_FOUND"}
				]}
			]
		}`)
	}))
	defer srv.Close()

	c := NewMatrixClient("test-key")
	c.base = srv.URL

	m, err := c.Build(context.Background(), []Coord{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if m.DistanceM[0][1] != 12000 {
		t.Errorf("distance[0][1] = %d, want 12000", m.DistanceM[0][1])
	}
	if m.TravelS[0][1] != 1100 {
		t.Errorf("travel[0][1] = %d, want traffic duration 1100", m.TravelS[0][1])
	}
	if m.TravelS[1][0] != 950 {
		t.Errorf("travel[1][0] = %d, want 950", m.TravelS[1][0])
	}
	// Diagonal element with NOT_FOUND status stays zero.
	if m.DistanceM[1][1] != 0 {
		t.Errorf("self distance = %d, want 0", m.DistanceM[1][1])
	}
}

func TestMatrixClientFallsBackOnAPIError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprint(w, `{"status": "OK", "rows": [{"elements": [{"status": "OK", "distance": {"value": 0}, "duration": {"value": 0}}]}]}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewMatrixClient("test-key")
	c.base = srv.URL
	// 11 coords force chunking (chunk size 10), so later chunks hit the
	// failing handler and get fallback values.
	coords := make([]Coord, 11)
	for i := range coords {
		coords[i] = Coord{Lat: float64(i), Lng: float64(i)}
	}

	m, err := c.Build(context.Background(), coords)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if m.DistanceM[0][10] != fallbackDistanceM {
		t.Errorf("failed pair distance = %d, want fallback %d", m.DistanceM[0][10], fallbackDistanceM)
	}
	if m.TravelS[0][10] != fallbackTravelS {
		t.Errorf("failed pair travel = %d, want fallback %d", m.TravelS[0][10], fallbackTravelS)
	}
}

func TestMatrixClientAllChunksFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewMatrixClient("bad-key")
	c.base = srv.URL

	if _, err := c.Build(context.Background(), []Coord{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}); err == nil {
		t.Fatal("expected error when every chunk fails")
	}
}
