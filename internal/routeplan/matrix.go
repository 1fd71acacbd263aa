package routeplan

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Coord is one matrix node position.
type Coord struct {
	Lat float64
	Lng float64
}

// Matrix holds pairwise travel costs between nodes. DistanceM[i][j] is the
// driving distance from node i to node j in meters, TravelS the travel time
// in seconds.
type Matrix struct {
	DistanceM [][]int
	TravelS   [][]int
}

const (
	// Pairs that cannot be routed get pessimistic defaults instead of
	// failing the whole matrix.
	fallbackDistanceM = 50_000
	fallbackTravelS   = 3600

	// The Distance Matrix API caps elements (origins x destinations)
	// per request.
	maxElementsPerRequest = 100
)

func newMatrix(n int) Matrix {
	m := Matrix{DistanceM: make([][]int, n), TravelS: make([][]int, n)}
	for i := range m.DistanceM {
		m.DistanceM[i] = make([]int, n)
		m.TravelS[i] = make([]int, n)
	}
	return m
}

// HaversineMatrix builds a matrix from great-circle distances, assuming a
// constant average speed. It is the offline fallback when no routing API
// key is configured.
func HaversineMatrix(coords []Coord, speedKmh float64) Matrix {
	if speedKmh <= 0 {
		speedKmh = 40
	}
	m := newMatrix(len(coords))
	for i := range coords {
		for j := range coords {
			if i == j {
				continue
			}
			d := haversineM(coords[i], coords[j])
			m.DistanceM[i][j] = int(d)
			m.TravelS[i][j] = int(d / (speedKmh / 3.6))
		}
	}
	return m
}

func haversineM(a, b Coord) float64 {
	const earthRadiusM = 6_371_000
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

// MatrixClient fetches driving distances from the Google Distance Matrix API.
type MatrixClient struct {
	key    string
	base   string
	client *http.Client
}

// NewMatrixClient returns a client using the given API key.
func NewMatrixClient(key string) *MatrixClient {
	return &MatrixClient{
		key:    key,
		base:   "https://maps.googleapis.com/maps/api/distancematrix/json",
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type matrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value int `json:"value"`
			} `json:"duration"`
			DurationInTraffic *struct {
				Value int `json:"value"`
			} `json:"duration_in_traffic"`
		} `json:"elements"`
	} `json:"rows"`
}

// Build fetches the full pairwise matrix for coords, chunked to respect the
// per-request element limit. Failed pairs get fallback defaults; only a
// fully unreachable API returns an error.
func (c *MatrixClient) Build(ctx context.Context, coords []Coord) (Matrix, error) {
	n := len(coords)
	m := newMatrix(n)
	chunk := int(math.Sqrt(maxElementsPerRequest))

	var anyOK bool
	for iStart := 0; iStart < n; iStart += chunk {
		iEnd := min(iStart+chunk, n)
		for jStart := 0; jStart < n; jStart += chunk {
			jEnd := min(jStart+chunk, n)
			ok := c.fillChunk(ctx, &m, coords, iStart, iEnd, jStart, jEnd)
			anyOK = anyOK || ok
		}
	}
	if !anyOK {
		return Matrix{}, fmt.Errorf("distance matrix: no chunk succeeded")
	}
	return m, nil
}

// fillChunk requests one origins x destinations block. On any failure the
// block is filled with fallback values and false is returned.
func (c *MatrixClient) fillChunk(ctx context.Context, m *Matrix, coords []Coord, iStart, iEnd, jStart, jEnd int) bool {
	origins := coordList(coords[iStart:iEnd])
	dests := coordList(coords[jStart:jEnd])

	params := url.Values{}
	params.Set("origins", origins)
	params.Set("destinations", dests)
	params.Set("mode", "driving")
	params.Set("units", "metric")
	params.Set("departure_time", "now")
	params.Set("traffic_model", "best_guess")
	params.Set("key", c.key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"?"+params.Encode(), nil)
	if err != nil {
		fillFallback(m, iStart, iEnd, jStart, jEnd)
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		fillFallback(m, iStart, iEnd, jStart, jEnd)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fillFallback(m, iStart, iEnd, jStart, jEnd)
		return false
	}

	var data matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil || data.Status != "OK" {
		fillFallback(m, iStart, iEnd, jStart, jEnd)
		return false
	}

	for i, row := range data.Rows {
		for j, el := range row.Elements {
			mi, mj := iStart+i, jStart+j
			if mi == mj {
				continue
			}
			if el.Status != "OK" {
				m.DistanceM[mi][mj] = fallbackDistanceM
				m.TravelS[mi][mj] = fallbackTravelS
				continue
			}
			m.DistanceM[mi][mj] = el.Distance.Value
			duration := el.Duration.Value
			if el.DurationInTraffic != nil {
				duration = el.DurationInTraffic.Value
			}
			m.TravelS[mi][mj] = duration
		}
	}
	return true
}

func fillFallback(m *Matrix, iStart, iEnd, jStart, jEnd int) {
	for i := iStart; i < iEnd; i++ {
		for j := jStart; j < jEnd; j++ {
			if i == j {
				continue
			}
			m.DistanceM[i][j] = fallbackDistanceM
			m.TravelS[i][j] = fallbackTravelS
		}
	}
}

func coordList(coords []Coord) string {
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = fmt.Sprintf("%f,%f", c.Lat, c.Lng)
	}
	return strings.Join(parts, "|")
}
