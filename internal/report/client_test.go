package report

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"fieldtrack/internal/geoloc"
)

func TestStartSession(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		body       string
		wantID     string
		wantReject bool
	}{
		{"accepted", http.StatusOK, `{"success":true,"session_id":"sess-42"}`, "sess-42", false},
		{"declined in body", http.StatusOK, `{"success":false,"error":"quota exceeded"}`, "", true},
		{"missing session id", http.StatusOK, `{"success":true}`, "", true},
		{"transport failure", http.StatusInternalServerError, `{"success":true,"session_id":"x"}`, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/location/session-start" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				var req struct {
					RouteData struct {
						RouteType string `json:"route_type"`
						UserAgent string `json:"user_agent"`
					} `json:"route_data"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decoding request: %v", err)
				}
				if req.RouteData.RouteType != "delivery" {
					t.Errorf("route_type = %q", req.RouteData.RouteType)
				}
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "fieldtrack-test")
			id, err := c.StartSession(t.Context(), "delivery")
			if tc.wantReject {
				var rejected *SessionRejectedError
				if !errors.As(err, &rejected) {
					t.Fatalf("expected SessionRejectedError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("StartSession: %v", err)
			}
			if id != tc.wantID {
				t.Errorf("session id = %q, want %q", id, tc.wantID)
			}
		})
	}
}

func TestReport(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/location/update" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "fieldtrack-test")
	err := c.Report(t.Context(), geoloc.Sample{Lat: 48.2, Lng: 16.4, AccuracyM: 12}, "sess-42")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if got["session_id"] != "sess-42" || got["lat"] != 48.2 || got["accuracy"] != float64(12) {
		t.Errorf("unexpected payload: %v", got)
	}
}

func TestReportSurfacesBodyFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Transport-level success, body-level failure.
		w.Write([]byte(`{"success":false,"error":"unknown session"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "fieldtrack-test")
	err := c.Report(t.Context(), geoloc.Sample{}, "gone")
	var delivery *DeliveryError
	if !errors.As(err, &delivery) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if delivery.Reason != "unknown session" {
		t.Errorf("reason = %q", delivery.Reason)
	}
}

func TestStopSessionBestEffort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/location/session-stop" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "fieldtrack-test")
	if err := c.StopSession(t.Context(), "sess-42"); err != nil {
		t.Fatalf("StopSession: %v", err)
	}
}
