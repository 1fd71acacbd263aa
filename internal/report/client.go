// Package report delivers position samples and session lifecycle events to
// the remote collector. It returns typed failures and never retries; each
// caller decides whether a failed delivery is fatal.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fieldtrack/internal/geoloc"
)

// SessionRejectedError means the collector declined to start or record a session.
type SessionRejectedError struct {
	Reason string
}

func (e *SessionRejectedError) Error() string {
	return fmt.Sprintf("session rejected: %s", e.Reason)
}

// DeliveryError means a location update did not reach the collector, or the
// collector's response body indicated failure.
type DeliveryError struct {
	Reason string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("report delivery failed: %s", e.Reason)
}

// Client talks to the collector's location endpoints.
type Client struct {
	base      string
	userAgent string
	http      *http.Client
}

func NewClient(base, userAgent string) *Client {
	return &Client{
		base:      base,
		userAgent: userAgent,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

type apiResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
}

// StartSession asks the collector to open a tracking session and returns its id.
func (c *Client) StartSession(ctx context.Context, routeType string) (string, error) {
	body := map[string]any{
		"route_data": map[string]any{
			"route_type": routeType,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"user_agent": c.userAgent,
		},
	}
	resp, err := c.post(ctx, "/api/location/session-start", body)
	if err != nil {
		return "", &SessionRejectedError{Reason: err.Error()}
	}
	if !resp.Success || resp.SessionID == "" {
		return "", &SessionRejectedError{Reason: reasonOf(resp)}
	}
	return resp.SessionID, nil
}

// StopSession tells the collector the session ended.
func (c *Client) StopSession(ctx context.Context, sessionID string) error {
	resp, err := c.post(ctx, "/api/location/session-stop", map[string]any{
		"session_id": sessionID,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("session-stop: %s", reasonOf(resp))
	}
	return nil
}

// Report delivers one position sample for the session.
func (c *Client) Report(ctx context.Context, s geoloc.Sample, sessionID string) error {
	resp, err := c.post(ctx, "/api/location/update", map[string]any{
		"lat":        s.Lat,
		"lng":        s.Lng,
		"accuracy":   s.AccuracyM,
		"session_id": sessionID,
	})
	if err != nil {
		return &DeliveryError{Reason: err.Error()}
	}
	if !resp.Success {
		return &DeliveryError{Reason: reasonOf(resp)}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) (apiResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return apiResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return apiResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return apiResponse{}, err
	}
	defer res.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return apiResponse{}, fmt.Errorf("%s: decoding response: %w", path, err)
	}
	// The collector reports failure inside the body as well as via the
	// transport status; either one counts.
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		out.Success = false
		if out.Error == "" {
			out.Error = res.Status
		}
	}
	return out, nil
}

func reasonOf(resp apiResponse) string {
	if resp.Error != "" {
		return resp.Error
	}
	return "collector returned success=false"
}
