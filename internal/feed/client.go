package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client fetches entity snapshots from the collector.
type Client struct {
	base string
	http *http.Client
}

func NewClient(base string) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Entities fetches the current snapshot for all tracked entities.
func (c *Client) Entities(ctx context.Context) ([]Entity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/location/users", nil)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: %s", res.Status)
	}

	var body struct {
		Success bool     `json:"success"`
		Error   string   `json:"error"`
		Users   []Entity `json:"users"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("feed: decoding snapshot: %w", err)
	}
	if !body.Success {
		if body.Error == "" {
			body.Error = "feed returned success=false"
		}
		return nil, fmt.Errorf("feed: %s", body.Error)
	}
	return body.Users, nil
}
