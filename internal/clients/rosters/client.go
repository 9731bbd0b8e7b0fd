package rosters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/practice-sem-2/chat-service/internal/models"
)

// Client asks the events/tribes service whether a user belongs to an
// entity. The chat core only ever needs this one predicate.
type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

type membershipResponse struct {
	IsMember bool `json:"is_member"`
}

func (c *Client) IsMember(ctx context.Context, kind models.ChatKind, entityId, userId string) (bool, error) {
	url := fmt.Sprintf("%s/%ss/%s/members/%s", c.base, kind, entityId, userId)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("roster lookup failed: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("roster lookup failed: unexpected status %d", res.StatusCode)
	}

	body := membershipResponse{}
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("roster lookup failed: %w", err)
	}
	return body.IsMember, nil
}
