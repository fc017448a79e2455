package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// CallHandle is the platform's reference to a group's ongoing voice chat.
// It is required for the participant queries and means nothing elsewhere.
type CallHandle struct {
	ID         int64 `json:"id"`
	AccessHash int64 `json:"access_hash"`
}

// Participant is one raw roster entry. Entries may repeat across query pages.
type Participant struct {
	UserID int64 `json:"user_id"`
}

// User is a display-name directory entry returned alongside participants.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
}

// Roster is the combined result of a participant query: the entries plus the
// directory needed to resolve their names.
type Roster struct {
	Participants []Participant `json:"participants"`
	Users        []User        `json:"users"`
}

// API is the surface of the communication platform the resolver consumes.
// Both participant queries may fail independently; the resolver treats them
// as interchangeable sources.
type API interface {
	ResolveLiveCall(ctx context.Context, groupID int64) (*CallHandle, error)
	CallSnapshot(ctx context.Context, call CallHandle, limit int) (Roster, error)
	CallParticipants(ctx context.Context, call CallHandle, limit int, cursor string) (Roster, error)
}

// Client talks to the platform gateway over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client for the given gateway base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ResolveLiveCall returns the group's current voice-chat handle, or nil when
// no voice chat is running.
func (c *Client) ResolveLiveCall(ctx context.Context, groupID int64) (*CallHandle, error) {
	var out struct {
		Call *CallHandle `json:"call"`
	}
	path := fmt.Sprintf("/v1/groups/%d/call", groupID)
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Call, nil
}

// CallSnapshot fetches the call state in one shot, bounded at limit entries.
func (c *Client) CallSnapshot(ctx context.Context, call CallHandle, limit int) (Roster, error) {
	var out Roster
	path := fmt.Sprintf("/v1/calls/%d/snapshot", call.ID)
	q := url.Values{
		"access_hash": {strconv.FormatInt(call.AccessHash, 10)},
		"limit":       {strconv.Itoa(limit)},
	}
	err := c.get(ctx, path, q, &out)
	return out, err
}

// CallParticipants fetches the call roster through the paged listing.
func (c *Client) CallParticipants(ctx context.Context, call CallHandle, limit int, cursor string) (Roster, error) {
	var out Roster
	path := fmt.Sprintf("/v1/calls/%d/participants", call.ID)
	q := url.Values{
		"access_hash": {strconv.FormatInt(call.AccessHash, 10)},
		"limit":       {strconv.Itoa(limit)},
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	err := c.get(ctx, path, q, &out)
	return out, err
}

// GroupTitle asks the platform for a chat's title, used when an admin
// registers a group by id.
func (c *Client) GroupTitle(ctx context.Context, groupID int64) (string, error) {
	var out struct {
		Title string `json:"title"`
	}
	path := fmt.Sprintf("/v1/groups/%d", groupID)
	if err := c.get(ctx, path, nil, &out); err != nil {
		return "", err
	}
	return out.Title, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("platform gateway: %s returned %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
