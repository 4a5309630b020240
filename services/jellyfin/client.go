// Package jellyfin reads watched-state from a Jellyfin server over its REST
// API. Access is read-only: the sync never writes back to Jellyfin.
package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const pageSize = 200

// ItemsResponse is the paged envelope Jellyfin wraps item listings in.
type ItemsResponse struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
	StartIndex       int    `json:"StartIndex"`
}

// Item is a Jellyfin library movie with the fields the sync cares about.
type Item struct {
	Name           string            `json:"Name"`
	ID             string            `json:"Id"`
	ProductionYear int               `json:"ProductionYear"`
	ProviderIds    map[string]string `json:"ProviderIds"`
	UserData       *UserData         `json:"UserData"`
}

// UserData carries the per-user watched state attached to an item.
type UserData struct {
	PlayCount      int        `json:"PlayCount"`
	Played         bool       `json:"Played"`
	IsFavorite     bool       `json:"IsFavorite"`
	LastPlayedDate *time.Time `json:"LastPlayedDate"`
}

// TmdbID returns the item's TMDB catalog id, if the library has one.
func (i Item) TmdbID() (string, bool) {
	for key, value := range i.ProviderIds {
		if strings.EqualFold(key, "Tmdb") && value != "" {
			return value, true
		}
	}
	return "", false
}

// User is a Jellyfin server account.
type User struct {
	Name string `json:"Name"`
	ID   string `json:"Id"`
}

// Client talks to one Jellyfin server with an API key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    ensureScheme(baseURL),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

func ensureScheme(h string) string {
	if strings.HasPrefix(h, "http://") || strings.HasPrefix(h, "https://") {
		return strings.TrimRight(h, "/")
	}
	return "https://" + strings.TrimRight(h, "/")
}

// Users lists the server's accounts, for mapping sync accounts to Jellyfin
// users in the UI.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.getJSON(ctx, c.baseURL+"/Users", &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// User fetches a single account by id.
func (c *Client) User(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := c.getJSON(ctx, c.baseURL+"/Users/"+url.PathEscape(userID), &user); err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", userID, err)
	}
	return &user, nil
}

// Movies pages through the user's movie library. With playedOnly the list
// is restricted to movies Jellyfin considers played. Virtual items (missing
// files the server knows about) are excluded server-side.
func (c *Client) Movies(ctx context.Context, userID string, playedOnly bool) ([]Item, error) {
	var results []Item
	start := 0

	for {
		query := url.Values{
			"IncludeItemTypes": {"Movie"},
			"Recursive":        {"true"},
			"IsVirtualItem":    {"false"},
			"Fields":           {"ProviderIds,ProductionYear"},
			"Limit":            {fmt.Sprintf("%d", pageSize)},
			"StartIndex":       {fmt.Sprintf("%d", start)},
		}
		if playedOnly {
			query.Set("Filters", "IsPlayed")
		}
		endpoint := fmt.Sprintf("%s/Users/%s/Items?%s", c.baseURL, url.PathEscape(userID), query.Encode())

		var page ItemsResponse
		if err := c.getJSON(ctx, endpoint, &page); err != nil {
			return nil, fmt.Errorf("fetch movies: %w", err)
		}

		for _, item := range page.Items {
			if !playedOnly {
				results = append(results, item)
				continue
			}
			if item.UserData != nil && (item.UserData.Played || item.UserData.PlayCount > 0) {
				results = append(results, item)
			}
		}

		if len(page.Items) < pageSize {
			break
		}
		start += pageSize
	}

	return results, nil
}

// getJSON performs an authenticated GET and decodes the response. Transient
// failures are retried with backoff; Jellyfin lives on the local network but
// still drops requests during library scans.
func (c *Client) getJSON(ctx context.Context, endpoint string, v any) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "application/json")
			req.Header.Set("Authorization", fmt.Sprintf("MediaBrowser Token=\"%s\"", c.apiKey))

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return retry.Unrecoverable(fmt.Errorf("jellyfin rejected API key: %s", resp.Status))
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				body, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("jellyfin returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
			}

			return json.NewDecoder(resp.Body).Decode(v)
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			log.Printf("[jellyfin] request failed (attempt %d/3): %v", attempt+1, err)
		}),
	)
}
