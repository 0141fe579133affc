package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"stitch/internal/identity"
	"stitch/internal/services"
)

const usersPath = "/Users"

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Config carries the connection settings for a Jellyfin or Emby server.
// Both expose the same /Users surface and accept the X-Emby-Token header.
type Config struct {
	BaseURL string
	APIKey  string
	// Label names the server in error messages; defaults to "jellyfin".
	Label  string
	Client HTTPDoer
}

// Client lists the accounts on a Jellyfin or Emby server.
type Client struct {
	baseURL string
	apiKey  string
	label   string
	client  HTTPDoer
}

// NewClient validates cfg and returns a users client.
func NewClient(cfg Config) (*Client, error) {
	label := strings.TrimSpace(cfg.Label)
	if label == "" {
		label = "jellyfin"
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	apiKey := strings.TrimSpace(cfg.APIKey)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, label, "new client", "base URL is empty", nil)
	}
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, label, "new client", "API key is empty", nil)
	}
	doer := cfg.Client
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, label: label, client: doer}, nil
}

type serverUser struct {
	Name   string     `json:"Name"`
	ID     string     `json:"Id"`
	Policy userPolicy `json:"Policy"`
}

type userPolicy struct {
	IsAdministrator bool `json:"IsAdministrator"`
	IsDisabled      bool `json:"IsDisabled"`
}

// ListUsers fetches every account on the server. Jellyfin does not expose
// email addresses; matching for these records relies on username alone.
func (c *Client) ListUsers(ctx context.Context) ([]identity.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+usersPath, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, c.label, "list users", "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Emby-Token", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.TransportMarker(ctx, err), c.label, "list users", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, services.Wrap(services.ErrAuthorization, c.label, "list users", fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, services.Wrap(services.ErrUnavailable, c.label, "list users",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var users []serverUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, services.Wrap(services.ErrUnavailable, c.label, "list users", "decode response", err)
	}

	records := make([]identity.Record, 0, len(users))
	for _, user := range users {
		records = append(records, identity.Record{
			NativeID:    strings.TrimSpace(user.ID),
			Username:    strings.TrimSpace(user.Name),
			DisplayName: strings.TrimSpace(user.Name),
			IsAdmin:     user.Policy.IsAdministrator,
			IsActive:    !user.Policy.IsDisabled,
		})
	}
	return records, nil
}
