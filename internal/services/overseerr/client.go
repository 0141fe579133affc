package overseerr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"stitch/internal/identity"
	"stitch/internal/services"
)

const (
	usersPath = "/api/v1/user"
	pageSize  = 100
	maxPages  = 100

	permissionAdmin = 2
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Config carries the connection settings for an Overseerr instance.
type Config struct {
	BaseURL string
	APIKey  string
	Client  HTTPDoer
}

// Client lists the accounts known to an Overseerr instance.
type Client struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// NewClient validates cfg and returns a users client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	apiKey := strings.TrimSpace(cfg.APIKey)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "overseerr", "new client", "base URL is empty", nil)
	}
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "overseerr", "new client", "API key is empty", nil)
	}
	doer := cfg.Client
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, client: doer}, nil
}

type userPage struct {
	PageInfo pageInfo       `json:"pageInfo"`
	Results  []overseerUser `json:"results"`
}

type pageInfo struct {
	Pages    int `json:"pages"`
	PageSize int `json:"pageSize"`
	Results  int `json:"results"`
	Page     int `json:"page"`
}

type overseerUser struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	PlexUsername string `json:"plexUsername"`
	DisplayName  string `json:"displayName"`
	Permissions  int64  `json:"permissions"`
}

// ListUsers walks the paginated user endpoint until every page is consumed.
// Plex-linked accounts often have no local username; the Plex username fills
// in so matching still has a handle.
func (c *Client) ListUsers(ctx context.Context) ([]identity.Record, error) {
	var records []identity.Record
	skip := 0
	for page := 0; page < maxPages; page++ {
		parsed, err := c.fetchPage(ctx, skip)
		if err != nil {
			return nil, err
		}
		for _, user := range parsed.Results {
			records = append(records, mapUser(user))
		}
		skip += len(parsed.Results)
		if len(parsed.Results) == 0 || skip >= parsed.PageInfo.Results {
			return records, nil
		}
	}
	return nil, services.Wrap(services.ErrUnavailable, "overseerr", "list users",
		fmt.Sprintf("pagination did not terminate after %d pages", maxPages), nil)
}

func (c *Client) fetchPage(ctx context.Context, skip int) (*userPage, error) {
	url := fmt.Sprintf("%s%s?take=%d&skip=%d", c.baseURL, usersPath, pageSize, skip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "overseerr", "list users", "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.TransportMarker(ctx, err), "overseerr", "list users", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, services.Wrap(services.ErrAuthorization, "overseerr", "list users", fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, services.Wrap(services.ErrUnavailable, "overseerr", "list users",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var parsed userPage
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "overseerr", "list users", "decode response", err)
	}
	return &parsed, nil
}

func mapUser(user overseerUser) identity.Record {
	username := strings.TrimSpace(user.Username)
	plexUsername := strings.TrimSpace(user.PlexUsername)
	record := identity.Record{
		NativeID:    strconv.FormatInt(user.ID, 10),
		Username:    username,
		Email:       strings.TrimSpace(user.Email),
		DisplayName: strings.TrimSpace(user.DisplayName),
		IsAdmin:     user.Permissions&permissionAdmin != 0,
		IsActive:    true,
	}
	if record.Username == "" {
		record.Username = plexUsername
	}
	if plexUsername != "" && plexUsername != record.Username {
		record.Metadata = map[string]string{"plex_username": plexUsername}
	}
	return record
}
