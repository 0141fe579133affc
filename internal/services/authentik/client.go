package authentik

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
	coreUsersPath = "/api/v3/core/users/"
	maxPages      = 100
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Config carries the connection settings for an Authentik instance.
type Config struct {
	BaseURL string
	Token   string
	Client  HTTPDoer
}

// Client lists the users of an Authentik identity provider.
type Client struct {
	baseURL string
	token   string
	client  HTTPDoer
}

// NewClient validates cfg and returns a core-users client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	token := strings.TrimSpace(cfg.Token)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "authentik", "new client", "base URL is empty", nil)
	}
	if token == "" {
		return nil, services.Wrap(services.ErrConfiguration, "authentik", "new client", "token is empty", nil)
	}
	doer := cfg.Client
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{baseURL: baseURL, token: token, client: doer}, nil
}

type usersPage struct {
	Pagination pagination      `json:"pagination"`
	Results    []authentikUser `json:"results"`
}

type pagination struct {
	Next       int `json:"next"`
	Previous   int `json:"previous"`
	Count      int `json:"count"`
	Current    int `json:"current"`
	TotalPages int `json:"total_pages"`
}

type authentikUser struct {
	PK          int64  `json:"pk"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
}

// ListUsers fetches every user page. Authentik reports next as 0 on the
// final page.
func (c *Client) ListUsers(ctx context.Context) ([]identity.Record, error) {
	var records []identity.Record
	page := 1
	for fetched := 0; fetched < maxPages; fetched++ {
		parsed, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		for _, user := range parsed.Results {
			records = append(records, identity.Record{
				NativeID:    strconv.FormatInt(user.PK, 10),
				Username:    strings.TrimSpace(user.Username),
				Email:       strings.TrimSpace(user.Email),
				DisplayName: strings.TrimSpace(user.Name),
				IsAdmin:     user.IsSuperuser,
				IsActive:    user.IsActive,
			})
		}
		if parsed.Pagination.Next <= 0 || len(parsed.Results) == 0 {
			return records, nil
		}
		page = parsed.Pagination.Next
	}
	return nil, services.Wrap(services.ErrUnavailable, "authentik", "list users",
		fmt.Sprintf("pagination did not terminate after %d pages", maxPages), nil)
}

func (c *Client) fetchPage(ctx context.Context, page int) (*usersPage, error) {
	url := fmt.Sprintf("%s%s?page=%d", c.baseURL, coreUsersPath, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "authentik", "list users", "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.TransportMarker(ctx, err), "authentik", "list users", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, services.Wrap(services.ErrAuthorization, "authentik", "list users", fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, services.Wrap(services.ErrUnavailable, "authentik", "list users",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var parsed usersPage
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "authentik", "list users", "decode response", err)
	}
	return &parsed, nil
}
