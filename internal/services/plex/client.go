package plex

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
	homeUsersPath  = "/api/v2/home/users"
	productName    = "Stitch"
	productVersion = "1.0"
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Config carries the connection settings for one Plex account.
type Config struct {
	// BaseURL is normally https://plex.tv; the home-users API lives on the
	// account service, not on an individual media server.
	BaseURL string
	Token   string
	// ClientID identifies this installation to plex.tv. Defaults to the
	// product name when empty.
	ClientID string
	Client   HTTPDoer
}

// Client lists the managed and full accounts in a Plex Home.
type Client struct {
	baseURL  string
	token    string
	clientID string
	client   HTTPDoer
}

// NewClient validates cfg and returns a home-users client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	token := strings.TrimSpace(cfg.Token)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "plex", "new client", "base URL is empty", nil)
	}
	if token == "" {
		return nil, services.Wrap(services.ErrConfiguration, "plex", "new client", "token is empty", nil)
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		clientID = strings.ToLower(productName)
	}
	doer := cfg.Client
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{baseURL: baseURL, token: token, clientID: clientID, client: doer}, nil
}

type homeUsersResponse struct {
	ID    int64      `json:"id"`
	Users []homeUser `json:"users"`
}

type homeUser struct {
	ID         int64  `json:"id"`
	UUID       string `json:"uuid"`
	Username   string `json:"username"`
	Title      string `json:"title"`
	Email      string `json:"email"`
	Admin      bool   `json:"admin"`
	Restricted bool   `json:"restricted"`
	Home       bool   `json:"home"`
}

// ListUsers fetches every account in the Plex Home. Managed accounts have no
// username or email; their title still carries a display name.
func (c *Client) ListUsers(ctx context.Context) ([]identity.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+homeUsersPath, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "plex", "list users", "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", c.token)
	c.applyStandardHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.TransportMarker(ctx, err), "plex", "list users", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, services.Wrap(services.ErrAuthorization, "plex", "list users", fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, services.Wrap(services.ErrUnavailable, "plex", "list users",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var parsed homeUsersResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "plex", "list users", "decode response", err)
	}

	records := make([]identity.Record, 0, len(parsed.Users))
	for _, user := range parsed.Users {
		nativeID := strings.TrimSpace(user.UUID)
		if nativeID == "" {
			nativeID = strconv.FormatInt(user.ID, 10)
		}
		record := identity.Record{
			NativeID:    nativeID,
			Username:    strings.TrimSpace(user.Username),
			Email:       strings.TrimSpace(user.Email),
			DisplayName: strings.TrimSpace(user.Title),
			IsAdmin:     user.Admin,
			IsActive:    !user.Restricted,
		}
		if user.Restricted {
			record.Metadata = map[string]string{"managed": "true"}
		}
		records = append(records, record)
	}
	return records, nil
}

func (c *Client) applyStandardHeaders(req *http.Request) {
	req.Header.Set("X-Plex-Client-Identifier", c.clientID)
	req.Header.Set("X-Plex-Product", productName)
	req.Header.Set("X-Plex-Version", productVersion)
}
