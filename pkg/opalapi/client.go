// Package opalapi is a typed client for the shared-hosting control-panel
// HTTP API: accounts ("OS users"), apps, relational databases and the
// servers they live on.
package opalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the hosted control panel endpoint.
const DefaultBaseURL = "https://my.opalstack.com/api/v1"

// APIError reports a failed API call: a non-2xx status or a body that is
// not valid JSON.
type APIError struct {
	// Method is the API method path that failed (e.g. "/app/create/")
	Method string

	// StatusCode is the HTTP status, 0 when the body was unreadable
	StatusCode int

	// Body is the raw response body
	Body string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("control API %s returned HTTP %d: %s", e.Method, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("control API %s returned an invalid response: %s", e.Method, e.Body)
}

// Client talks to the control-panel API using token authentication.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client authenticating with an existing API token.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Login exchanges a username and password for an API token and returns an
// authenticated client.
func Login(ctx context.Context, baseURL, username, password string) (*Client, error) {
	c := New(baseURL, "")
	var resp struct {
		Token string `json:"token"`
	}
	payload := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/login/", payload, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, &APIError{Method: "/login/", Body: "no token in login response"}
	}
	c.token = resp.Token
	return c, nil
}

// do performs one API request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, apiPath string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", apiPath, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPath, reqBody)
	if err != nil {
		return fmt.Errorf("build %s request: %w", apiPath, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	log.Debug().Str("method", method).Str("path", apiPath).Msg("control API request")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("control API %s: %w", apiPath, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Method: apiPath, StatusCode: resp.StatusCode, Body: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Method: apiPath, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Method: apiPath, Body: string(raw)}
	}
	return nil
}

// ListOSUsers returns all accounts visible to the token.
func (c *Client) ListOSUsers(ctx context.Context) ([]OSUser, error) {
	var out []OSUser
	if err := c.do(ctx, http.MethodGet, "/osuser/list/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadOSUser fetches one account by id.
func (c *Client) ReadOSUser(ctx context.Context, id string) (*OSUser, error) {
	var out OSUser
	if err := c.do(ctx, http.MethodGet, "/osuser/read/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOSUser creates an account on the given server. The panel accepts
// create calls as batches; this client always sends a batch of one.
func (c *Client) CreateOSUser(ctx context.Context, name, password, serverID string) (*OSUser, error) {
	payload := []map[string]any{{
		"json":     map[string]any{},
		"name":     name,
		"password": password,
		"server":   serverID,
	}}
	var out OSUser
	if err := c.do(ctx, http.MethodPost, "/osuser/create/", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListServers returns the panel's web servers.
func (c *Client) ListServers(ctx context.Context) ([]Server, error) {
	var out serverList
	if err := c.do(ctx, http.MethodGet, "/server/list/", nil, &out); err != nil {
		return nil, err
	}
	return out.WebServers, nil
}

// ListApps returns all apps visible to the token.
func (c *Client) ListApps(ctx context.Context) ([]App, error) {
	var out []App
	if err := c.do(ctx, http.MethodGet, "/app/list/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadApp fetches one app by id.
func (c *Client) ReadApp(ctx context.Context, id string) (*App, error) {
	var out App
	if err := c.do(ctx, http.MethodGet, "/app/read/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateApp creates an app of the given type owned by osUserID.
func (c *Client) CreateApp(ctx context.Context, appType, name, osUserID string) (*App, error) {
	payload := []map[string]any{{
		"json":   map[string]any{},
		"type":   appType,
		"name":   name,
		"osuser": osUserID,
	}}
	var out App
	if err := c.do(ctx, http.MethodPost, "/app/create/", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPostgresDBs returns all postgres databases.
func (c *Client) ListPostgresDBs(ctx context.Context) ([]Database, error) {
	var out databaseList
	if err := c.do(ctx, http.MethodGet, "/psqldb/list/", nil, &out); err != nil {
		return nil, err
	}
	return out.PostgresDBs, nil
}

// ReadPostgresDB fetches one postgres database by id.
func (c *Client) ReadPostgresDB(ctx context.Context, id string) (*Database, error) {
	var out Database
	if err := c.do(ctx, http.MethodGet, "/psqldb/read/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReadPostgresUser fetches one postgres database user by id.
func (c *Client) ReadPostgresUser(ctx context.Context, id string) (*DBUser, error) {
	var out DBUser
	if err := c.do(ctx, http.MethodGet, "/psqluser/read/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePostgresDB creates a postgres database; the panel creates a
// matching database user automatically.
func (c *Client) CreatePostgresDB(ctx context.Context, name, serverID, charset string) (*Database, error) {
	payload := []map[string]any{{
		"name":    name,
		"server":  serverID,
		"charset": charset,
	}}
	var out Database
	if err := c.do(ctx, http.MethodPost, "/psqldb/create/", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMariaDBs returns all mariadb databases.
func (c *Client) ListMariaDBs(ctx context.Context) ([]Database, error) {
	var out databaseList
	if err := c.do(ctx, http.MethodGet, "/mariadb/list/", nil, &out); err != nil {
		return nil, err
	}
	return out.MariaDBs, nil
}

// ReadMariaDB fetches one mariadb database by id.
func (c *Client) ReadMariaDB(ctx context.Context, id string) (*Database, error) {
	var out Database
	if err := c.do(ctx, http.MethodGet, "/mariadb/read/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReadMariaUser fetches one mariadb database user by id.
func (c *Client) ReadMariaUser(ctx context.Context, id string) (*DBUser, error) {
	var out DBUser
	if err := c.do(ctx, http.MethodGet, "/mariauser/read/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateMariaDB creates a mariadb database.
func (c *Client) CreateMariaDB(ctx context.Context, name, serverID, charset string) (*Database, error) {
	payload := []map[string]any{{
		"name":    name,
		"server":  serverID,
		"charset": charset,
	}}
	var out Database
	if err := c.do(ctx, http.MethodPost, "/mariadb/create/", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
