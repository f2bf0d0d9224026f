package opalapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSendsTokenHeader(t *testing.T) {
	var gotAuth, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		json.NewEncoder(w).Encode([]OSUser{})
	}))
	defer server.Close()

	client := New(server.URL, "secret-token")
	if _, err := client.ListOSUsers(context.Background()); err != nil {
		t.Fatalf("ListOSUsers failed: %v", err)
	}
	if gotAuth != "Token secret-token" {
		t.Errorf("got Authorization %q, want Token secret-token", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("got Content-Type %q", gotContentType)
	}
}

func TestLoginExchangesCredentials(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"token": "issued-token"})
	}))
	defer server.Close()

	client, err := Login(context.Background(), server.URL, "alice", "s3cret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if gotPath != "/login/" {
		t.Errorf("got path %q, want /login/", gotPath)
	}
	if gotBody["username"] != "alice" || gotBody["password"] != "s3cret" {
		t.Errorf("unexpected login payload: %v", gotBody)
	}
	if client.token != "issued-token" {
		t.Errorf("client should hold the issued token, got %q", client.token)
	}
}

func TestLoginRejectsEmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer server.Close()

	_, err := Login(context.Background(), server.URL, "alice", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
}

func TestClientReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "permission denied", http.StatusForbidden)
	}))
	defer server.Close()

	client := New(server.URL, "bad-token")
	_, err := client.ListApps(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("got status %d, want 403", apiErr.StatusCode)
	}
	if apiErr.Method != "/app/list/" {
		t.Errorf("got method %q, want /app/list/", apiErr.Method)
	}
}

func TestClientReportsMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := New(server.URL, "token")
	_, err := client.ListApps(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != 0 {
		t.Errorf("decode failures carry no status, got %d", apiErr.StatusCode)
	}
}

func TestListServersUnwrapsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/server/list/" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"web_servers":[{"id":"s1","hostname":"opal1.opalstack.com"}],"imap_servers":[],"smtp_servers":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, "token")
	servers, err := client.ListServers(context.Background())
	if err != nil {
		t.Fatalf("ListServers failed: %v", err)
	}
	if len(servers) != 1 || servers[0].Hostname != "opal1.opalstack.com" {
		t.Errorf("unexpected servers: %+v", servers)
	}
}

func TestListDatabasesUnwrapEnvelopes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/psqldb/list/":
			w.Write([]byte(`{"psqldbs":[{"id":"p1","name":"pgdb"}]}`))
		case "/mariadb/list/":
			w.Write([]byte(`{"mariadbs":[{"id":"m1","name":"mydb"}]}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer server.Close()

	client := New(server.URL, "token")

	pg, err := client.ListPostgresDBs(context.Background())
	if err != nil {
		t.Fatalf("ListPostgresDBs failed: %v", err)
	}
	if len(pg) != 1 || pg[0].Name != "pgdb" {
		t.Errorf("unexpected postgres list: %+v", pg)
	}

	my, err := client.ListMariaDBs(context.Background())
	if err != nil {
		t.Fatalf("ListMariaDBs failed: %v", err)
	}
	if len(my) != 1 || my[0].Name != "mydb" {
		t.Errorf("unexpected mariadb list: %+v", my)
	}
}

func TestCreateCallsSendBatchOfOne(t *testing.T) {
	var gotPayload []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("got method %s, want POST", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(App{ID: "a1", Name: "myproject"})
	}))
	defer server.Close()

	client := New(server.URL, "token")
	app, err := client.CreateApp(context.Background(), AppTypeCustom, "myproject", "u1")
	if err != nil {
		t.Fatalf("CreateApp failed: %v", err)
	}
	if app.ID != "a1" {
		t.Errorf("unexpected app: %+v", app)
	}

	if len(gotPayload) != 1 {
		t.Fatalf("create payloads are arrays of one, got %d entries", len(gotPayload))
	}
	entry := gotPayload[0]
	if entry["type"] != AppTypeCustom || entry["name"] != "myproject" || entry["osuser"] != "u1" {
		t.Errorf("unexpected create entry: %v", entry)
	}
}

func TestDefaultBaseURL(t *testing.T) {
	client := New("", "token")
	if client.baseURL != DefaultBaseURL {
		t.Errorf("got base URL %q, want %q", client.baseURL, DefaultBaseURL)
	}
}
