package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"doerly/internal/ai"
	"doerly/internal/db"
	"doerly/internal/engine"
	"doerly/internal/engine/authn"
	"doerly/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, authn.Service{Secret: "test-secret"})
	handler, err := New(Config{Engine: e, AI: ai.New("", ""), BasePath: "/api"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, token string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func register(t *testing.T, srv *testServer, email, role string) (string, UserResponse) {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/auth/register", map[string]any{
		"email":     email,
		"password":  "hunter2",
		"full_name": "Test " + email,
		"role":      role,
	}, "")
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d: %s", res.StatusCode, string(data))
	}
	var auth AuthResponse
	if err := json.Unmarshal(data, &auth); err != nil {
		t.Fatalf("unmarshal auth: %v", err)
	}
	if auth.Token == "" {
		t.Fatalf("empty token")
	}
	return auth.Token, auth.User
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/users/profile", nil, "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("expected unauthorized code, got %q", envelope.Error.Code)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/health", nil, "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be open, got %d", res.StatusCode)
	}
}

func TestRegisterLoginProfile(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token, user := register(t, srv, "web@example.com", "user")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/users/profile", nil, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("profile status %d: %s", res.StatusCode, string(data))
	}
	var profile UserResponse
	if err := json.Unmarshal(data, &profile); err != nil {
		t.Fatalf("unmarshal profile: %v", err)
	}
	if profile.ID != user.ID || profile.WalletBalance != "0.00" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	// duplicate email surfaces as conflict
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/auth/register", map[string]any{
		"email": "web@example.com", "password": "x", "full_name": "Dup",
	}, "")
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d: %s", res.StatusCode, string(data))
	}

	// bad password
	res, _ = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/auth/login", map[string]any{
		"email": "web@example.com", "password": "nope",
	}, "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", res.StatusCode)
	}
}

func TestWalletFlowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token, _ := register(t, srv, "wallet@example.com", "user")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/payments/add-funds", map[string]any{
		"amount": "100.00",
	}, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("add funds status %d: %s", res.StatusCode, string(data))
	}
	var wallet WalletResponse
	_ = json.Unmarshal(data, &wallet)
	if wallet.Balance != "100.00" {
		t.Fatalf("expected balance 100.00, got %s", wallet.Balance)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/payments/withdraw", map[string]any{
		"amount": "250.00",
	}, token)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on overdraft, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error.Code != "insufficient_funds" {
		t.Fatalf("expected insufficient_funds code, got %q", envelope.Error.Code)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/users/wallet", nil, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("wallet status %d", res.StatusCode)
	}
	_ = json.Unmarshal(data, &wallet)
	if wallet.Balance != "100.00" {
		t.Fatalf("balance changed on failed withdrawal: %s", wallet.Balance)
	}

	// malformed amount is rejected before any mutation
	res, _ = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/payments/add-funds", map[string]any{
		"amount": "lots",
	}, token)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad amount, got %d", res.StatusCode)
	}
}

func TestAcceptTaskConflictOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	creatorToken, _ := register(t, srv, "ct@example.com", "user")
	h1Token, h1 := register(t, srv, "h1t@example.com", "helper")
	h2Token, _ := register(t, srv, "h2t@example.com", "helper")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/tasks", map[string]any{
		"title":       "Hang shelves",
		"description": "Two shelves in the study",
		"task_type":   "helper",
	}, creatorToken)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", res.StatusCode, string(data))
	}
	var created TaskResponse
	_ = json.Unmarshal(data, &created)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/helpers/accept-task", map[string]any{
		"task_id": created.ID,
	}, h1Token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept status %d: %s", res.StatusCode, string(data))
	}
	var accepted TaskResponse
	_ = json.Unmarshal(data, &accepted)
	if accepted.AssignedTo == nil || *accepted.AssignedTo != h1.ID {
		t.Fatalf("unexpected assignee: %+v", accepted)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/helpers/accept-task", map[string]any{
		"task_id": created.ID,
	}, h2Token)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for second accept, got %d: %s", res.StatusCode, string(data))
	}
}

func TestExtractTaskDegradesWithoutAI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token, _ := register(t, srv, "ai@example.com", "user")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/ai/extract-task", map[string]any{
		"text": "buy milk tomorrow morning",
	}, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("extract status %d: %s", res.StatusCode, string(data))
	}
	var out TaskSuggestionResponse
	_ = json.Unmarshal(data, &out)
	if out.Error == "" {
		t.Fatalf("expected degraded error payload without an api key")
	}
}
