package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/code-sleuth/ike-wp/internal/manager/models"
	"github.com/code-sleuth/ike-wp/internal/manager/rag"
	"github.com/code-sleuth/ike-wp/internal/manager/services"

	"github.com/rs/zerolog"
)

const testAuthKey = "secret-key"

type fakeDatabases struct {
	mu         sync.Mutex
	ensureArgs []string
	create     []bool
	status     *services.DatabaseStatus
	err        error
	delay      time.Duration
	active     atomic.Int32
	maxActive  atomic.Int32
}

func (f *fakeDatabases) EnsureDatabase(_ context.Context, siteURL string, create bool) (*services.DatabaseStatus, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		current := f.maxActive.Load()
		if n <= current || f.maxActive.CompareAndSwap(current, n) {
			break
		}
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	f.ensureArgs = append(f.ensureArgs, siteURL)
	f.create = append(f.create, create)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if f.status != nil {
		return f.status, nil
	}
	return &services.DatabaseStatus{Message: "Database not present for 'example.com'"}, nil
}

func (f *fakeDatabases) DeleteDatabase(_ context.Context, siteURL string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	namespace, _ := services.SiteNamespace(siteURL)
	return fmt.Sprintf("Database deleted for '%s'", namespace), nil
}

type fakeChat struct {
	namespace   string
	history     []models.ChatMessage
	temperature *float32
	err         error
}

func (f *fakeChat) Generate(
	_ context.Context,
	namespace string,
	history []models.ChatMessage,
	temperature *float32,
) ([]models.ChatMessage, error) {
	f.namespace, f.history, f.temperature = namespace, history, temperature
	if f.err != nil {
		return nil, f.err
	}
	return append(history, models.ChatMessage{Role: models.RoleAssistant, Content: "answer"}), nil
}

func newTestServer(databases *fakeDatabases, chat *fakeChat) http.Handler {
	return New(databases, chat, testAuthKey, zerolog.Nop()).Handler()
}

func doRequest(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp messageResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp.Message
}

func TestHealthz(t *testing.T) {
	handler := newTestServer(&fakeDatabases{}, &fakeChat{})
	rec := doRequest(t, handler, http.MethodGet, "/healthz", "", "")

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected a request id header")
	}
}

func TestAuthentication(t *testing.T) {
	tests := []struct {
		name         string
		header       string
		expectedCode int
	}{
		{name: "missing header", header: "", expectedCode: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", expectedCode: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + testAuthKey, expectedCode: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer " + testAuthKey, expectedCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			databases := &fakeDatabases{}
			handler := newTestServer(databases, &fakeChat{})

			req := httptest.NewRequest(http.MethodPost, "/db", bytes.NewBufferString(`{"site_url":"https://example.com"}`))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedCode {
				t.Fatalf("Expected %d, got %d", tt.expectedCode, rec.Code)
			}
			if tt.expectedCode == http.StatusUnauthorized {
				if msg := decodeMessage(t, rec); msg != msgUnauthorized {
					t.Errorf("Unexpected message %q", msg)
				}
				if len(databases.ensureArgs) != 0 {
					t.Error("Expected no work for unauthorized requests")
				}
			}
		})
	}
}

func TestAuthentication_EmptyKeyRejectsAll(t *testing.T) {
	handler := New(&fakeDatabases{}, &fakeChat{}, "", zerolog.Nop()).Handler()
	req := httptest.NewRequest(http.MethodPost, "/db", bytes.NewBufferString(`{"site_url":"https://example.com"}`))
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a configured key, got %d", rec.Code)
	}
}

func TestSiteURLValidation(t *testing.T) {
	tests := []struct {
		name            string
		method          string
		path            string
		body            string
		expectedMessage string
	}{
		{name: "db missing site_url", method: http.MethodPost, path: "/db", body: `{}`, expectedMessage: msgMissingSiteURL},
		{name: "db not a url", method: http.MethodPost, path: "/db", body: `{"site_url":"example.com"}`, expectedMessage: msgInvalidSiteURL},
		{name: "delete missing site_url", method: http.MethodDelete, path: "/db", body: `{}`, expectedMessage: msgMissingSiteURL},
		{name: "chat not a url", method: http.MethodPost, path: "/chat", body: `{"site_url":"","messages":[]}`, expectedMessage: msgInvalidSiteURL},
		{name: "invalid json", method: http.MethodPost, path: "/db", body: `{`, expectedMessage: msgInvalidBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestServer(&fakeDatabases{}, &fakeChat{})
			rec := doRequest(t, handler, tt.method, tt.path, testAuthKey, tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d", rec.Code)
			}
			if msg := decodeMessage(t, rec); msg != tt.expectedMessage {
				t.Errorf("Expected %q, got %q", tt.expectedMessage, msg)
			}
		})
	}
}

func TestEnsureDatabaseHandler(t *testing.T) {
	databases := &fakeDatabases{status: &services.DatabaseStatus{
		Message:         "Database created for 'example.com'",
		DatabasePresent: true,
		DatabaseCreated: true,
	}}
	handler := newTestServer(databases, &fakeChat{})

	rec := doRequest(t, handler, http.MethodPost, "/db", testAuthKey,
		`{"site_url":"https://example.com","create_if_not_present":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var status services.DatabaseStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if status != *databases.status {
		t.Errorf("Expected %+v, got %+v", *databases.status, status)
	}
	if len(databases.create) != 1 || !databases.create[0] || databases.ensureArgs[0] != "https://example.com" {
		t.Errorf("Unexpected service call %v %v", databases.ensureArgs, databases.create)
	}

	doRequest(t, handler, http.MethodPost, "/db", testAuthKey, `{"site_url":"https://example.com"}`)
	if databases.create[1] {
		t.Error("Expected create_if_not_present to default to false")
	}
}

func TestDeleteDatabaseHandler(t *testing.T) {
	handler := newTestServer(&fakeDatabases{}, &fakeChat{})

	rec := doRequest(t, handler, http.MethodDelete, "/db", testAuthKey, `{"site_url":"https://www.example.com/blog"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if msg := decodeMessage(t, rec); msg != "Database deleted for 'www.example.com'" {
		t.Errorf("Unexpected message %q", msg)
	}
}

func TestChatHandler(t *testing.T) {
	chat := &fakeChat{}
	handler := newTestServer(&fakeDatabases{}, chat)

	body := `{"site_url":"https://www.example.com","temperature":0.2,` +
		`"messages":[{"role":"system","content":"be nice"},{"role":"user","content":"hi"}]}`
	rec := doRequest(t, handler, http.MethodPost, "/chat", testAuthKey, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var messages []models.ChatMessage
	if err := json.NewDecoder(rec.Body).Decode(&messages); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(messages) != 3 || messages[2].Content != "answer" || messages[2].Role != models.RoleAssistant {
		t.Errorf("Unexpected messages %+v", messages)
	}
	if chat.namespace != "www.example.com" {
		t.Errorf("Expected namespace www.example.com, got %s", chat.namespace)
	}
	if chat.temperature == nil || *chat.temperature != 0.2 {
		t.Errorf("Expected temperature 0.2, got %v", chat.temperature)
	}

	doRequest(t, handler, http.MethodPost, "/chat", testAuthKey,
		`{"site_url":"https://www.example.com","messages":[{"role":"user","content":"hi"}]}`)
	if chat.temperature != nil {
		t.Errorf("Expected nil temperature when omitted, got %v", *chat.temperature)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		expectedCode    int
		expectedMessage string
	}{
		{
			name:         "unsupported site",
			err:          fmt.Errorf("%w: https://example.com", services.ErrUnsupportedSite),
			expectedCode: http.StatusUnprocessableEntity,
		},
		{
			name:         "conversation validation",
			err:          rag.ErrLastMessageNotUser,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:            "unexpected failure",
			err:             errors.New("vector store exploded"),
			expectedCode:    http.StatusInternalServerError,
			expectedMessage: msgInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestServer(&fakeDatabases{err: tt.err}, &fakeChat{err: tt.err})

			for _, path := range []string{"/db", "/chat"} {
				rec := doRequest(t, handler, http.MethodPost, path, testAuthKey,
					`{"site_url":"https://example.com","messages":[{"role":"user","content":"hi"}]}`)
				if rec.Code != tt.expectedCode {
					t.Errorf("%s: expected %d, got %d", path, tt.expectedCode, rec.Code)
				}
				msg := decodeMessage(t, rec)
				if tt.expectedMessage != "" && msg != tt.expectedMessage {
					t.Errorf("%s: expected %q, got %q", path, tt.expectedMessage, msg)
				}
			}
		})
	}
}

func TestEnsureDatabase_SerialisesSameHost(t *testing.T) {
	databases := &fakeDatabases{delay: 20 * time.Millisecond}
	handler := newTestServer(databases, &fakeChat{})

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doRequest(t, handler, http.MethodPost, "/db", testAuthKey, `{"site_url":"https://example.com/a"}`)
		}()
	}
	wg.Wait()

	if got := databases.maxActive.Load(); got != 1 {
		t.Errorf("Expected requests for one host to run one at a time, saw %d concurrently", got)
	}
	if len(databases.ensureArgs) != 4 {
		t.Errorf("Expected 4 calls, got %d", len(databases.ensureArgs))
	}
}

func TestHostLocks_ReleasesEntries(t *testing.T) {
	locks := newHostLocks()

	unlockA := locks.lock("a.example.com")
	unlockB := locks.lock("b.example.com")
	if got := locks.size(); got != 2 {
		t.Fatalf("Expected 2 held locks, got %d", got)
	}

	acquired := make(chan func())
	go func() {
		acquired <- locks.lock("a.example.com")
	}()

	select {
	case <-acquired:
		t.Fatal("Expected the second lock on the same host to wait")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	unlockWaiter := <-acquired
	if got := locks.size(); got != 2 {
		t.Errorf("Expected the waiter to keep the entry, got %d entries", got)
	}

	unlockWaiter()
	unlockB()
	if got := locks.size(); got != 0 {
		t.Errorf("Expected every entry to be removed, got %d", got)
	}
}

func TestEnsureDatabase_LeavesNoHostLocks(t *testing.T) {
	databases := &fakeDatabases{}
	srv := New(databases, &fakeChat{}, testAuthKey, zerolog.Nop())
	handler := srv.Handler()

	for _, site := range []string{"https://one.example.com", "https://two.example.com", "https://three.example.com"} {
		doRequest(t, handler, http.MethodPost, "/db", testAuthKey, fmt.Sprintf(`{"site_url":%q}`, site))
	}

	if got := srv.locks.size(); got != 0 {
		t.Errorf("Expected no host locks after the requests finished, got %d", got)
	}
}
