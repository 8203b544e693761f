package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"portfolio/api/internal/authpw"
	"portfolio/api/internal/config"
	"portfolio/api/internal/content"
	"portfolio/api/internal/docstore"
	"portfolio/api/internal/search"
	"portfolio/api/internal/store"
)

const (
	testEmail    = "owner@example.com"
	testPassword = "correct horse battery"
)

// fakeUsers backs both the authpw user store and session lookups.
type fakeUsers struct {
	users map[string]store.User
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return store.User{}, fmt.Errorf("user not found")
	}
	return u, nil
}

func (f *fakeUsers) CreateUser(_ context.Context, user store.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUsers) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	u := f.users[userID]
	u.PasswordHash = passwordHash
	f.users[userID] = u
	return nil
}

func (f *fakeUsers) CountUsers(context.Context) (int, error) {
	return len(f.users), nil
}

// fakeSessions is an in-memory refresh token store.
type fakeSessions struct {
	tokens map[string]store.User
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, tokenHash string, user store.User, _ time.Time) error {
	f.tokens[tokenHash] = user
	return nil
}

func (f *fakeSessions) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	u, ok := f.tokens[tokenHash]
	if !ok {
		return store.User{}, fmt.Errorf("token not found")
	}
	return u, nil
}

func (f *fakeSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	delete(f.tokens, tokenHash)
	return nil
}

type serverOption func(*Deps)

func withoutAuth() serverOption {
	return func(d *Deps) {
		d.AuthPW = nil
		d.Sessions = nil
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *HTTPServer {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	users := &fakeUsers{users: map[string]store.User{
		"usr-1": {ID: "usr-1", DisplayName: "Avery", Email: testEmail, PasswordHash: string(hash)},
	}}

	contentSvc := content.New(docstore.NewMemory())

	cfg := config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		AdminName:  "Avery",
		CORSOrigin: "*",
	}

	deps := Deps{
		Content:  contentSvc,
		AuthPW:   authpw.NewService(users),
		Users:    users,
		Sessions: &fakeSessions{tokens: make(map[string]store.User)},
		Search:   search.NewService(nil, search.NewMirror(contentRecords{contentSvc})),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	svc := New(cfg, deps)
	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(contentSvc.Close)

	return NewHTTPServer(svc, cfg.CORSOrigin)
}

func doJSON(t *testing.T, server *HTTPServer, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	payload := decodeMap(t, rec)
	if payload["code"] != code {
		t.Fatalf("code = %v, want %s", payload["code"], code)
	}
}

func signIn(t *testing.T, server *HTTPServer) (token, refresh string) {
	t.Helper()
	rec := doJSON(t, server, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email":    testEmail,
		"password": testPassword,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("signin status = %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeMap(t, rec)
	token, _ = payload["accessToken"].(string)
	refresh, _ = payload["refreshToken"].(string)
	if token == "" || refresh == "" {
		t.Fatalf("signin payload missing tokens: %v", payload)
	}
	return token, refresh
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if payload := decodeMap(t, rec); payload["ok"] != true {
		t.Errorf("payload = %v", payload)
	}
}

func TestReadyReportsCollections(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/api/ready", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeMap(t, rec)
	checks, _ := payload["checks"].(map[string]any)
	if checks["collections"] == nil {
		t.Errorf("ready payload missing collection states: %v", payload)
	}
}

func TestOptionsPreflights(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodOptions, "/api/admin/profile", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}

func TestSignInSuccess(t *testing.T) {
	server := newTestServer(t)
	token, _ := signIn(t, server)

	rec := doJSON(t, server, http.MethodGet, "/api/session", token, nil)
	payload := decodeMap(t, rec)
	if payload["authenticated"] != true {
		t.Errorf("session payload = %v", payload)
	}
	if payload["userName"] != "Avery" {
		t.Errorf("userName = %v", payload["userName"])
	}
}

func TestSignInUnknownEmail(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email":    "stranger@example.com",
		"password": "whatever",
	})
	assertErrorCode(t, rec, http.StatusUnauthorized, "USER_NOT_FOUND")
}

func TestSignInWrongPassword(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email":    testEmail,
		"password": "nope",
	})
	assertErrorCode(t, rec, http.StatusUnauthorized, "WRONG_PASSWORD")
}

func TestSignInWithoutAuthBackend(t *testing.T) {
	server := newTestServer(t, withoutAuth())
	rec := doJSON(t, server, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email":    testEmail,
		"password": testPassword,
	})
	assertErrorCode(t, rec, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE")
}

func TestSessionWithoutToken(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/api/session", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if payload := decodeMap(t, rec); payload["authenticated"] != false {
		t.Errorf("payload = %v", payload)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	server := newTestServer(t)
	_, refresh := signIn(t, server)

	rec := doJSON(t, server, http.MethodPost, "/api/session/refresh", "", map[string]string{"refreshToken": refresh})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeMap(t, rec)
	next, _ := payload["refreshToken"].(string)
	if next == "" || next == refresh {
		t.Errorf("refresh token not rotated")
	}

	// The old token is single-use.
	rec = doJSON(t, server, http.MethodPost, "/api/session/refresh", "", map[string]string{"refreshToken": refresh})
	assertErrorCode(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestRefreshInvalidToken(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodPost, "/api/session/refresh", "", map[string]string{"refreshToken": "garbage"})
	assertErrorCode(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestAdminRoutesRequireSession(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPut, "/api/admin/profile", "", map[string]string{"title": "X"})
	assertErrorCode(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")

	rec = doJSON(t, server, http.MethodPut, "/api/admin/profile", "not-a-token", map[string]string{"title": "X"})
	assertErrorCode(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestContentSnapshot(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/api/content", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	payload := decodeMap(t, rec)
	if payload["isLoading"] != false {
		t.Errorf("isLoading = %v", payload["isLoading"])
	}
	profile, _ := payload["profile"].(map[string]any)
	if profile["name"] == "" {
		t.Error("snapshot missing profile")
	}
}

func TestContentCollectionEndpoint(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/content/publications", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	payload := decodeMap(t, rec)
	if payload["items"] == nil {
		t.Errorf("publications document missing items: %v", payload)
	}

	rec = doJSON(t, server, http.MethodGet, "/api/content/bogus", "", nil)
	assertErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestUpdateProfile(t *testing.T) {
	server := newTestServer(t)
	token, _ := signIn(t, server)

	rec := doJSON(t, server, http.MethodPut, "/api/admin/profile", token, map[string]string{"title": "Dean of Engineering"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if payload := decodeMap(t, rec); payload["title"] != "Dean of Engineering" {
		t.Errorf("profile title = %v", payload["title"])
	}
}

func TestAddResearchInterestValidation(t *testing.T) {
	server := newTestServer(t)
	token, _ := signIn(t, server)

	rec := doJSON(t, server, http.MethodPost, "/api/admin/research-interests", token, map[string]string{"title": "   "})
	assertErrorCode(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestResearchInterestLifecycle(t *testing.T) {
	server := newTestServer(t)
	token, _ := signIn(t, server)

	rec := doJSON(t, server, http.MethodPost, "/api/admin/research-interests", token, map[string]string{"title": "Quantum Networks"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeMap(t, rec)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("created interest missing id: %v", created)
	}

	rec = doJSON(t, server, http.MethodDelete, "/api/admin/research-interests/"+id, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAddPublicationValidatesRequiredFields(t *testing.T) {
	server := newTestServer(t)
	token, _ := signIn(t, server)

	rec := doJSON(t, server, http.MethodPost, "/api/admin/publications", token, map[string]string{
		"title":   "No Venue",
		"authors": "A. Lindqvist",
		"year":    "2026",
	})
	assertErrorCode(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	if payload := decodeMap(t, rec); !strings.Contains(payload["error"].(string), "venue") {
		t.Errorf("error should name the missing field: %v", payload["error"])
	}
}

func TestAddActivityRequiresDescription(t *testing.T) {
	server := newTestServer(t)
	token, _ := signIn(t, server)

	rec := doJSON(t, server, http.MethodPost, "/api/admin/activities", token, map[string]string{
		"title":        "Program Committee",
		"organization": "NSDI",
		"startDate":    "2026-01",
	})
	assertErrorCode(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	if payload := decodeMap(t, rec); !strings.Contains(payload["error"].(string), "description") {
		t.Errorf("error should name the missing field: %v", payload["error"])
	}
}

func TestPublicationLifecycle(t *testing.T) {
	server := newTestServer(t)
	token, _ := signIn(t, server)

	rec := doJSON(t, server, http.MethodPost, "/api/admin/publications", token, map[string]string{
		"title":   "Edge Caching at Scale",
		"authors": "A. Lindqvist",
		"venue":   "NSDI",
		"year":    "2026",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	id, _ := decodeMap(t, rec)["id"].(string)

	rec = doJSON(t, server, http.MethodPut, "/api/admin/publications/"+id, token, map[string]string{"year": "2027"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, server, http.MethodGet, "/api/search?q=edge+caching", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}
	results := decodeMap(t, rec)
	if results["total"].(float64) < 1 {
		t.Errorf("search should find the new publication: %v", results)
	}

	rec = doJSON(t, server, http.MethodDelete, "/api/admin/publications/"+id, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSearchValidatesPagination(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/api/search?q=x&limit=abc", "", nil)
	assertErrorCode(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestLabMemberEndpoints(t *testing.T) {
	server := newTestServer(t)
	token, _ := signIn(t, server)

	rec := doJSON(t, server, http.MethodPost, "/api/admin/lab/members", token, map[string]string{"value": "Jordan Park"})
	if rec.Code != http.StatusOK {
		t.Fatalf("add member status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, server, http.MethodPost, "/api/admin/lab/members", token, map[string]string{"value": "Jordan Park"})
	assertErrorCode(t, rec, http.StatusConflict, "ALREADY_EXISTS")

	rec = doJSON(t, server, http.MethodPost, "/api/admin/lab/members", token, map[string]string{"value": "  "})
	assertErrorCode(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rec = doJSON(t, server, http.MethodDelete, "/api/admin/lab/members", token, map[string]string{"value": "Jordan Park"})
	if rec.Code != http.StatusOK {
		t.Fatalf("remove member status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestExportUnavailableWithoutRenderer(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/api/export/cv", "", nil)
	assertErrorCode(t, rec, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE")
}

func TestImageUploadUnavailableWithoutAssets(t *testing.T) {
	server := newTestServer(t)
	token, _ := signIn(t, server)

	var buf bytes.Buffer
	req := httptest.NewRequest(http.MethodPost, "/api/admin/assets/images", &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest && rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChangePassword(t *testing.T) {
	server := newTestServer(t)
	token, _ := signIn(t, server)

	rec := doJSON(t, server, http.MethodPost, "/api/admin/password", token, map[string]string{
		"currentPassword": "wrong",
		"newPassword":     "long-enough-pw",
	})
	assertErrorCode(t, rec, http.StatusUnauthorized, "WRONG_PASSWORD")

	rec = doJSON(t, server, http.MethodPost, "/api/admin/password", token, map[string]string{
		"currentPassword": testPassword,
		"newPassword":     "short",
	})
	assertErrorCode(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rec = doJSON(t, server, http.MethodPost, "/api/admin/password", token, map[string]string{
		"currentPassword": testPassword,
		"newPassword":     "brand-new-password",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("change password status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodPost, "/api/session/logout", "", map[string]string{"refreshToken": ""})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/api/nope", "", nil)
	assertErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")
}
