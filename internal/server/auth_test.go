package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/mohammad-safakhou/stackpilot/internal/store"
)

type memoryUsers struct {
	byEmail map[string][2]string
	err     error
}

func (m *memoryUsers) CreateUser(_ context.Context, email, hash string) (string, error) {
	if m.byEmail == nil {
		m.byEmail = map[string][2]string{}
	}
	id := "user-" + email
	m.byEmail[email] = [2]string{id, hash}
	return id, nil
}

func (m *memoryUsers) GetUserByEmail(_ context.Context, email string) (string, string, error) {
	if m.err != nil {
		return "", "", m.err
	}
	u, ok := m.byEmail[email]
	if !ok {
		return "", "", store.ErrNotFound
	}
	return u[0], u[1], nil
}

var testSecret = []byte("test-secret")

func newAuthEcho(t *testing.T, users *memoryUsers) *echo.Echo {
	t.Helper()
	return NewEcho(Handlers{
		Auth:  &AuthHandler{Users: users, Secret: testSecret},
		Admin: &AdminHandler{Feeds: &stubFeeds{ran: true}},
	}, nil, []string{"*"}, nil)
}

func postJSON(e *echo.Echo, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateAdminAndLogin(t *testing.T) {
	users := &memoryUsers{}
	id, err := CreateAdmin(context.Background(), users, "  Admin@Example.com ", "correct-horse")
	if err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	stored := users.byEmail["admin@example.com"]
	if stored[0] != id || bcrypt.CompareHashAndPassword([]byte(stored[1]), []byte("correct-horse")) != nil {
		t.Fatalf("expected bcrypt hash stored for normalized email, got %v", stored)
	}

	e := newAuthEcho(t, users)
	rec := postJSON(e, "/api/auth/login", `{"email":"admin@example.com","password":"correct-horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var tok TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tok); err != nil || tok.Token == "" {
		t.Fatalf("expected token, got %s", rec.Body.String())
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == authCookie {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != tok.Token || !cookie.HttpOnly {
		t.Fatalf("expected http-only auth cookie, got %+v", cookie)
	}

	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(tok.Token, &claims, func(*jwt.Token) (interface{}, error) { return testSecret, nil }); err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != id {
		t.Fatalf("expected subject %s, got %s", id, claims.Subject)
	}
}

func TestCreateAdminRejectsBadInput(t *testing.T) {
	users := &memoryUsers{}
	if _, err := CreateAdmin(context.Background(), users, "not-an-email", "long-enough"); err == nil {
		t.Fatalf("expected invalid email error")
	}
	if _, err := CreateAdmin(context.Background(), users, "a@b.c", "short"); err == nil {
		t.Fatalf("expected short password error")
	}
	if len(users.byEmail) != 0 {
		t.Fatalf("nothing should be stored")
	}
}

func TestLoginFailures(t *testing.T) {
	users := &memoryUsers{}
	if _, err := CreateAdmin(context.Background(), users, "admin@example.com", "correct-horse"); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	e := newAuthEcho(t, users)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"email":"admin@example.com","password":"wrong-horse"}`, http.StatusUnauthorized},
		{"unknown user", `{"email":"nobody@example.com","password":"correct-horse"}`, http.StatusUnauthorized},
		{"short password", `{"email":"admin@example.com","password":"x"}`, http.StatusBadRequest},
		{"bad body", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := postJSON(e, "/api/auth/login", tc.body); rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}

	users.err = errors.New("db down")
	if rec := postJSON(e, "/api/auth/login", `{"email":"admin@example.com","password":"correct-horse"}`); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on store failure, got %d", rec.Code)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	e := newAuthEcho(t, &memoryUsers{})
	rec := postJSON(e, "/api/auth/logout", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != authCookie || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected expired auth cookie, got %+v", cookies)
	}
}

func TestRequireAuth(t *testing.T) {
	e := newAuthEcho(t, &memoryUsers{})
	valid, err := SignJWT("user-1", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	expired, _ := SignJWT("user-1", testSecret, -time.Minute)
	forged, _ := SignJWT("user-1", []byte("other-secret"), time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	bearer := func(tok string) func(*http.Request) {
		return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
	}
	cookie := func(tok string) func(*http.Request) {
		return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: authCookie, Value: tok}) }
	}

	cases := []struct {
		name   string
		mutate func(*http.Request)
		want   int
	}{
		{"no token", func(*http.Request) {}, http.StatusUnauthorized},
		{"bearer", bearer(valid), http.StatusOK},
		{"cookie", cookie(valid), http.StatusOK},
		{"expired", bearer(expired), http.StatusUnauthorized},
		{"wrong secret", bearer(forged), http.StatusUnauthorized},
		{"alg none", bearer(none), http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := postJSON(e, "/api/admin/feeds/ingest", "", tc.mutate); rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}
