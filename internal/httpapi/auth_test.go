package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"collate/internal/globaltime"
)

func newTestContext(t *testing.T) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestSessionCookieRoundTrip(t *testing.T) {
	t.Parallel()

	s := &Server{opts: Options{SessionCookie: "collate_session"}}
	c, rec := newTestContext(t)

	expiresAt := globaltime.UTC().Add(time.Hour)
	s.setSessionCookie(c, "token-value", expiresAt)

	header := rec.Header().Get("Set-Cookie")
	if !strings.Contains(header, "collate_session=token-value") {
		t.Fatalf("session cookie not set: %q", header)
	}
	if !strings.Contains(header, "HttpOnly") {
		t.Fatalf("session cookie must be HttpOnly: %q", header)
	}

	// Reading it back from a request.
	c2, _ := newTestContext(t)
	c2.Request().AddCookie(&http.Cookie{Name: "collate_session", Value: "token-value"})
	token, found := s.sessionTokenFromCookie(c2)
	if !found || token != "token-value" {
		t.Fatalf("unexpected token %q found=%t", token, found)
	}
}

func TestClearSessionCookieExpiresImmediately(t *testing.T) {
	t.Parallel()

	s := &Server{opts: Options{SessionCookie: "collate_session"}}
	c, rec := newTestContext(t)

	s.clearSessionCookie(c)

	header := rec.Header().Get("Set-Cookie")
	if !strings.Contains(header, "Max-Age=0") && !strings.Contains(header, "Max-Age=-1") {
		t.Fatalf("expected expiring cookie, got %q", header)
	}
}

func TestPrincipalFromContext(t *testing.T) {
	t.Parallel()

	c, _ := newTestContext(t)
	if _, ok := principalFromContext(c); ok {
		t.Fatalf("expected no principal on a fresh context")
	}

	c.Set("auth.principal", authPrincipal{UserID: 7, Username: "admin"})
	principal, ok := principalFromContext(c)
	if !ok || principal.UserID != 7 || principal.Username != "admin" {
		t.Fatalf("unexpected principal %+v ok=%t", principal, ok)
	}
}

func TestParsePagination(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&offset=20", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	limit, offset, err := parsePagination(c)
	if err != nil {
		t.Fatalf("parse pagination: %v", err)
	}
	if limit != 10 || offset != 20 {
		t.Fatalf("unexpected pagination %d/%d", limit, offset)
	}

	req = httptest.NewRequest(http.MethodGet, "/?limit=0", nil)
	c = e.NewContext(req, httptest.NewRecorder())
	if _, _, err := parsePagination(c); err == nil {
		t.Fatalf("expected limit=0 to be rejected")
	}
}
