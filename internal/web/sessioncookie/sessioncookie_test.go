package sessioncookie

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReadMissingCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := Read(r); ok {
		t.Fatal("expected no cookie")
	}
}

func TestWriteThenRead(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	Write(w, r, " token-123 ")

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	cookie := cookies[0]
	if cookie.Name != Name || cookie.Value != "token-123" {
		t.Fatalf("unexpected cookie %q=%q", cookie.Name, cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Fatal("expected HttpOnly cookie")
	}

	reread := httptest.NewRequest(http.MethodGet, "/", nil)
	reread.AddCookie(cookie)
	value, ok := Read(reread)
	if !ok || value != "token-123" {
		t.Fatalf("expected round-trip, got %q ok=%v", value, ok)
	}
}

func TestClearExpiresCookie(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	Clear(w, r)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].MaxAge != -1 {
		t.Fatalf("expected expired cookie, got MaxAge %d", cookies[0].MaxAge)
	}
	if cookies[0].Value != "" {
		t.Fatalf("expected empty value, got %q", cookies[0].Value)
	}
}
