package csrf

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestContext(method, path string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, nil)
	return c, w
}

func TestGenerateToken(t *testing.T) {
	first, err := GenerateToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(first) != tokenBytes*2 {
		t.Fatalf("expected %d hex chars, got %d", tokenBytes*2, len(first))
	}
	second, err := GenerateToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct tokens")
	}
}

func TestEnsureCookieSetsTokenOnGet(t *testing.T) {
	guard := NewGuard(nil, false, false)
	c, w := newTestContext(http.MethodGet, "/")

	guard.EnsureCookie(c)

	setCookie := w.Header().Get("Set-Cookie")
	if !strings.HasPrefix(setCookie, CookieName+"=") {
		t.Fatalf("expected %s cookie, got %q", CookieName, setCookie)
	}
	if strings.Contains(setCookie, "HttpOnly") {
		t.Fatalf("csrf cookie must be script-readable, got %q", setCookie)
	}
	if !strings.Contains(setCookie, "SameSite=Lax") {
		t.Fatalf("expected SameSite=Lax, got %q", setCookie)
	}
}

func TestEnsureCookieSkipsWhenPresent(t *testing.T) {
	guard := NewGuard(nil, false, false)
	c, w := newTestContext(http.MethodGet, "/")
	c.Request.AddCookie(&http.Cookie{Name: CookieName, Value: "existing"})

	guard.EnsureCookie(c)

	if got := w.Header().Get("Set-Cookie"); got != "" {
		t.Fatalf("expected no set-cookie, got %q", got)
	}
}

func TestProtects(t *testing.T) {
	guard := NewGuard([]string{"/api/"}, false, false)

	if !guard.Protects(http.MethodPost, "/api/chat") {
		t.Fatalf("expected POST /api/chat protected")
	}
	if guard.Protects(http.MethodGet, "/api/chat") {
		t.Fatalf("expected GET unprotected")
	}
	if guard.Protects(http.MethodPost, "/login") {
		t.Fatalf("expected non-api path unprotected")
	}
}

func TestValidate(t *testing.T) {
	guard := NewGuard(nil, false, false)
	token := "aabbccdd"

	cases := []struct {
		name   string
		cookie string
		header string
		want   error
	}{
		{name: "match", cookie: token, header: token, want: nil},
		{name: "missing cookie", cookie: "", header: token, want: ErrTokenMissing},
		{name: "missing header", cookie: token, header: "", want: ErrTokenMissing},
		{name: "mismatch", cookie: token, header: "aabbccde", want: ErrTokenMismatch},
		{name: "case differs", cookie: token, header: "AABBCCDD", want: ErrTokenMismatch},
	}
	for _, tc := range cases {
		c, _ := newTestContext(http.MethodPost, "/api/chat")
		if tc.cookie != "" {
			c.Request.AddCookie(&http.Cookie{Name: CookieName, Value: tc.cookie})
		}
		if tc.header != "" {
			c.Request.Header.Set(HeaderName, tc.header)
		}
		if got := guard.Validate(c); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestValidateSkipped(t *testing.T) {
	guard := NewGuard(nil, true, false)
	c, _ := newTestContext(http.MethodPost, "/api/chat")
	if err := guard.Validate(c); err != nil {
		t.Fatalf("expected skip to pass, got %v", err)
	}
}
