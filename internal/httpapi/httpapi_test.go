package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/lumenplan/chatgate/internal/audit"
	"github.com/lumenplan/chatgate/internal/config"
	"github.com/lumenplan/chatgate/internal/csrf"
	"github.com/lumenplan/chatgate/internal/gate"
	"github.com/lumenplan/chatgate/internal/models"
	"github.com/lumenplan/chatgate/internal/ratelimit"
	"github.com/lumenplan/chatgate/internal/security"
	"github.com/lumenplan/chatgate/internal/session"
	"gorm.io/gorm"
)

type apiFixture struct {
	engine *gin.Engine
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := conn.AutoMigrate(&models.User{}, &models.AuditLog{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	jwtCfg := config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}
	g := gate.New(
		session.NewVerifier(session.NewJWTProvider(conn, jwtCfg)),
		csrf.NewGuard(gate.CSRFProtectedPrefixes, false, false),
		ratelimit.NewManager(ratelimit.NewMemoryLimiter(), nil),
		audit.NopSink{},
		20,
		false,
	)

	engine := gin.New()
	engine.Use(g.Middleware())
	Register(engine, Deps{DB: conn, JWT: jwtCfg, Sink: audit.NopSink{}})

	return &apiFixture{engine: engine, db: conn, jwtCfg: jwtCfg}
}

func (f *apiFixture) createUser(t *testing.T, username, password string) models.User {
	t.Helper()
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	user := models.User{Username: username, Password: hash, Active: true}
	if errCreate := f.db.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return user
}

func (f *apiFixture) post(t *testing.T, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: csrf.CookieName, Value: "aabbccdd"})
	req.Header.Set(csrf.HeaderName, "aabbccdd")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestLoginSetsSessionCookie(t *testing.T) {
	f := newAPIFixture(t)
	f.createUser(t, "ada", "hunter2!")

	w := f.post(t, "/api/auth/login", `{"username":"ada","password":"hunter2!"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	setCookie := strings.Join(w.Header().Values("Set-Cookie"), "; ")
	if !strings.Contains(setCookie, session.CookieName+"=") {
		t.Fatalf("expected session cookie, got %q", setCookie)
	}
	if !strings.Contains(w.Body.String(), `"username":"ada"`) {
		t.Fatalf("expected user payload, got %s", w.Body.String())
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newAPIFixture(t)
	f.createUser(t, "ada", "hunter2!")

	w := f.post(t, "/api/auth/login", `{"username":"ada","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), gate.CodeUnauthorized) {
		t.Fatalf("expected %s, got %s", gate.CodeUnauthorized, w.Body.String())
	}
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	f := newAPIFixture(t)
	w := f.post(t, "/api/auth/login", `{"username":"ghost","password":"whatever"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSessionEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	user := f.createUser(t, "ada", "hunter2!")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"authenticated":false`) {
		t.Fatalf("expected anonymous session, got %d %s", w.Code, w.Body.String())
	}

	token, errMint := security.MintSessionToken(f.jwtCfg.Secret, user.ID, time.Now().UTC(), f.jwtCfg.Expiry)
	if errMint != nil {
		t.Fatalf("mint: %v", errMint)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	w = httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"authenticated":true`) {
		t.Fatalf("expected authenticated session, got %d %s", w.Code, w.Body.String())
	}
}

func TestChatEchoesThroughBackend(t *testing.T) {
	f := newAPIFixture(t)
	user := f.createUser(t, "ada", "hunter2!")
	token, errMint := security.MintSessionToken(f.jwtCfg.Secret, user.ID, time.Now().UTC(), f.jwtCfg.Expiry)
	if errMint != nil {
		t.Fatalf("mint: %v", errMint)
	}

	w := f.post(t, "/api/chat", `{"message":"hello"}`, &http.Cookie{Name: session.CookieName, Value: token})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"reply":"hello"`) {
		t.Fatalf("expected echoed reply, got %s", w.Body.String())
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	f := newAPIFixture(t)
	user := f.createUser(t, "ada", "hunter2!")
	token, _ := security.MintSessionToken(f.jwtCfg.Secret, user.ID, time.Now().UTC(), f.jwtCfg.Expiry)

	w := f.post(t, "/api/chat", `{"message":"  "}`, &http.Cookie{Name: session.CookieName, Value: token})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
