package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrEthical07/authclient/internal/envelope"
	"github.com/MrEthical07/authclient/jwt"
)

func newVerifier(t *testing.T) *jwt.Manager {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{AccessTTL: time.Minute, SigningMethod: jwt.MethodHS256, PrivateKey: []byte("guard-test")})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func serve(h http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/achievements", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireBearerPassesClaims(t *testing.T) {
	m := newVerifier(t)
	token, _ := m.Issue(jwt.Identity{UserID: "u-1", Role: jwt.RoleLecturer})

	var seen string
	h := RequireBearer(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Errorf("claims missing from context")
			return
		}
		seen = claims.UserID()
	}))

	if rec := serve(h, "Bearer "+token); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen != "u-1" {
		t.Fatalf("expected subject u-1, got %q", seen)
	}
}

func TestRequireBearerRejects(t *testing.T) {
	m := newVerifier(t)
	expired, _ := m.IssueWithTTL(jwt.Identity{UserID: "u-1"}, -time.Minute)
	h := RequireBearer(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("handler must not run")
	}))

	for _, auth := range []string{"", "Bearer ", "Basic abc", "Bearer garbage", "Bearer " + expired} {
		rec := serve(h, auth)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("auth %q: expected 401, got %d", auth, rec.Code)
		}
		env, err := envelope.Decode[struct{}](rec.Body.Bytes())
		if err != nil || !env.Failed() || env.Message == "" {
			t.Fatalf("auth %q: expected error envelope, got %s", auth, rec.Body.String())
		}
	}

	if rec := serve(RequireBearer(nil)(http.NotFoundHandler()), "Bearer x"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("nil verifier must reject, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	m := newVerifier(t)
	student, _ := m.Issue(jwt.Identity{UserID: "s", Role: jwt.RoleStudent})
	lecturer, _ := m.Issue(jwt.Identity{UserID: "l", Role: jwt.RoleLecturer})

	h := RequireBearer(m)(RequireRole(jwt.RoleLecturer, jwt.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	if rec := serve(h, "Bearer "+student); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student, got %d", rec.Code)
	}
	if rec := serve(h, "bearer "+lecturer); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for lecturer, got %d", rec.Code)
	}
}
