package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	sharedauth "esign-backend/internal/shared/auth"
)

func newGoogleRouter(s *GoogleService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	s.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestStartRedirectsWithState(t *testing.T) {
	s := NewGoogleService("client", "secret", "http://localhost:8080/api/v1/auth/google/callback", "http://localhost:5173/auth", nil)
	r := newGoogleRouter(s)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/start", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.Code)
	}
	loc, err := url.Parse(resp.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatalf("expected state in %s", loc)
	}
	if !s.stateStore.consume(state) {
		t.Fatalf("state %s was not stored", state)
	}
}

func TestStartRequiresConfiguration(t *testing.T) {
	r := newGoogleRouter(NewGoogleService("", "", "", "", nil))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/start", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	r := newGoogleRouter(NewGoogleService("client", "secret", "http://cb", "http://ui", nil))

	for _, target := range []string{
		"/api/v1/auth/google/callback",
		"/api/v1/auth/google/callback?state=nope&code=abc",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, resp.Code)
		}
	}
}

func TestStateStoreConsumesOnceAndExpires(t *testing.T) {
	store := newStateStore()
	store.put("live", time.Now().Add(time.Minute))
	store.put("stale", time.Now().Add(-time.Minute))

	if !store.consume("live") {
		t.Fatalf("expected live state to be accepted")
	}
	if store.consume("live") {
		t.Fatalf("state must be single use")
	}
	if store.consume("stale") {
		t.Fatalf("expired state must be rejected")
	}
}

func TestSessionClaimsFromUserInfo(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ENV", "dev")

	info := googleUserInfo{ID: "42", Email: " Olive@Example.com ", GivenName: "Olive", FamilyName: "Owner"}
	if info.Sub == "" {
		info.Sub = info.ID
	}
	user := info.user()
	if user.ID != "google:42" || user.Email != "olive@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}

	token, err := sharedauth.SignJWT(sessionClaims(user))
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	claims, err := sharedauth.VerifyJWT(token)
	if err != nil {
		t.Fatalf("VerifyJWT: %v", err)
	}
	if claims.Subject != "google:42" || claims.Name != "Olive Owner" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestAppendToken(t *testing.T) {
	got, err := appendToken("http://localhost:5173/auth?next=%2Fdocs", "abc")
	if err != nil {
		t.Fatalf("appendToken: %v", err)
	}
	u, _ := url.Parse(got)
	if u.Query().Get("token") != "abc" || u.Query().Get("next") != "/docs" {
		t.Fatalf("unexpected redirect %s", got)
	}
	if _, err := appendToken("", "abc"); err == nil {
		t.Fatalf("expected error for empty redirect")
	}
}
