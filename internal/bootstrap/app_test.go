package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"esign-backend/internal/joblock"
	"esign-backend/internal/notify"
	"esign-backend/internal/shared/config"
	"esign-backend/internal/signing"
)

func devConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:             "dev",
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		PublicBaseURL:   "http://localhost:8080/files",
		SigningBaseURL:  "http://localhost:5173",
		NotifierType:    "log",
	}
}

func TestBuildDevUsesMemoryStores(t *testing.T) {
	app, err := Build(devConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if app.DB != nil {
		t.Fatalf("expected no database in dev without DATABASE_URL")
	}
	if _, ok := app.SigningStore.(*signing.MemoryStore); !ok {
		t.Fatalf("expected memory signing store, got %T", app.SigningStore)
	}
	if _, ok := app.Locker.(*joblock.MemoryLocker); !ok {
		t.Fatalf("expected memory locker, got %T", app.Locker)
	}
	if _, ok := app.Notifier.(notify.LogNotifier); !ok {
		t.Fatalf("expected log notifier, got %T", app.Notifier)
	}
	if app.Jobs != nil {
		t.Fatalf("expected inline finalization without a jobs queue")
	}
	if app.SigningService.Composer == nil || app.SigningService.SigningBaseURL != "http://localhost:5173" {
		t.Fatalf("signing service not wired: %+v", app.SigningService)
	}
	if presignerFor(app.Blobs) != nil {
		t.Fatalf("local store must not presign")
	}

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/presign", nil)
	req.Header.Set("X-User-Id", "owner-1")
	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("presign without s3: expected 503, got %d", resp.Code)
	}
}

func TestBuildRejectsMissingConfiguration(t *testing.T) {
	cfg := devConfig(t)
	cfg.Env = "production"
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected DATABASE_URL error in production")
	}

	cfg = devConfig(t)
	cfg.NotifierType = "sqs"
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected error for sqs notifier without queue url")
	}
}
