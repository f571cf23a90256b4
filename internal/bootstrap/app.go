package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	googleauth "esign-backend/internal/auth"
	"esign-backend/internal/joblock"
	"esign-backend/internal/notify"
	"esign-backend/internal/pdfcompose"
	"esign-backend/internal/queue"
	"esign-backend/internal/services/health"
	"esign-backend/internal/shared/config"
	"esign-backend/internal/shared/server"
	"esign-backend/internal/shared/storage/db"
	"esign-backend/internal/shared/storage/object"
	localstore "esign-backend/internal/shared/storage/object/local"
	s3store "esign-backend/internal/shared/storage/object/s3"
	"esign-backend/internal/shared/telemetry"
	"esign-backend/internal/signing"
	"esign-backend/internal/uploads"
	"esign-backend/internal/users"
)

// App holds shared dependencies for every entry point.
type App struct {
	Config         config.Config
	Router         *gin.Engine
	DB             *sql.DB
	Blobs          object.Store
	Jobs           queue.Client
	Notifier       notify.Notifier
	SigningStore   signing.Store
	SigningService *signing.Service
	Composer       *pdfcompose.Engine
	UsersService   *users.Service
	Locker         joblock.Locker
	GoogleAuth     *googleauth.GoogleService
}

// Build prepares shared dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	return BuildContext(context.Background(), cfg)
}

// BuildContext is Build with a caller supplied context for AWS and database setup.
func BuildContext(ctx context.Context, cfg config.Config) (*App, error) {
	return BuildRole(ctx, cfg, db.RoleAPI)
}

// BuildRole builds the app with a database pool sized for role. Inside
// Lambda the pool is always the shared lambda singleton.
func BuildRole(ctx context.Context, cfg config.Config, role db.Role) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg, role)
	if err != nil {
		return nil, err
	}

	blobs, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	notifier, err := buildNotifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	jobs, err := buildJobs(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Blobs:    blobs,
		Jobs:     jobs,
		Notifier: notifier,
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         cfg,
		SigningHandler: signing.NewHandler(app.SigningService),
		SignerHandler:  signing.NewSignerHandler(app.SigningService),
		UploadsHandler: uploads.NewHandler(presignerFor(blobs)),
		UserHandler:    users.NewHandler(app.UsersService),
		GoogleAuth:     app.GoogleAuth,
		Health:         health.NewService(sqlDB),
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config, role db.Role) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_stores", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultOptions(db.RoleLambda)))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultOptions(role)))
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_stores", map[string]any{
				"reason": "database connect failed",
				"error":  err.Error(),
			})
			return nil, nil
		}
		return nil, err
	}

	// Deployed environments migrate through cmd/migrate.
	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID, cfg.PublicBaseURL)
	default:
		return localstore.New(cfg.LocalStoreDir, cfg.PublicBaseURL), nil
	}
}

func buildNotifier(ctx context.Context, cfg config.Config) (notify.Notifier, error) {
	if cfg.NotifierType != "sqs" {
		return notify.LogNotifier{}, nil
	}
	client, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.NotifyQueueURL)
	if err != nil {
		return nil, fmt.Errorf("notify queue: %w", err)
	}
	return notify.NewQueueNotifier(client), nil
}

func buildJobs(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.JobsQueueURL) == "" {
		return nil, nil
	}
	client, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.JobsQueueURL)
	if err != nil {
		return nil, fmt.Errorf("jobs queue: %w", err)
	}
	return client, nil
}

func buildServices(app *App) {
	var (
		store    signing.Store
		userRepo users.Repo
		locker   joblock.Locker
	)
	if app.DB != nil {
		store = &signing.PGStore{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
		locker = &joblock.PGLocker{DB: app.DB}
	} else {
		store = signing.NewMemoryStore()
		userRepo = users.NewMemoryRepo()
		locker = joblock.NewMemoryLocker()
	}

	composer := pdfcompose.New(app.Blobs, store)
	userSvc := users.NewService(userRepo)

	app.SigningStore = store
	app.Composer = composer
	app.SigningService = &signing.Service{
		Store:          store,
		Blobs:          app.Blobs,
		Notifier:       app.Notifier,
		Composer:       composer,
		Jobs:           app.Jobs,
		SigningBaseURL: app.Config.SigningBaseURL,
	}
	app.UsersService = userSvc
	app.Locker = locker
	app.GoogleAuth = googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		userSvc,
	)
}

// presignerFor returns the store's presigner when it issues direct-upload URLs.
func presignerFor(blobs object.Store) uploads.Presigner {
	if p, ok := blobs.(uploads.Presigner); ok {
		return p
	}
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
