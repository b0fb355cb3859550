package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/mfa"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine    *goroutine.Manager
	validator    validator.Validator
	clock        clock.Clocker
	hmac         hash.Hash
	password     hash.Hash
	uid          uid.NumberID
	uuid         uid.StringID
	totp         otp.OTP
	mfaEncryptor mfa.Encryptor

	// resources, only the ones selected by config are set
	pgConn      *pgxpool.Pool
	sqlConn     *sql.DB
	mongoClient *mongo.Client
	mongoDB     *mongo.Database
	cacheConn   redis.UniversalClient
	idemp       idempotency.Idempotency
	mail        mail.Mail
	messaging   messaging.Messaging

	// server
	router     *router.Router
	httpServer *http.Server

	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// New loads configuration from disk and initializes the application. It exits
// the process when any dependency fails to start.
func New() *App {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	app, err := NewWithConfig(cfg)
	if err != nil {
		slog.Error("failed to init application", "error", err)
		os.Exit(1)
	}

	return app
}

// NewWithConfig initializes the application from an already loaded config.
// Resources opened before a failing step are released before returning.
func NewWithConfig(cfg config.Config) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
		config: cfg,
	}
	app.initClosers()

	steps := []struct {
		name string
		fn   func() error
	}{
		{name: "instrument", fn: app.initInstrument},
		{name: "libraries", fn: app.initLibraries},
		{name: "database", fn: app.initDatabase},
		{name: "cache", fn: app.initCache},
		{name: "mail", fn: app.initMail},
		{name: "messaging", fn: app.initMessaging},
		{name: "http server", fn: app.initHTTPServer},
		{name: "modules", fn: app.initModules},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			cancel()
			app.closeResources(context.Background())
			return nil, fmt.Errorf("init %s: %w", step.name, err)
		}
	}

	return app, nil
}
