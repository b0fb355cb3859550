package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	libOTP "github.com/pquerna/otp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	// sqlite3 driver for database/sql.
	_ "github.com/mattn/go-sqlite3"

	"github.com/shandysiswandi/otpgate/internal/auth"
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

const defaultConfigPath = "./config/config.yaml"

func loadConfig() (config.Config, error) {
	// .env is optional; real environment variables always win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.NewViper(path)
	if err != nil {
		return nil, err
	}

	if tz := cfg.GetString("app.tz"); tz != "" {
		//nolint:errcheck,gosec // ignore error
		os.Setenv("TZ", tz)
	}

	return cfg, nil
}

func (a *App) initInstrument() error {
	ins, err := instrument.New(a.ctx, &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		LogLevel:         a.config.GetString("instrument.log_level"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
	})
	if err != nil {
		return err
	}

	a.ins = ins
	return nil
}

func (a *App) initLibraries() error {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))
	a.hmac = hash.NewHMACSHA256(a.config.GetString("hash.hmac.secret"))

	password, err := newPasswordHash(a.config)
	if err != nil {
		return err
	}
	a.password = password

	v10, err := validator.NewV10Validator()
	if err != nil {
		return fmt.Errorf("validator: %w", err)
	}
	a.validator = v10

	snow, err := uid.NewSnowflakeNode(a.config.GetInt64("app.node_id"))
	if err != nil {
		return fmt.Errorf("snowflake: %w", err)
	}
	a.uid = snow

	a.totp = otp.NewEngine(
		a.config.GetString("mfa.totp.issuer"),
		a.config.GetUint("mfa.totp.period"),
		a.config.GetUint("mfa.totp.skew"),
		libOTP.DigitsSix,
	)

	keys, err := mfa.NewStaticKeyProviderBase64(a.config.GetString("mfa.secret"))
	if err != nil {
		return err
	}
	a.mfaEncryptor = mfa.NewAESGCMEncryptor(keys)

	return nil
}

func newPasswordHash(cfg config.Config) (hash.Hash, error) {
	algorithm := strings.ToLower(strings.TrimSpace(cfg.GetString("hash.password.algorithm")))
	pepper := cfg.GetString("hash.password.pepper")

	if cost := cfg.GetInt("hash.bcrypt.cost"); cost > 0 && (algorithm == "" || algorithm == hash.AlgorithmBcrypt) {
		return hash.NewBcrypt(cost, pepper), nil
	}

	return hash.NewPassword(algorithm, pepper)
}

func (a *App) initDatabase() error {
	driver := strings.ToLower(strings.TrimSpace(a.config.GetString("database.driver")))

	switch driver {
	case auth.DriverPostgres:
		return a.initPostgres()
	case auth.DriverSQLite:
		return a.initSQLite()
	case auth.DriverMongo:
		return a.initMongo()
	case "", auth.DriverMemory:
		slog.Warn("database driver is memory, enrollments are lost on restart")
		return nil
	default:
		return fmt.Errorf("unknown database driver %q", driver)
	}
}

func (a *App) initPostgres() error {
	cfg, err := pgxpool.ParseConfig(a.config.GetString("database.url"))
	if err != nil {
		return fmt.Errorf("parse postgres url: %w", err)
	}

	if v := a.config.GetInt32("database.pool.max_conns"); v > 0 {
		cfg.MaxConns = v
	}
	if v := a.config.GetInt32("database.pool.min_conns"); v > 0 {
		cfg.MinConns = v
	}
	if v := a.config.GetSecond("database.pool.max_conn_lifetime_seconds"); v > 0 {
		cfg.MaxConnLifetime = v
	}
	if v := a.config.GetSecond("database.pool.max_conn_idle_seconds"); v > 0 {
		cfg.MaxConnIdleTime = v
	}
	if v := a.config.GetSecond("database.pool.health_check_period_seconds"); v > 0 {
		cfg.HealthCheckPeriod = v
	}

	pool, err := pgxpool.NewWithConfig(a.ctx, cfg)
	if err != nil {
		return fmt.Errorf("create postgres pool: %w", err)
	}
	a.pgConn = pool

	return a.pingWithRetry("postgres", pool.Ping)
}

func (a *App) initSQLite() error {
	db, err := sql.Open("sqlite3", a.config.GetString("database.sqlite.dsn"))
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	a.sqlConn = db

	return a.pingWithRetry("sqlite", db.PingContext)
}

func (a *App) initMongo() error {
	opts := options.Client().ApplyURI(a.config.GetString("database.mongo.uri"))
	if v := a.config.GetSecond("database.mongo.timeout_seconds"); v > 0 {
		opts.SetConnectTimeout(v)
		opts.SetServerSelectionTimeout(v)
	}

	client, err := mongo.Connect(a.ctx, opts)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	a.mongoClient = client
	a.mongoDB = client.Database(a.config.GetString("database.mongo.database"))

	return a.pingWithRetry("mongo", func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	})
}

func (a *App) initCache() error {
	driver := strings.ToLower(strings.TrimSpace(a.config.GetString("cache.driver")))

	switch driver {
	case auth.DriverRedis:
		opt, err := redis.ParseURL(a.config.GetString("redis.url"))
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}

		rdb := redis.NewClient(opt)
		a.cacheConn = rdb

		if err := a.pingWithRetry("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}); err != nil {
			return err
		}

		a.idemp = idempotency.NewRedis(rdb)
		return nil

	case "", auth.DriverMemory:
		a.idemp = idempotency.NewMemory(a.clock)
		return nil

	default:
		return fmt.Errorf("unknown cache driver %q", driver)
	}
}

// pingWithRetry pings a freshly opened resource with a capped fibonacci
// backoff, for dependencies that start alongside the service.
func (a *App) pingWithRetry(name string, ping func(context.Context) error) error {
	attempts := a.config.GetUint64("app.startup.ping_attempts")
	if attempts == 0 {
		attempts = 5
	}

	b := retry.NewFibonacci(200 * time.Millisecond)
	b = retry.WithMaxRetries(attempts-1, b)
	b = retry.WithCappedDuration(5*time.Second, b)

	return retry.Do(a.ctx, b, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := ping(pingCtx); err != nil {
			slog.WarnContext(ctx, "dependency not ready", "name", name, "error", err)
			return retry.RetryableError(fmt.Errorf("ping %s: %w", name, err))
		}
		return nil
	})
}

func (a *App) initMail() error {
	m, err := mail.NewFromDriver(a.config.GetString("mail.driver"), mail.SMTPConfig{
		Host:     a.config.GetString("mail.host"),
		Port:     a.config.GetInt("mail.port"),
		Username: a.config.GetString("mail.username"),
		Password: a.config.GetString("mail.password"),
		From:     a.config.GetString("mail.from"),
	})
	if err != nil {
		return err
	}

	a.mail = m
	return nil
}

func (a *App) initMessaging() error {
	driver := a.config.GetString("messaging.driver")
	client, err := messaging.NewFromDriver(driver, messaging.FactoryOptions{
		Kafka: messaging.KafkaConfig{
			Brokers: a.config.GetArray("messaging.kafka.brokers"),
			Dialer: &kafka.Dialer{
				ClientID:  a.config.GetString("messaging.kafka.client_id"),
				Timeout:   a.config.GetSecond("messaging.kafka.dial_timeout_seconds"),
				DualStack: true,
			},
		},
		NATS: messaging.NATSConfig{
			URL: a.config.GetString("messaging.nats.url"),
			Options: []nats.Option{
				nats.Name(a.config.GetString("messaging.nats.name")),
				nats.MaxReconnects(a.config.GetInt("messaging.nats.max_reconnects")),
				nats.Timeout(a.config.GetSecond("messaging.nats.timeout_seconds")),
				nats.ReconnectWait(a.config.GetSecond("messaging.nats.reconnect_wait_seconds")),
				nats.PingInterval(a.config.GetSecond("messaging.nats.ping_interval_seconds")),
				nats.MaxPingsOutstanding(a.config.GetInt("messaging.nats.max_pings_outstanding")),
				nats.RetryOnFailedConnect(a.config.GetBool("messaging.nats.retry_on_failed_connect")),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("driver %q: %w", driver, err)
	}

	a.messaging = client
	return nil
}

func (a *App) initHTTPServer() error {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		Instrument: a.ins,
	})

	routerWithCORS := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("app.server.cors"),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           routerWithCORS,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}

	return nil
}

// initClosers registers shutdown hooks in reverse dependency order. Each hook
// skips resources that were never opened.
func (a *App) initClosers() {
	a.closers = []closer{
		{
			name: "Instrument",
			fn: func(ctx context.Context) error {
				if a.ins == nil {
					return nil
				}
				return a.ins.Shutdown(ctx)
			},
		},
		{
			name: "Messaging",
			fn: func(context.Context) error {
				if a.messaging == nil {
					return nil
				}
				return a.messaging.Close()
			},
		},
		{
			name: "Mail",
			fn: func(context.Context) error {
				if a.mail == nil {
					return nil
				}
				return a.mail.Close()
			},
		},
		{
			name: "Redis",
			fn: func(context.Context) error {
				if a.cacheConn == nil {
					return nil
				}
				return a.cacheConn.Close()
			},
		},
		{
			name: "Postgres",
			fn: func(context.Context) error {
				if a.pgConn != nil {
					a.pgConn.Close()
				}
				return nil
			},
		},
		{
			name: "SQLite",
			fn: func(context.Context) error {
				if a.sqlConn == nil {
					return nil
				}
				return a.sqlConn.Close()
			},
		},
		{
			name: "Mongo",
			fn: func(ctx context.Context) error {
				if a.mongoClient == nil {
					return nil
				}
				return a.mongoClient.Disconnect(ctx)
			},
		},
		{
			name: "Config",
			fn: func(context.Context) error {
				if a.config == nil {
					return nil
				}
				return a.config.Close()
			},
		},
	}
}

func (a *App) closeResources(ctx context.Context) {
	for _, c := range a.closers {
		if err := c.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resources", "name", c.name, "error", err)
		}
	}
}
