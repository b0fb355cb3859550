package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shandysiswandi/otpgate/internal/auth/entity"
	"github.com/shandysiswandi/otpgate/internal/auth/inbound"
	"github.com/shandysiswandi/otpgate/internal/auth/outbound/cache"
	"github.com/shandysiswandi/otpgate/internal/auth/outbound/db"
	"github.com/shandysiswandi/otpgate/internal/auth/outbound/memory"
	"github.com/shandysiswandi/otpgate/internal/auth/outbound/mongodb"
	"github.com/shandysiswandi/otpgate/internal/auth/outbound/mq"
	"github.com/shandysiswandi/otpgate/internal/auth/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/mfa"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

// Storage and cache drivers, selected by database.driver and cache.driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

const defaultOTPTTL = 300 * time.Second

var errMissingConn = errors.New("auth: connection for selected driver is nil")

type Dependency struct {
	Ctx context.Context

	// Only the connection matching the configured driver is required.
	PGConn    *pgxpool.Pool
	SQLConn   *sql.DB
	MongoDB   *mongo.Database
	CacheConn redis.UniversalClient

	Messaging    messaging.Messaging        `validate:"required"`
	Router       *router.Router             `validate:"required"`
	Config       config.Config              `validate:"required"`
	Instrument   instrument.Instrumentation `validate:"required"`
	UID          uid.NumberID               `validate:"required"`
	HMAC         hash.Hash                  `validate:"required"`
	Password     hash.Hash                  `validate:"required"`
	MFAEncryptor mfa.Encryptor              `validate:"required"`
	Clock        clock.Clocker              `validate:"required"`
	Totp         otp.OTP                    `validate:"required"`
	Validator    validator.Validator        `validate:"required"`
}

type enrollmentStore interface {
	GetEnrollment(ctx context.Context, username string) (*entity.Enrollment, error)
	ExistsEnrollment(ctx context.Context, username string) (bool, error)
	CreateEnrollment(ctx context.Context, in entity.Enrollment) error
	Ping(ctx context.Context) error
}

type sessionCache interface {
	Issue(ctx context.Context, username, code string, now time.Time) error
	Consume(ctx context.Context, username, code string, now time.Time) (entity.VerifyResult, error)
	Ping(ctx context.Context) error
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	ctx := dep.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	ttl := dep.Config.GetSecond("modules.auth.otp_ttl_seconds")
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}

	repoStore, err := newStore(ctx, dep)
	if err != nil {
		return err
	}

	repoCache, err := newCache(dep, ttl)
	if err != nil {
		return err
	}

	uc := usecase.New(usecase.Dependency{
		RepoStore:     repoStore,
		RepoCache:     repoCache,
		RepoMessaging: mq.NewMessaging(dep.Messaging, dep.Instrument),
		Validator:     dep.Validator,
		Password:      dep.Password,
		MFAEncryptor:  dep.MFAEncryptor,
		UID:           dep.UID,
		Totp:          dep.Totp,
		Clock:         dep.Clock,
		Instrument:    dep.Instrument,
		OTPTTL:        ttl,

		StrictCredentials: dep.Config.GetBool("modules.auth.strict_credentials"),
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}

func newStore(ctx context.Context, dep Dependency) (enrollmentStore, error) {
	driver := strings.ToLower(strings.TrimSpace(dep.Config.GetString("database.driver")))

	switch driver {
	case DriverPostgres:
		if dep.PGConn == nil {
			return nil, fmt.Errorf("%w: %s", errMissingConn, driver)
		}
		s := db.NewPostgres(dep.PGConn, dep.Instrument)
		return s, s.Migrate(ctx)

	case DriverSQLite:
		if dep.SQLConn == nil {
			return nil, fmt.Errorf("%w: %s", errMissingConn, driver)
		}
		s := db.NewSQLite(dep.SQLConn, dep.Instrument)
		return s, s.Migrate(ctx)

	case DriverMongo:
		if dep.MongoDB == nil {
			return nil, fmt.Errorf("%w: %s", errMissingConn, driver)
		}
		s := mongodb.NewMongo(dep.MongoDB, dep.Instrument)
		return s, s.Migrate(ctx)

	case "", DriverMemory:
		return memory.NewStore(), nil

	default:
		return nil, fmt.Errorf("auth: unknown database driver %q", driver)
	}
}

func newCache(dep Dependency, ttl time.Duration) (sessionCache, error) {
	driver := strings.ToLower(strings.TrimSpace(dep.Config.GetString("cache.driver")))

	switch driver {
	case DriverRedis:
		if dep.CacheConn == nil {
			return nil, fmt.Errorf("%w: %s", errMissingConn, driver)
		}
		return cache.NewRedis(dep.CacheConn, dep.HMAC, ttl, dep.Instrument), nil

	case "", DriverMemory:
		return memory.NewSessionCache(dep.HMAC, ttl), nil

	default:
		return nil, fmt.Errorf("auth: unknown cache driver %q", driver)
	}
}
