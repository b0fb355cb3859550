package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shandysiswandi/otpgate/internal/auth/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS auth_enrollments (
	id               BIGINT PRIMARY KEY,
	username         TEXT NOT NULL UNIQUE,
	email            TEXT NOT NULL,
	password_hash    TEXT NOT NULL,
	secret_encrypted BYTEA NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type Postgres struct {
	tracer
	conn *pgxpool.Pool
}

func NewPostgres(conn *pgxpool.Pool, ins instrument.Instrumentation) *Postgres {
	return &Postgres{tracer: tracer{ins: ins}, conn: conn}
}

// - 23505 unique violation → goerror.ErrConflict
func (s *Postgres) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return goerror.ErrConflict
	}

	return err
}

// Migrate creates the enrollment table when missing.
func (s *Postgres) Migrate(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "Migrate")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, postgresSchema)
	return err
}

func (s *Postgres) GetEnrollment(ctx context.Context, username string) (_ *entity.Enrollment, err error) {
	ctx, span := s.startSpan(ctx, "GetEnrollment")
	defer func() { s.endSpan(span, err) }()

	var enr entity.Enrollment
	err = s.conn.QueryRow(ctx, `
		SELECT id, username, email, password_hash, secret_encrypted, created_at
		FROM auth_enrollments WHERE username = $1`, username,
	).Scan(&enr.ID, &enr.Username, &enr.Email, &enr.PasswordHash, &enr.SecretEncrypted, &enr.CreatedAt)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &enr, nil
}

func (s *Postgres) ExistsEnrollment(ctx context.Context, username string) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "ExistsEnrollment")
	defer func() { s.endSpan(span, err) }()

	var exists bool
	err = s.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM auth_enrollments WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, s.mapError(err)
	}

	return exists, nil
}

func (s *Postgres) CreateEnrollment(ctx context.Context, in entity.Enrollment) (err error) {
	ctx, span := s.startSpan(ctx, "CreateEnrollment")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		INSERT INTO auth_enrollments (id, username, email, password_hash, secret_encrypted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		in.ID, in.Username, in.Email, in.PasswordHash, in.SecretEncrypted, in.CreatedAt,
	)
	err = s.mapError(err)
	return err
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}
