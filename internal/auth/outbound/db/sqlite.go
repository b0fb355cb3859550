package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/shandysiswandi/otpgate/internal/auth/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS auth_enrollments (
	id               INTEGER PRIMARY KEY,
	username         TEXT NOT NULL UNIQUE,
	email            TEXT NOT NULL,
	password_hash    TEXT NOT NULL,
	secret_encrypted BLOB NOT NULL,
	created_at       INTEGER NOT NULL
)`

// SQLite stores enrollments through database/sql with the go-sqlite3 driver.
// created_at is kept as unix milliseconds.
type SQLite struct {
	tracer
	conn *sql.DB
}

func NewSQLite(conn *sql.DB, ins instrument.Instrumentation) *SQLite {
	return &SQLite{tracer: tracer{ins: ins}, conn: conn}
}

func (s *SQLite) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) &&
		(sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return goerror.ErrConflict
	}

	return err
}

// Migrate creates the enrollment table when missing.
func (s *SQLite) Migrate(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "Migrate")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.ExecContext(ctx, sqliteSchema)
	return err
}

func (s *SQLite) GetEnrollment(ctx context.Context, username string) (_ *entity.Enrollment, err error) {
	ctx, span := s.startSpan(ctx, "GetEnrollment")
	defer func() { s.endSpan(span, err) }()

	var enr entity.Enrollment
	var createdAt int64
	err = s.conn.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, secret_encrypted, created_at
		FROM auth_enrollments WHERE username = ?`, username,
	).Scan(&enr.ID, &enr.Username, &enr.Email, &enr.PasswordHash, &enr.SecretEncrypted, &createdAt)
	if err != nil {
		return nil, s.mapError(err)
	}

	enr.CreatedAt = time.UnixMilli(createdAt)
	return &enr, nil
}

func (s *SQLite) ExistsEnrollment(ctx context.Context, username string) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "ExistsEnrollment")
	defer func() { s.endSpan(span, err) }()

	var exists bool
	err = s.conn.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM auth_enrollments WHERE username = ?)`, username).Scan(&exists)
	if err != nil {
		return false, s.mapError(err)
	}

	return exists, nil
}

func (s *SQLite) CreateEnrollment(ctx context.Context, in entity.Enrollment) (err error) {
	ctx, span := s.startSpan(ctx, "CreateEnrollment")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO auth_enrollments (id, username, email, password_hash, secret_encrypted, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		in.ID, in.Username, in.Email, in.PasswordHash, in.SecretEncrypted, in.CreatedAt.UnixMilli(),
	)
	err = s.mapError(err)
	return err
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}
