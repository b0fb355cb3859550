// Package memory keeps enrollments and OTP sessions in process memory. It
// backs tests and single-instance deployments.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/shandysiswandi/otpgate/internal/auth/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type Store struct {
	mu   sync.RWMutex
	data map[string]entity.Enrollment
}

func NewStore() *Store {
	return &Store{data: make(map[string]entity.Enrollment)}
}

func (s *Store) GetEnrollment(_ context.Context, username string) (*entity.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enr, ok := s.data[username]
	if !ok {
		return nil, goerror.ErrNotFound
	}

	enr.SecretEncrypted = slices.Clone(enr.SecretEncrypted)
	return &enr, nil
}

func (s *Store) ExistsEnrollment(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[username]
	return ok, nil
}

func (s *Store) CreateEnrollment(_ context.Context, in entity.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[in.Username]; ok {
		return goerror.ErrConflict
	}

	in.SecretEncrypted = slices.Clone(in.SecretEncrypted)
	s.data[in.Username] = in
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
