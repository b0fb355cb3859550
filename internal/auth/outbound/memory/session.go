package memory

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/shandysiswandi/otpgate/internal/auth/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
)

type session struct {
	digest   []byte
	issuedAt time.Time
}

// SessionCache holds at most one OTP session per username. Only the HMAC
// digest of a code is kept.
type SessionCache struct {
	mu       sync.Mutex
	sessions map[string]session
	hmac     hash.Hash
	ttl      time.Duration
}

func NewSessionCache(hmac hash.Hash, ttl time.Duration) *SessionCache {
	return &SessionCache{
		sessions: make(map[string]session),
		hmac:     hmac,
		ttl:      ttl,
	}
}

func (c *SessionCache) Issue(_ context.Context, username, code string, now time.Time) error {
	digest, err := c.hmac.Hash(code)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessions[username] = session{digest: digest, issuedAt: now}
	return nil
}

func (c *SessionCache) Consume(_ context.Context, username, code string, now time.Time) (entity.VerifyResult, error) {
	digest, err := c.hmac.Hash(code)
	if err != nil {
		return entity.VerifyResultNoSession, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[username]
	if !ok {
		return entity.VerifyResultNoSession, nil
	}

	if (entity.OTPSession{IssuedAt: sess.issuedAt}).Expired(now, c.ttl) {
		delete(c.sessions, username)
		return entity.VerifyResultExpired, nil
	}

	if subtle.ConstantTimeCompare(sess.digest, digest) != 1 {
		return entity.VerifyResultMismatch, nil
	}

	delete(c.sessions, username)
	return entity.VerifyResultSuccess, nil
}

func (c *SessionCache) Ping(context.Context) error { return nil }
