package usecase

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	libotp "github.com/pquerna/otp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/auth/entity"
	"github.com/shandysiswandi/otpgate/internal/auth/outbound/memory"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mfa"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

const testTTL = 300 * time.Second

type recordingPublisher struct {
	mu     sync.Mutex
	events []OTPIssuedEvent
	err    error
}

func (p *recordingPublisher) PublishOTPIssued(_ context.Context, msg OTPIssuedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
	return p.err
}

func (p *recordingPublisher) lastCode(t *testing.T) string {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.events, "no otp_issued event published")
	return p.events[len(p.events)-1].Code
}

type fixture struct {
	uc    *Usecase
	store *memory.Store
	cache *memory.SessionCache
	pub   *recordingPublisher
	clock *clock.FixedClocker
}

type countingHash struct {
	next     hash.Hash
	mu       sync.Mutex
	verifies int
}

func (c *countingHash) Hash(str string) ([]byte, error) { return c.next.Hash(str) }

func (c *countingHash) Verify(hashed, str string) bool {
	c.mu.Lock()
	c.verifies++
	c.mu.Unlock()
	return c.next.Verify(hashed, str)
}

func newFixture(t *testing.T, opts ...func(*Dependency)) *fixture {
	t.Helper()

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	sf, err := uid.NewSnowflakeNode(1)
	require.NoError(t, err)

	f := &fixture{
		store: memory.NewStore(),
		cache: memory.NewSessionCache(hash.NewHMACSHA256("test-secret"), testTTL),
		pub:   &recordingPublisher{},
		clock: clock.NewFixed(time.Unix(1_700_000_000, 0)),
	}

	dep := Dependency{
		RepoStore:     f.store,
		RepoCache:     f.cache,
		RepoMessaging: f.pub,
		Validator:     v,
		Password:      hash.NewBcrypt(4, "pepper"),
		MFAEncryptor:  mfa.NewAESGCMEncryptor(mfa.StaticKeyProvider{KeyBytes: bytes.Repeat([]byte{1}, 32)}),
		UID:           sf,
		Totp:          otp.NewEngine("otpgate", 30, 0, libotp.DigitsSix),
		Clock:         f.clock,
		Instrument:    instrument.NewNoop(),
		OTPTTL:        testTTL,
	}
	for _, opt := range opts {
		opt(&dep)
	}
	f.uc = New(dep)

	return f
}

func (f *fixture) register(t *testing.T, username, password, email string) {
	t.Helper()
	_, err := f.uc.Register(context.Background(), RegisterInput{Username: username, Password: password, Email: email})
	require.NoError(t, err)
}

func assertBusiness(t *testing.T, err error, sentinel error, msg string, status int) {
	t.Helper()

	require.ErrorIs(t, err, sentinel)
	var gerr *goerror.Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, msg, gerr.Msg())
	assert.Equal(t, status, gerr.StatusCode())
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("stores hashed password and sealed secret", func(t *testing.T) {
		f := newFixture(t)

		out, err := f.uc.Register(ctx, RegisterInput{Username: " alice ", Password: "s3cret-pass", Email: "Alice@Example.com"})
		require.NoError(t, err)
		assert.Equal(t, "alice", out.Username)

		enr, err := f.store.GetEnrollment(ctx, "alice")
		require.NoError(t, err)
		assert.NotEqual(t, "s3cret-pass", enr.PasswordHash)
		assert.Equal(t, "alice@example.com", enr.Email)
		assert.NotEmpty(t, enr.SecretEncrypted)
		assert.NotZero(t, enr.ID)
		assert.Empty(t, f.pub.events, "registration must not issue an otp")

		secret, err := f.uc.mfaEncryptor.Decrypt(enr.SecretEncrypted, mfa.Scope{Subject: "alice", Purpose: mfa.PurposeOTPSeed})
		require.NoError(t, err)
		assert.Len(t, secret, 32)
	})

	t.Run("duplicate username leaves record unchanged", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "alice", "s3cret-pass", "alice@example.com")
		before, _ := f.store.GetEnrollment(ctx, "alice")

		_, err := f.uc.Register(ctx, RegisterInput{Username: "alice", Password: "other-pass", Email: "x@example.com"})
		assertBusiness(t, err, entity.ErrDuplicateUser, "Username already taken", 400)

		after, _ := f.store.GetEnrollment(ctx, "alice")
		assert.Equal(t, before, after)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.uc.Register(ctx, RegisterInput{Username: "a", Password: "short", Email: "nope"})
		var gerr *goerror.Error
		require.True(t, errors.As(err, &gerr))
		assert.Equal(t, 422, gerr.StatusCode())
		assert.Contains(t, err.Error(), "email")
		assert.NotContains(t, err.Error(), "password")
	})

	t.Run("short password and username accepted by default", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.uc.Register(ctx, RegisterInput{Username: "alice", Password: "pw1", Email: "a@x.com"})
		require.NoError(t, err)

		_, err = f.uc.Login(ctx, LoginInput{Username: "alice", Password: "pw1"})
		require.NoError(t, err)

		_, err = f.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "alice", OTP: f.pub.lastCode(t)})
		require.NoError(t, err)

		_, err = f.uc.Register(ctx, RegisterInput{Username: "a b", Password: "x", Email: "b@x.com"})
		require.NoError(t, err)
	})

	t.Run("strict credentials reject short password", func(t *testing.T) {
		f := newFixture(t, func(d *Dependency) { d.StrictCredentials = true })

		_, err := f.uc.Register(ctx, RegisterInput{Username: "alice", Password: "pw1", Email: "a@x.com"})
		var gerr *goerror.Error
		require.True(t, errors.As(err, &gerr))
		assert.Equal(t, 422, gerr.StatusCode())

		exists, err := f.store.ExistsEnrollment(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = f.uc.Register(ctx, RegisterInput{Username: "alice", Password: "s3cret-pass", Email: "a@x.com"})
		require.NoError(t, err)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("issues session and publishes code", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "alice", "s3cret-pass", "alice@example.com")

		out, err := f.uc.Login(ctx, LoginInput{Username: "alice", Password: "s3cret-pass"})
		require.NoError(t, err)
		assert.Equal(t, "alice", out.ChallengeToken)
		assert.Equal(t, testTTL, out.ExpiresIn)

		require.Len(t, f.pub.events, 1)
		ev := f.pub.events[0]
		assert.Equal(t, "alice@example.com", ev.Email)
		assert.Len(t, ev.Code, 6)
		assert.True(t, f.clock.Now().Equal(ev.IssuedAt))
	})

	t.Run("wrong password creates no session", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "alice", "s3cret-pass", "alice@example.com")

		_, err := f.uc.Login(ctx, LoginInput{Username: "alice", Password: "wrong-pass"})
		assertBusiness(t, err, entity.ErrInvalidCredentials, "Invalid credentials", 401)
		assert.Empty(t, f.pub.events)

		res, err := f.cache.Consume(ctx, "alice", "000000", f.clock.Now())
		require.NoError(t, err)
		assert.Equal(t, entity.VerifyResultNoSession, res)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.uc.Login(ctx, LoginInput{Username: "ghost", Password: "whatever1"})
		assertBusiness(t, err, entity.ErrInvalidCredentials, "Invalid credentials", 401)
	})

	t.Run("unknown user still pays password check", func(t *testing.T) {
		pw := &countingHash{next: hash.NewBcrypt(4, "pepper")}
		f := newFixture(t, func(d *Dependency) { d.Password = pw })

		for range 2 {
			_, err := f.uc.Login(ctx, LoginInput{Username: "ghost", Password: "whatever1"})
			assertBusiness(t, err, entity.ErrInvalidCredentials, "Invalid credentials", 401)
		}
		assert.Equal(t, 2, pw.verifies)
	})

	t.Run("delivery failure keeps session", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "alice", "s3cret-pass", "alice@example.com")
		f.pub.err = errors.New("broker down")

		_, err := f.uc.Login(ctx, LoginInput{Username: "alice", Password: "s3cret-pass"})
		require.NoError(t, err)

		_, err = f.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "alice", OTP: f.pub.lastCode(t)})
		require.NoError(t, err)
	})
}

func TestVerifyOTP(t *testing.T) {
	ctx := context.Background()

	t.Run("alice scenario", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "alice", "s3cret-pass", "alice@example.com")
		_, err := f.uc.Login(ctx, LoginInput{Username: "alice", Password: "s3cret-pass"})
		require.NoError(t, err)
		code := f.pub.lastCode(t)

		out, err := f.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "alice", OTP: code})
		require.NoError(t, err)
		assert.Equal(t, "alice", out.Username)

		_, err = f.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "alice", OTP: code})
		assertBusiness(t, err, entity.ErrSessionExpiredOrMissing, "OTP session expired", 400)
	})

	t.Run("mismatch then success", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "alice", "s3cret-pass", "alice@example.com")
		_, err := f.uc.Login(ctx, LoginInput{Username: "alice", Password: "s3cret-pass"})
		require.NoError(t, err)
		code := f.pub.lastCode(t)

		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}
		_, err = f.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "alice", OTP: wrong})
		assertBusiness(t, err, entity.ErrInvalidOTP, "Invalid OTP", 400)

		_, err = f.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "alice", OTP: code})
		require.NoError(t, err)
	})

	t.Run("expiry boundary", func(t *testing.T) {
		for _, tc := range []struct {
			after time.Duration
			ok    bool
		}{
			{299 * time.Second, true},
			{300 * time.Second, false},
		} {
			f := newFixture(t)
			f.register(t, "alice", "s3cret-pass", "alice@example.com")
			_, err := f.uc.Login(ctx, LoginInput{Username: "alice", Password: "s3cret-pass"})
			require.NoError(t, err)

			f.clock.Advance(tc.after)
			_, err = f.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "alice", OTP: f.pub.lastCode(t)})
			if tc.ok {
				require.NoError(t, err)
				continue
			}
			assertBusiness(t, err, entity.ErrOTPExpired, "OTP expired", 400)
		}
	})

	t.Run("reissue invalidates previous code", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "alice", "s3cret-pass", "alice@example.com")

		_, err := f.uc.Login(ctx, LoginInput{Username: "alice", Password: "s3cret-pass"})
		require.NoError(t, err)
		first := f.pub.lastCode(t)

		// move to the next TOTP step so the new code differs
		f.clock.Advance(30 * time.Second)
		_, err = f.uc.Login(ctx, LoginInput{Username: "alice", Password: "s3cret-pass"})
		require.NoError(t, err)
		second := f.pub.lastCode(t)

		if first != second {
			_, err = f.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "alice", OTP: first})
			assertBusiness(t, err, entity.ErrInvalidOTP, "Invalid OTP", 400)
		}

		_, err = f.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "alice", OTP: second})
		require.NoError(t, err)
	})

	t.Run("no session", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.uc.VerifyOTP(ctx, VerifyOTPInput{Username: "bob", OTP: "123456"})
		assertBusiness(t, err, entity.ErrSessionExpiredOrMissing, "OTP session expired", 400)
	})
}

func TestHealth(t *testing.T) {
	out, err := newFixture(t).uc.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &HealthOutput{Store: "ok", Cache: "ok"}, out)
}
