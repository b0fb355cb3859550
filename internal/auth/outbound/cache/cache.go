package cache

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/otpgate/internal/auth/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
)

const keyPrefix = "otpgate:otp_session:"

// maxConsumeAttempts bounds the WATCH retries when another request changes
// the session between the read and the delete.
const maxConsumeAttempts = 5

var (
	errMalformedSession = errors.New("cache: malformed otp session")
	errConsumeContended = errors.New("cache: otp session changed during consume")
)

type Redis struct {
	client redis.UniversalClient
	hmac   hash.Hash
	ttl    time.Duration
	ins    instrument.Instrumentation
}

func NewRedis(client redis.UniversalClient, hmac hash.Hash, ttl time.Duration, ins instrument.Instrumentation) *Redis {
	return &Redis{client: client, hmac: hmac, ttl: ttl, ins: ins}
}

func (r *Redis) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return r.ins.Tracer("auth.outbound.cache").Start(ctx, name)
}

func (r *Redis) endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (r *Redis) Issue(ctx context.Context, username, code string, now time.Time) (err error) {
	ctx, span := r.startSpan(ctx, "Issue")
	defer func() { r.endSpan(span, err) }()

	digest, err := r.hmac.Hash(code)
	if err != nil {
		return err
	}

	key := keyPrefix + username
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "code", string(digest), "issued_at", now.UnixMilli())
		pipe.PExpire(ctx, key, 2*r.ttl)
		return nil
	})
	return err
}

// Consume reads the session under WATCH, compares digests in constant time
// and deletes the key in a MULTI block. A concurrent issue or consume aborts
// the transaction and the read is retried, so one session yields at most one
// Success. Keys live for twice the TTL so an expired session is reported as
// expired before it vanishes.
func (r *Redis) Consume(ctx context.Context, username, code string, now time.Time) (_ entity.VerifyResult, err error) {
	ctx, span := r.startSpan(ctx, "Consume")
	defer func() { r.endSpan(span, err) }()

	digest, err := r.hmac.Hash(code)
	if err != nil {
		return entity.VerifyResultNoSession, err
	}

	key := keyPrefix + username
	result := entity.VerifyResultNoSession

	for range maxConsumeAttempts {
		err = r.client.Watch(ctx, func(tx *redis.Tx) error {
			var err error
			result, err = r.consumeTx(ctx, tx, key, digest, now)
			return err
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, redis.TxFailedErr) {
		return entity.VerifyResultNoSession, errConsumeContended
	}
	if err != nil {
		return entity.VerifyResultNoSession, err
	}

	return result, nil
}

func (r *Redis) consumeTx(ctx context.Context, tx *redis.Tx, key string, digest []byte, now time.Time) (entity.VerifyResult, error) {
	vals, err := tx.HMGet(ctx, key, "code", "issued_at").Result()
	if err != nil {
		return entity.VerifyResultNoSession, err
	}

	stored, ok := vals[0].(string)
	if !ok {
		return entity.VerifyResultNoSession, nil
	}
	issuedRaw, _ := vals[1].(string)
	issuedAt, err := strconv.ParseInt(issuedRaw, 10, 64)
	if err != nil {
		return entity.VerifyResultNoSession, fmt.Errorf("%w: %s", errMalformedSession, key)
	}

	result := entity.VerifyResultMismatch
	switch {
	case now.UnixMilli()-issuedAt >= r.ttl.Milliseconds():
		result = entity.VerifyResultExpired
	case subtle.ConstantTimeCompare([]byte(stored), digest) == 1:
		result = entity.VerifyResultSuccess
	default:
		return result, nil
	}

	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return entity.VerifyResultNoSession, err
	}

	return result, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
