package inbound

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/notification/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

type captured struct {
	in  usecase.ConsumeOTPIssuedInput
	cID string
}

type fakeUsecase struct {
	got chan captured
}

func (f *fakeUsecase) ConsumeOTPIssued(ctx context.Context, in usecase.ConsumeOTPIssuedInput) error {
	f.got <- captured{in: in, cID: instrument.GetCorrelationID(ctx)}
	return nil
}

func publishWhenReady(t *testing.T, broker *messaging.Memory, msg messaging.OutgoingMessage) {
	t.Helper()

	// the consumer subscribes asynchronously and the memory broker drops
	// messages nobody listens to
	require.Eventually(t, func() bool {
		return broker.Subscribers(event.OTPIssuedDestination) > 0
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, broker.Publish(context.Background(), event.OTPIssuedDestination, msg))
}

func TestRegisterMQConsumer(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte("modules:\n  notification:\n    consumer_names: otp_issued_notification\n"))
	require.NoError(t, err)

	broker := messaging.NewMemory()
	routine := goroutine.NewManager(4)
	uc := &fakeUsecase{got: make(chan captured, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			_ = routine.Wait()
			_ = broker.Close()
		})
	}
	t.Cleanup(stop)

	RegisterMQConsumer(ctx, cfg, routine, broker, uid.NewUUID(), uc, instrument.NewNoop())

	body, err := json.Marshal(event.OTPIssuedMessage{
		Username: "alice", Email: "alice@example.com", Code: "123456", IssuedAt: 1, ExpiresInSeconds: 300,
	})
	require.NoError(t, err)

	publishWhenReady(t, broker, messaging.OutgoingMessage{
		Body:    body,
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte("cid-7")}},
	})

	select {
	case c := <-uc.got:
		assert.Equal(t, "cid-7", c.cID)
		assert.Equal(t, usecase.ConsumeOTPIssuedInput{
			Username: "alice", Email: "alice@example.com", Code: "123456", IssuedAt: 1, ExpiresInSeconds: 300,
		}, c.in)
	case <-time.After(2 * time.Second):
		t.Fatal("otp issued message not consumed")
	}

	stop()
}

func TestMQHandler_GeneratesCorrelationID(t *testing.T) {
	uc := &fakeUsecase{got: make(chan captured, 1)}
	h := &MQHandler{uc: uc, uuid: staticID("generated"), ins: instrument.NewNoop()}

	ctx := h.ensureCorrelationID(context.Background(), nil)
	assert.Equal(t, "generated", instrument.GetCorrelationID(ctx))
}

type staticID string

func (s staticID) Generate() string { return string(s) }
