package sms

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/amazingchow/game-companion-gateway/internal/cache"
	"github.com/stretchr/testify/require"
)

// fakeVendor mimics a carrier aggregator that issues a msg_id per dispatch
// and verifies codes against its own record, never exposing the code back to
// the caller.
type fakeVendor struct {
	sent map[string]string // msg_id -> code
}

func newFakeVendor() *fakeVendor { return &fakeVendor{sent: map[string]string{}} }

func (f *fakeVendor) Send(ctx context.Context, phone, code string) (string, error) {
	msgID := phone + "-" + code
	f.sent[msgID] = code
	return msgID, nil
}

func (f *fakeVendor) Verify(ctx context.Context, msgID, code string) (bool, error) {
	return f.sent[msgID] == code, nil
}

func newTestService(t *testing.T, dailyLimit int64) (*Service, *fakeVendor, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	c, err := cache.NewService(mr.Addr(), "")
	require.NoError(t, err)
	v := newFakeVendor()
	return NewService(c, v, dailyLimit, 300), v, mr
}

// lastCode finds the most recently sent code for phone by scanning the
// vendor's msg_id->code map, since msg_id itself is opaque to the caller.
func lastCode(v *fakeVendor, phone string) string {
	for msgID, code := range v.sent {
		if len(msgID) > len(phone) && msgID[:len(phone)] == phone {
			return code
		}
	}
	return ""
}

func TestSendAndVerifyCode(t *testing.T) {
	svc, vendor, mr := newTestService(t, 5)
	defer mr.Close()

	ctx := context.Background()
	require.NoError(t, svc.SendCode(ctx, "13800000000"))

	code := lastCode(vendor, "13800000000")
	require.Len(t, code, 6)

	require.NoError(t, svc.VerifyCode(ctx, "13800000000", code))
}

func TestVerifyCodeRejectsWrongCode(t *testing.T) {
	svc, _, mr := newTestService(t, 5)
	defer mr.Close()

	ctx := context.Background()
	require.NoError(t, svc.SendCode(ctx, "13800000001"))
	require.ErrorIs(t, svc.VerifyCode(ctx, "13800000001", "000000"), ErrCodeInvalid)
}

func TestVerifyCodeConsumesOnSuccess(t *testing.T) {
	svc, vendor, mr := newTestService(t, 5)
	defer mr.Close()

	ctx := context.Background()
	require.NoError(t, svc.SendCode(ctx, "13800000002"))
	code := lastCode(vendor, "13800000002")

	require.NoError(t, svc.VerifyCode(ctx, "13800000002", code))
	require.ErrorIs(t, svc.VerifyCode(ctx, "13800000002", code), ErrCodeInvalid)
}

func TestSendCodeDailyLimitExceeded(t *testing.T) {
	svc, _, mr := newTestService(t, 2)
	defer mr.Close()

	ctx := context.Background()
	require.NoError(t, svc.SendCode(ctx, "13800000003"))
	require.NoError(t, svc.SendCode(ctx, "13800000003"))
	require.ErrorIs(t, svc.SendCode(ctx, "13800000003"), ErrDailyLimitExceeded)
}
