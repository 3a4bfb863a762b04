// Package sms issues and verifies one-time login codes, rate limited to a
// fixed number of sends per phone number per calendar day.
package sms

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/amazingchow/game-companion-gateway/internal/cache"
)

// ErrDailyLimitExceeded is returned when a phone number has already been sent
// the daily maximum of one-time codes.
var ErrDailyLimitExceeded = errors.New("sms: daily send limit exceeded")

// ErrCodeInvalid is returned when a presented one-time code does not match
// or has expired.
var ErrCodeInvalid = errors.New("sms: code invalid or expired")

// Vendor abstracts the outbound SMS gateway. Concrete deployments wire this to
// whatever carrier aggregator is under contract; it is never implemented here.
// Send returns the vendor's message id for the dispatched code, which Verify
// later needs to check the code against the vendor's own record rather than
// a value cached locally.
type Vendor interface {
	Send(ctx context.Context, phone, code string) (msgID string, err error)
	Verify(ctx context.Context, msgID, code string) (bool, error)
}

// Service issues and verifies SMS one-time codes backed by Redis.
type Service struct {
	cache      *cache.Service
	vendor     Vendor
	dailyLimit int64
	codeTTL    time.Duration
}

// NewService builds an SMS Service. codeTTLSec is SM_PERIOD_OF_VALIDITY_SEC.
func NewService(c *cache.Service, vendor Vendor, dailyLimit int64, codeTTLSec int) *Service {
	return &Service{
		cache:      c,
		vendor:     vendor,
		dailyLimit: dailyLimit,
		codeTTL:    time.Duration(codeTTLSec) * time.Second,
	}
}

// SendCode generates and dispatches a one-time code to phone, enforcing the
// daily token bucket which resets at midnight UTC rather than on a rolling
// window from first send.
func (s *Service) SendCode(ctx context.Context, phone string) error {
	dayKey := fmt.Sprintf("sms:daily:%s:%s", phone, time.Now().UTC().Format("2006-01-02"))
	midnight := nextMidnightUTC()

	count, err := s.cache.IncrWithExpireAt(ctx, dayKey, midnight)
	if err != nil {
		return fmt.Errorf("sms: check daily limit: %w", err)
	}
	if count > s.dailyLimit {
		return ErrDailyLimitExceeded
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("sms: generate code: %w", err)
	}

	msgID, err := s.vendor.Send(ctx, phone, code)
	if err != nil {
		return fmt.Errorf("sms: dispatch code: %w", err)
	}

	msgIDKey := fmt.Sprintf("sms:msgid:%s", phone)
	if err := s.cache.Set(ctx, msgIDKey, msgID, s.codeTTL); err != nil {
		return fmt.Errorf("sms: store msg id: %w", err)
	}

	return nil
}

// VerifyCode checks the presented code against the vendor's record for the
// message it dispatched, consuming the cached msg_id on success so it cannot
// be replayed.
func (s *Service) VerifyCode(ctx context.Context, phone, code string) error {
	msgIDKey := fmt.Sprintf("sms:msgid:%s", phone)
	msgID, err := s.cache.Get(ctx, msgIDKey)
	if err != nil || msgID == "" {
		return ErrCodeInvalid
	}

	valid, err := s.vendor.Verify(ctx, msgID, code)
	if err != nil {
		return fmt.Errorf("sms: verify code: %w", err)
	}
	if !valid {
		return ErrCodeInvalid
	}

	_ = s.cache.Del(ctx, msgIDKey)
	return nil
}

func nextMidnightUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
