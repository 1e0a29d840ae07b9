package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"attendly/internal/kv"
)

// OTPService issues and checks one-time email verification codes.
type OTPService struct {
	store kv.Store
	ttl   time.Duration
}

// NewOTPService creates a service storing codes with the given TTL.
func NewOTPService(store kv.Store, ttl time.Duration) *OTPService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &OTPService{store: store, ttl: ttl}
}

// Generate returns a random 6-digit code.
func (s *OTPService) Generate() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		// crypto/rand only fails when the platform's entropy source is
		// broken; a fixed code would be worse than failing loud.
		panic(err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000)
}

// Save stores the code for a user, replacing any outstanding one.
func (s *OTPService) Save(ctx context.Context, userID, otp string) error {
	return s.store.SetEX(ctx, "otp:"+userID, otp, s.ttl)
}

// Verify checks the code and consumes it on success.
func (s *OTPService) Verify(ctx context.Context, userID, otp string) (bool, string) {
	stored, err := s.store.Get(ctx, "otp:"+userID)
	if err != nil {
		return false, "OTP expired or not found"
	}
	if stored != otp {
		return false, "Invalid OTP"
	}
	_ = s.store.Del(ctx, "otp:"+userID)
	return true, "OTP verified"
}
