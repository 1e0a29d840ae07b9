package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendly/internal/kv"
)

func TestOTPGenerateFormat(t *testing.T) {
	svc := NewOTPService(kv.NewMemoryStore(), time.Minute)
	for i := 0; i < 100; i++ {
		otp := svc.Generate()
		require.Len(t, otp, 6)
		assert.GreaterOrEqual(t, otp[0], byte('1'), "first digit must not be zero")
	}
}

func TestOTPVerify(t *testing.T) {
	store := kv.NewMemoryStore()
	svc := NewOTPService(store, time.Minute)
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, "user-1", "123456"))

	ok, msg := svc.Verify(ctx, "user-1", "000000")
	assert.False(t, ok)
	assert.Equal(t, "Invalid OTP", msg)

	ok, _ = svc.Verify(ctx, "user-1", "123456")
	assert.True(t, ok)

	// one-time use: the code is consumed
	ok, msg = svc.Verify(ctx, "user-1", "123456")
	assert.False(t, ok)
	assert.Equal(t, "OTP expired or not found", msg)
}

func TestOTPExpiry(t *testing.T) {
	store := kv.NewMemoryStore()
	svc := NewOTPService(store, time.Minute)
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, "user-1", "654321"))
	store.SetClock(func() time.Time { return time.Now().Add(2 * time.Minute) })

	ok, msg := svc.Verify(ctx, "user-1", "654321")
	assert.False(t, ok)
	assert.Equal(t, "OTP expired or not found", msg)
}
