package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendly/internal/kv"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestStartAndGet(t *testing.T) {
	store := kv.NewMemoryStore()
	mgr := NewManager(store, time.Hour)
	ctx := context.Background()

	res, err := mgr.Start(ctx, StartInput{
		TeacherID:     "t-1",
		InstitutionID: "inst-1",
		SubjectID:     "subj-1",
		Section:       "A",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, 3600, res.TTLSeconds)
	assert.Equal(t, TokenType, res.QRPayload.T)
	assert.Equal(t, TokenVersion, res.QRPayload.V)
	assert.Equal(t, res.SessionID, res.QRPayload.SessionID)
	assert.Equal(t, "subj-1", res.QRPayload.SubjectID)
	assert.Equal(t, "inst-1", res.QRPayload.InstitutionID)

	require.True(t, strings.HasPrefix(res.QRDataURL, "data:image/png;base64,"))
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(res.QRDataURL, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic), "rendered token must be a PNG")

	desc, err := mgr.Get(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "t-1", desc.TeacherID)
	assert.Equal(t, "inst-1", desc.InstitutionID)
	assert.Equal(t, "subj-1", desc.SubjectID)
	assert.Equal(t, "A", desc.Section)

	ttl, err := mgr.TTL(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
}

func TestStartRequiresSubject(t *testing.T) {
	mgr := NewManager(kv.NewMemoryStore(), time.Hour)
	_, err := mgr.Start(context.Background(), StartInput{TeacherID: "t-1", InstitutionID: "inst-1"})
	require.Error(t, err)
}

func TestGetExpired(t *testing.T) {
	store := kv.NewMemoryStore()
	mgr := NewManager(store, time.Hour)
	ctx := context.Background()

	res, err := mgr.Start(ctx, StartInput{TeacherID: "t-1", InstitutionID: "inst-1", SubjectID: "s"})
	require.NoError(t, err)

	store.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })

	_, err = mgr.Get(ctx, res.SessionID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = mgr.TTL(ctx, res.SessionID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetUnknownSession(t *testing.T) {
	mgr := NewManager(kv.NewMemoryStore(), time.Hour)
	_, err := mgr.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetMalformedDescriptor(t *testing.T) {
	store := kv.NewMemoryStore()
	require.NoError(t, store.SetEX(context.Background(), "session:bad", "{not json", time.Hour))

	mgr := NewManager(store, time.Hour)
	_, err := mgr.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrMalformedDescriptor)
}

func TestTokenPNG(t *testing.T) {
	mgr := NewManager(kv.NewMemoryStore(), time.Hour)
	png, err := mgr.TokenPNG("sess-1", "inst-1")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}
