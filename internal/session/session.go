// Package session manages ephemeral class sessions: short-lived descriptors
// in the key-value store plus the QR tokens students scan to join.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"attendly/internal/kv"
)

// TokenType tags the QR payload so scanners can reject foreign codes.
const TokenType = "attendly.session"

// TokenVersion is bumped whenever the payload shape changes.
const TokenVersion = 1

const keyPrefix = "session:"

// ErrNotFound is returned when a session is absent or expired.
var ErrNotFound = errors.New("session not found or expired")

// ErrMalformedDescriptor is returned when a stored descriptor cannot be
// decoded. The session key exists, so the session is live, but nothing about
// it can be trusted.
var ErrMalformedDescriptor = errors.New("malformed session descriptor")

// Descriptor is the stored state of a live class session. It has no close
// operation; the store's TTL is the only end of life.
type Descriptor struct {
	SessionID        string    `json:"sessionId"`
	TeacherID        string    `json:"teacherId"`
	InstitutionID    string    `json:"institutionId"`
	SubjectID        string    `json:"subjectId"`
	DepartmentID     string    `json:"departmentId,omitempty"`
	YearID           string    `json:"yearId,omitempty"`
	Section          string    `json:"section,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	ExpiresInSeconds int       `json:"expiresInSeconds"`
}

// TokenPayload is the public descriptor encoded into the QR image. It
// carries no capability secret; possession does not grant a join.
type TokenPayload struct {
	T             string `json:"t"`
	V             int    `json:"v"`
	SessionID     string `json:"sessionId"`
	SubjectID     string `json:"subjectId,omitempty"`
	InstitutionID string `json:"institutionId"`
}

// StartResult is everything the teacher's client needs to run a session.
type StartResult struct {
	SessionID  string       `json:"sessionId"`
	TTLSeconds int          `json:"ttlSeconds"`
	QRDataURL  string       `json:"qrDataUrl"`
	QRPayload  TokenPayload `json:"qrPayload"`
}

// StartInput are the teacher-supplied session parameters.
type StartInput struct {
	TeacherID     string
	InstitutionID string
	SubjectID     string
	DepartmentID  string
	YearID        string
	Section       string
}

// Manager creates sessions and renders their tokens.
type Manager struct {
	store kv.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager creates a manager writing descriptors with the given TTL.
func NewManager(store kv.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}
}

// Start mints a session, stores its descriptor under session:<id> with the
// manager's TTL, and returns the rendered QR token.
func (m *Manager) Start(ctx context.Context, in StartInput) (StartResult, error) {
	if in.SubjectID == "" {
		return StartResult{}, errors.New("subjectId is required")
	}

	desc := Descriptor{
		SessionID:        uuid.NewString(),
		TeacherID:        in.TeacherID,
		InstitutionID:    in.InstitutionID,
		SubjectID:        in.SubjectID,
		DepartmentID:     in.DepartmentID,
		YearID:           in.YearID,
		Section:          in.Section,
		CreatedAt:        m.now().UTC(),
		ExpiresInSeconds: int(m.ttl.Seconds()),
	}
	raw, err := json.Marshal(desc)
	if err != nil {
		return StartResult{}, err
	}
	if err := m.store.SetEX(ctx, keyPrefix+desc.SessionID, string(raw), m.ttl); err != nil {
		return StartResult{}, err
	}

	payload := TokenPayload{
		T:             TokenType,
		V:             TokenVersion,
		SessionID:     desc.SessionID,
		SubjectID:     desc.SubjectID,
		InstitutionID: desc.InstitutionID,
	}
	png, err := renderPNG(payload)
	if err != nil {
		return StartResult{}, err
	}

	return StartResult{
		SessionID:  desc.SessionID,
		TTLSeconds: desc.ExpiresInSeconds,
		QRDataURL:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		QRPayload:  payload,
	}, nil
}

// TokenPNG re-derives the QR image for a session id. It does not read back
// the descriptor; callers must confirm the session is live separately.
func (m *Manager) TokenPNG(sessionID, institutionID string) ([]byte, error) {
	return renderPNG(TokenPayload{
		T:             TokenType,
		V:             TokenVersion,
		SessionID:     sessionID,
		InstitutionID: institutionID,
	})
}

// Get loads a live session's descriptor. Returns ErrNotFound when the key
// has expired, ErrMalformedDescriptor when it cannot be decoded.
func (m *Manager) Get(ctx context.Context, sessionID string) (Descriptor, error) {
	raw, err := m.store.Get(ctx, keyPrefix+sessionID)
	if errors.Is(err, kv.ErrNotFound) {
		return Descriptor{}, ErrNotFound
	}
	if err != nil {
		return Descriptor{}, err
	}
	var desc Descriptor
	if err := json.Unmarshal([]byte(raw), &desc); err != nil {
		return Descriptor{}, ErrMalformedDescriptor
	}
	return desc, nil
}

// TTL returns the session's remaining lifetime, or ErrNotFound.
func (m *Manager) TTL(ctx context.Context, sessionID string) (time.Duration, error) {
	ttl, err := m.store.TTL(ctx, keyPrefix+sessionID)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, ErrNotFound
	}
	return ttl, err
}

func renderPNG(payload TokenPayload) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(string(raw), qrcode.Medium, 256)
}
