package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"attendly/internal/apierr"
	"attendly/internal/geo"
	"attendly/internal/identity"
	"attendly/internal/livefeed"
	"attendly/internal/metrics"
	"attendly/internal/session"
)

// SessionSource looks up live class sessions.
type SessionSource interface {
	Get(ctx context.Context, sessionID string) (session.Descriptor, error)
}

// PerimeterSource provides the institution's physical-presence constraints.
type PerimeterSource interface {
	CampusRings(ctx context.Context, institutionID string) ([][]geo.Point, error)
	AllowedIPs(ctx context.Context, institutionID string) ([]string, error)
}

// RecordStore persists and lists attendance records.
type RecordStore interface {
	Insert(ctx context.Context, rec Record) (Record, error)
	ListBySession(ctx context.Context, sessionID, institutionID, subjectID string, since *time.Time) ([]Record, error)
}

// IdentityResolver resolves users' public identities.
type IdentityResolver interface {
	PublicByID(ctx context.Context, id string) (identity.PublicUser, error)
	PublicByIDs(ctx context.Context, ids []string) (map[string]identity.PublicUser, error)
}

// FeedEvent is the denormalized payload published once per successful join.
// It lives only on the bus, never in storage.
type FeedEvent struct {
	Type      string              `json:"type"`
	Record    Record              `json:"record"`
	User      identity.PublicUser `json:"user"`
	Timestamp time.Time           `json:"timestamp"`
}

// EventNewAttendance is the feed event type for a join.
const EventNewAttendance = "new_attendance"

// Service validates join requests, persists records and fans them out to
// the live feed.
type Service struct {
	sessions       SessionSource
	perimeter      PerimeterSource
	records        RecordStore
	resolver       IdentityResolver
	bus            livefeed.Bus
	allowLocalhost bool
	now            func() time.Time
}

// NewService wires the recorder's collaborators. allowLocalhost admits
// loopback clients past the WiFi check for development.
func NewService(sessions SessionSource, perimeter PerimeterSource, records RecordStore, resolver IdentityResolver, bus livefeed.Bus, allowLocalhost bool) *Service {
	return &Service{
		sessions:       sessions,
		perimeter:      perimeter,
		records:        records,
		resolver:       resolver,
		bus:            bus,
		allowLocalhost: allowLocalhost,
		now:            time.Now,
	}
}

// JoinInput is a student's join request. Latitude/Longitude are pointers so
// a missing coordinate is distinguishable from zero.
type JoinInput struct {
	UserID        string
	InstitutionID string
	SessionID     string
	Latitude      *float64
	Longitude     *float64
	ClientIP      string
}

// JoinResult is returned on a successful join.
type JoinResult struct {
	SessionID string  `json:"sessionId"`
	SubjectID *string `json:"subjectId,omitempty"`
}

// Join runs the check-in pipeline: validate input, confirm the session is
// live, check the WiFi allow-list, check the geofence, persist, publish.
// The steps run strictly in order and any failure aborts the request; the
// row is only written once every check has passed.
func (s *Service) Join(ctx context.Context, in JoinInput) (JoinResult, error) {
	if in.SessionID == "" {
		metrics.JoinsRejected.WithLabelValues(metrics.ReasonValidation).Inc()
		return JoinResult{}, apierr.Validation("sessionId is required")
	}
	if in.Latitude == nil || in.Longitude == nil {
		metrics.JoinsRejected.WithLabelValues(metrics.ReasonValidation).Inc()
		return JoinResult{}, apierr.Validation("latitude and longitude are required")
	}

	// A malformed descriptor means the session key is live but its subject
	// is unknowable; the join proceeds with subject unset.
	var subjectID *string
	desc, err := s.sessions.Get(ctx, in.SessionID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		metrics.JoinsRejected.WithLabelValues(metrics.ReasonSession).Inc()
		return JoinResult{}, apierr.NotFound("session not found or expired")
	case errors.Is(err, session.ErrMalformedDescriptor):
		log.Printf("session %s has a malformed descriptor, recording with unknown subject", in.SessionID)
	case err != nil:
		return JoinResult{}, err
	default:
		if desc.SubjectID != "" {
			subjectID = &desc.SubjectID
		}
	}

	allowed, err := s.perimeter.AllowedIPs(ctx, in.InstitutionID)
	if err != nil {
		return JoinResult{}, err
	}
	if !s.ipPermitted(in.ClientIP, allowed) {
		metrics.JoinsRejected.WithLabelValues(metrics.ReasonNetwork).Inc()
		return JoinResult{}, apierr.Forbidden("please connect to your campus WiFi to mark attendance")
	}

	rings, err := s.perimeter.CampusRings(ctx, in.InstitutionID)
	if err != nil {
		return JoinResult{}, err
	}
	if !geo.InsideAny(*in.Longitude, *in.Latitude, rings) {
		metrics.JoinsRejected.WithLabelValues(metrics.ReasonGeofence).Inc()
		return JoinResult{}, apierr.Forbidden("outside campus perimeter")
	}

	rec, err := s.records.Insert(ctx, Record{
		SessionID:     in.SessionID,
		UserID:        in.UserID,
		InstitutionID: in.InstitutionID,
		SubjectID:     subjectID,
		IP:            in.ClientIP,
		Latitude:      *in.Latitude,
		Longitude:     *in.Longitude,
		Metadata:      map[string]string{"source": "qr", "method": "wifi+geofence"},
	})
	if err != nil {
		return JoinResult{}, err
	}
	metrics.JoinsRecorded.Inc()

	user, err := s.resolver.PublicByID(ctx, in.UserID)
	if err != nil {
		return JoinResult{}, apierr.Upstream("could not resolve user identity", err)
	}

	event := FeedEvent{
		Type:      EventNewAttendance,
		Record:    rec,
		User:      user,
		Timestamp: s.now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return JoinResult{}, err
	}
	// The row is durable at this point; a lost publish is within the
	// feed's at-most-once contract.
	if err := s.bus.Publish(ctx, livefeed.Channel(in.SessionID), payload); err != nil {
		log.Printf("feed publish failed for session %s: %v", in.SessionID, err)
	} else {
		metrics.FeedEventsPublished.Inc()
	}

	return JoinResult{SessionID: in.SessionID, SubjectID: subjectID}, nil
}

// OnCampusNetwork reports whether the client IP is on the institution's
// WiFi allow-list, honoring the localhost dev override.
func (s *Service) OnCampusNetwork(ctx context.Context, institutionID, ip string) (bool, error) {
	allowed, err := s.perimeter.AllowedIPs(ctx, institutionID)
	if err != nil {
		return false, err
	}
	return s.ipPermitted(ip, allowed), nil
}

func (s *Service) ipPermitted(ip string, allowed []string) bool {
	if s.allowLocalhost && (ip == "127.0.0.1" || ip == "::1") {
		return true
	}
	for _, a := range allowed {
		if a == ip {
			return true
		}
	}
	return false
}
