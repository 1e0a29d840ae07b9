package attendance

import (
	"context"
	"net/http"
	"strings"
	"time"

	"attendly/internal/identity"
)

// Attendee is a deduplicated attendance record with its resolved user.
type Attendee struct {
	Record
	User *identity.PublicUser `json:"user,omitempty"`
}

// Snapshot is the current "who is present" view of a session.
type Snapshot struct {
	Attendees []Attendee `json:"attendees"`
	Count     int        `json:"count"`
}

// GetAttendees returns the most-recent record per user for a session, with
// identities resolved in one batch. The same snapshot seeds a live stream's
// connected event, so repeated calls over unchanged data must agree.
func (s *Service) GetAttendees(ctx context.Context, sessionID, institutionID, subjectID string, since *time.Time) (Snapshot, error) {
	records, err := s.records.ListBySession(ctx, sessionID, institutionID, subjectID, since)
	if err != nil {
		return Snapshot{}, err
	}

	// Records arrive newest first, so the first row seen per user is the
	// most recent one.
	seen := make(map[string]bool, len(records))
	deduped := make([]Record, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if seen[rec.UserID] {
			continue
		}
		seen[rec.UserID] = true
		deduped = append(deduped, rec)
		ids = append(ids, rec.UserID)
	}

	users, err := s.resolver.PublicByIDs(ctx, ids)
	if err != nil {
		return Snapshot{}, err
	}

	attendees := make([]Attendee, len(deduped))
	for i, rec := range deduped {
		attendees[i] = Attendee{Record: rec}
		if u, ok := users[rec.UserID]; ok {
			uc := u
			attendees[i].User = &uc
		}
	}
	return Snapshot{Attendees: attendees, Count: len(attendees)}, nil
}

// ClientIP derives the joining client's address: the left-most
// X-Forwarded-For entry when present, otherwise the transport address, with
// any IPv6-mapped-IPv4 prefix stripped.
func ClientIP(r *http.Request, remoteIP string) string {
	ip := remoteIP
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return strings.TrimPrefix(ip, "::ffff:")
}
