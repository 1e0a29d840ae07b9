package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendly/internal/apierr"
	"attendly/internal/geo"
	"attendly/internal/identity"
	"attendly/internal/kv"
	"attendly/internal/livefeed"
	"attendly/internal/session"
)

// fakePerimeter serves a fixed allow-list and campus ring set.
type fakePerimeter struct {
	rings [][]geo.Point
	ips   []string
}

func (f *fakePerimeter) CampusRings(context.Context, string) ([][]geo.Point, error) {
	return f.rings, nil
}

func (f *fakePerimeter) AllowedIPs(context.Context, string) ([]string, error) {
	return f.ips, nil
}

// fakeRecords is an in-memory RecordStore.
type fakeRecords struct {
	mu   sync.Mutex
	rows []Record
	seq  int
}

func (f *fakeRecords) Insert(_ context.Context, rec Record) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	rec.ID = fmt.Sprintf("rec-%d", f.seq)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC().Add(time.Duration(f.seq) * time.Millisecond)
	}
	f.rows = append(f.rows, rec)
	return rec, nil
}

func (f *fakeRecords) ListBySession(_ context.Context, sessionID, institutionID, subjectID string, since *time.Time) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Record
	for _, r := range f.rows {
		if r.SessionID != sessionID || r.InstitutionID != institutionID {
			continue
		}
		if subjectID != "" && (r.SubjectID == nil || *r.SubjectID != subjectID) {
			continue
		}
		if since != nil && !r.CreatedAt.After(*since) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// fakeResolver resolves from a static user table.
type fakeResolver struct {
	users map[string]identity.PublicUser
}

func (f *fakeResolver) PublicByID(_ context.Context, id string) (identity.PublicUser, error) {
	return f.users[id], nil
}

func (f *fakeResolver) PublicByIDs(_ context.Context, ids []string) (map[string]identity.PublicUser, error) {
	out := make(map[string]identity.PublicUser)
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type fixture struct {
	svc      *Service
	mgr      *session.Manager
	store    *kv.MemoryStore
	records  *fakeRecords
	bus      *livefeed.MemoryBus
	resolver *fakeResolver
}

var campusSquare = []geo.Point{{Lng: 0, Lat: 0}, {Lng: 0, Lat: 1}, {Lng: 1, Lat: 1}, {Lng: 1, Lat: 0}}

func isValidation(err error) bool { return apierr.IsKind(err, apierr.KindValidation) }
func isNotFound(err error) bool   { return apierr.IsKind(err, apierr.KindNotFound) }
func isForbidden(err error) bool  { return apierr.IsKind(err, apierr.KindForbidden) }

func newFixture(t *testing.T, allowLocalhost bool) *fixture {
	t.Helper()
	store := kv.NewMemoryStore()
	records := &fakeRecords{}
	bus := livefeed.NewMemoryBus()
	resolver := &fakeResolver{users: map[string]identity.PublicUser{
		"stu-1": {ID: "stu-1", Name: "Asha", Email: "asha@example.edu", Role: "student"},
		"stu-2": {ID: "stu-2", Name: "Ravi", Email: "ravi@example.edu", Role: "student"},
	}}
	mgr := session.NewManager(store, time.Hour)
	perimeter := &fakePerimeter{rings: [][]geo.Point{campusSquare}, ips: []string{"10.0.0.5"}}
	return &fixture{
		svc:      NewService(mgr, perimeter, records, resolver, bus, allowLocalhost),
		mgr:      mgr,
		store:    store,
		records:  records,
		bus:      bus,
		resolver: resolver,
	}
}

func (f *fixture) startSession(t *testing.T) session.StartResult {
	t.Helper()
	res, err := f.mgr.Start(context.Background(), session.StartInput{
		TeacherID:     "teach-1",
		InstitutionID: "inst-1",
		SubjectID:     "SUBJ1",
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return res
}

func ptr(f float64) *float64 { return &f }

func joinInput(sessionID string) JoinInput {
	return JoinInput{
		UserID:        "stu-1",
		InstitutionID: "inst-1",
		SessionID:     sessionID,
		Latitude:      ptr(0.5),
		Longitude:     ptr(0.5),
		ClientIP:      "10.0.0.5",
	}
}

func TestJoinSuccess(t *testing.T) {
	f := newFixture(t, false)
	sess := f.startSession(t)
	ctx := context.Background()

	sub, err := f.bus.Subscribe(ctx, livefeed.Channel(sess.SessionID))
	require.NoError(t, err)
	defer sub.Close()

	res, err := f.svc.Join(ctx, joinInput(sess.SessionID))
	require.NoError(t, err)
	assert.Equal(t, sess.SessionID, res.SessionID)
	require.NotNil(t, res.SubjectID)
	assert.Equal(t, "SUBJ1", *res.SubjectID)

	require.Len(t, f.records.rows, 1)
	rec := f.records.rows[0]
	assert.Equal(t, "stu-1", rec.UserID)
	assert.Equal(t, "10.0.0.5", rec.IP)
	assert.Equal(t, map[string]string{"source": "qr", "method": "wifi+geofence"}, rec.Metadata)

	select {
	case payload := <-sub.Messages():
		var evt FeedEvent
		require.NoError(t, json.Unmarshal(payload, &evt))
		assert.Equal(t, EventNewAttendance, evt.Type)
		assert.Equal(t, "Asha", evt.User.Name)
		assert.Equal(t, rec.ID, evt.Record.ID)
	case <-time.After(time.Second):
		t.Fatal("no feed event published")
	}
}

func TestJoinValidation(t *testing.T) {
	f := newFixture(t, false)
	sess := f.startSession(t)

	tests := []struct {
		name   string
		mutate func(*JoinInput)
	}{
		{name: "missing session id", mutate: func(in *JoinInput) { in.SessionID = "" }},
		{name: "missing latitude", mutate: func(in *JoinInput) { in.Latitude = nil }},
		{name: "missing longitude", mutate: func(in *JoinInput) { in.Longitude = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := joinInput(sess.SessionID)
			tt.mutate(&in)
			_, err := f.svc.Join(context.Background(), in)
			require.Error(t, err)
			assert.True(t, isValidation(err), "want validation error, got %v", err)
		})
	}
	assert.Empty(t, f.records.rows, "no record may be written on validation failure")
}

func TestJoinExpiredSession(t *testing.T) {
	f := newFixture(t, false)
	sess := f.startSession(t)
	f.store.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })

	_, err := f.svc.Join(context.Background(), joinInput(sess.SessionID))
	require.Error(t, err)
	assert.True(t, isNotFound(err), "expired session must be not-found, got %v", err)
	assert.Empty(t, f.records.rows)
}

func TestJoinMalformedDescriptor(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.store.SetEX(ctx, "session:odd", "{broken", time.Hour))

	res, err := f.svc.Join(ctx, joinInput("odd"))
	require.NoError(t, err, "malformed descriptor degrades to unknown subject")
	assert.Nil(t, res.SubjectID)
	require.Len(t, f.records.rows, 1)
	assert.Nil(t, f.records.rows[0].SubjectID)
}

func TestJoinRejectedOffNetwork(t *testing.T) {
	f := newFixture(t, false)
	sess := f.startSession(t)

	sub, err := f.bus.Subscribe(context.Background(), livefeed.Channel(sess.SessionID))
	require.NoError(t, err)
	defer sub.Close()

	in := joinInput(sess.SessionID)
	in.ClientIP = "192.168.1.50"
	_, err = f.svc.Join(context.Background(), in)
	require.Error(t, err)
	assert.True(t, isForbidden(err))
	assert.Empty(t, f.records.rows)
	select {
	case <-sub.Messages():
		t.Fatal("no event may be published for a rejected join")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestJoinLocalhostOverride(t *testing.T) {
	f := newFixture(t, true)
	sess := f.startSession(t)

	in := joinInput(sess.SessionID)
	in.ClientIP = "127.0.0.1"
	_, err := f.svc.Join(context.Background(), in)
	require.NoError(t, err, "loopback must pass when the dev override is on")

	// the override admits loopback only
	in.ClientIP = "192.168.1.50"
	_, err = f.svc.Join(context.Background(), in)
	require.Error(t, err)
	assert.True(t, isForbidden(err))
}

func TestJoinRejectedOutsideGeofence(t *testing.T) {
	f := newFixture(t, false)
	sess := f.startSession(t)

	in := joinInput(sess.SessionID)
	in.Latitude = ptr(5)
	in.Longitude = ptr(5)
	_, err := f.svc.Join(context.Background(), in)
	require.Error(t, err)
	assert.True(t, isForbidden(err))
	assert.Empty(t, f.records.rows)
}

func TestGetAttendeesDedup(t *testing.T) {
	f := newFixture(t, false)
	sess := f.startSession(t)
	ctx := context.Background()

	// stu-1 joins twice, stu-2 once
	_, err := f.svc.Join(ctx, joinInput(sess.SessionID))
	require.NoError(t, err)
	later := joinInput(sess.SessionID)
	later.Latitude = ptr(0.7)
	_, err = f.svc.Join(ctx, later)
	require.NoError(t, err)
	second := joinInput(sess.SessionID)
	second.UserID = "stu-2"
	_, err = f.svc.Join(ctx, second)
	require.NoError(t, err)

	snap, err := f.svc.GetAttendees(ctx, sess.SessionID, "inst-1", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Count)
	require.Len(t, snap.Attendees, 2)

	byUser := make(map[string]Attendee)
	for _, a := range snap.Attendees {
		byUser[a.UserID] = a
	}
	// the kept row for stu-1 is the later one
	assert.Equal(t, 0.7, byUser["stu-1"].Latitude)
	require.NotNil(t, byUser["stu-1"].User)
	assert.Equal(t, "Asha", byUser["stu-1"].User.Name)
	assert.Equal(t, "Ravi", byUser["stu-2"].User.Name)

	// idempotent under repeated calls with unchanged data
	again, err := f.svc.GetAttendees(ctx, sess.SessionID, "inst-1", "", nil)
	require.NoError(t, err)
	assert.Equal(t, snap, again)
}

func TestOnCampusNetwork(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	ok, err := f.svc.OnCampusNetwork(ctx, "inst-1", "10.0.0.5")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.OnCampusNetwork(ctx, "inst-1", "192.168.1.50")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		fwd    string
		remote string
		want   string
	}{
		{name: "no forwarding", remote: "10.0.0.5", want: "10.0.0.5"},
		{name: "single forwarded", fwd: "10.0.0.7", remote: "172.16.0.1", want: "10.0.0.7"},
		{name: "left-most of chain", fwd: "10.0.0.8, 172.16.0.1, 172.16.0.2", remote: "172.16.0.3", want: "10.0.0.8"},
		{name: "mapped ipv4 stripped", fwd: "::ffff:10.0.0.9", remote: "", want: "10.0.0.9"},
		{name: "mapped remote stripped", remote: "::ffff:10.0.0.10", want: "10.0.0.10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/join", nil)
			if tt.fwd != "" {
				req.Header.Set("X-Forwarded-For", tt.fwd)
			}
			assert.Equal(t, tt.want, ClientIP(req, tt.remote))
		})
	}
}
