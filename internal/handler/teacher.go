package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"attendly/internal/apierr"
	"attendly/internal/auth"
	"attendly/internal/identity"
	"attendly/internal/livefeed"
	"attendly/internal/metrics"
	"attendly/internal/session"
)

// StartClass opens a new attendance session and returns its QR token.
func (h *Handler) StartClass(c *gin.Context) {
	claims := auth.FromContext(c)
	if claims.Role != identity.RoleTeacher {
		apierr.Abort(c, apierr.Forbidden("only teachers can start a class"))
		return
	}

	var req struct {
		SubjectID    string `json:"subjectId"`
		DepartmentID string `json:"departmentId"`
		YearID       string `json:"yearId"`
		Section      string `json:"section"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.Validation("invalid request body"))
		return
	}
	if req.SubjectID == "" {
		apierr.Abort(c, apierr.Validation("subjectId is required"))
		return
	}

	res, err := h.sessions.Start(c.Request.Context(), session.StartInput{
		TeacherID:     claims.UserID,
		InstitutionID: claims.InstitutionID,
		SubjectID:     req.SubjectID,
		DepartmentID:  req.DepartmentID,
		YearID:        req.YearID,
		Section:       req.Section,
	})
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	metrics.SessionsStarted.Inc()

	c.JSON(http.StatusCreated, res)
}

// SessionQR re-renders the QR PNG for a session. The payload is derived
// from the id alone, so an expired session still renders; scanning it fails
// at join time instead.
func (h *Handler) SessionQR(c *gin.Context) {
	sessionID := c.Param("id")
	claims := auth.FromContext(c)

	png, err := h.sessions.TokenPNG(sessionID, claims.InstitutionID)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// LiveAttendance returns the deduplicated attendee snapshot for a session.
func (h *Handler) LiveAttendance(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		apierr.Abort(c, apierr.Validation("sessionId is required"))
		return
	}
	claims := auth.FromContext(c)

	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			apierr.Abort(c, apierr.Validation("since must be RFC 3339"))
			return
		}
		since = &t
	}

	snap, err := h.attendance.GetAttendees(c.Request.Context(), sessionID, claims.InstitutionID, c.Query("subjectId"), since)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// LiveAttendanceStream serves the SSE feed for a session. The connected
// event carries the snapshot taken at subscribe time; everything after it
// arrives over the feed bus.
func (h *Handler) LiveAttendanceStream(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		apierr.Abort(c, apierr.Validation("sessionId is required"))
		return
	}
	claims := auth.FromContext(c)
	ctx := c.Request.Context()

	desc, err := h.sessions.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrMalformedDescriptor) {
		apierr.Abort(c, apierr.NotFound("session not found or expired"))
		return
	}
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	if claims.Role != identity.RoleAdmin && desc.TeacherID != claims.UserID {
		apierr.Abort(c, apierr.Forbidden("not your session"))
		return
	}

	snap, err := h.attendance.GetAttendees(ctx, sessionID, claims.InstitutionID, "", nil)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	ttl, err := h.sessions.TTL(ctx, sessionID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		apierr.Abort(c, err)
		return
	}

	events, err := livefeed.OpenStream(ctx, h.bus, livefeed.StreamOptions{
		Channel:  livefeed.Channel(sessionID),
		Snapshot: snap,
		TTL:      ttl,
	})
	if err != nil {
		apierr.Abort(c, apierr.Upstream("could not subscribe to live feed", err))
		return
	}

	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		evt, ok := <-events
		if !ok {
			return false
		}
		if evt.Name == "" {
			// Comment line keeps proxies from idling out the connection.
			io.WriteString(w, ": ping\n\n")
			return true
		}
		c.SSEvent(evt.Name, evt.Data)
		return true
	})
}
