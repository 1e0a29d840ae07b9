package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendly/internal/apierr"
	"attendly/internal/attendance"
	"attendly/internal/auth"
)

// JoinClass records attendance for the authenticated student.
func (h *Handler) JoinClass(c *gin.Context) {
	claims := auth.FromContext(c)

	var req struct {
		SessionID string   `json:"sessionId"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.Validation("invalid request body"))
		return
	}

	res, err := h.attendance.Join(c.Request.Context(), attendance.JoinInput{
		UserID:        claims.UserID,
		InstitutionID: claims.InstitutionID,
		SessionID:     req.SessionID,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		ClientIP:      attendance.ClientIP(c.Request, c.ClientIP()),
	})
	if err != nil {
		apierr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Attendance recorded",
		"sessionId": res.SessionID,
		"subjectId": res.SubjectID,
	})
}

// VerifyFace compares an uploaded frame against the student's stored
// reference image via the face service.
func (h *Handler) VerifyFace(c *gin.Context) {
	claims := auth.FromContext(c)

	onNetwork, err := h.attendance.OnCampusNetwork(c.Request.Context(),
		claims.InstitutionID, attendance.ClientIP(c.Request, c.ClientIP()))
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	if !onNetwork {
		apierr.Abort(c, apierr.Forbidden("please connect to your campus WiFi to verify"))
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		apierr.Abort(c, apierr.Validation("file is required"))
		return
	}
	defer file.Close()

	usr, err := h.users.UserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	if usr == nil {
		apierr.Abort(c, apierr.NotFound("user not found"))
		return
	}
	if usr.FaceImageURL == nil || *usr.FaceImageURL == "" {
		apierr.Abort(c, apierr.Validation("no reference face on file, enroll first"))
		return
	}

	res, err := h.faces.Verify(c.Request.Context(), file, header.Filename, *usr.FaceImageURL)
	if err != nil {
		apierr.Abort(c, apierr.Upstream("face service unavailable", err))
		return
	}

	c.JSON(http.StatusOK, res)
}

// EnrollFace stores a reference face image for the authenticated student.
func (h *Handler) EnrollFace(c *gin.Context) {
	claims := auth.FromContext(c)

	if h.cloud == nil {
		apierr.Abort(c, apierr.Upstream("image storage is not configured", nil))
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		apierr.Abort(c, apierr.Validation("file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		apierr.Abort(c, apierr.Validation("could not read file"))
		return
	}

	up, err := h.cloud.Upload(data, header.Filename)
	if err != nil {
		apierr.Abort(c, apierr.Upstream("image upload failed", err))
		return
	}
	if err := h.users.SetFaceImageURL(c.Request.Context(), claims.UserID, up.SecureURL); err != nil {
		apierr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Face enrolled", "url": up.SecureURL})
}
