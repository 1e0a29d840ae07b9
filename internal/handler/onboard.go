package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"attendly/internal/apierr"
	"attendly/internal/auth"
)

// UploadKML ingests a KML export of campus boundaries for the institution.
func (h *Handler) UploadKML(c *gin.Context) {
	claims := auth.FromContext(c)

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		apierr.Abort(c, apierr.Validation("KML file is required"))
		return
	}
	defer file.Close()

	progress, err := h.onboarding.IngestKML(c.Request.Context(), claims.UserID, claims.InstitutionID, file)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Campus boundaries saved",
		"progress": progress,
	})
}

// AddWifiIPs merges public WiFi IPs into the institution's allow-list.
func (h *Handler) AddWifiIPs(c *gin.Context) {
	claims := auth.FromContext(c)

	var req struct {
		IPs []string `json:"ips"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.Validation("invalid request body"))
		return
	}

	progress, err := h.onboarding.AddWifiIPs(c.Request.Context(), claims.UserID, claims.InstitutionID, req.IPs)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "WiFi allow-list updated",
		"progress": progress,
	})
}
