package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"attendly/internal/apierr"
	"attendly/internal/auth"
)

// CreateOrder starts a license purchase for the caller's institution.
func (h *Handler) CreateOrder(c *gin.Context) {
	claims := auth.FromContext(c)

	var req struct {
		Type string `json:"type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.Validation("invalid request body"))
		return
	}

	order, alreadyActive, err := h.licenses.CreateOrder(c.Request.Context(), claims.InstitutionID, req.Type)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	if alreadyActive {
		c.JSON(http.StatusOK, gin.H{
			"message": "An active license already exists",
			"license": order,
		})
		return
	}
	c.JSON(http.StatusCreated, order)
}

// VerifyPayment resolves a pending order against the gateway and redirects
// to the frontend result page.
func (h *Handler) VerifyPayment(c *gin.Context) {
	claims := auth.FromContext(c)

	target, err := h.licenses.VerifyPayment(c.Request.Context(),
		claims.InstitutionID, c.Query("merchantOrderId"), c.Query("licenseKey"))
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// LicenseStatus returns the institution's latest license.
func (h *Handler) LicenseStatus(c *gin.Context) {
	claims := auth.FromContext(c)

	lic, err := h.licenses.Status(c.Request.Context(), claims.InstitutionID)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	if lic == nil {
		c.JSON(http.StatusOK, gin.H{"status": "none"})
		return
	}
	c.JSON(http.StatusOK, lic)
}
