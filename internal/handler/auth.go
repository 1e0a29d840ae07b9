package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"attendly/internal/apierr"
	"attendly/internal/auth"
	"attendly/internal/identity"
)

// RegisterInstitution signs up a new tenant and its admin account.
func (h *Handler) RegisterInstitution(c *gin.Context) {
	var req struct {
		InstitutionName  string `json:"institutionName"`
		InstitutionEmail string `json:"institutionEmail"`
		Password         string `json:"password"`
		Phone            string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.Validation("invalid request body"))
		return
	}

	inst, admin, err := h.identities.RegisterInstitution(c.Request.Context(), identity.RegisterInstitutionInput{
		InstitutionName:  req.InstitutionName,
		InstitutionEmail: req.InstitutionEmail,
		Password:         req.Password,
		Phone:            req.Phone,
	})
	if err != nil {
		apierr.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":     "Institution registered. Check your email for the OTP.",
		"collegeCode": inst.Code,
		"userId":      admin.ID,
	})
}

// Register signs up a student or teacher under an existing institution.
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		Phone       string `json:"phone"`
		CollegeCode string `json:"collegeCode"`
		Role        string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.Validation("invalid request body"))
		return
	}

	usr, err := h.identities.RegisterUser(c.Request.Context(), identity.RegisterUserInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		Phone:           req.Phone,
		InstitutionCode: req.CollegeCode,
		Role:            req.Role,
	})
	if err != nil {
		apierr.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registered. Check your email for the OTP.",
		"userId":  usr.ID,
	})
}

// VerifyEmail checks the registration OTP.
func (h *Handler) VerifyEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.Validation("invalid request body"))
		return
	}
	if err := h.identities.VerifyEmail(c.Request.Context(), req.Email, req.OTP); err != nil {
		apierr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OTP verified"})
}

// Login checks credentials and sets the session cookie.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.Validation("invalid request body"))
		return
	}

	usr, err := h.identities.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		apierr.Abort(c, err)
		return
	}

	token, expires, err := auth.Issue(usr.ID, usr.Name, usr.Email, usr.Role, usr.InstitutionID,
		h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL)
	if err != nil {
		apierr.Abort(c, err)
		return
	}

	secure := h.cfg.IsProd()
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie("token", token, int(h.cfg.AccessTTL.Seconds()), "/", "", secure, true)

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"expires": expires,
		"user": gin.H{
			"id":            usr.ID,
			"name":          usr.Name,
			"email":         usr.Email,
			"role":          usr.Role,
			"institutionId": usr.InstitutionID,
			"onboarded":     usr.IsOnboarded,
			"emailVerified": usr.EmailVerified,
		},
	})
}

// Logout clears the session cookie.
func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie("token", "", -1, "/", "", h.cfg.IsProd(), true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(c *gin.Context) {
	claims := auth.FromContext(c)
	usr, err := h.users.UserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	if usr == nil {
		apierr.Abort(c, apierr.NotFound("user not found"))
		return
	}

	inst, err := h.users.InstitutionByID(c.Request.Context(), usr.InstitutionID)
	if err != nil {
		apierr.Abort(c, err)
		return
	}

	resp := gin.H{
		"id":            usr.ID,
		"name":          usr.Name,
		"email":         usr.Email,
		"role":          usr.Role,
		"institutionId": usr.InstitutionID,
		"collegeCode":   usr.CollegeCode,
		"onboarded":     usr.IsOnboarded,
		"emailVerified": usr.EmailVerified,
	}
	if inst != nil {
		resp["institution"] = gin.H{
			"name":              inst.Name,
			"code":              inst.Code,
			"isDetailsComplete": inst.IsDetailsComplete,
		}
	}
	c.JSON(http.StatusOK, resp)
}
