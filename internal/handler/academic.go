package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"attendly/internal/academic"
	"attendly/internal/apierr"
	"attendly/internal/auth"
)

// ListCampuses returns the institution's campuses without ring geometry.
func (h *Handler) ListCampuses(c *gin.Context) {
	claims := auth.FromContext(c)
	campuses, err := h.academics.ListCampuses(c.Request.Context(), claims.InstitutionID)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campuses": campuses})
}

// CreateDepartment adds a department under the caller's institution.
func (h *Handler) CreateDepartment(c *gin.Context) {
	claims := auth.FromContext(c)

	var req struct {
		Name           string `json:"name"`
		DepartmentCode string `json:"departmentCode"`
		CampusID       string `json:"campusId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.Validation("invalid request body"))
		return
	}
	if req.Name == "" || req.DepartmentCode == "" {
		apierr.Abort(c, apierr.Validation("name and departmentCode are required"))
		return
	}

	var campusID *string
	if req.CampusID != "" {
		campusID = &req.CampusID
	}
	dep, err := h.academics.CreateDepartment(c.Request.Context(), academic.Department{
		Name:           req.Name,
		DepartmentCode: req.DepartmentCode,
		CampusID:       campusID,
		InstitutionID:  claims.InstitutionID,
	})
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, dep)
}

// ListDepartments returns the institution's departments.
func (h *Handler) ListDepartments(c *gin.Context) {
	claims := auth.FromContext(c)
	deps, err := h.academics.ListDepartments(c.Request.Context(), claims.InstitutionID)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"departments": deps})
}

// CreateYear adds a year under a department.
func (h *Handler) CreateYear(c *gin.Context) {
	var req struct {
		DepartmentID string `json:"departmentId"`
		Name         string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.Validation("invalid request body"))
		return
	}
	if req.DepartmentID == "" || req.Name == "" {
		apierr.Abort(c, apierr.Validation("departmentId and name are required"))
		return
	}

	year, err := h.academics.CreateYear(c.Request.Context(), academic.Year{
		DepartmentID: req.DepartmentID,
		Name:         req.Name,
	})
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, year)
}

// ListYears returns the years under a department.
func (h *Handler) ListYears(c *gin.Context) {
	departmentID := c.Query("departmentId")
	if departmentID == "" {
		apierr.Abort(c, apierr.Validation("departmentId is required"))
		return
	}
	years, err := h.academics.ListYears(c.Request.Context(), departmentID)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"years": years})
}

// CreateSubject adds a subject under a department and year.
func (h *Handler) CreateSubject(c *gin.Context) {
	var req struct {
		DepartmentID string `json:"departmentId"`
		YearID       string `json:"yearId"`
		Name         string `json:"name"`
		Code         string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.Validation("invalid request body"))
		return
	}
	if req.DepartmentID == "" || req.YearID == "" || req.Name == "" {
		apierr.Abort(c, apierr.Validation("departmentId, yearId and name are required"))
		return
	}

	subj, err := h.academics.CreateSubject(c.Request.Context(), academic.Subject{
		DepartmentID: req.DepartmentID,
		YearID:       req.YearID,
		Name:         req.Name,
		Code:         req.Code,
	})
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, subj)
}

// ListSubjects returns subjects filtered by department and year.
func (h *Handler) ListSubjects(c *gin.Context) {
	subjects, err := h.academics.ListSubjects(c.Request.Context(), c.Query("departmentId"), c.Query("yearId"))
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subjects": subjects})
}
