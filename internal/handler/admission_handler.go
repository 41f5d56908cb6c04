package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/schoolhub-dev/schoolhub-api/internal/models"
	"github.com/schoolhub-dev/schoolhub-api/internal/service"
	appErrors "github.com/schoolhub-dev/schoolhub-api/pkg/errors"
	"github.com/schoolhub-dev/schoolhub-api/pkg/response"
)

// AdmissionHandler handles admission intake and lifecycle endpoints.
type AdmissionHandler struct {
	service        *service.AdmissionService
	exportsEnabled bool
}

// NewAdmissionHandler creates a new admission handler.
func NewAdmissionHandler(svc *service.AdmissionService, exportsEnabled bool) *AdmissionHandler {
	return &AdmissionHandler{service: svc, exportsEnabled: exportsEnabled}
}

// List godoc
// @Summary List admissions
// @Description List admissions with pagination and filtering
// @Tags Admissions
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param status query string false "Status filter"
// @Param class query string false "Class filter"
// @Param batch query string false "Batch filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /admissions [get]
func (h *AdmissionHandler) List(c *gin.Context) {
	filter := filterFromQuery(c)

	admissions, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, admissions, pagination)
}

// Get godoc
// @Summary Get admission
// @Description Get admission detail
// @Tags Admissions
// @Produce json
// @Param id path string true "Admission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admissions/{id} [get]
func (h *AdmissionHandler) Get(c *gin.Context) {
	admission, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, admission, nil)
}

// Create godoc
// @Summary Create admission
// @Description Register a new admission
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body service.CreateAdmissionRequest true "Admission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admissions [post]
func (h *AdmissionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateAdmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	admission, err := h.service.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, admission)
}

// UpdateStatus godoc
// @Summary Update admission status
// @Description Transition an admission to a new status
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Admission ID"
// @Param payload body service.UpdateAdmissionStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admissions/{id}/status [patch]
func (h *AdmissionHandler) UpdateStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateAdmissionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	admission, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, admission, nil)
}

// Export godoc
// @Summary Export admissions
// @Description Download the filtered admission list as CSV or PDF
// @Tags Admissions
// @Produce text/csv
// @Produce application/pdf
// @Param format query string true "Export format (csv|pdf)"
// @Param status query string false "Status filter"
// @Param class query string false "Class filter"
// @Param batch query string false "Batch filter"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /admissions/export [get]
func (h *AdmissionHandler) Export(c *gin.Context) {
	if !h.exportsEnabled {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled"))
		return
	}

	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))
	result, err := h.service.Export(c.Request.Context(), filterFromQuery(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Blob(c, result.ContentType, result.Filename, result.Payload)
}

func filterFromQuery(c *gin.Context) models.AdmissionFilter {
	var filter models.AdmissionFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	if status := c.Query("status"); status != "" {
		s := models.AdmissionStatus(status)
		filter.Status = &s
	}

	filter.Class = c.Query("class")
	filter.Batch = c.Query("batch")
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	return filter
}
