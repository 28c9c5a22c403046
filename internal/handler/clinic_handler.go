package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicbook/clinic-api/internal/models"
	"github.com/clinicbook/clinic-api/internal/service"
	appErrors "github.com/clinicbook/clinic-api/pkg/errors"
	"github.com/clinicbook/clinic-api/pkg/response"
)

// ClinicHandler exposes clinic directory endpoints.
type ClinicHandler struct {
	clinics *service.ClinicService
}

// NewClinicHandler constructs ClinicHandler.
func NewClinicHandler(clinics *service.ClinicService) *ClinicHandler {
	return &ClinicHandler{clinics: clinics}
}

// List godoc
// @Summary List clinics
// @Tags Clinics
// @Produce json
// @Param include_inactive query bool false "Include deactivated clinics"
// @Success 200 {object} response.Envelope
// @Router /clinics [get]
func (h *ClinicHandler) List(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"
	clinics, err := h.clinics.List(c.Request.Context(), includeInactive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, clinics, nil)
}

// Get godoc
// @Summary Get clinic detail
// @Tags Clinics
// @Produce json
// @Param id path string true "Clinic ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /clinics/{id} [get]
func (h *ClinicHandler) Get(c *gin.Context) {
	clinic, err := h.clinics.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, clinic, nil)
}

// Create godoc
// @Summary Create a clinic
// @Tags Clinics
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.ClinicCreateRequest true "Clinic payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /clinics [post]
func (h *ClinicHandler) Create(c *gin.Context) {
	var req models.ClinicCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid clinic payload"))
		return
	}
	clinic, err := h.clinics.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, clinic)
}

// Update godoc
// @Summary Update a clinic
// @Tags Clinics
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Clinic ID"
// @Param payload body models.ClinicUpdateRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /clinics/{id} [put]
func (h *ClinicHandler) Update(c *gin.Context) {
	var req models.ClinicUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid clinic payload"))
		return
	}
	clinic, err := h.clinics.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, clinic, nil)
}

// Delete godoc
// @Summary Deactivate a clinic
// @Tags Clinics
// @Produce json
// @Security BearerAuth
// @Param id path string true "Clinic ID"
// @Success 204 "No Content"
// @Router /clinics/{id} [delete]
func (h *ClinicHandler) Delete(c *gin.Context) {
	if err := h.clinics.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
