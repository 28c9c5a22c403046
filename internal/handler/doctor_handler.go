package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicbook/clinic-api/internal/models"
	"github.com/clinicbook/clinic-api/internal/service"
	appErrors "github.com/clinicbook/clinic-api/pkg/errors"
	"github.com/clinicbook/clinic-api/pkg/response"
)

// DoctorHandler exposes doctor directory endpoints.
type DoctorHandler struct {
	doctors      *service.DoctorService
	availability *service.AvailabilityService
}

// NewDoctorHandler constructs DoctorHandler.
func NewDoctorHandler(doctors *service.DoctorService, availability *service.AvailabilityService) *DoctorHandler {
	return &DoctorHandler{doctors: doctors, availability: availability}
}

// List godoc
// @Summary List doctors
// @Tags Doctors
// @Produce json
// @Param specialization query string false "Filter by specialization"
// @Param available query bool false "Only doctors accepting appointments"
// @Success 200 {object} response.Envelope
// @Router /doctors [get]
func (h *DoctorHandler) List(c *gin.Context) {
	var filter models.DoctorFilter
	filter.Specialization = c.Query("specialization")
	filter.OnlyAvailable = c.Query("available") == "true"

	doctors, err := h.doctors.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doctors, nil)
}

// Available godoc
// @Summary List doctors free at a given slot
// @Description Returns doctors whose schedule covers the slot and who have no active booking on it
// @Tags Doctors
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param time query string true "Time (HH:MM)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /doctors/available [get]
func (h *DoctorHandler) Available(c *gin.Context) {
	date := c.Query("date")
	timeOfDay := c.Query("time")
	if date == "" || timeOfDay == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date and time query parameters are required"))
		return
	}
	doctors, err := h.availability.AvailableDoctors(c.Request.Context(), date, timeOfDay)
	if err != nil {
		response.Error(c, err)
		return
	}
	// An empty result is a valid answer, not an error.
	if doctors == nil {
		doctors = []models.Doctor{}
	}
	response.JSON(c, http.StatusOK, doctors, nil)
}

// Get godoc
// @Summary Get doctor detail
// @Tags Doctors
// @Produce json
// @Param id path string true "Doctor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /doctors/{id} [get]
func (h *DoctorHandler) Get(c *gin.Context) {
	detail, err := h.doctors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Update godoc
// @Summary Update a doctor's professional profile
// @Tags Doctors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Doctor ID"
// @Param payload body models.DoctorUpdateRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /doctors/{id} [put]
func (h *DoctorHandler) Update(c *gin.Context) {
	var req models.DoctorUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid doctor payload"))
		return
	}
	doctor, err := h.doctors.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doctor, nil)
}
