package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

type registrarClassService interface {
	Create(ctx context.Context, actorID string, req dto.CreateClassRequest) (*models.Class, error)
	Delete(ctx context.Context, actorID, classID string) error
	ChangeInstructor(ctx context.Context, actorID, classID string, req dto.ChangeInstructorRequest) (*models.Class, error)
	Freeze(ctx context.Context, actorID, classID string) (*models.Class, error)
	Unfreeze(ctx context.Context, actorID, classID string) (*models.Class, []dto.Promotion, error)
}

type consistencyReporter interface {
	Report(ctx context.Context) (*dto.ConsistencyReport, error)
}

// RegistrarHandler serves class administration.
type RegistrarHandler struct {
	classes     registrarClassService
	enrollments enroller
	consistency consistencyReporter
}

// NewRegistrarHandler constructs RegistrarHandler.
func NewRegistrarHandler(classes registrarClassService, enrollments enroller, consistency consistencyReporter) *RegistrarHandler {
	return &RegistrarHandler{classes: classes, enrollments: enrollments, consistency: consistency}
}

// CreateClass godoc
// @Summary Create a class section
// @Tags Registrar
// @Accept json
// @Produce json
// @Param payload body dto.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrar/classes [post]
func (h *RegistrarHandler) CreateClass(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateClassRequest
	if !bindJSON(c, &req) {
		return
	}
	class, err := h.classes.Create(c.Request.Context(), principal.Subject, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// DeleteClass godoc
// @Summary Delete a class with its enrollments and waitlist
// @Tags Registrar
// @Param classId path string true "Class ID"
// @Success 204
// @Router /registrar/classes/{classId} [delete]
func (h *RegistrarHandler) DeleteClass(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	if err := h.classes.Delete(c.Request.Context(), principal.Subject, c.Param("classId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ChangeInstructor godoc
// @Summary Reassign a class
// @Tags Registrar
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body dto.ChangeInstructorRequest true "Instructor payload"
// @Success 200 {object} response.Envelope
// @Router /registrar/classes/{classId}/instructor [put]
func (h *RegistrarHandler) ChangeInstructor(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req dto.ChangeInstructorRequest
	if !bindJSON(c, &req) {
		return
	}
	class, err := h.classes.ChangeInstructor(c.Request.Context(), principal.Subject, c.Param("classId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Freeze godoc
// @Summary Freeze automatic enrollment
// @Tags Registrar
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrar/classes/{classId}/freeze [put]
func (h *RegistrarHandler) Freeze(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	class, err := h.classes.Freeze(c.Request.Context(), principal.Subject, c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Unfreeze godoc
// @Summary Unfreeze automatic enrollment
// @Description Fills free seats from the waitlist.
// @Tags Registrar
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrar/classes/{classId}/unfreeze [put]
func (h *RegistrarHandler) Unfreeze(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	class, promoted, err := h.classes.Unfreeze(c.Request.Context(), principal.Subject, c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"class": class, "promoted": promoted}, nil)
}

// Enroll godoc
// @Summary Enroll a student on their behalf
// @Tags Registrar
// @Accept json
// @Produce json
// @Param payload body dto.RegistrarEnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /registrar/enrollments [post]
func (h *RegistrarHandler) Enroll(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req dto.RegistrarEnrollRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.enrollments.Enroll(c.Request.Context(), principal.Subject, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeEnrollment(c, result)
}

// Consistency godoc
// @Summary Audit enrollment invariants
// @Tags Registrar
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /registrar/consistency [get]
func (h *RegistrarHandler) Consistency(c *gin.Context) {
	report, err := h.consistency.Report(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
