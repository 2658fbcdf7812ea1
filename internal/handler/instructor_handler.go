package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

type instructorService interface {
	ListClasses(ctx context.Context, instructorID string) ([]dto.InstructorClass, error)
	ClassWaitlist(ctx context.Context, principal models.Principal, classID string) (*dto.ClassWaitlist, error)
	DroppedStudents(ctx context.Context, principal models.Principal, classID string) (*dto.Roster, error)
	Roster(ctx context.Context, principal models.Principal, classID string) (*dto.Roster, error)
	ExportRoster(ctx context.Context, principal models.Principal, classID, format string) (*dto.RosterExport, error)
}

type administrativeDropper interface {
	DropByInstructor(ctx context.Context, instructorID, studentID, classID string) (*dto.DropResult, error)
}

// InstructorHandler serves class owners.
type InstructorHandler struct {
	instructors instructorService
	drops       administrativeDropper
}

// NewInstructorHandler constructs InstructorHandler.
func NewInstructorHandler(instructors instructorService, drops administrativeDropper) *InstructorHandler {
	return &InstructorHandler{instructors: instructors, drops: drops}
}

// ListClasses godoc
// @Summary Classes taught by the caller
// @Tags Instructors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /instructor/classes [get]
func (h *InstructorHandler) ListClasses(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	classes, err := h.instructors.ListClasses(c.Request.Context(), principal.Subject)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// Waitlist godoc
// @Summary Ordered waitlist of an owned class
// @Tags Instructors
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /instructor/classes/{classId}/waitlist [get]
func (h *InstructorHandler) Waitlist(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	waitlist, err := h.instructors.ClassWaitlist(c.Request.Context(), *principal, c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, waitlist, nil)
}

// Dropped godoc
// @Summary Students who dropped an owned class
// @Tags Instructors
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /instructor/classes/{classId}/dropped [get]
func (h *InstructorHandler) Dropped(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	roster, err := h.instructors.DroppedStudents(c.Request.Context(), *principal, c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// Roster godoc
// @Summary Active roster of an owned class
// @Tags Instructors
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param classId path string true "Class ID"
// @Param format query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /instructor/classes/{classId}/roster [get]
func (h *InstructorHandler) Roster(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	classID := c.Param("classId")
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", dto.RosterFormatJSON)))
	if format == dto.RosterFormatJSON {
		roster, err := h.instructors.Roster(c.Request.Context(), *principal, classID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, roster, nil)
		return
	}

	export, err := h.instructors.ExportRoster(c.Request.Context(), *principal, classID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, export.ContentType, export.Content)
}

// DropStudent godoc
// @Summary Administratively drop a student
// @Tags Instructors
// @Produce json
// @Param classId path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /instructor/classes/{classId}/students/{studentId} [delete]
func (h *InstructorHandler) DropStudent(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	result, err := h.drops.DropByInstructor(c.Request.Context(), principal.Subject, c.Param("studentId"), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
