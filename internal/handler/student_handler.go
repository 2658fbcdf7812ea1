package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/middleware"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

// CodeWaitlisted is the meta code of a 202 answer to an enrollment that ended on the waitlist.
const CodeWaitlisted = "CLASS_FULL_PLACED_ON_WAITLIST"

type classLister interface {
	ListAvailable(ctx context.Context, filter models.ClassFilter) (*dto.ClassListing, bool, error)
}

type enroller interface {
	Enroll(ctx context.Context, actorID string, req dto.RegistrarEnrollRequest) (*dto.EnrollmentResult, error)
}

type studentEnrollmentService interface {
	enroller
	Drop(ctx context.Context, studentID, classID string) (*dto.DropResult, error)
}

type studentWaitlistService interface {
	ListForStudent(ctx context.Context, studentID string) ([]dto.WaitlistPositionView, error)
	Position(ctx context.Context, studentID, classID string) (*dto.WaitlistPositionView, error)
	Withdraw(ctx context.Context, studentID, classID string) error
}

// StudentHandler serves the student surface. The student is always the caller.
type StudentHandler struct {
	classes     classLister
	enrollments studentEnrollmentService
	waitlists   studentWaitlistService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(classes classLister, enrollments studentEnrollmentService, waitlists studentWaitlistService) *StudentHandler {
	return &StudentHandler{classes: classes, enrollments: enrollments, waitlists: waitlists}
}

// ListClasses godoc
// @Summary List classes with free seats
// @Tags Students
// @Produce json
// @Param department query string false "Department"
// @Param search query string false "Matches class name or course code"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *StudentHandler) ListClasses(c *gin.Context) {
	filter := models.ClassFilter{
		Department: strings.TrimSpace(c.Query("department")),
		Search:     strings.TrimSpace(c.Query("search")),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "limit", 20),
	}
	listing, cacheHit, err := h.classes.ListAvailable(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	pagination := listing.Pagination
	response.JSON(c, http.StatusOK, listing.Items, &pagination, middleware.ResponseMeta(c))
}

// Enroll godoc
// @Summary Enroll in a class
// @Description A full class places the caller on its waitlist and answers 202.
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *StudentHandler) Enroll(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req dto.EnrollRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.enrollments.Enroll(c.Request.Context(), principal.Subject, dto.RegistrarEnrollRequest{
		StudentID: principal.Subject,
		ClassID:   req.ClassID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	writeEnrollment(c, result)
}

// Drop godoc
// @Summary Drop a class
// @Tags Students
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{classId} [delete]
func (h *StudentHandler) Drop(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	result, err := h.enrollments.Drop(c.Request.Context(), principal.Subject, c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListWaitlists godoc
// @Summary List the caller's waitlists
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /waitlists [get]
func (h *StudentHandler) ListWaitlists(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	views, err := h.waitlists.ListForStudent(c.Request.Context(), principal.Subject)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// WaitlistPosition godoc
// @Summary Waitlist position in a class
// @Tags Students
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /waitlists/{classId} [get]
func (h *StudentHandler) WaitlistPosition(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	view, err := h.waitlists.Position(c.Request.Context(), principal.Subject, c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Withdraw godoc
// @Summary Leave a class waitlist
// @Tags Students
// @Param classId path string true "Class ID"
// @Success 204
// @Router /waitlists/{classId} [delete]
func (h *StudentHandler) Withdraw(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	if err := h.waitlists.Withdraw(c.Request.Context(), principal.Subject, c.Param("classId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func writeEnrollment(c *gin.Context, result *dto.EnrollmentResult) {
	if result.Waitlisted() {
		response.Accepted(c, result, CodeWaitlisted, "class is full, placed on the waitlist")
		return
	}
	response.Created(c, result)
}
