package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/middleware"
	"github.com/noah-isme/course-enrollment-api/internal/models"
)

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*models.Principal, error)
}

// AuditWriter persists request audit records.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// RouterDeps groups what RegisterRoutes mounts.
type RouterDeps struct {
	Auth        TokenValidator
	Audit       AuditWriter
	Logger      *zap.Logger
	Students    *StudentHandler
	Instructors *InstructorHandler
	Registrar   *RegistrarHandler
	Metrics     *MetricsHandler
}

// RegisterRoutes mounts the probes at the root and the API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, deps RouterDeps) {
	r.GET("/health", deps.Metrics.Health)
	r.GET("/ready", deps.Metrics.Ready)
	r.GET("/metrics", deps.Metrics.Prometheus)

	api := r.Group(prefix)
	api.Use(middleware.JWT(deps.Auth))

	students := api.Group("")
	students.Use(middleware.RequireRoles(models.RoleStudent))
	students.GET("/classes", middleware.WithResponseMeta(), deps.Students.ListClasses)
	students.POST("/enrollments", deps.Students.Enroll)
	students.DELETE("/enrollments/:classId", deps.Students.Drop)
	students.GET("/waitlists", deps.Students.ListWaitlists)
	students.GET("/waitlists/:classId", deps.Students.WaitlistPosition)
	students.DELETE("/waitlists/:classId", deps.Students.Withdraw)

	instructors := api.Group("/instructor/classes")
	instructors.Use(middleware.RequireRoles(models.RoleInstructor, models.RoleRegistrar))
	instructors.GET("", middleware.RequireRoles(models.RoleInstructor), deps.Instructors.ListClasses)
	instructors.GET("/:classId/waitlist", deps.Instructors.Waitlist)
	instructors.GET("/:classId/dropped", deps.Instructors.Dropped)
	instructors.GET("/:classId/roster", deps.Instructors.Roster)
	instructors.DELETE("/:classId/students/:studentId", middleware.RequireRoles(models.RoleInstructor), deps.Instructors.DropStudent)

	audit := func(action string, param string) gin.HandlerFunc {
		return middleware.Audit(deps.Audit, deps.Logger, action, "class", param)
	}
	registrar := api.Group("/registrar")
	registrar.Use(middleware.RequireRoles(models.RoleRegistrar))
	registrar.POST("/classes", audit("registrar.create_class", ""), deps.Registrar.CreateClass)
	registrar.DELETE("/classes/:classId", audit("registrar.delete_class", "classId"), deps.Registrar.DeleteClass)
	registrar.PUT("/classes/:classId/instructor", audit("registrar.change_instructor", "classId"), deps.Registrar.ChangeInstructor)
	registrar.PUT("/classes/:classId/freeze", audit("registrar.freeze", "classId"), deps.Registrar.Freeze)
	registrar.PUT("/classes/:classId/unfreeze", audit("registrar.unfreeze", "classId"), deps.Registrar.Unfreeze)
	registrar.POST("/enrollments", audit("registrar.enroll", ""), deps.Registrar.Enroll)
	registrar.GET("/consistency", deps.Registrar.Consistency)
}
