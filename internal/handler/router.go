package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-enrollment-api/internal/middleware"
	"github.com/noah-isme/sis-enrollment-api/internal/models"
)

// Handlers groups everything mounted under the API prefix.
type Handlers struct {
	Enrollment *EnrollmentHandler
	Approval   *ApprovalHandler
	Notes      *PromissoryNoteHandler
	Payment    *PaymentHandler
	Student    *StudentHandler
	Quarter    *QuarterHandler
}

var staffRoles = []models.UserRole{
	models.RoleDean, models.RoleAccounting, models.RoleSAO, models.RoleLibrary, models.RoleRecords,
	models.RoleCampusDirector, models.RoleCashier, models.RoleAdmin,
}

// RegisterRoutes mounts the enrollment API on api. auth must attach claims under
// middleware.ContextUserKey.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, auth gin.HandlerFunc) {
	api.Use(auth)

	student := middleware.RequireRoles(models.RoleStudent)
	approvers := middleware.RequireRoles(models.ApproverRoles...)
	directors := middleware.RequireRoles(models.RoleCampusDirector, models.RoleAdmin)
	admin := middleware.RequireRoles(models.RoleAdmin)

	batches := api.Group("/enrollment-batches")
	batches.POST("", student, h.Enrollment.Create)
	batches.GET("/:id", h.Enrollment.Get)
	batches.GET("/:id/history", h.Enrollment.History)
	batches.POST("/:id/approvals", approvers, h.Approval.Decide)
	batches.POST("/:id/payments", middleware.RequireRoles(models.RoleStudent, models.RoleCashier), h.Enrollment.Pay)
	batches.POST("/:id/promissory-notes", student, h.Enrollment.SubmitNote)

	api.GET("/approvals/pending", approvers, h.Approval.Pending)

	notes := api.Group("/promissory-notes", directors)
	notes.GET("/pending", h.Notes.Pending)
	notes.POST("/:id/approve", h.Notes.Approve)
	notes.POST("/:id/reject", h.Notes.Reject)

	api.POST("/payments", middleware.RequireRoles(models.RoleCashier, models.RoleAdmin), h.Payment.Record)
	api.GET("/payments/:id/receipt", middleware.RequireRoles(models.RoleStudent, models.RoleCashier, models.RoleAdmin), h.Payment.Receipt)

	students := api.Group("/students/:id", middleware.RequireRolesOrSelf(staffRoles...))
	students.GET("/balance", h.Student.Balance)
	students.GET("/quarter-gate", h.Student.QuarterGate)
	students.GET("/quarter-requirements", h.Student.QuarterRequirements)

	quarters := api.Group("/quarter-periods", admin)
	quarters.POST("", h.Quarter.CreatePeriod)
	quarters.GET("", h.Quarter.ListPeriods)
	quarters.POST("/:id/requirements", h.Quarter.Generate)

	api.GET("/quarter-requirements/overdue", middleware.RequireRoles(models.RoleAdmin, models.RoleAccounting), h.Quarter.Overdue)
}
