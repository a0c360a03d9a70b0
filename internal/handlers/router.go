package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evolvere-edu/evolvere-api/internal/config"
	"github.com/evolvere-edu/evolvere-api/internal/metrics"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/services"
	"github.com/evolvere-edu/evolvere-api/internal/utils"
)

// HealthCheck reports the status of one dependency.
type HealthCheck func(ctx context.Context) error

type HandlerManager struct {
	authHandler       *AuthHandler
	userHandler       *UserHandler
	catalogHandler    *CatalogHandler
	enrollmentHandler *EnrollmentHandler
	formHandler       *FormHandler
	dashboardHandler  *DashboardHandler
	materialHandler   *MaterialHandler
	medalHandler      *MedalHandler
	session           *SessionAuth

	metrics *metrics.Metrics
	checks  map[string]HealthCheck
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	sessionConfig config.SessionConfig,
	m *metrics.Metrics,
	checks map[string]HealthCheck,
	logger utils.Logger,
) *HandlerManager {
	session := NewSessionAuth(serviceManager.Auth(), sessionConfig, logger)

	return &HandlerManager{
		authHandler:       NewAuthHandler(serviceManager.Auth(), session, logger),
		userHandler:       NewUserHandler(serviceManager.User(), serviceManager.Medal(), logger),
		catalogHandler:    NewCatalogHandler(serviceManager.Course(), serviceManager.Subject(), serviceManager.Class(), logger),
		enrollmentHandler: NewEnrollmentHandler(serviceManager.Enrollment(), logger),
		formHandler:       NewFormHandler(serviceManager.Form(), logger),
		dashboardHandler:  NewDashboardHandler(serviceManager.Dashboard(), serviceManager.Performance(), logger),
		materialHandler:   NewMaterialHandler(serviceManager.Material(), logger),
		medalHandler:      NewMedalHandler(serviceManager.Medal(), logger),
		session:           session,
		metrics:           m,
		checks:            checks,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	staff := hm.session.RequireRoles(models.RoleCoordinator)
	teaching := hm.session.RequireRoles(models.RoleCoordinator, models.RoleTeacher)
	studentOnly := hm.session.RequireRoles(models.RoleStudent)
	adminOnly := hm.session.RequireRoles()

	// Public routes
	router.GET("/health", hm.health)
	if hm.metrics != nil {
		router.GET("/metrics", hm.metrics.Handler())
	}
	router.POST("/login", hm.authHandler.Login)
	router.POST("/logout", hm.authHandler.Logout)
	router.POST("/register", hm.authHandler.Register)
	router.GET("/login/sso", hm.authHandler.SSOSignIn)
	router.POST("/login/sso/callback", hm.authHandler.SSOCallback)

	api := router.Group("")
	api.Use(hm.session.Middleware())
	{
		api.GET("/login/me", hm.authHandler.Me)

		users := api.Group("/user")
		{
			users.GET("/me", hm.userHandler.GetMe)
			users.PUT("/me", hm.userHandler.UpdateMe)
			users.PUT("/me/password", hm.userHandler.ChangePassword)
			users.POST("/me/photo", hm.userHandler.UploadPhoto)
			users.DELETE("/me/photo", hm.userHandler.DeletePhoto)
			users.POST("/me/diploma", hm.userHandler.UploadDiploma)
			users.GET("/:id/photo", hm.userHandler.GetPhoto)
			users.GET("/:id/diploma", hm.userHandler.GetDiploma)
			users.GET("/:id/medals", hm.userHandler.UserMedals)

			// Administration - admins and coordinators
			users.GET("", staff, hm.userHandler.ListUsers)
			users.POST("", staff, hm.userHandler.CreateUser)
			users.POST("/import", staff, hm.userHandler.ImportUsers)
			users.GET("/:id", staff, hm.userHandler.GetUser)
			users.PUT("/:id", staff, hm.userHandler.UpdateUser)
			users.PATCH("/:id/status", staff, hm.userHandler.UpdateStatus)
			users.DELETE("/:id", adminOnly, hm.userHandler.DeleteUser)
		}

		courses := api.Group("/courses")
		{
			courses.GET("", hm.catalogHandler.ListCourses)
			courses.GET("/:id", hm.catalogHandler.GetCourse)
			courses.POST("", staff, hm.catalogHandler.CreateCourse)
			courses.PUT("/:id", staff, hm.catalogHandler.UpdateCourse)
			courses.DELETE("/:id", staff, hm.catalogHandler.DeleteCourse)
		}

		subjects := api.Group("/subjects")
		{
			subjects.GET("", hm.catalogHandler.ListSubjects)
			subjects.GET("/:id", hm.catalogHandler.GetSubject)
			subjects.GET("/:id/classes", hm.catalogHandler.SubjectClasses)
			subjects.POST("", staff, hm.catalogHandler.CreateSubject)
			subjects.PUT("/:id", staff, hm.catalogHandler.UpdateSubject)
			subjects.DELETE("/:id", staff, hm.catalogHandler.DeleteSubject)
		}

		classes := api.Group("/classes")
		{
			classes.GET("", hm.catalogHandler.ListClasses)
			classes.GET("/:id", hm.catalogHandler.GetClass)
			classes.GET("/:id/students", teaching, hm.catalogHandler.ClassStudents)
			classes.POST("", staff, hm.catalogHandler.CreateClass)
			classes.PUT("/:id", staff, hm.catalogHandler.UpdateClass)
			classes.DELETE("/:id", staff, hm.catalogHandler.DeleteClass)
		}

		enrollments := api.Group("/enrollments")
		{
			enrollments.POST("", hm.enrollmentHandler.CreateEnrollment)
			enrollments.GET("", hm.enrollmentHandler.ListEnrollments)
			enrollments.PATCH("/:id", hm.enrollmentHandler.UpdateEnrollmentStatus)
			enrollments.DELETE("/:id", staff, hm.enrollmentHandler.DeleteEnrollment)
		}

		forms := api.Group("/form")
		{
			forms.GET("", hm.formHandler.ListForms)
			forms.GET("/:id", hm.formHandler.GetForm)
			forms.POST("", teaching, hm.formHandler.CreateForm)
			forms.PUT("/:id", teaching, hm.formHandler.UpdateForm)
			forms.DELETE("/:id", teaching, hm.formHandler.DeleteForm)

			// Answering - students only
			forms.POST("/:id/start", studentOnly, hm.formHandler.StartForm)
			forms.GET("/:id/time-left", studentOnly, hm.formHandler.TimeLeft)
			forms.POST("/:id/submit", studentOnly, hm.formHandler.SubmitForm)
			forms.GET("/:id/result", studentOnly, hm.formHandler.Result)

			forms.GET("/:id/results", teaching, hm.formHandler.Results)
			forms.GET("/:id/results/export", teaching, hm.formHandler.ExportResults)
		}

		performance := api.Group("/performance")
		{
			performance.GET("/me", studentOnly, hm.dashboardHandler.MyPerformance)
			performance.GET("/students/:id", hm.dashboardHandler.StudentPerformance)
			performance.GET("/classes/:id", teaching, hm.dashboardHandler.ClassPerformance)
			performance.GET("/classes/:id/export", teaching, hm.dashboardHandler.ExportClassPerformance)
		}

		dashboard := api.Group("/dashboard")
		{
			dashboard.GET("", hm.dashboardHandler.GetSummary)
			dashboard.GET("/upcoming", studentOnly, hm.dashboardHandler.GetUpcoming)
		}

		materials := api.Group("/materials")
		{
			materials.GET("", hm.materialHandler.ListMaterials)
			materials.GET("/:id", hm.materialHandler.GetMaterial)
			materials.GET("/:id/download", hm.materialHandler.DownloadMaterial)
			materials.POST("", teaching, hm.materialHandler.UploadMaterial)
			materials.PATCH("/:id", teaching, hm.materialHandler.UpdateMaterial)
			materials.DELETE("/:id", teaching, hm.materialHandler.DeleteMaterial)
		}

		medals := api.Group("/medals")
		{
			medals.GET("", hm.medalHandler.Catalogue)
			medals.GET("/me", hm.medalHandler.MyMedals)
			medals.POST("", adminOnly, hm.medalHandler.CreateMedal)
		}
	}
}

// health runs every dependency check with a short timeout.
func (hm *HandlerManager) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(hm.checks))
	for name, check := range hm.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":     overall,
		"service":    "evolvere-api",
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
