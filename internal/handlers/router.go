package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/dentaheal-api/internal/middleware"
	"github.com/harentsoaR/dentaheal-api/internal/models"
	"github.com/harentsoaR/dentaheal-api/internal/utils"
)

// RouterConfig holds the transport settings of NewRouter.
type RouterConfig struct {
	AllowOrigins   []string
	RequestTimeout time.Duration
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(h *Handler, tokens *utils.TokenManager, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.RequestLogger(h.Logger),
		middleware.Recovery(h.Logger),
		middleware.Timeout(cfg.RequestTimeout),
		gzip.Gzip(gzip.BestSpeed),
		cors.New(cors.Config{
			AllowOrigins:     cfg.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	r.GET("/health/live", h.Live)
	r.GET("/health/ready", h.Ready)
	r.Static("/uploads", h.UploadDir)

	auth := middleware.AuthMiddleware(tokens)
	patientOnly := middleware.RequireRole(models.RolePatient)
	doctorOnly := middleware.RequireRole(models.RoleDoctor)

	user := r.Group("/api/user")
	{
		user.POST("/register", h.Register(models.RolePatient))
		user.POST("/verify-user", h.Verify)
		user.DELETE("/users/:email", h.Purge(models.RolePatient))
		user.POST("/login", h.Login(models.RolePatient))

		user.POST("/book-appointment", auth, patientOnly, h.CreateAppointment)
		user.GET("/appointments", auth, patientOnly, h.GetPatientAppointments)
		user.PATCH("/appointments/:appointmentId/cancel", auth, patientOnly, h.CancelAppointment)
	}

	doctor := r.Group("/api/doctor")
	{
		doctor.POST("/register", h.Register(models.RoleDoctor))
		doctor.POST("/verify-doctor", h.Verify)
		doctor.DELETE("/doctors/:email", h.Purge(models.RoleDoctor))
		doctor.POST("/login", h.Login(models.RoleDoctor))
		doctor.GET("/get-all-dentists", h.ListDentists)

		doctor.GET("/appointments", auth, doctorOnly, h.GetDoctorAppointments)
		doctor.POST("/appointments/:appointmentId/add-cure", auth, doctorOnly, h.AddCure)
		doctor.PATCH("/appointments/:appointmentId/confirm", auth, doctorOnly, h.ConfirmAppointment)
		doctor.PATCH("/appointments/:appointmentId/cancel", auth, doctorOnly, h.CancelAppointment)
	}

	me := r.Group("/api/me", auth)
	{
		me.GET("", h.GetCurrentUser)
		me.PUT("", h.UpdateCurrentUser)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found", "code": "NOT_FOUND"})
	})
	return r
}
