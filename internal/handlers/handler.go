package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harentsoaR/dentaheal-api/internal/apperrors"
	"github.com/harentsoaR/dentaheal-api/internal/services"
)

// HealthCheck pings one dependency for the readiness probe.
type HealthCheck func(ctx context.Context) error

// Handler carries the services used by the HTTP layer.
type Handler struct {
	Identity  *services.IdentityService
	Ledger    *services.LedgerService
	Logger    *zap.Logger
	UploadDir string
	Checks    map[string]HealthCheck
}

// Dependencies bundles the constructor arguments of Handler.
type Dependencies struct {
	Identity  *services.IdentityService
	Ledger    *services.LedgerService
	Logger    *zap.Logger
	UploadDir string
	Checks    map[string]HealthCheck
}

func NewHandler(deps Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	uploadDir := deps.UploadDir
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	return &Handler{
		Identity:  deps.Identity,
		Ledger:    deps.Ledger,
		Logger:    logger,
		UploadDir: uploadDir,
		Checks:    deps.Checks,
	}
}

// respondError writes err as {"error", "code", "details"}. Causes of 5xx responses are
// logged, never returned.
func (h *Handler) respondError(c *gin.Context, err error) {
	de := apperrors.ToDomainError(err)
	if de.HTTPStatus >= http.StatusInternalServerError {
		h.Logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", de.Code),
			zap.Error(de))
	}
	body := gin.H{"error": de.Message, "code": de.Code}
	if len(de.Details) > 0 {
		body["details"] = de.Details
	}
	c.JSON(de.HTTPStatus, body)
}

// bindJSON decodes the request body or answers 400.
func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.respondError(c, apperrors.NewValidationError("Invalid request body", nil))
		return false
	}
	return true
}
