package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harentsoaR/dentaheal-api/internal/apperrors"
	"github.com/harentsoaR/dentaheal-api/internal/middleware"
	"github.com/harentsoaR/dentaheal-api/internal/services"
)

const maxCureImageBytes = 5 << 20

var cureImageTypes = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

type bookRequest struct {
	DoctorID string `json:"doctorId"`
	Problem  string `json:"problem"`
}

type cureRequest struct {
	Description string `json:"description"`
	Image       string `json:"image"`
}

// CreateAppointment books an appointment for the authenticated patient.
func (h *Handler) CreateAppointment(c *gin.Context) {
	var req bookRequest
	if !h.bindJSON(c, &req) {
		return
	}

	apt, err := h.Ledger.Book(c.Request.Context(), middleware.UserID(c), req.DoctorID, req.Problem)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Appointment booked successfully", "appointment": apt})
}

// GetPatientAppointments lists the authenticated patient's appointments.
func (h *Handler) GetPatientAppointments(c *gin.Context) {
	views, err := h.Ledger.ListForPatient(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// GetDoctorAppointments lists the authenticated doctor's appointments.
func (h *Handler) GetDoctorAppointments(c *gin.Context) {
	views, err := h.Ledger.ListForDoctor(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// AddCure records a treatment. It accepts JSON or a multipart form with an optional
// "image" file, which is stored under UploadDir and referenced as /uploads/<name>.
func (h *Handler) AddCure(c *gin.Context) {
	var in services.CureInput
	var saved string

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		in.Description = c.PostForm("description")
		path, ref, err := h.saveCureImage(c)
		if err != nil {
			h.respondError(c, err)
			return
		}
		saved, in.Image = path, ref
	} else {
		var req cureRequest
		if !h.bindJSON(c, &req) {
			return
		}
		in = services.CureInput{Description: req.Description, Image: req.Image}
	}

	apt, err := h.Ledger.AddCure(c.Request.Context(), middleware.UserID(c), c.Param("appointmentId"), in)
	if err != nil {
		if saved != "" {
			_ = os.Remove(saved)
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cure added successfully", "appointment": apt})
}

// saveCureImage stores the optional uploaded image. It returns empty strings when no
// file was sent.
func (h *Handler) saveCureImage(c *gin.Context) (string, string, error) {
	file, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return "", "", nil
	}
	if err != nil {
		return "", "", apperrors.NewValidationError("Invalid image upload", nil)
	}
	if file.Size > maxCureImageBytes {
		return "", "", apperrors.NewValidationError("Image must be at most 5MB", nil)
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !cureImageTypes[ext] {
		return "", "", apperrors.NewValidationError("Image must be a jpg, png or webp file", nil)
	}

	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		return "", "", apperrors.NewInternalError(err)
	}
	name := uuid.NewString() + ext
	path := filepath.Join(h.UploadDir, name)
	if err := c.SaveUploadedFile(file, path); err != nil {
		return "", "", apperrors.NewInternalError(err)
	}
	h.Logger.Info("cure image stored", zap.String("file", name), zap.Int64("bytes", file.Size))
	return path, "/uploads/" + name, nil
}

// ConfirmAppointment accepts a pending appointment.
func (h *Handler) ConfirmAppointment(c *gin.Context) {
	apt, err := h.Ledger.Confirm(c.Request.Context(), middleware.UserID(c), c.Param("appointmentId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Appointment confirmed", "appointment": apt})
}

// CancelAppointment cancels an appointment on behalf of either participant.
func (h *Handler) CancelAppointment(c *gin.Context) {
	actor := services.Actor{ID: middleware.UserID(c), Role: middleware.UserRole(c)}
	apt, err := h.Ledger.Cancel(c.Request.Context(), actor, c.Param("appointmentId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Appointment cancelled", "appointment": apt})
}
