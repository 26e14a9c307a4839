package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/dentaheal-api/internal/apperrors"
	"github.com/harentsoaR/dentaheal-api/internal/middleware"
	"github.com/harentsoaR/dentaheal-api/internal/models"
	"github.com/harentsoaR/dentaheal-api/internal/validation"
)

type registerRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Number     string `json:"number"`
	Password   string `json:"password"`
	Speciality string `json:"speciality"`
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Username *string `json:"username"`
	Number   *string `json:"number"`
}

var roleLabel = map[models.Role]string{
	models.RolePatient: "User",
	models.RoleDoctor:  "Doctor",
}

// Register returns the registration handler for role.
func (h *Handler) Register(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if !h.bindJSON(c, &req) {
			return
		}
		in := validation.Registration{
			Role:     role,
			Name:     req.Username,
			Email:    req.Email,
			Phone:    req.Number,
			Password: req.Password,
		}
		if role == models.RoleDoctor {
			in.Speciality = req.Speciality
		}

		if _, err := h.Identity.Register(c.Request.Context(), in); err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"message": roleLabel[role] + " registered successfully. OTP sent to email.",
		})
	}
}

// Verify checks a registration OTP.
func (h *Handler) Verify(c *gin.Context) {
	var req verifyRequest
	if !h.bindJSON(c, &req) {
		return
	}

	session, err := h.Identity.Verify(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		h.respondError(c, err)
		return
	}
	body := gin.H{"message": "OTP verified successfully"}
	if session.Token != "" {
		body["token"] = session.Token
	}
	c.JSON(http.StatusOK, body)
}

// Purge returns the handler that deletes an expired unverified account of role.
func (h *Handler) Purge(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.Identity.PurgeIfExpired(c.Request.Context(), role, c.Param("email")); err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Unverified " + strings.ToLower(roleLabel[role]) + " deleted successfully",
		})
	}
}

// Login returns the login handler for role.
func (h *Handler) Login(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if !h.bindJSON(c, &req) {
			return
		}

		session, err := h.Identity.Login(c.Request.Context(), role, req.Email, req.Password)
		if err != nil {
			h.respondError(c, err)
			return
		}
		acc := session.Account
		body := gin.H{
			"message":  "Login successful",
			"jwtToken": session.Token,
			"id":       acc.ID.Hex(),
			"email":    acc.Email,
			"name":     acc.Name,
			"role":     acc.Role,
		}
		if acc.Role == models.RoleDoctor {
			body["speciality"] = acc.Speciality()
		}
		c.JSON(http.StatusOK, body)
	}
}

// GetCurrentUser returns the profile of the authenticated account.
func (h *Handler) GetCurrentUser(c *gin.Context) {
	acc, err := h.Identity.Profile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

// UpdateCurrentUser changes the name and/or phone number of the authenticated account.
func (h *Handler) UpdateCurrentUser(c *gin.Context) {
	var req profileRequest
	if !h.bindJSON(c, &req) {
		return
	}

	acc, err := h.Identity.UpdateProfile(c.Request.Context(), middleware.UserID(c),
		validation.ProfileUpdate{Name: req.Username, Phone: req.Number})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": acc})
}

// ListDentists returns the public doctor directory.
func (h *Handler) ListDentists(c *gin.Context) {
	doctors, err := h.Identity.ListDoctors(c.Request.Context())
	if err != nil {
		h.respondError(c, apperrors.NewInternalError(err))
		return
	}
	c.JSON(http.StatusOK, doctors)
}
