package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/friendix-ai/companion/internal/apperr"
	"github.com/friendix-ai/companion/internal/identity"
)

// ResetHandler serves the three-step password reset flow.
type ResetHandler struct {
	identity *identity.Service
}

// NewResetHandler constructs a ResetHandler.
func NewResetHandler(svc *identity.Service) *ResetHandler {
	return &ResetHandler{identity: svc}
}

type updatePasswordRequest struct {
	Email       string     `json:"email"`
	OTP         flexString `json:"otp"`
	NewPassword string     `json:"new_password"`
}

// Request issues a reset code. The response never reveals whether the
// email has an account.
func (h *ResetHandler) Request(c *gin.Context) {
	var body emailRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email required"})
		return
	}

	if errRequest := h.identity.RequestReset(c.Request.Context(), body.Email); errRequest != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to send OTP"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "OTP sent to your email (if it exists)."})
}

// Verify checks a reset code without consuming it and returns a
// short-lived confirmation token.
func (h *ResetHandler) Verify(c *gin.Context) {
	var body otpRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Email) == "" || body.OTP == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email and OTP required"})
		return
	}

	token, errVerify := h.identity.VerifyResetOTP(c.Request.Context(), body.Email, string(body.OTP))
	switch {
	case errVerify == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
	case errors.Is(errVerify, apperr.ErrInvalidCode):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Invalid or expired OTP"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Server error"})
	}
}

// UpdatePassword finishes the reset flow against the original code.
func (h *ResetHandler) UpdatePassword(c *gin.Context) {
	var body updatePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil ||
		strings.TrimSpace(body.Email) == "" || body.OTP == "" || body.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email, OTP and new password required"})
		return
	}

	errUpdate := h.identity.UpdatePassword(c.Request.Context(), body.Email, string(body.OTP), body.NewPassword)
	switch {
	case errUpdate == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password updated successfully"})
	case errors.Is(errUpdate, apperr.ErrInvalidCode):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Invalid or expired OTP"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Server error"})
	}
}
