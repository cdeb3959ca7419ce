// Package handlers implements the public REST endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/friendix-ai/companion/internal/apperr"
	"github.com/friendix-ai/companion/internal/identity"
	"github.com/friendix-ai/companion/internal/otp"
)

// AuthHandler serves the signup, login, and session endpoints.
type AuthHandler struct {
	identity *identity.Service
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc *identity.Service) *AuthHandler {
	return &AuthHandler{identity: svc}
}

type emailRequest struct {
	Email string `json:"email"`
}

// flexString accepts both JSON strings and numbers. Clients submit OTP
// codes either way; comparison is always on the string form.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var raw any
	if errDecode := json.Unmarshal(data, &raw); errDecode != nil {
		return errDecode
	}
	switch v := raw.(type) {
	case string:
		*s = flexString(v)
	case float64:
		*s = flexString(strconv.FormatFloat(v, 'f', -1, 64))
	case nil:
		*s = ""
	default:
		return fmt.Errorf("unsupported code type %T", raw)
	}
	return nil
}

type otpRequest struct {
	Email string     `json:"email"`
	OTP   flexString `json:"otp"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// SendOTP issues a signup code and emails it.
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var body emailRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email required"})
		return
	}

	errSend := h.identity.SendSignupOTP(c.Request.Context(), body.Email)
	switch {
	case errSend == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "OTP sent"})
	case errors.Is(errSend, apperr.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Email already exists"})
	case errors.Is(errSend, apperr.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Too many OTP requests. Try again shortly."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to send OTP"})
	}
}

// VerifyOTP checks a submitted signup code.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var body otpRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Email) == "" || body.OTP == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email and OTP required"})
		return
	}

	result, errVerify := h.identity.VerifySignupOTP(c.Request.Context(), body.Email, string(body.OTP))
	if errVerify != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to verify OTP"})
		return
	}
	if result.Valid {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "OTP verified"})
		return
	}
	message := "Invalid OTP."
	switch result.Status {
	case otp.StatusNotFound:
		message = "No OTP found."
	case otp.StatusExpired:
		message = "OTP expired."
	}
	c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": message})
}

// CheckEmail reports whether an account exists for the email.
func (h *AuthHandler) CheckEmail(c *gin.Context) {
	var body emailRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Email) == "" {
		c.JSON(http.StatusOK, gin.H{"exists": false})
		return
	}
	exists, errExists := h.identity.EmailExists(c.Request.Context(), body.Email)
	if errExists != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"exists": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

// Signup creates an account once its signup code has been verified.
func (h *AuthHandler) Signup(c *gin.Context) {
	var body credentialsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Email) == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email and password required"})
		return
	}

	_, errSignup := h.identity.Signup(c.Request.Context(), body.Email, body.Password)
	switch {
	case errSignup == nil:
		c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Signup successful"})
	case errors.Is(errSignup, apperr.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "This email is already registered."})
	case errors.Is(errSignup, apperr.ErrOTPOutstanding):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "OTP not verified yet."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error during signup."})
	}
}

// Login authenticates an account and returns a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body credentialsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Email) == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email and password required"})
		return
	}

	user, token, errLogin := h.identity.Login(c.Request.Context(), body.Email, body.Password)
	switch {
	case errLogin == nil:
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Login successful",
			"email":   user.Email,
			"token":   token,
		})
	case errors.Is(errLogin, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
	case errors.Is(errLogin, apperr.ErrInvalidCode):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid password"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error during login."})
	}
}

// CheckSession validates a stored session for auto-login.
func (h *AuthHandler) CheckSession(c *gin.Context) {
	var body sessionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil ||
		(strings.TrimSpace(body.Email) == "" && strings.TrimSpace(body.Token) == "") {
		c.JSON(http.StatusBadRequest, gin.H{"isValid": false, "message": "No email provided"})
		return
	}

	_, errCheck := h.identity.CheckSession(c.Request.Context(), body.Token, body.Email)
	switch {
	case errCheck == nil:
		c.JSON(http.StatusOK, gin.H{"isValid": true})
	case errors.Is(errCheck, apperr.ErrInvalidCode):
		c.JSON(http.StatusUnauthorized, gin.H{"isValid": false, "message": "Invalid session"})
	case errors.Is(errCheck, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"isValid": false, "message": "User not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"isValid": false, "message": "Server error"})
	}
}
