package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func newAuthEngine(t *testing.T) *gin.Engine {
	t.Helper()
	db := openHandlerDB(t)
	svc := newIdentityService(db)

	engine := gin.New()
	h := NewAuthHandler(svc)
	engine.POST("/otp/verify", h.VerifyOTP)
	engine.POST("/email/check", h.CheckEmail)
	engine.POST("/signup", h.Signup)
	engine.POST("/login", h.Login)
	engine.POST("/session/check", h.CheckSession)
	return engine
}

func TestSignupAndLoginRoutes(t *testing.T) {
	engine := newAuthEngine(t)

	rec := postJSON(t, engine, "/signup", `{"email":"pat@example.test","password":"secret123"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	dup := postJSON(t, engine, "/signup", `{"email":"pat@example.test","password":"secret123"}`)
	if dup.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d: %s", dup.Code, dup.Body.String())
	}

	login := postJSON(t, engine, "/login", `{"email":"pat@example.test","password":"secret123"}`)
	if login.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", login.Code, login.Body.String())
	}
	var loginResp struct {
		Token string `json:"token"`
		Email string `json:"email"`
	}
	if errDecode := json.Unmarshal(login.Body.Bytes(), &loginResp); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if loginResp.Token == "" || loginResp.Email != "pat@example.test" {
		t.Fatalf("unexpected login payload: %s", login.Body.String())
	}

	wrong := postJSON(t, engine, "/login", `{"email":"pat@example.test","password":"nope"}`)
	if wrong.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", wrong.Code)
	}

	session := postJSON(t, engine, "/session/check", `{"token":"`+loginResp.Token+`"}`)
	if session.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", session.Code, session.Body.String())
	}

	check := postJSON(t, engine, "/email/check", `{"email":"pat@example.test"}`)
	if check.Code != http.StatusOK || check.Body.String() != `{"exists":true}` {
		t.Fatalf("unexpected email check response: %d %s", check.Code, check.Body.String())
	}
}

func TestVerifyOTPRoute_NoCode(t *testing.T) {
	engine := newAuthEngine(t)

	rec := postJSON(t, engine, "/otp/verify", `{"email":"pat@example.test","otp":"123456"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if resp["message"] != "No OTP found." {
		t.Fatalf("expected no-code message, got %v", resp["message"])
	}

	// Numeric code submissions parse, they do not trip validation.
	numeric := postJSON(t, engine, "/otp/verify", `{"email":"pat@example.test","otp":123456}`)
	if numeric.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for numeric code, got %d: %s", numeric.Code, numeric.Body.String())
	}
}
