package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/friendix-ai/companion/internal/chat"
	"github.com/friendix-ai/companion/internal/models"
)

// historyTimeFormat is the wall-clock format of history timestamps.
const historyTimeFormat = "2006-01-02 15:04:05"

// ChatHandler serves the conversation endpoints.
type ChatHandler struct {
	db       *gorm.DB
	pipeline *chat.Pipeline
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(db *gorm.DB, pipeline *chat.Pipeline) *ChatHandler {
	return &ChatHandler{db: db, pipeline: pipeline}
}

type chatRequest struct {
	Email string `json:"email"`
	Text  string `json:"text"`
}

func (h *ChatHandler) findUser(c *gin.Context, email string) (*models.User, bool) {
	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found."})
		return nil, false
	}
	if errFind != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Database connection error."})
		return nil, false
	}
	return &user, true
}

// Send appends the user's message and returns the companion's reply.
func (h *ChatHandler) Send(c *gin.Context) {
	var body chatRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil ||
		strings.TrimSpace(body.Email) == "" || strings.TrimSpace(body.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email and text required."})
		return
	}

	user, ok := h.findUser(c, body.Email)
	if !ok {
		return
	}
	reply, errSend := h.pipeline.Send(c.Request.Context(), user, body.Text)
	if errSend != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error generating reply."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reply": reply})
}

// History returns the full transcript, oldest first.
func (h *ChatHandler) History(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email required."})
		return
	}

	user, ok := h.findUser(c, email)
	if !ok {
		return
	}
	turns, errHistory := h.pipeline.History(c.Request.Context(), user.ID)
	if errHistory != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error loading history."})
		return
	}

	formatted := make([]gin.H, 0, len(turns))
	for _, turn := range turns {
		timeText := ""
		if !turn.Timestamp.IsZero() {
			timeText = turn.Timestamp.UTC().Format(historyTimeFormat)
		}
		formatted = append(formatted, gin.H{
			"sender":  turn.Sender,
			"message": turn.Message,
			"time":    timeText,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "history": formatted})
}

// Forget erases the account's transcript.
func (h *ChatHandler) Forget(c *gin.Context) {
	var body emailRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email required."})
		return
	}

	user, ok := h.findUser(c, body.Email)
	if !ok {
		return
	}
	if errForget := h.pipeline.Forget(c.Request.Context(), user.ID); errForget != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error forgetting memory."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Luvisa forgot your conversations."})
}
