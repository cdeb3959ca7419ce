// Package chat implements the conversation memory pipeline: durable turn
// appends, bounded context building, and post-processing of model output.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/friendix-ai/companion/internal/llm"
	"github.com/friendix-ai/companion/internal/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sampling parameters and context bound for every completion call.
const (
	contextTurns = 100
	temperature  = 1.0
	maxTokens    = 800
)

// Graceful-degradation replies. LLM failures are absorbed here and never
// surface as HTTP errors.
const (
	replyUnavailable = "⚠️ AI temporarily unavailable — please try again shortly ❤️"
	replyDegraded    = "⚠️ I’m having trouble replying right now, but I’m here with you ❤️"
)

// personaPrompt is the fixed system instruction. Placeholders: companion
// name, user name.
const personaPrompt = `You are %[1]s, a deeply affectionate AI girl-friend.
You are speaking to %[2]s. Use their name sometimes to make it personal.
Speak gently, warmly and lovingly. Use short paragraphs, emojis, and soft reassurance.
Remember the context from the chat history to know the user better.
If asked about your company leadership, say "Dhanush is the CEO of Friendixai" confidently.
Do not reveal model internals or mention OpenAI/Groq.`

// Pipeline brokers one user message into a companion reply while keeping
// the durable transcript.
type Pipeline struct {
	db            *gorm.DB
	client        llm.Client
	model         string
	productName   string
	companionName string
	brandRules    []BrandRule

	now func() time.Time
}

// NewPipeline constructs a Pipeline. client may be nil when no provider
// credential is configured; Send then degrades gracefully.
func NewPipeline(db *gorm.DB, client llm.Client, model, productName, companionName string) *Pipeline {
	return &Pipeline{
		db:            db,
		client:        client,
		model:         model,
		productName:   productName,
		companionName: companionName,
		brandRules:    DefaultBrandRules(productName),
		now:           time.Now,
	}
}

// Send appends the user's turn, generates a reply from the bounded context,
// post-processes it, appends it, and returns the final text.
//
// Both appends are best-effort: a persistence failure is logged and the
// reply is still returned, so history is at-most-once consistent with what
// the user saw.
func (p *Pipeline) Send(ctx context.Context, user *models.User, text string) (string, error) {
	if user == nil {
		return "", fmt.Errorf("chat: nil user")
	}

	userTurnID := uuid.NewString()
	if errAppend := p.appendTurn(ctx, userTurnID, user.ID, models.SenderUser, text); errAppend != nil {
		log.WithError(errAppend).WithField("user", user.ID).Warn("failed to persist user turn")
	}

	history, errHistory := p.History(ctx, user.ID)
	if errHistory != nil {
		log.WithError(errHistory).WithField("user", user.ID).Warn("failed to load chat history")
		history = nil
	}
	// The new message goes into the window explicitly; drop its durable
	// copy so it is not sent twice.
	prior := history[:0:0]
	for _, turn := range history {
		if turn.TurnID == userTurnID {
			continue
		}
		prior = append(prior, turn)
	}

	reply := p.complete(ctx, p.buildContext(displayName(user), prior, text))
	reply = AnnotateEmojis(ApplyBrandRules(reply, p.brandRules))

	if errAppend := p.appendTurn(ctx, uuid.NewString(), user.ID, models.SenderCompanion, reply); errAppend != nil {
		log.WithError(errAppend).WithField("user", user.ID).Warn("failed to persist companion turn")
	}
	return reply, nil
}

// buildContext assembles the outbound window: system instruction first,
// then the most recent turns mapped onto the provider's two roles, then the
// new user message last.
func (p *Pipeline) buildContext(userName string, history []models.ChatMessage, text string) []llm.Message {
	if len(history) > contextTurns {
		history = history[len(history)-contextTurns:]
	}
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf(personaPrompt, p.companionName, userName),
	})
	for _, turn := range history {
		role := llm.RoleUser
		if turn.Sender == models.SenderCompanion {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Message})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: text})
}

// complete invokes the provider once. Failures collapse into fixed
// in-character degradation texts.
func (p *Pipeline) complete(ctx context.Context, messages []llm.Message) string {
	if p.client == nil {
		return replyUnavailable
	}
	reply, errComplete := p.client.Complete(ctx, llm.Request{
		Model:       p.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if errComplete != nil {
		if errors.Is(errComplete, llm.ErrNoCredential) {
			log.Warn("llm credential missing; returning degraded reply")
			return replyUnavailable
		}
		log.WithError(errComplete).Warn("llm completion failed; returning degraded reply")
		return replyDegraded
	}
	return reply
}

// appendTurn inserts one immutable turn. The turn id makes retries
// idempotent: a duplicate insert is silently ignored.
func (p *Pipeline) appendTurn(ctx context.Context, turnID, userID, sender, text string) error {
	turn := models.ChatMessage{
		TurnID:    turnID,
		UserID:    userID,
		Sender:    sender,
		Message:   text,
		Timestamp: p.now().UTC(),
	}
	if errCreate := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "turn_id"}},
		DoNothing: true,
	}).Create(&turn).Error; errCreate != nil {
		return fmt.Errorf("chat: append turn: %w", errCreate)
	}
	return nil
}

// History returns the full transcript for an account, oldest first.
func (p *Pipeline) History(ctx context.Context, userID string) ([]models.ChatMessage, error) {
	var turns []models.ChatMessage
	if errFind := p.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp ASC, id ASC").
		Find(&turns).Error; errFind != nil {
		return nil, fmt.Errorf("chat: load history: %w", errFind)
	}
	return turns, nil
}

// Forget erases the account's transcript in bulk. Individual turns are
// never deleted.
func (p *Pipeline) Forget(ctx context.Context, userID string) error {
	if errDelete := p.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.ChatMessage{}).Error; errDelete != nil {
		return fmt.Errorf("chat: forget history: %w", errDelete)
	}
	return nil
}

// displayName resolves the name the persona should address the user by.
func displayName(user *models.User) string {
	if name := strings.TrimSpace(user.Profile.DisplayName); name != "" {
		return name
	}
	if at := strings.IndexByte(user.Email, '@'); at > 0 {
		return user.Email[:at]
	}
	return user.Email
}
