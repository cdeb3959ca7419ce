package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/friendix-ai/companion/internal/llm"
	"github.com/friendix-ai/companion/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeLLM struct {
	reply string
	err   error
	calls int
	last  llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "chat.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.AutoMigrate(&models.User{}, &models.ChatMessage{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := models.User{ID: uuid.NewString(), Email: email, Password: "x"}
	if errCreate := db.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return &user
}

func seedTurn(t *testing.T, db *gorm.DB, userID, sender, text string, at time.Time) {
	t.Helper()
	turn := models.ChatMessage{
		TurnID:    uuid.NewString(),
		UserID:    userID,
		Sender:    sender,
		Message:   text,
		Timestamp: at,
	}
	if errCreate := db.Create(&turn).Error; errCreate != nil {
		t.Fatalf("seed turn: %v", errCreate)
	}
}

func TestPipelineSend_ContextOrdering(t *testing.T) {
	db := openTestDB(t)
	user := seedUser(t, db, "pat@example.test")

	base := time.Now().UTC().Add(-time.Hour)
	seedTurn(t, db, user.ID, models.SenderUser, "hi", base)
	seedTurn(t, db, user.ID, models.SenderCompanion, "hello", base.Add(time.Minute))

	client := &fakeLLM{reply: "glad you're back"}
	p := NewPipeline(db, client, "test-model", "Friendix.ai", "Luvisa 💗")

	if _, err := p.Send(context.Background(), user, "how are you?"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if client.calls != 1 {
		t.Fatalf("expected one completion call, got %d", client.calls)
	}
	msgs := client.last.Messages
	if len(msgs) != 4 {
		t.Fatalf("expected 4 context messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].Role != llm.RoleSystem {
		t.Fatalf("expected system prompt first, got role %q", msgs[0].Role)
	}
	if !strings.Contains(msgs[0].Content, "pat") {
		t.Fatalf("expected persona prompt to address the user, got %q", msgs[0].Content)
	}
	if msgs[1].Role != llm.RoleUser || msgs[1].Content != "hi" {
		t.Fatalf("unexpected second message: %+v", msgs[1])
	}
	if msgs[2].Role != llm.RoleAssistant || msgs[2].Content != "hello" {
		t.Fatalf("unexpected third message: %+v", msgs[2])
	}
	if msgs[3].Role != llm.RoleUser || msgs[3].Content != "how are you?" {
		t.Fatalf("expected new user message last, got %+v", msgs[3])
	}

	if client.last.Model != "test-model" {
		t.Fatalf("expected model test-model, got %q", client.last.Model)
	}
	if client.last.Temperature != 1.0 || client.last.MaxTokens != 800 {
		t.Fatalf("unexpected sampling parameters: %+v", client.last)
	}
}

func TestPipelineSend_WindowIsBounded(t *testing.T) {
	db := openTestDB(t)
	user := seedUser(t, db, "pat@example.test")

	base := time.Now().UTC().Add(-24 * time.Hour)
	for i := 0; i < contextTurns+20; i++ {
		seedTurn(t, db, user.ID, models.SenderUser, "old", base.Add(time.Duration(i)*time.Second))
	}

	client := &fakeLLM{reply: "ok"}
	p := NewPipeline(db, client, "m", "Friendix.ai", "Luvisa 💗")
	if _, err := p.Send(context.Background(), user, "newest"); err != nil {
		t.Fatalf("send: %v", err)
	}

	// system prompt + bounded history + new message
	if got, want := len(client.last.Messages), contextTurns+2; got != want {
		t.Fatalf("expected %d context messages, got %d", want, got)
	}
}

func TestPipelineSend_PersistsBothTurns(t *testing.T) {
	db := openTestDB(t)
	user := seedUser(t, db, "pat@example.test")

	client := &fakeLLM{reply: "I love you and love this chat"}
	p := NewPipeline(db, client, "m", "Friendix.ai", "Luvisa 💗")

	reply, err := p.Send(context.Background(), user, "hey")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got, want := strings.Count(reply, "❤️"), 1; got != want {
		t.Fatalf("expected exactly one heart annotation, got %d in %q", got, reply)
	}

	history, errHistory := p.History(context.Background(), user.ID)
	if errHistory != nil {
		t.Fatalf("history: %v", errHistory)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(history))
	}
	if history[0].Sender != models.SenderUser || history[0].Message != "hey" {
		t.Fatalf("unexpected first turn: %+v", history[0])
	}
	if history[1].Sender != models.SenderCompanion || history[1].Message != reply {
		t.Fatalf("expected stored reply to match returned reply, got %+v", history[1])
	}
}

func TestPipelineSend_DegradesOnProviderFailure(t *testing.T) {
	db := openTestDB(t)
	user := seedUser(t, db, "pat@example.test")

	client := &fakeLLM{err: errors.New("upstream timeout")}
	p := NewPipeline(db, client, "m", "Friendix.ai", "Luvisa 💗")

	reply, err := p.Send(context.Background(), user, "hey")
	if err != nil {
		t.Fatalf("expected degradation, not error: %v", err)
	}
	if reply != replyDegraded {
		t.Fatalf("expected degraded reply, got %q", reply)
	}
}

func TestPipelineSend_NilClientUnavailable(t *testing.T) {
	db := openTestDB(t)
	user := seedUser(t, db, "pat@example.test")

	p := NewPipeline(db, nil, "m", "Friendix.ai", "Luvisa 💗")
	reply, err := p.Send(context.Background(), user, "hey")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply != replyUnavailable {
		t.Fatalf("expected unavailable reply, got %q", reply)
	}
}

func TestPipelineForget_ErasesHistoryInBulk(t *testing.T) {
	db := openTestDB(t)
	user := seedUser(t, db, "pat@example.test")
	other := seedUser(t, db, "other@example.test")

	now := time.Now().UTC()
	seedTurn(t, db, user.ID, models.SenderUser, "hi", now)
	seedTurn(t, db, user.ID, models.SenderCompanion, "hello", now.Add(time.Second))
	seedTurn(t, db, other.ID, models.SenderUser, "mine stays", now)

	p := NewPipeline(db, &fakeLLM{reply: "ok"}, "m", "Friendix.ai", "Luvisa 💗")
	if errForget := p.Forget(context.Background(), user.ID); errForget != nil {
		t.Fatalf("forget: %v", errForget)
	}

	history, errHistory := p.History(context.Background(), user.ID)
	if errHistory != nil {
		t.Fatalf("history: %v", errHistory)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d turns", len(history))
	}

	otherHistory, errOther := p.History(context.Background(), other.ID)
	if errOther != nil {
		t.Fatalf("history: %v", errOther)
	}
	if len(otherHistory) != 1 {
		t.Fatalf("expected other user's history to survive, got %d", len(otherHistory))
	}
}
