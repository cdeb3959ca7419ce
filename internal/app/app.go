// Package app wires collaborators and runs the HTTP server.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/friendix-ai/companion/internal/chat"
	"github.com/friendix-ai/companion/internal/config"
	"github.com/friendix-ai/companion/internal/db"
	"github.com/friendix-ai/companion/internal/http/api"
	"github.com/friendix-ai/companion/internal/identity"
	"github.com/friendix-ai/companion/internal/llm"
	"github.com/friendix-ai/companion/internal/mail"
	"github.com/friendix-ai/companion/internal/otp"
	"github.com/friendix-ai/companion/internal/ratelimit"
	"github.com/friendix-ai/companion/internal/settings"
)

// Migrate opens the database and runs migrations.
func Migrate(_ context.Context, cfg config.Config) error {
	dsn, errDSN := cfg.DSN()
	if errDSN != nil {
		return errDSN
	}
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the companion API server. Every collaborator is
// constructed here once and injected; nothing is resolved lazily at
// request time.
func RunServer(ctx context.Context, cfg config.Config) error {
	dsn, errDSN := cfg.DSN()
	if errDSN != nil {
		return errDSN
	}
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	var (
		signupOTP otp.Registry
		limiter   ratelimit.Limiter
	)
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if errPing := redisClient.Ping(ctx).Err(); errPing != nil {
			return fmt.Errorf("redis ping: %w", errPing)
		}
		signupOTP = otp.NewRedisRegistry(redisClient, cfg.Redis.Prefix, otp.FlowSignup, cfg.OTP.Expiry)
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.Redis.Prefix)
		log.Infof("using redis backends at %s", addr)
	} else {
		signupOTP = otp.NewMemoryRegistry(cfg.OTP.Expiry)
		limiter = ratelimit.NewMemoryLimiter()
		log.Info("using in-memory otp and rate-limit backends")
	}
	if cfg.OTP.DisableThrottle {
		limiter = nil
	}

	productName := settings.GetString(conn, settings.ProductNameKey)
	companionName := settings.GetString(conn, settings.CompanionNameKey)

	sender := mail.NewBrevoClient(cfg.Brevo.APIKey, cfg.Brevo.SenderEmail, productName)
	if strings.TrimSpace(cfg.Brevo.APIKey) == "" {
		log.Warn("brevo api key not configured; otp emails will fail")
	}

	var llmClient llm.Client
	if strings.TrimSpace(cfg.Groq.APIKey) != "" {
		llmClient = llm.NewGroqClient(cfg.Groq.APIKey)
	} else {
		log.Warn("groq api key not configured; chat replies will degrade")
	}

	var mirror identity.Mirror
	if m := identity.NewHTTPMirror(cfg.Mirror.Endpoint, cfg.Mirror.APIKey); m != nil {
		mirror = m
	}

	identitySvc := identity.NewService(conn, signupOTP, sender, limiter, mirror, cfg)
	pipeline := chat.NewPipeline(conn, llmClient, cfg.Groq.Model, productName, companionName)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	api.RegisterRoutes(engine, api.Dependencies{
		DB:            conn,
		Identity:      identitySvc,
		Chat:          pipeline,
		DefaultAvatar: cfg.Assets.DefaultAvatar,
	})

	log.Infof("companion server listening on :%d", cfg.Port)
	return engine.Run(fmt.Sprintf(":%d", cfg.Port))
}
