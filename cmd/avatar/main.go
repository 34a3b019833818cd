package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"animeavatar/internal/app"
	"animeavatar/internal/config"
	"animeavatar/internal/ratelimit"
	"animeavatar/internal/server"
	"animeavatar/internal/util"
	"animeavatar/pkg/ai"
	"animeavatar/pkg/storage"
	"animeavatar/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	// Backends are optional: each missing one leaves its slot nil and
	// the affected endpoints answer "not configured" instead of the
	// process refusing to start.
	var dataStore store.Store
	if cfg.DatabaseURL != "" {
		gormStore, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to init postgres store: %v", err)
		}
		dataStore = gormStore
		if cfg.RedisAddr != "" {
			dataStore = store.NewSessionCache(gormStore, cfg.RedisAddr, cfg.RedisPassword, time.Hour)
		}
	} else {
		logger.Warn("database not configured, upload/generate/history disabled")
	}

	var photos, avatars storage.ObjectStore
	if cfg.MinioEndpoint != "" && cfg.MinioAccessKey != "" && cfg.MinioSecretKey != "" {
		photos, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.PhotoBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init photo bucket: %v", err)
		}
		avatars, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.AvatarBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init avatar bucket: %v", err)
		}
	} else {
		logger.Warn("object storage not configured, uploads disabled")
	}

	var transformer ai.Transformer
	switch cfg.Provider {
	case "gateway":
		gateway, err := ai.NewGatewayTransformer(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayModel)
		if err != nil {
			logger.Warn("gateway provider not configured", "err", err)
		} else {
			transformer = gateway
		}
	default:
		gemini, err := ai.NewGeminiTransformer(cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("gemini provider not configured", "err", err)
		} else {
			transformer = gemini
		}
	}

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" && cfg.RateLimitPerMinute > 0 {
		limiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "avatar:ratelimit", cfg.RateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	appCore := app.New(app.Config{
		Store:           dataStore,
		Photos:          photos,
		Avatars:         avatars,
		Transformer:     transformer,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		GenerateTimeout: time.Duration(cfg.GenerateTimeoutSeconds) * time.Second,
	})

	httpServer := server.New(server.Config{
		App:            appCore,
		Limiter:        limiter,
		TrustedProxies: trustedProxies,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.GenerateTimeoutSeconds)*time.Second + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("avatar server listening", "addr", addr, "provider", cfg.Provider)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
