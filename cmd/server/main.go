package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"booklibrary/internal/app"
	"booklibrary/internal/config"
	"booklibrary/internal/server"
	"booklibrary/internal/util"
	"booklibrary/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	accessTTL, err := config.ParseDurationField("accessTTL", cfg.AccessTTL)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	refreshTTL, err := config.ParseDurationField("refreshTTL", cfg.RefreshTTL)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	leeway, err := config.ParseDurationField("jwtLeeway", cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	appCore, err := app.New(app.Config{
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		JWTSecret:     cfg.JWTSecret,
		TokenOptions: store.TokenOptions{
			Issuer:     cfg.JWTIssuer,
			Audience:   cfg.JWTAudience,
			Leeway:     leeway,
			AccessTTL:  accessTTL,
			RefreshTTL: refreshTTL,
		},
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{
		App: appCore,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("book library server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
