package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pearstock/backend/internal/cache"
	"pearstock/backend/internal/config"
	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/httpapi"
	"pearstock/backend/internal/notify"
	"pearstock/backend/internal/service"
	"pearstock/backend/internal/settings"
	"pearstock/backend/internal/store"
	"pearstock/backend/internal/store/memory"
	pgstore "pearstock/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	var devUsers []domain.User
	closers := make([]func() error, 0, 3)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if cfg.MigrateOnStart {
			if err := pg.Migrate(ctx); err != nil {
				log.Fatalf("postgres migration failed: %v", err)
			}
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		seeded := memory.NewSeeded()
		users, err := seeded.ListUsersByRoles(ctx, []string{domain.RoleAdmin, domain.RoleProduction, domain.RoleSeller, domain.RoleReader})
		if err != nil {
			log.Printf("[server] WARN: failed to list seeded users: %v", err)
		}
		repo = seeded
		devUsers = users
		log.Println("repository: in-memory")
	}

	settingsCache := cache.SettingsCache(cache.NoopSettingsCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSettingsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			settingsCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	publisher := notify.Publisher(notify.NoopPublisher{})
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaNotificationTopic)
		publisher = kafkaPublisher
		closers = append(closers, kafkaPublisher.Close)
		log.Printf("notifications: kafka topic %s", cfg.KafkaNotificationTopic)
	} else {
		log.Println("notifications: store only")
	}

	resolver := settings.NewResolver(repo, settingsCache, time.Duration(cfg.SettingsCacheTTLSeconds)*time.Second)
	svc := service.New(repo, resolver, publisher, cfg.StockOrderDeadlineDays)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	logDevTokens(auth, devUsers)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("pearstock backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}

// logDevTokens prints a bearer token per seeded user so the in-memory
// server can be exercised without an identity provider.
func logDevTokens(auth *httpapi.AuthManager, users []domain.User) {
	for _, user := range users {
		token, _, err := auth.IssueToken(domain.Actor{UserID: user.ID, Username: user.Username, Role: user.Role})
		if err != nil {
			log.Printf("[server] WARN: dev token for %s: %v", user.ID, err)
			continue
		}
		log.Printf("dev token %s (%s): %s", user.Username, user.Role, token)
	}
}
