package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edu-video-studio/internal/auth"
	"edu-video-studio/internal/config"
	"edu-video-studio/internal/content"
	"edu-video-studio/internal/history"
	"edu-video-studio/internal/httpapi"
	"edu-video-studio/internal/jobcache"
	"edu-video-studio/internal/ratelimit"
	"edu-video-studio/internal/reporting"
	"edu-video-studio/internal/scripts"
	"edu-video-studio/internal/video"
	"edu-video-studio/pkg/logger"
	"edu-video-studio/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "api")
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	gen, err := content.NewGeminiGenerator(content.GeminiConfig{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		BaseURL: cfg.Gemini.BaseURL,
	})
	if err != nil {
		log.Error("gemini init failed", "err", err)
		os.Exit(1)
	}
	heygen, err := video.NewHeyGenProvider(video.HeyGenConfig{
		APIKey:  cfg.HeyGen.APIKey,
		BaseURL: cfg.HeyGen.BaseURL,
	})
	if err != nil {
		log.Error("heygen init failed", "err", err)
		os.Exit(1)
	}

	// One limiter per process, shared by every content request.
	limiter := ratelimit.New(cfg.Content.RateLimit, cfg.Content.RateWindow)
	contentClient := content.NewClient(gen, limiter)
	poller := video.NewPoller(heygen)

	scriptRepo, historyRepo, db, err := openRepositories(rootCtx, cfg, log)
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	historySvc := history.NewService(historyRepo)

	h := httpapi.Handlers{
		Auth:            authManager,
		AllowTokenIssue: cfg.IsLocal(),
		Content:         contentClient,
		Renderer:        poller,
		Catalog:         heygen,
		Await:           video.AwaitOptions{PollInterval: cfg.Video.PollInterval, MaxWait: cfg.Video.MaxWait},
		Scripts:         scripts.NewService(scriptRepo),
		History:         historySvc,
		Reports:         reporting.NewService(historyRepo, contentClient),
	}

	if cfg.HasRedis() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		h.Cache = jobcache.New(rdb, cfg.Video.CacheTTL)
		// A slot outlives the longest wait by a margin so crashed replicas release it.
		h.Slots = jobcache.NewSlots(rdb, cfg.Video.MaxConcurrent, cfg.Video.MaxWait+time.Minute)
		log.Info("job cache enabled", "ttl", cfg.Video.CacheTTL.String())
	} else {
		log.Info("redis not configured; job cache disabled")
	}

	ipLimiter := httpapi.NewIPLimiter(cfg.API.RPS, cfg.API.Burst)
	go ipLimiter.Run(rootCtx, 5*time.Minute)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(ipLimiter.Middleware())

	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Await holds the connection for up to VIDEO_MAX_WAIT.
		WriteTimeout: cfg.Video.MaxWait + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// openRepositories selects Postgres when DB_HOST is set and in-memory
// repositories otherwise. db is nil in the in-memory case.
func openRepositories(ctx context.Context, cfg config.Config, log *slog.Logger) (scripts.Repository, history.Repository, *sql.DB, error) {
	if !cfg.HasDB() {
		log.Warn("DB_HOST not set; using in-memory repositories")
		return scripts.NewMemoryRepo(), history.NewMemoryRepo(), nil, nil
	}

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return nil, nil, nil, err
	}
	sr := scripts.NewPostgresRepo(db)
	hr := history.NewPostgresRepo(db)
	if err := sr.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	if err := hr.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	return sr, hr, db, nil
}
