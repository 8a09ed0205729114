package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"spherelink/internal/adapters/events"
	server "spherelink/internal/adapters/http_server"
	"spherelink/internal/adapters/media"
	"spherelink/internal/adapters/observability"
	redisad "spherelink/internal/adapters/redis"
	"spherelink/internal/app"
	"spherelink/internal/domain"
	"spherelink/internal/search"
	"spherelink/internal/shared"
	"spherelink/internal/storage/memory"
	mysqlrepo "spherelink/internal/storage/mysql"
)

type store interface {
	domain.ViewRepository
	domain.UserDirectory
}

func openStore(cfg shared.Config) (store, func()) {
	if cfg.StorageDriver == "memory" {
		log.Warn().Msg("using in-memory storage; data is lost on exit")
		return memory.New(), func() {}
	}
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")
	return mysqlrepo.New(db), func() { _ = db.Close() }
}

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// deps
	repo, closeStore := openStore(cfg)
	defer closeStore()

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable; caching disabled")
			_ = rc.Close()
		} else {
			cache = rc
			defer rc.Close()
		}
	}

	var pub domain.EventPublisher = events.Noop{}
	if cfg.AMQPURL != "" {
		p := events.NewPublisher(cfg.AMQPURL)
		defer p.Close()
		pub = p
	}

	files := media.New(cfg.UploadDir)
	opts := search.Options{RadiusKm: cfg.NearbyKm, DefaultSize: 10, MaxSize: cfg.MaxPageSize}

	h := &server.Handlers{
		Commands:  app.NewViewCommands(repo, repo, files, cache, pub),
		Queries:   app.NewQueryService(repo, cache, cfg.CacheTTL, opts),
		Identity:  app.NewIdentity(repo),
		BaseURL:   cfg.BaseURL,
		MaxUpload: cfg.MaxUploadSize,
		Limiter:   server.NewRateLimiter(cfg.RateLimitRPS, cfg.RateBurst),
	}

	// http
	srv := server.New(cfg.JWTSecret, cfg.TrustProxy)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.Mount("/"+media.PathPrefix+"/*", files.Handler())
	srv.MountHandlers(h)

	log.Info().Str("addr", cfg.HTTPAddr).Str("storage", cfg.StorageDriver).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
