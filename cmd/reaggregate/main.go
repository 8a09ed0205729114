// Command reaggregate rebuilds every view's running rating totals from the
// ratings table.
package main

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"spherelink/internal/adapters/observability"
	redisad "spherelink/internal/adapters/redis"
	"spherelink/internal/app"
	"spherelink/internal/shared"
	mysqlrepo "spherelink/internal/storage/mysql"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().Int("workers", cfg.Workers).Msg("reaggregate starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	svc := app.NewRatingMaintenance(repo, cache)

	ids, err := repo.ListViewIDs(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("list views failed")
	}

	sem := semaphore.NewWeighted(int64(max(cfg.Workers, 1)))
	var wg sync.WaitGroup
	var failed atomic.Int64

	for _, id := range ids {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(viewID uuid.UUID) {
			defer wg.Done()
			defer sem.Release(1)

			mean, err := svc.Recompute(ctx, viewID)
			if err != nil {
				failed.Add(1)
				log.Warn().Str("view", viewID.String()).Err(err).Msg("recompute failed")
				return
			}
			log.Debug().Str("view", viewID.String()).Float64("mean", mean).Msg("recompute ok")
		}(id)
	}

	wg.Wait()
	svc.Done(ctx)
	log.Info().Int("views", len(ids)).Int64("failed", failed.Load()).Msg("reaggregate completed")
}
