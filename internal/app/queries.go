package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"spherelink/internal/domain"
	"spherelink/internal/search"
)

type QueryService struct {
	repo     domain.ViewRepository
	cache    domain.Cache
	cacheTTL time.Duration
	opts     search.Options
}

func NewQueryService(r domain.ViewRepository, c domain.Cache, ttl time.Duration, opts search.Options) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl, opts: opts}
}

// Search runs a public search. Pages are cached under the current search
// generation, which every mutation bumps.
func (s *QueryService) Search(ctx context.Context, p search.Params) (domain.ViewsPage, domain.SearchQuery, error) {
	q := search.Normalize(p, s.opts)

	var key string
	if s.cache != nil {
		key = searchKey(generation(ctx, s.cache, searchGenKey), q)
		var cached domain.ViewsPage
		if ok, err := s.cache.Get(ctx, key, &cached); ok && err == nil {
			return cached, q, nil
		}
	}

	page, err := s.repo.SearchPublic(ctx, q)
	if err != nil {
		return domain.ViewsPage{}, q, err
	}
	if s.cache != nil {
		s.store(ctx, key, page)
	}
	return page, q, nil
}

// ListRatings pages a view's ratings newest first; page is 1-based.
func (s *QueryService) ListRatings(ctx context.Context, viewID uuid.UUID, page, size int) (domain.RatingsPage, error) {
	pg := domain.PageQuery{Page: max(page, 1) - 1, Size: size}
	if pg.Size < 1 {
		pg.Size = s.opts.DefaultSize
	}
	if s.opts.MaxSize > 0 && pg.Size > s.opts.MaxSize {
		pg.Size = s.opts.MaxSize
	}
	pg.Page = domain.ClampPage(pg.Page, pg.Size)

	var key string
	if s.cache != nil {
		key = ratingsKey(generation(ctx, s.cache, ratingsGenKey(viewID)), viewID, pg)
		var cached domain.RatingsPage
		if ok, err := s.cache.Get(ctx, key, &cached); ok && err == nil {
			return cached, nil
		}
	}

	out, err := s.repo.ListRatings(ctx, viewID, pg)
	if err != nil {
		return domain.RatingsPage{}, err
	}
	if s.cache != nil {
		s.store(ctx, key, out)
	}
	return out, nil
}

func (s *QueryService) ListOwn(ctx context.Context, userID uuid.UUID) ([]domain.View, error) {
	return s.repo.ListByUser(ctx, userID)
}

// GetView returns a published view, or a private one to its owner. Private
// views look absent to everyone else.
func (s *QueryService) GetView(ctx context.Context, viewID uuid.UUID, caller *uuid.UUID) (domain.View, error) {
	v, err := s.repo.LoadAggregate(ctx, viewID)
	if err != nil {
		return domain.View{}, err
	}
	if !v.IsPublic && (caller == nil || *caller != v.UserID) {
		return domain.View{}, domain.NotFound("view %s not found", viewID)
	}
	return v, nil
}

func (s *QueryService) store(ctx context.Context, key string, v any) {
	if err := s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds())); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}
