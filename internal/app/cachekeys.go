package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"spherelink/internal/domain"
)

// Cached pages are keyed by a generation number; bumping it orphans every
// page cached under the previous one, and the TTL reaps them.
const searchGenKey = "search:gen"

func ratingsGenKey(viewID uuid.UUID) string { return "ratings:gen:" + viewID.String() }

func generation(ctx context.Context, c domain.Cache, key string) int64 {
	var gen int64
	if _, err := c.Get(ctx, key, &gen); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache generation read failed")
	}
	return gen
}

func bump(ctx context.Context, c domain.Cache, keys ...string) {
	if c == nil {
		return
	}
	for _, k := range keys {
		if _, err := c.Incr(ctx, k); err != nil {
			log.Warn().Err(err).Str("key", k).Msg("cache invalidation failed")
		}
	}
}

func searchKey(gen int64, q domain.SearchQuery) string {
	text, near := "", ""
	if q.Text != nil {
		text = strconv.Quote(*q.Text)
	}
	if q.Near != nil {
		near = fmt.Sprintf("%.6f,%.6f,%g", q.Near.Lat, q.Near.Lon, q.RadiusKm)
	}
	return fmt.Sprintf("search:%d:%s:%s:%s:%d:%d", gen, q.Mode, text, near, q.Page, q.Size)
}

func ratingsKey(gen int64, viewID uuid.UUID, pg domain.PageQuery) string {
	return fmt.Sprintf("ratings:%s:%d:%d:%d", viewID, gen, pg.Page, pg.Size)
}
