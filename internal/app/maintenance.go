package app

import (
	"context"

	"github.com/google/uuid"

	"spherelink/internal/domain"
)

// RatingMaintenance rebuilds stored rating totals from the individual ratings.
type RatingMaintenance struct {
	repo  domain.ViewRepository
	cache domain.Cache
}

func NewRatingMaintenance(r domain.ViewRepository, c domain.Cache) *RatingMaintenance {
	return &RatingMaintenance{repo: r, cache: c}
}

// Recompute resets one view's sum, count and mean and returns the mean.
func (m *RatingMaintenance) Recompute(ctx context.Context, viewID uuid.UUID) (float64, error) {
	mean, err := m.repo.RecomputeRating(ctx, viewID)
	if err != nil {
		return 0, err
	}
	bump(ctx, m.cache, ratingsGenKey(viewID))
	return mean, nil
}

// Done invalidates cached search pages once a batch has finished.
func (m *RatingMaintenance) Done(ctx context.Context) {
	bump(ctx, m.cache, searchGenKey)
}
