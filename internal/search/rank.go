package search

import (
	"cmp"
	"slices"
	"strings"

	"spherelink/internal/domain"
)

// Matches reports whether v is eligible for q: published, matching the text
// query on name, city or creator, and inside the radius for nearby.
func Matches(v domain.View, q domain.SearchQuery) bool {
	if !v.IsPublic {
		return false
	}
	if q.Text != nil {
		needle := strings.ToLower(*q.Text)
		if !strings.Contains(strings.ToLower(v.Name), needle) &&
			!strings.Contains(strings.ToLower(v.CityName), needle) &&
			!strings.Contains(strings.ToLower(v.CreatorName), needle) {
			return false
		}
	}
	if q.Mode == domain.ModeNearby && q.Near != nil {
		return Within(q.Near.Lat, q.Near.Lon, v.Latitude, v.Longitude, q.RadiusKm)
	}
	return true
}

// Apply filters, orders and pages views in memory. Input order is the
// natural order; ties keep it.
func Apply(views []domain.View, q domain.SearchQuery) domain.ViewsPage {
	var hits []domain.View
	for _, v := range views {
		if Matches(v, q) {
			hits = append(hits, v)
		}
	}
	switch q.Mode {
	case domain.ModeRecent:
		slices.SortStableFunc(hits, func(a, b domain.View) int {
			return descNullsLast(a.DateTime == nil, b.DateTime == nil, func() int { return b.DateTime.Compare(*a.DateTime) })
		})
	case domain.ModeMostRated:
		slices.SortStableFunc(hits, func(a, b domain.View) int {
			return descNullsLast(a.AverageRating == nil, b.AverageRating == nil, func() int { return cmp.Compare(*b.AverageRating, *a.AverageRating) })
		})
	}

	page := domain.ViewsPage{
		TotalElements: int64(len(hits)),
		TotalPages:    domain.TotalPages(int64(len(hits)), q.Size),
	}
	from := min(q.Offset(), len(hits))
	to := min(from+q.Size, len(hits))
	page.Items = hits[from:to]
	return page
}

func descNullsLast(aNil, bNil bool, compare func() int) int {
	switch {
	case aNil && bNil:
		return 0
	case aNil:
		return 1
	case bNil:
		return -1
	}
	return compare()
}
