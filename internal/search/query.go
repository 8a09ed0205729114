package search

import (
	"strings"

	"spherelink/internal/domain"
)

// Params is a public search request as received: page is 1-based.
type Params struct {
	Page      int
	Size      int
	Query     string
	Filter    string
	Latitude  *float64
	Longitude *float64
}

type Options struct {
	RadiusKm    float64
	DefaultSize int
	MaxSize     int
}

func DefaultOptions() Options {
	return Options{RadiusKm: 10, DefaultSize: 10, MaxSize: 100}
}

// Normalize clamps paging, resolves the mode and drops inputs the mode
// does not use. nearby without both coordinates degrades to all.
func Normalize(p Params, o Options) domain.SearchQuery {
	if o.DefaultSize <= 0 {
		o.DefaultSize = 10
	}
	q := domain.SearchQuery{
		Mode:     ParseMode(p.Filter),
		RadiusKm: o.RadiusKm,
		Page:     max(p.Page, 1) - 1,
		Size:     p.Size,
	}
	if q.Size < 1 {
		q.Size = o.DefaultSize
	}
	if o.MaxSize > 0 && q.Size > o.MaxSize {
		q.Size = o.MaxSize
	}
	q.Page = domain.ClampPage(q.Page, q.Size)
	if t := strings.TrimSpace(p.Query); t != "" {
		q.Text = &t
	}
	if q.Mode == domain.ModeNearby {
		if p.Latitude == nil || p.Longitude == nil {
			q.Mode = domain.ModeAll
		} else {
			q.Near = &domain.Coords{Lat: *p.Latitude, Lon: *p.Longitude}
		}
	}
	return q
}
