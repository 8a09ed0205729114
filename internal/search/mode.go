package search

import (
	"strings"

	"spherelink/internal/domain"
)

// ParseMode maps a filter parameter onto a search mode. Unknown or empty
// values fall back to ModeAll.
func ParseMode(s string) domain.SearchMode {
	switch m := domain.SearchMode(strings.ToLower(strings.TrimSpace(s))); m {
	case domain.ModeRecent, domain.ModeMostRated, domain.ModeNearby:
		return m
	}
	return domain.ModeAll
}
