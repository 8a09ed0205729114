package domain

import (
	"context"
	"math"

	"github.com/google/uuid"
)

type ViewRepository interface {
	// Write paths
	SaveAggregate(ctx context.Context, v View) error
	UpdateView(ctx context.Context, v View) error
	DeleteView(ctx context.Context, id uuid.UUID) error
	// AddRating appends r and folds its stars into the view's running sum/count.
	// Implementations serialise concurrent calls for the same view and return the new mean.
	AddRating(ctx context.Context, r Rating) (float64, error)
	RecomputeRating(ctx context.Context, viewID uuid.UUID) (float64, error)

	// Read paths
	LoadAggregate(ctx context.Context, id uuid.UUID) (View, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]View, error)
	SearchPublic(ctx context.Context, q SearchQuery) (ViewsPage, error)
	ListRatings(ctx context.Context, viewID uuid.UUID, pg PageQuery) (RatingsPage, error)
	ListViewIDs(ctx context.Context) ([]uuid.UUID, error)
}

type UserDirectory interface {
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id uuid.UUID) (User, error)
	// UpdateProfileImage stores the new path on the user and on every view they created.
	UpdateProfileImage(ctx context.Context, userID uuid.UUID, path string) error
}

// MediaStore is the binary file collaborator: store(bytes, kind) -> {name, path}, delete(path).
type MediaStore interface {
	Store(ctx context.Context, data []byte, originalName string, kind MediaKind) (FileRecord, error)
	Delete(ctx context.Context, path string) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

type MediaKind string

const (
	KindThumbnail MediaKind = "thumb_"
	KindPanorama  MediaKind = "pano_"
	KindBanner    MediaKind = "banner_"
	KindProfile   MediaKind = "profile_"
)

type FileRecord struct {
	Name string
	Path string
}

// Read models & queries
type SearchMode string

const (
	ModeAll       SearchMode = "all"
	ModeRecent    SearchMode = "recent"
	ModeMostRated SearchMode = "most_rated"
	ModeNearby    SearchMode = "nearby"
)

type Coords struct{ Lat, Lon float64 }

// SearchQuery is a normalised public search. Page is 0-based.
type SearchQuery struct {
	Mode     SearchMode
	Text     *string
	Near     *Coords // set only for ModeNearby
	RadiusKm float64
	Page     int
	Size     int
}

func (q SearchQuery) Offset() int { return ClampPage(q.Page, q.Size) * q.Size }

// PageQuery is 0-based.
type PageQuery struct {
	Page int
	Size int
}

func (p PageQuery) Offset() int { return ClampPage(p.Page, p.Size) * p.Size }

// ClampPage bounds a 0-based page so that page*size cannot overflow an int.
// Such a page lies past any real result set and reads as empty.
func ClampPage(page, size int) int {
	if page < 0 {
		return 0
	}
	if size > 0 {
		page = min(page, math.MaxInt/size)
	}
	return page
}

type ViewsPage struct {
	Items         []View
	TotalElements int64
	TotalPages    int
}

type RatingsPage struct {
	Items         []RatingView
	TotalElements int64
	TotalPages    int
}

// TotalPages is ceil(total/size); 0 when size is not positive.
func TotalPages(total int64, size int) int {
	if size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
