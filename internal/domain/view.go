package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// View is the aggregate root: a published (or private) panorama collection.
// Children hold only their parent's id; the parent owns the child slices.
type View struct {
	ID                      uuid.UUID
	Name                    string
	Description             string
	CreatorName             string
	CityName                string
	CreatorProfileImagePath string
	Latitude                float64
	Longitude               float64
	ThumbnailPath           *string
	IsPublic                bool
	DateTime                *time.Time
	UserID                  uuid.UUID
	AverageRating           *float64
	RatingSum               int64
	RatingCount             int64
	Panoramas               []Panorama
}

type Panorama struct {
	ID        uuid.UUID
	ViewID    uuid.UUID
	Position  int
	Name      string
	ImagePath *string // nil when the image part was missing from the upload
	Markers   []Marker
}

type Marker struct {
	ID           uuid.UUID
	PanoramaID   uuid.UUID
	Position     int
	Longitude    float64
	Latitude     float64
	Label        *string
	SubTitle     *string
	Description  *string
	Address      *string
	PhoneNumber  *string
	IconStyle    string
	Icon         int64
	IconColor    int64
	IconRotation float64 // radians
	Action       string
	NextImageID  *int
	Link         *string
	LinkLabel    *string
	Banners      []BannerImage
}

type BannerImage struct {
	ID        uuid.UUID
	MarkerID  uuid.UUID
	Position  int
	ImagePath string
}

// Counts returns the number of panoramas, markers and banners in the tree.
func (v View) Counts() (panoramas, markers, banners int) {
	for _, p := range v.Panoramas {
		panoramas++
		for _, m := range p.Markers {
			markers++
			banners += len(m.Banners)
		}
	}
	return
}

// MediaPaths lists every stored file referenced by the aggregate, thumbnail first.
func (v View) MediaPaths() []string {
	var out []string
	if v.ThumbnailPath != nil && *v.ThumbnailPath != "" {
		out = append(out, *v.ThumbnailPath)
	}
	for _, p := range v.Panoramas {
		if p.ImagePath != nil && *p.ImagePath != "" {
			out = append(out, *p.ImagePath)
		}
		for _, m := range p.Markers {
			for _, b := range m.Banners {
				if b.ImagePath != "" {
					out = append(out, b.ImagePath)
				}
			}
		}
	}
	return out
}

// CheckOwnership verifies that every child points back at its immediate parent
// and that ids are unique across the tree.
func (v View) CheckOwnership() error {
	if v.ID == uuid.Nil {
		return fmt.Errorf("view has no id")
	}
	seen := map[uuid.UUID]struct{}{v.ID: {}}
	claim := func(id uuid.UUID, what string) error {
		if id == uuid.Nil {
			return fmt.Errorf("%s has no id", what)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%s id %s is not unique", what, id)
		}
		seen[id] = struct{}{}
		return nil
	}
	for _, p := range v.Panoramas {
		if err := claim(p.ID, "panorama"); err != nil {
			return err
		}
		if p.ViewID != v.ID {
			return fmt.Errorf("panorama %d points at view %s, want %s", p.Position, p.ViewID, v.ID)
		}
		for _, m := range p.Markers {
			if err := claim(m.ID, "marker"); err != nil {
				return err
			}
			if m.PanoramaID != p.ID {
				return fmt.Errorf("marker %d of panorama %d has wrong parent", m.Position, p.Position)
			}
			for _, b := range m.Banners {
				if err := claim(b.ID, "banner"); err != nil {
					return err
				}
				if b.MarkerID != m.ID {
					return fmt.Errorf("banner %d of marker %d has wrong parent", b.Position, m.Position)
				}
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the tree; pointer fields are copied by value.
func (v View) Clone() View {
	out := v
	out.ThumbnailPath = clonePtr(v.ThumbnailPath)
	out.DateTime = clonePtr(v.DateTime)
	out.AverageRating = clonePtr(v.AverageRating)
	if v.Panoramas == nil {
		return out
	}
	out.Panoramas = make([]Panorama, len(v.Panoramas))
	for i, p := range v.Panoramas {
		p.ImagePath = clonePtr(p.ImagePath)
		if p.Markers != nil {
			ms := make([]Marker, len(p.Markers))
			for j, m := range p.Markers {
				m.Label, m.SubTitle, m.Description = clonePtr(m.Label), clonePtr(m.SubTitle), clonePtr(m.Description)
				m.Address, m.PhoneNumber = clonePtr(m.Address), clonePtr(m.PhoneNumber)
				m.NextImageID, m.Link, m.LinkLabel = clonePtr(m.NextImageID), clonePtr(m.Link), clonePtr(m.LinkLabel)
				m.Banners = append([]BannerImage(nil), m.Banners...)
				ms[j] = m
			}
			p.Markers = ms
		}
		out.Panoramas[i] = p
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
