package app

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"spherelink/internal/domain"
)

/********** response shapes **********/

type ViewDTO struct {
	ID                      uuid.UUID     `json:"viewId"`
	Name                    string        `json:"viewName"`
	Description             string        `json:"description"`
	CreatorName             string        `json:"creatorName"`
	CityName                string        `json:"cityName"`
	CreatorProfileImagePath *string       `json:"creatorProfileImagePath"`
	Latitude                float64       `json:"latitude"`
	Longitude               float64       `json:"longitude"`
	ThumbnailImagePath      *string       `json:"thumbnailImagePath"`
	IsPublic                bool          `json:"isPublic"`
	DateTime                *time.Time    `json:"dateTime"`
	UserID                  uuid.UUID     `json:"userId"`
	AverageRating           *float64      `json:"averageRating"`
	RatingCount             int64         `json:"ratingCount"`
	Panoramas               []PanoramaDTO `json:"panoramaImages"`
}

// UserDTO is the public profile; credentials never leave the store.
type UserDTO struct {
	ID               uuid.UUID `json:"userId"`
	Email            string    `json:"email"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	ProfileImagePath *string   `json:"profileImagePath"`
}

type PanoramaDTO struct {
	ID        uuid.UUID   `json:"imageId"`
	Position  int         `json:"position"`
	Name      string      `json:"imageName"`
	ImagePath *string     `json:"imagePath"`
	Markers   []MarkerDTO `json:"markers"` // null in public listings
}

type MarkerDTO struct {
	ID           uuid.UUID   `json:"markerId"`
	Position     int         `json:"position"`
	Longitude    float64     `json:"longitude"`
	Latitude     float64     `json:"latitude"`
	Label        *string     `json:"label"`
	SubTitle     *string     `json:"subTitle"`
	Description  *string     `json:"description"`
	Address      *string     `json:"address"`
	PhoneNumber  *string     `json:"phoneNumber"`
	IconStyle    string      `json:"selectedIconStyle"`
	Icon         int64       `json:"selectedIcon"`
	IconColor    int64       `json:"selectedIconColor"`
	IconRotation float64     `json:"selectedIconRotationRadians"`
	Action       string      `json:"selectedAction"`
	NextImageID  *int        `json:"nextImageId"`
	Link         *string     `json:"link"`
	LinkLabel    *string     `json:"linkLabel"`
	Banners      []BannerDTO `json:"markerBannerImages"`
}

type BannerDTO struct {
	ID        uuid.UUID `json:"imageId"`
	ImagePath string    `json:"imagePath"`
}

type RatingDTO struct {
	ID        uuid.UUID `json:"ratingId"`
	UserName  string    `json:"userName"`
	Stars     int       `json:"stars"`
	Comment   *string   `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

/********** url rewriting **********/

func isAbsoluteURL(p string) bool { return strings.HasPrefix(p, "http") }

// MediaURL turns a stored path into a URL under baseURL. Backslashes are
// normalised; absolute URLs and empty paths pass through.
func MediaURL(baseURL, p string) string {
	if p == "" || isAbsoluteURL(p) {
		return p
	}
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(p, "/")
}

func mediaURLPtr(baseURL string, p *string) *string {
	if p == nil {
		return nil
	}
	u := MediaURL(baseURL, *p)
	return &u
}

/********** mappers **********/

// ToViewDTO maps the full tree with every media path rewritten under baseURL.
func ToViewDTO(v domain.View, baseURL string) ViewDTO {
	out := viewShell(v, baseURL)
	out.Panoramas = make([]PanoramaDTO, 0, len(v.Panoramas))
	for _, p := range v.Panoramas {
		pd := panoramaShell(p, baseURL)
		pd.Markers = make([]MarkerDTO, 0, len(p.Markers))
		for _, m := range p.Markers {
			pd.Markers = append(pd.Markers, toMarkerDTO(m, baseURL))
		}
		out.Panoramas = append(out.Panoramas, pd)
	}
	return out
}

// ToPublicViewDTO is the search projection: panoramas are listed without markers.
func ToPublicViewDTO(v domain.View, baseURL string) ViewDTO {
	out := viewShell(v, baseURL)
	out.Panoramas = make([]PanoramaDTO, 0, len(v.Panoramas))
	for _, p := range v.Panoramas {
		out.Panoramas = append(out.Panoramas, panoramaShell(p, baseURL))
	}
	return out
}

func ToViewDTOs(vs []domain.View, baseURL string, public bool) []ViewDTO {
	out := make([]ViewDTO, 0, len(vs))
	for _, v := range vs {
		if public {
			out = append(out, ToPublicViewDTO(v, baseURL))
		} else {
			out = append(out, ToViewDTO(v, baseURL))
		}
	}
	return out
}

func viewShell(v domain.View, baseURL string) ViewDTO {
	var creatorImg *string
	if v.CreatorProfileImagePath != "" {
		u := MediaURL(baseURL, v.CreatorProfileImagePath)
		creatorImg = &u
	}
	return ViewDTO{
		ID:                      v.ID,
		Name:                    v.Name,
		Description:             v.Description,
		CreatorName:             v.CreatorName,
		CityName:                v.CityName,
		CreatorProfileImagePath: creatorImg,
		Latitude:                v.Latitude,
		Longitude:               v.Longitude,
		ThumbnailImagePath:      mediaURLPtr(baseURL, v.ThumbnailPath),
		IsPublic:                v.IsPublic,
		DateTime:                v.DateTime,
		UserID:                  v.UserID,
		AverageRating:           v.AverageRating,
		RatingCount:             v.RatingCount,
	}
}

func panoramaShell(p domain.Panorama, baseURL string) PanoramaDTO {
	return PanoramaDTO{
		ID:        p.ID,
		Position:  p.Position,
		Name:      p.Name,
		ImagePath: mediaURLPtr(baseURL, p.ImagePath),
	}
}

func toMarkerDTO(m domain.Marker, baseURL string) MarkerDTO {
	out := MarkerDTO{
		ID:           m.ID,
		Position:     m.Position,
		Longitude:    m.Longitude,
		Latitude:     m.Latitude,
		Label:        m.Label,
		SubTitle:     m.SubTitle,
		Description:  m.Description,
		Address:      m.Address,
		PhoneNumber:  m.PhoneNumber,
		IconStyle:    m.IconStyle,
		Icon:         m.Icon,
		IconColor:    m.IconColor,
		IconRotation: m.IconRotation,
		Action:       m.Action,
		NextImageID:  m.NextImageID,
		Link:         m.Link,
		LinkLabel:    m.LinkLabel,
		Banners:      make([]BannerDTO, 0, len(m.Banners)),
	}
	for _, b := range m.Banners {
		out.Banners = append(out.Banners, BannerDTO{ID: b.ID, ImagePath: MediaURL(baseURL, b.ImagePath)})
	}
	return out
}

func ToRatingDTOs(rs []domain.RatingView) []RatingDTO {
	out := make([]RatingDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, RatingDTO{
			ID:        r.ID,
			UserName:  r.UserName,
			Stars:     r.Stars,
			Comment:   r.Comment,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}

func ToUserDTO(baseURL string, u domain.User) UserDTO {
	return UserDTO{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		ProfileImagePath: mediaURLPtr(baseURL, u.ProfileImagePath),
	}
}
