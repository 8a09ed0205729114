package assembly

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"spherelink/internal/domain"
	"spherelink/internal/shared"
)

type metadataIn struct {
	ViewName                *string  `json:"viewName" validate:"required"`
	Description             *string  `json:"description"`
	CreatorName             *string  `json:"creatorName"`
	CityName                *string  `json:"cityName"`
	CreatorProfileImagePath *string  `json:"creatorProfileImagePath"`
	Latitude                *float64 `json:"latitude" validate:"required,latitude"`
	Longitude               *float64 `json:"longitude" validate:"required,longitude"`
	IsPublic                *bool    `json:"isPublic"`
	DateTime                *string  `json:"dateTime"`
}

// DecodeMetadata turns the upload's metadata blob into a View shell.
// Absent isPublic means published; absent dateTime stays nil.
func DecodeMetadata(raw string) (domain.View, error) {
	var in metadataIn
	if err := decodeJSON(raw, &in); err != nil {
		return domain.View{}, domain.ValidationCause(err, "metadata is not valid JSON")
	}
	if err := shared.ValidateStruct(in); err != nil {
		return domain.View{}, err
	}
	v := domain.View{
		Name:                    *in.ViewName,
		Description:             deref(in.Description),
		CreatorName:             deref(in.CreatorName),
		CityName:                deref(in.CityName),
		CreatorProfileImagePath: deref(in.CreatorProfileImagePath),
		Latitude:                *in.Latitude,
		Longitude:               *in.Longitude,
		IsPublic:                in.IsPublic == nil || *in.IsPublic,
	}
	if in.DateTime != nil && strings.TrimSpace(*in.DateTime) != "" {
		t, err := ParseTimestamp(*in.DateTime)
		if err != nil {
			return domain.View{}, domain.ValidationCause(err, "dateTime %q is not a timestamp", *in.DateTime)
		}
		v.DateTime = &t
	}
	return v, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts RFC 3339 and zone-less ISO local times (read as UTC).
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, layout := range timestampLayouts {
		t, perr := time.Parse(layout, s)
		if perr == nil {
			return t.UTC(), nil
		}
		err = perr
	}
	return time.Time{}, err
}

type markerIn struct {
	Longitude    *float64 `json:"longitude" validate:"required"`
	Latitude     *float64 `json:"latitude" validate:"required"`
	Label        *string  `json:"label"`
	SubTitle     *string  `json:"subTitle"`
	Description  *string  `json:"description"`
	Address      *string  `json:"address"`
	PhoneNumber  *string  `json:"phoneNumber"`
	IconStyle    *string  `json:"selectedIconStyle" validate:"required"`
	Icon         *int64   `json:"selectedIcon" validate:"required"`
	IconColor    *int64   `json:"selectedIconColor" validate:"required"`
	IconRotation *float64 `json:"selectedIconRotationRadians" validate:"required"`
	Action       *string  `json:"selectedAction" validate:"required"`
	NextImageID  *int     `json:"nextImageId"`
	Link         *string  `json:"link"`
	LinkLabel    *string  `json:"linkLabel"`
}

// DecodeMarkers parses one panorama's marker array. Every marker must carry
// its position and icon fields; nothing is filled in by default.
func DecodeMarkers(raw string) ([]domain.Marker, error) {
	var in []markerIn
	if err := decodeJSON(raw, &in); err != nil {
		return nil, domain.ValidationCause(err, "markers are not a valid JSON array")
	}
	out := make([]domain.Marker, 0, len(in))
	for j, m := range in {
		if err := shared.ValidateStruct(m); err != nil {
			return nil, domain.Validation("marker %d: %s", j, domain.Message(err))
		}
		out = append(out, domain.Marker{
			Position:     j,
			Longitude:    *m.Longitude,
			Latitude:     *m.Latitude,
			Label:        m.Label,
			SubTitle:     m.SubTitle,
			Description:  m.Description,
			Address:      m.Address,
			PhoneNumber:  m.PhoneNumber,
			IconStyle:    *m.IconStyle,
			Icon:         *m.Icon,
			IconColor:    *m.IconColor,
			IconRotation: *m.IconRotation,
			Action:       *m.Action,
			NextImageID:  m.NextImageID,
			Link:         m.Link,
			LinkLabel:    m.LinkLabel,
		})
	}
	return out, nil
}

func decodeJSON(raw string, dst any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
