package app

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"

	"spherelink/internal/domain"
)

func TestMediaURL(t *testing.T) {
	cases := map[string]string{
		`Uploads\users_views_pics\a.jpg`: "http://h:8080/Uploads/users_views_pics/a.jpg",
		"Uploads/x.jpg":                   "http://h:8080/Uploads/x.jpg",
		"https://cdn/x.jpg":               "https://cdn/x.jpg",
		"":                                "",
	}
	for in, want := range cases {
		if got := MediaURL("http://h:8080/", in); got != want {
			t.Errorf("MediaURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPublicDTOHidesMarkers(t *testing.T) {
	thumb := "Uploads/users_views_pics/thumb_1.jpg"
	v := domain.View{
		ID:            uuid.New(),
		Name:          "Ribeira",
		ThumbnailPath: &thumb,
		Panoramas: []domain.Panorama{{
			ID:      uuid.New(),
			Name:    "square",
			Markers: []domain.Marker{{ID: uuid.New(), Banners: []domain.BannerImage{{ImagePath: "Uploads/b.jpg"}}}},
		}},
	}

	full := ToViewDTO(v, "http://h")
	if len(full.Panoramas[0].Markers) != 1 || full.Panoramas[0].Markers[0].Banners[0].ImagePath != "http://h/Uploads/b.jpg" {
		t.Fatalf("unexpected full dto: %+v", full.Panoramas[0])
	}

	b, err := json.Marshal(ToPublicViewDTO(v, "http://h"))
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	if !strings.Contains(s, `"markers":null`) || !strings.Contains(s, `"thumbnailImagePath":"http://h/`+thumb+`"`) {
		t.Fatalf("unexpected public json: %s", s)
	}
}

func TestUserDTO(t *testing.T) {
	img := "Uploads/users_profile_pics/profile_1.jpg"
	u := domain.User{ID: uuid.New(), Email: "ana@example.com", FirstName: "Ana", ProfileImagePath: &img}
	raw, err := json.Marshal(ToUserDTO("http://h:8080", u))
	if err != nil {
		t.Fatal(err)
	}
	got := string(raw)
	if !strings.Contains(got, `"profileImagePath":"http://h:8080/Uploads/users_profile_pics/profile_1.jpg"`) ||
		!strings.Contains(got, `"userId":"`+u.ID.String()+`"`) {
		t.Fatalf("unexpected user json: %s", got)
	}
	if d := ToUserDTO("http://h:8080", domain.User{}); d.ProfileImagePath != nil {
		t.Fatalf("missing image should stay null")
	}
}
