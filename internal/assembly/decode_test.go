package assembly

import (
	"errors"
	"testing"
	"time"

	"spherelink/internal/domain"
)

func TestDecodeMetadata(t *testing.T) {
	v, err := DecodeMetadata(`{"viewName":"Harbour","description":"d","cityName":"Split","creatorName":"Ana",
		"latitude":43.5,"longitude":16.44,"dateTime":"2024-05-01T10:15:00"}`)
	if err != nil {
		t.Fatal(err)
	}
	if v.Name != "Harbour" || v.CityName != "Split" || v.CreatorName != "Ana" || !v.IsPublic {
		t.Fatalf("view = %+v", v)
	}
	want := time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)
	if v.DateTime == nil || !v.DateTime.Equal(want) {
		t.Fatalf("dateTime = %v", v.DateTime)
	}

	v, err = DecodeMetadata(`{"viewName":"x","latitude":0,"longitude":0,"isPublic":false}`)
	if err != nil || v.IsPublic || v.DateTime != nil {
		t.Fatalf("view = %+v err = %v", v, err)
	}
}

func TestDecodeMetadataRejects(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":     `{`,
		"no name":      `{"latitude":1,"longitude":1}`,
		"bad latitude": `{"viewName":"x","latitude":91,"longitude":1}`,
		"no longitude": `{"viewName":"x","latitude":1}`,
		"bad time":     `{"viewName":"x","latitude":1,"longitude":1,"dateTime":"yesterday"}`,
		"extra brace":  `{"viewName":"x","latitude":1,"longitude":1}}`,
		"extra value":  `{"viewName":"x","latitude":1,"longitude":1} {}`,
	} {
		if _, err := DecodeMetadata(raw); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%s: want validation error, got %v", name, err)
		}
	}
}

func TestDecodeTrailingData(t *testing.T) {
	if _, err := DecodeMetadata("{\"viewName\":\"x\",\"latitude\":1,\"longitude\":1}\n\t "); err != nil {
		t.Fatalf("trailing whitespace rejected: %v", err)
	}
	for _, raw := range []string{"[]]", "[]}", "[] []", "null]"} {
		if _, err := DecodeMarkers(raw); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("DecodeMarkers(%q) = %v, want validation error", raw, err)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{"2024-05-01T10:15:00Z", "2024-05-01T12:15:00+02:00", "2024-05-01T10:15:00.000", "2024-05-01 10:15:00"} {
		got, err := ParseTimestamp(s)
		if err != nil {
			t.Fatalf("%s: %v", s, err)
		}
		if !got.Equal(time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)) {
			t.Fatalf("%s parsed as %v", s, got)
		}
	}
}

func TestDecodeMarkersNull(t *testing.T) {
	ms, err := DecodeMarkers("null")
	if err != nil || len(ms) != 0 {
		t.Fatalf("markers = %v, err = %v", ms, err)
	}
}
