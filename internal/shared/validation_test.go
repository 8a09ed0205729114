package shared

import (
	"errors"
	"strings"
	"testing"

	"spherelink/internal/domain"
)

type sample struct {
	Stars   int     `validate:"min=1,max=5"`
	Lat     float64 `validate:"latitude"`
	Comment *string `validate:"omitempty,max=3"`
}

func TestValidateStruct(t *testing.T) {
	if err := ValidateStruct(sample{Stars: 3, Lat: 10}); err != nil {
		t.Fatalf("valid struct rejected: %v", err)
	}

	err := ValidateStruct(sample{Stars: 6})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	if msg := domain.Message(err); !strings.Contains(msg, "Stars") {
		t.Fatalf("message should name the field, got %q", msg)
	}

	long := "abcd"
	if err := ValidateStruct(sample{Stars: 1, Comment: &long}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("long comment accepted: %v", err)
	}
}
