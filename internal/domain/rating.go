package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinStars         = 1
	MaxStars         = 5
	MaxCommentLength = 800
)

type Rating struct {
	ID        uuid.UUID
	ViewID    uuid.UUID
	Stars     int
	Comment   *string
	UserID    uuid.UUID
	CreatedAt time.Time
}

// RatingView is a rating joined with its author's display name.
type RatingView struct {
	Rating
	UserName string
}

// Mean returns sum/count, or 0 for an empty set.
func Mean(sum, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count)
}

type User struct {
	ID               uuid.UUID
	Email            string
	FirstName        string
	LastName         string
	ProfileImagePath *string
}

func (u User) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
