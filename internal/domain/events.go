package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	TopicViewUploaded = "view.uploaded"
	TopicViewUpdated  = "view.updated"
	TopicViewDeleted  = "view.deleted"
	TopicRatingAdded  = "rating.added"
)

type ViewEvent struct {
	ViewID    uuid.UUID `json:"viewId"`
	UserID    uuid.UUID `json:"userId"`
	Panoramas int       `json:"panoramas,omitempty"`
	At        time.Time `json:"at"`
}

type RatingEvent struct {
	ViewID   uuid.UUID `json:"viewId"`
	RatingID uuid.UUID `json:"ratingId"`
	UserID   uuid.UUID `json:"userId"`
	Stars    int       `json:"stars"`
	Mean     float64   `json:"averageRating"`
	At       time.Time `json:"at"`
}
