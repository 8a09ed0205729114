package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"spherelink/internal/adapters/observability"
	"spherelink/internal/assembly"
	"spherelink/internal/domain"
	"spherelink/internal/shared"
)

type ViewCommands struct {
	repo      domain.ViewRepository
	users     domain.UserDirectory
	media     domain.MediaStore
	cache     domain.Cache
	events    domain.EventPublisher
	assembler *assembly.Assembler
	now       func() time.Time
}

func NewViewCommands(r domain.ViewRepository, u domain.UserDirectory, m domain.MediaStore, c domain.Cache, e domain.EventPublisher) *ViewCommands {
	return &ViewCommands{
		repo:      r,
		users:     u,
		media:     m,
		cache:     c,
		events:    e,
		assembler: assembly.NewAssembler(m),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// UploadRequest is the decoded multipart body of an upload.
type UploadRequest struct {
	Metadata string
	Fields   map[string]string
	Files    map[string]assembly.Attachment
}

// Upload assembles and persists a new view owned by user. Files stored for a
// view that fails to persist are deleted again.
func (s *ViewCommands) Upload(ctx context.Context, user domain.User, req UploadRequest) (domain.View, error) {
	shell, err := assembly.DecodeMetadata(req.Metadata)
	if err != nil {
		observability.ObserveUpload("rejected", 0, 0, 0)
		return domain.View{}, err
	}
	shell.UserID = user.ID
	if shell.DateTime == nil {
		now := s.now()
		shell.DateTime = &now
	}
	if shell.CreatorProfileImagePath == "" && user.ProfileImagePath != nil {
		shell.CreatorProfileImagePath = *user.ProfileImagePath
	}
	var mean float64
	shell.AverageRating = &mean

	v, err := s.assembler.Assemble(ctx, assembly.AssembleInput{Shell: shell, Fields: req.Fields, Files: req.Files})
	if err != nil {
		observability.ObserveUpload(uploadOutcome(err), 0, 0, 0)
		return domain.View{}, err
	}
	if err := s.repo.SaveAggregate(ctx, v); err != nil {
		s.deleteFiles(context.WithoutCancel(ctx), v.MediaPaths())
		observability.ObserveUpload("error", 0, 0, 0)
		return domain.View{}, err
	}

	p, m, b := v.Counts()
	observability.ObserveUpload("ok", p, m, b)
	log.Info().Str("view", v.ID.String()).Str("user", user.ID.String()).
		Int("panoramas", p).Int("markers", m).Int("banners", b).Msg("view uploaded")

	bump(ctx, s.cache, searchGenKey)
	s.publish(ctx, domain.TopicViewUploaded, domain.ViewEvent{ViewID: v.ID, UserID: user.ID, Panoramas: p, At: s.now()})
	return v, nil
}

func uploadOutcome(err error) string {
	if errors.Is(err, domain.ErrValidation) {
		return "rejected"
	}
	return "error"
}

type UpdateRequest struct {
	Name        *string
	Description *string
	Latitude    *float64 `validate:"omitempty,latitude"`
	Longitude   *float64 `validate:"omitempty,longitude"`
	Thumbnail   *assembly.Attachment
}

// Update applies a partial update. Blank strings leave the field unchanged.
// A replaced thumbnail is deleted only after the new one is persisted; that
// delete may fail without failing the update.
func (s *ViewCommands) Update(ctx context.Context, userID, viewID uuid.UUID, req UpdateRequest) (domain.View, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return domain.View{}, err
	}
	v, err := s.repo.LoadAggregate(ctx, viewID)
	if err != nil {
		return domain.View{}, err
	}
	if v.UserID != userID {
		return domain.View{}, domain.Forbidden("Not authorized to update this view")
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		v.Name = *req.Name
	}
	if req.Description != nil && strings.TrimSpace(*req.Description) != "" {
		v.Description = *req.Description
	}
	if req.Latitude != nil {
		v.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		v.Longitude = *req.Longitude
	}

	var stored, superseded *string
	if req.Thumbnail != nil && len(req.Thumbnail.Data) > 0 {
		rec, err := s.media.Store(ctx, req.Thumbnail.Data, req.Thumbnail.Filename, domain.KindThumbnail)
		if err != nil {
			return domain.View{}, domain.Storage("could not store thumbnail", err)
		}
		stored = &rec.Path
		superseded, v.ThumbnailPath = v.ThumbnailPath, stored
	}

	if err := s.repo.UpdateView(ctx, v); err != nil {
		if stored != nil {
			s.deleteFiles(context.WithoutCancel(ctx), []string{*stored})
		}
		return domain.View{}, err
	}
	if superseded != nil && *superseded != "" {
		s.deleteFiles(ctx, []string{*superseded})
	}

	log.Info().Str("view", v.ID.String()).Str("user", userID.String()).Msg("view updated")
	bump(ctx, s.cache, searchGenKey)
	s.publish(ctx, domain.TopicViewUpdated, domain.ViewEvent{ViewID: v.ID, UserID: userID, At: s.now()})
	return v, nil
}

// Delete removes the view's media and then the aggregate. Media that cannot
// be deleted is logged and left behind.
func (s *ViewCommands) Delete(ctx context.Context, userID, viewID uuid.UUID) error {
	v, err := s.repo.LoadAggregate(ctx, viewID)
	if err != nil {
		return err
	}
	if v.UserID != userID {
		return domain.Forbidden("Not authorized to delete this view")
	}
	s.deleteFiles(ctx, v.MediaPaths())
	if err := s.repo.DeleteView(ctx, viewID); err != nil {
		return err
	}

	log.Info().Str("view", viewID.String()).Str("user", userID.String()).Msg("view deleted")
	bump(ctx, s.cache, searchGenKey, ratingsGenKey(viewID))
	s.publish(ctx, domain.TopicViewDeleted, domain.ViewEvent{ViewID: viewID, UserID: userID, At: s.now()})
	return nil
}

type ratingInput struct {
	Stars   int     `validate:"min=1,max=5"`
	Comment *string `validate:"omitempty,max=800"`
}

// AddRating validates and records one rating and returns the view's new mean.
// Invalid input is rejected before anything is written.
func (s *ViewCommands) AddRating(ctx context.Context, viewID uuid.UUID, stars int, comment *string, userID uuid.UUID) (float64, error) {
	if comment != nil && strings.TrimSpace(*comment) == "" {
		comment = nil
	}
	if err := shared.ValidateStruct(ratingInput{Stars: stars, Comment: comment}); err != nil {
		observability.ObserveRating("rejected")
		return 0, err
	}
	r := domain.Rating{
		ID:        uuid.New(),
		ViewID:    viewID,
		Stars:     stars,
		Comment:   comment,
		UserID:    userID,
		CreatedAt: s.now(),
	}
	mean, err := s.repo.AddRating(ctx, r)
	if err != nil {
		observability.ObserveRating("error")
		return 0, err
	}
	observability.ObserveRating("ok")
	log.Info().Str("view", viewID.String()).Str("user", userID.String()).Int("stars", stars).
		Float64("mean", mean).Msg("rating added")

	bump(ctx, s.cache, searchGenKey, ratingsGenKey(viewID))
	s.publish(ctx, domain.TopicRatingAdded, domain.RatingEvent{
		ViewID: viewID, RatingID: r.ID, UserID: userID, Stars: stars, Mean: mean, At: r.CreatedAt,
	})
	return mean, nil
}

// UpdateProfileImage stores a new profile image for user and copies its path
// onto every view they created. The previous image is deleted best-effort.
func (s *ViewCommands) UpdateProfileImage(ctx context.Context, user domain.User, img assembly.Attachment) (string, error) {
	if len(img.Data) == 0 {
		return "", domain.Validation("profileImage is required")
	}
	rec, err := s.media.Store(ctx, img.Data, img.Filename, domain.KindProfile)
	if err != nil {
		return "", domain.Storage("could not store profile image", err)
	}
	if err := s.users.UpdateProfileImage(ctx, user.ID, rec.Path); err != nil {
		s.deleteFiles(context.WithoutCancel(ctx), []string{rec.Path})
		return "", err
	}
	if old := user.ProfileImagePath; old != nil && *old != "" && !isAbsoluteURL(*old) {
		s.deleteFiles(ctx, []string{*old})
	}
	log.Info().Str("user", user.ID.String()).Str("path", rec.Path).Msg("profile image updated")
	bump(ctx, s.cache, searchGenKey)
	return rec.Path, nil
}

func (s *ViewCommands) deleteFiles(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := s.media.Delete(ctx, p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("delete media failed")
		}
	}
}

func (s *ViewCommands) publish(ctx context.Context, topic string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, topic, payload); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("event publish failed")
	}
}
