package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"spherelink/internal/app"
	"spherelink/internal/assembly"
	"spherelink/internal/domain"
	"spherelink/internal/search"
	"spherelink/internal/storage/memory"
)

type harness struct {
	repo   *countingRepo
	media  *fakeMedia
	cache  *fakeCache
	events *fakeEvents
	cmd    *app.ViewCommands
	q      *app.QueryService
	owner  domain.User
	other  domain.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:   &countingRepo{Store: memory.New()},
		media:  newFakeMedia(),
		cache:  &fakeCache{},
		events: &fakeEvents{},
		owner:  domain.User{ID: uuid.New(), Email: "ana@example.com", FirstName: "Ana", LastName: "Lima"},
		other:  domain.User{ID: uuid.New(), Email: "bo@example.com", FirstName: "Bo"},
	}
	h.repo.PutUser(h.owner)
	h.repo.PutUser(h.other)
	h.cmd = app.NewViewCommands(h.repo, h.repo, h.media, h.cache, h.events)
	h.q = app.NewQueryService(h.repo, h.cache, time.Minute, search.DefaultOptions())
	return h
}

func uploadReq(name string, public bool) app.UploadRequest {
	meta := `{"viewName":"` + name + `","latitude":41.15,"longitude":-8.61,"cityName":"Porto"`
	if !public {
		meta += `,"isPublic":false`
	}
	meta += `}`
	return app.UploadRequest{
		Metadata: meta,
		Fields: map[string]string{
			assembly.PanoramaName.Key(0): "square",
		},
		Files: map[string]assembly.Attachment{
			assembly.ThumbnailField:       {Filename: "t.jpg", Data: []byte("t")},
			assembly.PanoramaImage.Key(0): {Filename: "p.jpg", Data: []byte("p")},
		},
	}
}

func (h *harness) upload(t *testing.T, name string, public bool) domain.View {
	t.Helper()
	v, err := h.cmd.Upload(context.Background(), h.owner, uploadReq(name, public))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return v
}

// ---- tests ----

func TestUploadDefaults(t *testing.T) {
	h := newHarness(t)
	v := h.upload(t, "Ribeira", true)

	if v.UserID != h.owner.ID {
		t.Fatalf("owner = %s, want %s", v.UserID, h.owner.ID)
	}
	if v.DateTime == nil {
		t.Fatal("dateTime should default to the upload time")
	}
	if v.AverageRating == nil || *v.AverageRating != 0 || v.RatingCount != 0 {
		t.Fatalf("new view mean = %v over %d ratings, want 0", v.AverageRating, v.RatingCount)
	}
	if len(v.Panoramas) != 1 || v.Panoramas[0].ImagePath == nil {
		t.Fatalf("unexpected panoramas: %+v", v.Panoramas)
	}
	if len(h.events.topics) != 1 || h.events.topics[0] != domain.TopicViewUploaded {
		t.Fatalf("events = %v", h.events.topics)
	}
}

type failingSave struct{ *memory.Store }

func (failingSave) SaveAggregate(context.Context, domain.View) error {
	return domain.Storage("insert view", errors.New("connection reset"))
}

func TestUploadSaveFailureDeletesFiles(t *testing.T) {
	h := newHarness(t)
	cmd := app.NewViewCommands(failingSave{memory.New()}, h.repo, h.media, nil, nil)

	_, err := cmd.Upload(context.Background(), h.owner, uploadReq("Ribeira", true))
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("err = %v, want storage", err)
	}
	if len(h.media.files) != 0 || len(h.media.deleted) != 2 {
		t.Fatalf("files left %v, deleted %v", h.media.files, h.media.deleted)
	}
}

func TestUploadRejectsBadMetadata(t *testing.T) {
	h := newHarness(t)
	req := uploadReq("x", true)
	req.Metadata = `{"latitude":1,"longitude":2}`

	_, err := h.cmd.Upload(context.Background(), h.owner, req)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if h.media.n != 0 {
		t.Fatalf("stored %d files for a rejected upload", h.media.n)
	}
}

func TestAddRatingRunningMean(t *testing.T) {
	h := newHarness(t)
	v := h.upload(t, "Ribeira", true)
	ctx := context.Background()

	var mean float64
	for _, s := range []int{3, 5, 4} {
		var err error
		if mean, err = h.cmd.AddRating(ctx, v.ID, s, nil, h.other.ID); err != nil {
			t.Fatalf("rate %d: %v", s, err)
		}
	}
	if mean != 4.0 {
		t.Fatalf("mean = %v, want 4", mean)
	}
	mean, err := h.cmd.AddRating(ctx, v.ID, 2, ptr("meh"), h.other.ID)
	if err != nil || mean != 3.5 {
		t.Fatalf("mean = %v err = %v, want 3.5", mean, err)
	}
}

func TestAddRatingRejectsInvalid(t *testing.T) {
	h := newHarness(t)
	v := h.upload(t, "Ribeira", true)
	ctx := context.Background()

	cases := []struct {
		stars   int
		comment *string
	}{
		{0, nil},
		{6, nil},
		{3, ptr(strings.Repeat("a", domain.MaxCommentLength+1))},
	}
	for _, c := range cases {
		if _, err := h.cmd.AddRating(ctx, v.ID, c.stars, c.comment, h.other.ID); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("stars %d: err = %v, want validation", c.stars, err)
		}
	}
	page, err := h.q.ListRatings(ctx, v.ID, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalElements != 0 {
		t.Fatalf("recorded %d ratings, want none", page.TotalElements)
	}
}

func TestAddRatingUnknownView(t *testing.T) {
	h := newHarness(t)
	_, err := h.cmd.AddRating(context.Background(), uuid.New(), 4, nil, h.other.ID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestDeleteByOtherUserForbidden(t *testing.T) {
	h := newHarness(t)
	v := h.upload(t, "Ribeira", true)
	ctx := context.Background()

	if err := h.cmd.Delete(ctx, h.other.ID, v.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
	if len(h.media.deleted) != 0 {
		t.Fatalf("media deleted on a forbidden request: %v", h.media.deleted)
	}
	if err := h.cmd.Delete(ctx, h.owner.ID, v.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.repo.LoadAggregate(ctx, v.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("view still present: %v", err)
	}
	if len(h.media.files) != 0 {
		t.Fatalf("media left behind: %v", h.media.files)
	}
}

func TestUpdatePartial(t *testing.T) {
	h := newHarness(t)
	v := h.upload(t, "Ribeira", true)

	got, err := h.cmd.Update(context.Background(), h.owner.ID, v.ID, app.UpdateRequest{
		Name:        ptr("  "),
		Description: ptr("by the river"),
		Latitude:    ptr(41.2),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Ribeira" || got.Description != "by the river" || got.Latitude != 41.2 || got.Longitude != -8.61 {
		t.Fatalf("unexpected view after update: %+v", got)
	}
}

func TestUpdateRejectsBadCoordinates(t *testing.T) {
	h := newHarness(t)
	v := h.upload(t, "Ribeira", true)
	_, err := h.cmd.Update(context.Background(), h.owner.ID, v.ID, app.UpdateRequest{Latitude: ptr(91.0)})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestUpdateByOtherUserForbidden(t *testing.T) {
	h := newHarness(t)
	v := h.upload(t, "Ribeira", true)
	_, err := h.cmd.Update(context.Background(), h.other.ID, v.ID, app.UpdateRequest{Name: ptr("mine")})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestUpdateThumbnailSupersededDeleteFailureIgnored(t *testing.T) {
	h := newHarness(t)
	v := h.upload(t, "Ribeira", true)
	old := *v.ThumbnailPath
	h.media.failDel = true

	got, err := h.cmd.Update(context.Background(), h.owner.ID, v.ID, app.UpdateRequest{
		Thumbnail: &assembly.Attachment{Filename: "new.png", Data: []byte("n")},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got.ThumbnailPath == nil || *got.ThumbnailPath == old {
		t.Fatalf("thumbnail not replaced: %v", got.ThumbnailPath)
	}
	if len(h.media.deleted) != 1 || h.media.deleted[0] != old {
		t.Fatalf("deleted = %v, want [%s]", h.media.deleted, old)
	}
}

func TestUpdateProfileImagePropagates(t *testing.T) {
	h := newHarness(t)
	old := "Uploads/users_profile_pics/profile_old.jpg"
	h.owner.ProfileImagePath = &old
	h.repo.PutUser(h.owner)
	v := h.upload(t, "Ribeira", true)
	if v.CreatorProfileImagePath != old {
		t.Fatalf("creator image = %q, want the user's", v.CreatorProfileImagePath)
	}

	path, err := h.cmd.UpdateProfileImage(context.Background(), h.owner, assembly.Attachment{Filename: "me.png", Data: []byte("me")})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := h.repo.LoadAggregate(context.Background(), v.ID)
	if got.CreatorProfileImagePath != path {
		t.Fatalf("view creator image = %q, want %q", got.CreatorProfileImagePath, path)
	}
	if len(h.media.deleted) != 1 || h.media.deleted[0] != old {
		t.Fatalf("deleted = %v, want the old image", h.media.deleted)
	}
}

func TestUpdateProfileImageKeepsRemoteURL(t *testing.T) {
	h := newHarness(t)
	h.owner.ProfileImagePath = ptr("https://cdn.example.com/a.png")
	h.repo.PutUser(h.owner)

	if _, err := h.cmd.UpdateProfileImage(context.Background(), h.owner, assembly.Attachment{Filename: "me.png", Data: []byte("me")}); err != nil {
		t.Fatal(err)
	}
	if len(h.media.deleted) != 0 {
		t.Fatalf("remote image must not be deleted: %v", h.media.deleted)
	}
}
