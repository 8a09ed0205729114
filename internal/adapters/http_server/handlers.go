// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"spherelink/internal/app"
	"spherelink/internal/assembly"
	"spherelink/internal/domain"
	"spherelink/internal/search"
)

type Handlers struct {
	Commands  *app.ViewCommands
	Queries   *app.QueryService
	Identity  *app.Identity
	BaseURL   string
	MaxUpload int64
	Limiter   *RateLimiter // nil disables limiting
}

// envelope is the body of every API response.
type envelope struct {
	Status        int    `json:"status"`
	Message       string `json:"message"`
	Data          any    `json:"data,omitempty"`
	TotalPages    *int   `json:"totalPages,omitempty"`
	TotalElements *int64 `json:"totalElements,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	mutating := func(r chi.Router) chi.Router {
		if h.Limiter != nil {
			return r.With(h.Limiter.Middleware)
		}
		return r
	}

	s.mux.Route("/spherelink", func(r chi.Router) {
		r.Get("/views/public", h.searchPublic)
		r.Get("/views", h.listOwn)
		r.Get("/views/{id}", h.getView)
		r.Get("/views/{id}/ratings", h.listRatings)
		r.Get("/user", h.getUser)
		r.Get("/users/{id}", h.getUserByID)

		m := mutating(r)
		m.With(LimitBody(h.MaxUpload)).Post("/views", h.uploadView)
		m.With(LimitBody(h.MaxUpload)).Put("/views/{id}", h.updateView)
		m.Delete("/views/{id}", h.deleteView)
		m.Post("/views/{id}/ratings", h.addRating)
		m.With(LimitBody(h.MaxUpload)).Put("/users/profile", h.updateProfile)
	})
}

/********** response writing **********/

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= 500 {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		log.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, r, status, envelope{Status: status, Message: domain.Message(err)})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCacheable answers 304 when the client already holds this version.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeError(w, r, domain.ErrInternal)
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func writeOK(w http.ResponseWriter, r *http.Request, msg string, data any) {
	writeJSON(w, r, http.StatusOK, envelope{Status: http.StatusOK, Message: msg, Data: data})
}

/********** request reading **********/

func (h *Handlers) user(r *http.Request) (domain.User, error) {
	return h.Identity.CurrentUser(r.Context(), EmailFrom(r.Context()))
}

// caller resolves the optional user on public routes; unknown users browse
// anonymously.
func (h *Handlers) caller(r *http.Request) *uuid.UUID {
	if EmailFrom(r.Context()) == "" {
		return nil
	}
	u, err := h.user(r)
	if err != nil {
		return nil
	}
	return &u.ID
}

func viewID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, domain.Validation("invalid view id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func optFloat(raw, name string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, domain.Validation("%s must be a number", name)
	}
	return &f, nil
}

/********** handlers **********/

func (h *Handlers) uploadView(w http.ResponseWriter, r *http.Request) {
	user, err := h.user(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	form, err := readMultipart(r, h.MaxUpload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.Commands.Upload(r.Context(), user, app.UploadRequest{
		Metadata: form.Fields[assembly.MetadataField],
		Fields:   form.Fields,
		Files:    form.Files,
	}); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, "View data uploaded successfully", nil)
}

func (h *Handlers) listOwn(w http.ResponseWriter, r *http.Request) {
	user, err := h.user(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views, err := h.Queries.ListOwn(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, "Published views retrieved successfully", app.ToViewDTOs(views, h.BaseURL, false))
}

func (h *Handlers) getView(w http.ResponseWriter, r *http.Request) {
	id, err := viewID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.Queries.GetView(r.Context(), id, h.caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, envelope{Status: http.StatusOK, Message: "View retrieved successfully", Data: app.ToViewDTO(v, h.BaseURL)})
}

func (h *Handlers) updateView(w http.ResponseWriter, r *http.Request) {
	user, err := h.user(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := viewID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	form, err := readMultipart(r, h.MaxUpload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := app.UpdateRequest{}
	if v, ok := form.Fields["viewName"]; ok {
		req.Name = &v
	}
	if v, ok := form.Fields["description"]; ok {
		req.Description = &v
	}
	if req.Latitude, err = optFloat(form.Fields["latitude"], "latitude"); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Longitude, err = optFloat(form.Fields["longitude"], "longitude"); err != nil {
		writeError(w, r, err)
		return
	}
	if f, ok := form.Files[assembly.ThumbnailField]; ok {
		req.Thumbnail = &f
	}

	v, err := h.Commands.Update(r.Context(), user.ID, id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, "View updated successfully", app.ToViewDTO(v, h.BaseURL))
}

func (h *Handlers) deleteView(w http.ResponseWriter, r *http.Request) {
	user, err := h.user(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := viewID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Commands.Delete(r.Context(), user.ID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, "View deleted successfully", nil)
}

func (h *Handlers) searchPublic(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := search.Params{
		Page:   queryInt(r, "page"),
		Size:   queryInt(r, "size"),
		Query:  q.Get("query"),
		Filter: q.Get("filter"),
	}
	// unparsable coordinates count as absent, which degrades nearby to all
	p.Latitude, _ = optFloat(q.Get("latitude"), "latitude")
	p.Longitude, _ = optFloat(q.Get("longitude"), "longitude")

	page, _, err := h.Queries.Search(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, envelope{
		Status:        http.StatusOK,
		Message:       "Public views retrieved successfully",
		Data:          app.ToViewDTOs(page.Items, h.BaseURL, true),
		TotalPages:    &page.TotalPages,
		TotalElements: &page.TotalElements,
	})
}

func (h *Handlers) addRating(w http.ResponseWriter, r *http.Request) {
	user, err := h.user(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := viewID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stars, err := strconv.Atoi(strings.TrimSpace(r.FormValue("stars")))
	if err != nil {
		writeError(w, r, domain.Validation("stars must be an integer between %d and %d", domain.MinStars, domain.MaxStars))
		return
	}
	var comment *string
	if c := r.FormValue("comment"); c != "" {
		comment = &c
	}

	mean, err := h.Commands.AddRating(r.Context(), id, stars, comment, user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, "Rating submitted successfully", map[string]float64{"averageRating": mean})
}

func (h *Handlers) listRatings(w http.ResponseWriter, r *http.Request) {
	if _, err := h.user(r); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := viewID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.Queries.ListRatings(r.Context(), id, queryInt(r, "page"), queryInt(r, "size"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, envelope{
		Status:        http.StatusOK,
		Message:       "Ratings retrieved successfully",
		Data:          app.ToRatingDTOs(page.Items),
		TotalPages:    &page.TotalPages,
		TotalElements: &page.TotalElements,
	})
}

func (h *Handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.user(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	form, err := readMultipart(r, h.MaxUpload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	path, err := h.Commands.UpdateProfileImage(r.Context(), user, form.Files["profileImage"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, "Profile updated successfully", map[string]string{"profileImagePath": app.MediaURL(h.BaseURL, path)})
}

// getUser returns the profile for ?email=, or the caller's own profile when
// the parameter is absent. Both user lookups need a signed-in caller.
func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	me, err := h.user(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u := me
	if email := r.URL.Query().Get("email"); email != "" {
		if u, err = h.Identity.UserByEmail(r.Context(), email); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeOK(w, r, "User fetched successfully", app.ToUserDTO(h.BaseURL, u))
}

func (h *Handlers) getUserByID(w http.ResponseWriter, r *http.Request) {
	if _, err := h.user(r); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, domain.Validation("invalid user id %q", chi.URLParam(r, "id")))
		return
	}
	u, err := h.Identity.UserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, "User fetched successfully", app.ToUserDTO(h.BaseURL, u))
}
