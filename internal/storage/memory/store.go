// Package memory is an in-process ViewRepository and UserDirectory used by
// STORAGE_DRIVER=memory and by tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"spherelink/internal/domain"
	"spherelink/internal/search"
)

type Store struct {
	mu      sync.RWMutex
	order   []uuid.UUID // insertion order is the natural search order
	views   map[uuid.UUID]domain.View
	ratings map[uuid.UUID][]domain.Rating
	users   map[uuid.UUID]domain.User
}

func New() *Store {
	return &Store{
		views:   map[uuid.UUID]domain.View{},
		ratings: map[uuid.UUID][]domain.Rating{},
		users:   map[uuid.UUID]domain.User{},
	}
}

// PutUser adds or replaces a user record.
func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) SaveAggregate(_ context.Context, v domain.View) error {
	if err := v.CheckOwnership(); err != nil {
		return domain.Validation("inconsistent aggregate: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.views[v.ID]; !ok {
		s.order = append(s.order, v.ID)
	}
	s.views[v.ID] = v.Clone()
	return nil
}

func (s *Store) UpdateView(_ context.Context, v domain.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.views[v.ID]
	if !ok {
		return domain.NotFound("view %s not found", v.ID)
	}
	cur.Name = v.Name
	cur.Description = v.Description
	cur.Latitude = v.Latitude
	cur.Longitude = v.Longitude
	cur.ThumbnailPath = v.ThumbnailPath
	cur.IsPublic = v.IsPublic
	s.views[v.ID] = cur.Clone()
	return nil
}

func (s *Store) DeleteView(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.views[id]; !ok {
		return domain.NotFound("view %s not found", id)
	}
	delete(s.views, id)
	delete(s.ratings, id)
	s.order = slices.DeleteFunc(s.order, func(x uuid.UUID) bool { return x == id })
	return nil
}

// AddRating holds the write lock across the read of the running totals and
// their update, so concurrent ratings for one view never lose an update.
func (s *Store) AddRating(_ context.Context, r domain.Rating) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[r.ViewID]
	if !ok {
		return 0, domain.NotFound("view %s not found", r.ViewID)
	}
	s.ratings[r.ViewID] = append(s.ratings[r.ViewID], r)
	v.RatingSum += int64(r.Stars)
	v.RatingCount++
	mean := domain.Mean(v.RatingSum, v.RatingCount)
	v.AverageRating = &mean
	s.views[v.ID] = v
	return mean, nil
}

func (s *Store) RecomputeRating(_ context.Context, viewID uuid.UUID) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[viewID]
	if !ok {
		return 0, domain.NotFound("view %s not found", viewID)
	}
	var sum int64
	rs := s.ratings[viewID]
	for _, r := range rs {
		sum += int64(r.Stars)
	}
	v.RatingSum, v.RatingCount = sum, int64(len(rs))
	mean := domain.Mean(sum, v.RatingCount)
	v.AverageRating = &mean
	s.views[viewID] = v
	return mean, nil
}

func (s *Store) LoadAggregate(_ context.Context, id uuid.UUID) (domain.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[id]
	if !ok {
		return domain.View{}, domain.NotFound("view %s not found", id)
	}
	return v.Clone(), nil
}

func (s *Store) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.View
	for _, id := range s.order {
		if v := s.views[id]; v.UserID == userID {
			out = append(out, v.Clone())
		}
	}
	return out, nil
}

func (s *Store) SearchPublic(_ context.Context, q domain.SearchQuery) (domain.ViewsPage, error) {
	s.mu.RLock()
	all := make([]domain.View, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, s.views[id].Clone())
	}
	s.mu.RUnlock()
	return search.Apply(all, q), nil
}

func (s *Store) ListRatings(_ context.Context, viewID uuid.UUID, pg domain.PageQuery) (domain.RatingsPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.views[viewID]; !ok {
		return domain.RatingsPage{}, domain.NotFound("view %s not found", viewID)
	}
	rs := slices.Clone(s.ratings[viewID])
	slices.Reverse(rs)
	slices.SortStableFunc(rs, func(a, b domain.Rating) int { return b.CreatedAt.Compare(a.CreatedAt) })

	page := domain.RatingsPage{
		TotalElements: int64(len(rs)),
		TotalPages:    domain.TotalPages(int64(len(rs)), pg.Size),
	}
	from := min(pg.Offset(), len(rs))
	to := min(from+pg.Size, len(rs))
	for _, r := range rs[from:to] {
		page.Items = append(page.Items, domain.RatingView{Rating: r, UserName: s.users[r.UserID].DisplayName()})
	}
	return page, nil
}

func (s *Store) ListViewIDs(_ context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order), nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.NotFound("User not found")
}

func (s *Store) UserByID(_ context.Context, id uuid.UUID) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.NotFound("User not found")
	}
	return u, nil
}

func (s *Store) UpdateProfileImage(_ context.Context, userID uuid.UUID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.NotFound("User not found")
	}
	u.ProfileImagePath = &path
	s.users[userID] = u
	for id, v := range s.views {
		if v.UserID == userID {
			v.CreatorProfileImagePath = path
			s.views[id] = v
		}
	}
	return nil
}
