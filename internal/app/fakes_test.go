package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"spherelink/internal/domain"
	"spherelink/internal/storage/memory"
)

// ---- fakes ----

type fakeMedia struct {
	mu        sync.Mutex
	n         int
	failStore bool
	failDel   bool
	files     map[string]bool
	deleted   []string
}

func newFakeMedia() *fakeMedia { return &fakeMedia{files: map[string]bool{}} }

func (f *fakeMedia) Store(_ context.Context, _ []byte, _ string, kind domain.MediaKind) (domain.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStore {
		return domain.FileRecord{}, errors.New("disk full")
	}
	f.n++
	name := fmt.Sprintf("%s%d.jpg", kind, f.n)
	path := "Uploads/users_views_pics/" + name
	f.files[path] = true
	return domain.FileRecord{Name: name, Path: path}, nil
}

func (f *fakeMedia) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, path)
	if f.failDel {
		return errors.New("permission denied")
	}
	delete(f.files, path)
	return nil
}

// fakeCache round-trips through JSON like the redis adapter does.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func (c *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(_ context.Context, key string, v any, _ int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

func (c *fakeCache) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	if _, err := c.Get(ctx, key, &n); err != nil {
		return 0, err
	}
	n++
	return n, c.Set(ctx, key, n, 0)
}

type fakeEvents struct {
	mu     sync.Mutex
	topics []string
}

func (e *fakeEvents) Publish(_ context.Context, topic string, _ any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.topics = append(e.topics, topic)
	return nil
}

// countingRepo counts repository reads to tell cache hits from misses.
type countingRepo struct {
	*memory.Store
	searches int
	ratings  int
}

func (r *countingRepo) SearchPublic(ctx context.Context, q domain.SearchQuery) (domain.ViewsPage, error) {
	r.searches++
	return r.Store.SearchPublic(ctx, q)
}

func (r *countingRepo) ListRatings(ctx context.Context, id uuid.UUID, pg domain.PageQuery) (domain.RatingsPage, error) {
	r.ratings++
	return r.Store.ListRatings(ctx, id, pg)
}

func ptr[T any](v T) *T { return &v }
