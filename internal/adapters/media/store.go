// Package media keeps uploaded images on the local filesystem.
package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"spherelink/internal/adapters/observability"
	"spherelink/internal/domain"
)

const (
	// PathPrefix starts every path handed out; the HTTP server serves it.
	PathPrefix    = "Uploads"
	viewsSubdir   = "users_views_pics"
	profileSubdir = "users_profile_pics"
	defaultExt    = ".jpg"
)

// Store writes files under Root and returns slash-separated paths of the form
// Uploads/<subdir>/<kind><uuid><ext>.
type Store struct {
	Root string
}

func New(root string) *Store { return &Store{Root: root} }

func subdir(kind domain.MediaKind) string {
	if kind == domain.KindProfile {
		return profileSubdir
	}
	return viewsSubdir
}

func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return defaultExt
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return defaultExt
		}
	}
	return ext
}

func (s *Store) Store(ctx context.Context, data []byte, originalName string, kind domain.MediaKind) (domain.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.FileRecord{}, err
	}
	if len(data) == 0 {
		return domain.FileRecord{}, errors.New("empty file")
	}
	sub := subdir(kind)
	dir := filepath.Join(s.Root, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		observability.ObserveMedia("store", "error")
		return domain.FileRecord{}, fmt.Errorf("create upload dir: %w", err)
	}
	name := string(kind) + uuid.NewString() + extension(originalName)
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		observability.ObserveMedia("store", "error")
		return domain.FileRecord{}, fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		observability.ObserveMedia("store", "error")
		return domain.FileRecord{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		observability.ObserveMedia("store", "error")
		return domain.FileRecord{}, fmt.Errorf("close %s: %w", name, err)
	}
	observability.ObserveMedia("store", "ok")
	log.Debug().Str("file", name).Int("bytes", len(data)).Msg("media stored")
	return domain.FileRecord{Name: name, Path: path.Join(PathPrefix, sub, name)}, nil
}

// Delete removes a file previously returned by Store. Missing files are not an error.
func (s *Store) Delete(_ context.Context, p string) error {
	local, err := s.resolve(p)
	if err != nil {
		observability.ObserveMedia("delete", "error")
		return err
	}
	if err := os.Remove(local); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			observability.ObserveMedia("delete", "missing")
			log.Warn().Str("path", p).Msg("media file does not exist")
			return nil
		}
		observability.ObserveMedia("delete", "error")
		return fmt.Errorf("delete %s: %w", p, err)
	}
	observability.ObserveMedia("delete", "ok")
	return nil
}

// resolve maps a stored path back to the filesystem, refusing anything that
// would land outside Root.
func (s *Store) resolve(p string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(p, `\`, "/"))
	rel, ok := strings.CutPrefix(clean, "/"+PathPrefix+"/")
	if !ok || rel == "" {
		return "", fmt.Errorf("path %q is not a media path", p)
	}
	return filepath.Join(s.Root, filepath.FromSlash(rel)), nil
}

// Handler serves stored files under /Uploads/. Directories answer 404 so
// file names of private views cannot be listed.
func (s *Store) Handler() http.Handler {
	files := http.FileServer(filesOnly{http.Dir(s.Root)})
	return http.StripPrefix("/"+PathPrefix+"/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	}))
}

// filesOnly hides directories, which also stops FileServer redirecting
// "dir" to "dir/".
type filesOnly struct{ fs http.FileSystem }

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	if st, err := file.Stat(); err != nil || st.IsDir() {
		_ = file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}
