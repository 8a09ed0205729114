package assembly

import (
	"context"

	"github.com/rs/zerolog/log"

	"spherelink/internal/domain"
)

// Attachment is one binary part of a multipart upload.
type Attachment struct {
	Filename string
	Data     []byte
}

// Resolver stores attachments through a MediaStore and remembers every path
// it wrote so a failed request can be rolled back.
type Resolver struct {
	Store  domain.MediaStore
	stored []string
}

// Required stores files[key]. A missing or empty part yields a nil path, not an error.
func (r *Resolver) Required(ctx context.Context, files map[string]Attachment, key string, kind domain.MediaKind) (*string, error) {
	a, ok := files[key]
	if !ok || len(a.Data) == 0 {
		return nil, nil
	}
	p, err := r.store(ctx, a, kind)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Repeated stores every part matching pattern under prefix, probing indices
// until a key is absent. Present but empty parts are skipped.
func (r *Resolver) Repeated(ctx context.Context, files map[string]Attachment, pattern KeyPattern, kind domain.MediaKind, prefix ...int) ([]string, error) {
	has := func(k string) bool { _, ok := files[k]; return ok }
	var out []string
	idx := make([]int, len(prefix)+1)
	copy(idx, prefix)
	for i := range Indices(has, pattern, prefix...) {
		idx[len(prefix)] = i
		a := files[pattern.Key(idx...)]
		if len(a.Data) == 0 {
			continue
		}
		p, err := r.store(ctx, a, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *Resolver) store(ctx context.Context, a Attachment, kind domain.MediaKind) (string, error) {
	rec, err := r.Store.Store(ctx, a.Data, a.Filename, kind)
	if err != nil {
		return "", domain.Storage("could not store "+string(kind)+" attachment", err)
	}
	r.stored = append(r.stored, rec.Path)
	return rec.Path, nil
}

// Stored returns the paths written so far, in write order.
func (r *Resolver) Stored() []string { return append([]string(nil), r.stored...) }

// Discard deletes everything written so far. Failures are logged.
func (r *Resolver) Discard(ctx context.Context) {
	for _, p := range r.stored {
		if err := r.Store.Delete(ctx, p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("discard stored attachment")
		}
	}
	r.stored = nil
}
