package assembly

import (
	"fmt"
	"iter"
)

// KeyPattern is a fmt template over one or more integer indices.
type KeyPattern string

const (
	PanoramaName    KeyPattern = "panorama[%d][imageName]"
	PanoramaMarkers KeyPattern = "panorama[%d][markers]"
	PanoramaImage   KeyPattern = "panoramaImage_%d"
	BannerImage     KeyPattern = "bannerImage_%d_%d_%d"
)

const (
	ThumbnailField = "thumbnailImage"
	MetadataField  = "metadata"
)

func (p KeyPattern) Key(idx ...int) string {
	args := make([]any, len(idx))
	for i, n := range idx {
		args[i] = n
	}
	return fmt.Sprintf(string(p), args...)
}

// Indices yields 0, 1, 2, ... for as long as exists reports the key built from
// prefix plus the index. The first missing index ends the sequence; later
// indices are never probed.
func Indices(exists func(string) bool, p KeyPattern, prefix ...int) iter.Seq[int] {
	return func(yield func(int) bool) {
		idx := make([]int, len(prefix)+1)
		copy(idx, prefix)
		for i := 0; ; i++ {
			idx[len(prefix)] = i
			if !exists(p.Key(idx...)) {
				return
			}
			if !yield(i) {
				return
			}
		}
	}
}

type PanoramaFields struct {
	Index       int
	ImageName   string
	MarkersJSON string
	HasMarkers  bool
}

// ParsePanoramas groups the flat panorama[i][...] fields by index.
func ParsePanoramas(fields map[string]string) []PanoramaFields {
	has := func(k string) bool { _, ok := fields[k]; return ok }
	var out []PanoramaFields
	for i := range Indices(has, PanoramaName) {
		raw, ok := fields[PanoramaMarkers.Key(i)]
		out = append(out, PanoramaFields{
			Index:       i,
			ImageName:   fields[PanoramaName.Key(i)],
			MarkersJSON: raw,
			HasMarkers:  ok,
		})
	}
	return out
}
