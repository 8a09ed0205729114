package assembly

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"spherelink/internal/domain"
)

type AssembleInput struct {
	Shell  domain.View // metadata with owner, timestamps and visibility already set
	Fields map[string]string
	Files  map[string]Attachment
}

type Assembler struct {
	Store domain.MediaStore
	NewID func() uuid.UUID
}

func NewAssembler(store domain.MediaStore) *Assembler {
	return &Assembler{Store: store, NewID: uuid.New}
}

type parsedPanorama struct {
	fields  PanoramaFields
	markers []domain.Marker
}

// Assemble builds the full View tree from a flat upload. All structured
// payloads are decoded before anything is stored, so a malformed marker list
// leaves no files behind. A storage failure deletes whatever was stored
// earlier in the same call.
func (a *Assembler) Assemble(ctx context.Context, in AssembleInput) (domain.View, error) {
	if t, ok := in.Files[ThumbnailField]; !ok || len(t.Data) == 0 {
		return domain.View{}, domain.Validation("thumbnailImage is required")
	}

	groups := ParsePanoramas(in.Fields)
	parsed := make([]parsedPanorama, 0, len(groups))
	for _, g := range groups {
		var markers []domain.Marker
		if g.HasMarkers {
			ms, err := DecodeMarkers(g.MarkersJSON)
			if err != nil {
				return domain.View{}, domain.Validation("panorama %d: %s", g.Index, domain.Message(err))
			}
			markers = ms
		}
		parsed = append(parsed, parsedPanorama{fields: g, markers: markers})
	}

	res := &Resolver{Store: a.Store}
	v, err := a.build(ctx, res, in, parsed)
	if err != nil {
		res.Discard(context.WithoutCancel(ctx))
		return domain.View{}, err
	}
	return v, nil
}

func (a *Assembler) build(ctx context.Context, res *Resolver, in AssembleInput, parsed []parsedPanorama) (domain.View, error) {
	v := in.Shell
	v.ID = a.NewID()
	v.Panoramas = nil

	thumb, err := res.Required(ctx, in.Files, ThumbnailField, domain.KindThumbnail)
	if err != nil {
		return domain.View{}, err
	}
	v.ThumbnailPath = thumb

	for _, pp := range parsed {
		i := pp.fields.Index
		pano := domain.Panorama{
			ID:       a.NewID(),
			ViewID:   v.ID,
			Position: i,
			Name:     pp.fields.ImageName,
		}
		if pano.ImagePath, err = res.Required(ctx, in.Files, PanoramaImage.Key(i), domain.KindPanorama); err != nil {
			return domain.View{}, err
		}
		if pano.ImagePath == nil {
			log.Debug().Int("panorama", i).Msg("panorama image missing; stored without path")
		}
		for _, m := range pp.markers {
			m.ID = a.NewID()
			m.PanoramaID = pano.ID
			paths, err := res.Repeated(ctx, in.Files, BannerImage, domain.KindBanner, i, m.Position)
			if err != nil {
				return domain.View{}, err
			}
			for k, p := range paths {
				m.Banners = append(m.Banners, domain.BannerImage{
					ID:        a.NewID(),
					MarkerID:  m.ID,
					Position:  k,
					ImagePath: p,
				})
			}
			pano.Markers = append(pano.Markers, m)
		}
		v.Panoramas = append(v.Panoramas, pano)
	}

	if err := v.CheckOwnership(); err != nil {
		return domain.View{}, &domain.Error{Kind: domain.ErrInternal, Msg: "assembled view is inconsistent", Err: err}
	}
	return v, nil
}
