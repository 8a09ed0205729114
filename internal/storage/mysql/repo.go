package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"spherelink/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// meanOf is the stored mean; a view that never carried one averages its totals.
func meanOf(v domain.View) float64 {
	if v.AverageRating != nil {
		return *v.AverageRating
	}
	return domain.Mean(v.RatingSum, v.RatingCount)
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SaveAggregate writes the view and its whole tree in one transaction.
func (r *Repo) SaveAggregate(ctx context.Context, v domain.View) (err error) {
	if err := v.CheckOwnership(); err != nil {
		return domain.Validation("inconsistent aggregate: %v", err)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Storage("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, insertViewSQL,
		v.ID, v.UserID, v.Name, v.Description, v.CreatorName, v.CityName, v.CreatorProfileImagePath,
		v.Latitude, v.Longitude, valStr(v.ThumbnailPath), v.IsPublic, valTime(v.DateTime),
		meanOf(v), v.RatingSum, v.RatingCount,
	); err != nil {
		return domain.Storage("insert view", err)
	}

	var pTuples, mTuples, bTuples []string
	var pArgs, mArgs, bArgs []any
	for _, p := range v.Panoramas {
		pTuples = append(pTuples, panoramaTuple)
		pArgs = append(pArgs, p.ID, v.ID, p.Position, p.Name, valStr(p.ImagePath))
		for _, m := range p.Markers {
			mTuples = append(mTuples, markerTuple)
			mArgs = append(mArgs,
				m.ID, p.ID, m.Position, m.Longitude, m.Latitude,
				valStr(m.Label), valStr(m.SubTitle), valStr(m.Description), valStr(m.Address), valStr(m.PhoneNumber),
				m.IconStyle, m.Icon, m.IconColor, m.IconRotation, m.Action,
				valInt(m.NextImageID), valStr(m.Link), valStr(m.LinkLabel),
			)
			for _, b := range m.Banners {
				bTuples = append(bTuples, bannerTuple)
				bArgs = append(bArgs, b.ID, m.ID, b.Position, b.ImagePath)
			}
		}
	}
	for _, batch := range []struct {
		what   string
		prefix string
		tuples []string
		args   []any
	}{
		{"panoramas", insertPanoramasPrefix, pTuples, pArgs},
		{"markers", insertMarkersPrefix, mTuples, mArgs},
		{"banners", insertBannersPrefix, bTuples, bArgs},
	} {
		if len(batch.tuples) == 0 {
			continue
		}
		if _, err = tx.ExecContext(ctx, batch.prefix+strings.Join(batch.tuples, ","), batch.args...); err != nil {
			return domain.Storage("insert "+batch.what, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return domain.Storage("commit", err)
	}
	return nil
}

func (r *Repo) UpdateView(ctx context.Context, v domain.View) error {
	_, err := r.db.ExecContext(ctx, updateViewSQL,
		v.Name, v.Description, v.Latitude, v.Longitude, valStr(v.ThumbnailPath), v.IsPublic, v.ID)
	if err != nil {
		return domain.Storage("update view", err)
	}
	return nil
}

func (r *Repo) DeleteView(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, deleteViewSQL, id)
	if err != nil {
		return domain.Storage("delete view", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("view %s not found", id)
	}
	return nil
}

// AddRating locks the view row, appends the rating and advances the running
// totals in one transaction.
func (r *Repo) AddRating(ctx context.Context, rt domain.Rating) (mean float64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, domain.Storage("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var sum, count int64
	if err = tx.QueryRowContext(ctx, lockRatingTotalsSQL, rt.ViewID).Scan(&sum, &count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.NotFound("view %s not found", rt.ViewID)
		}
		return 0, domain.Storage("lock view", err)
	}
	if _, err = tx.ExecContext(ctx, insertRatingSQL,
		rt.ID, rt.ViewID, rt.UserID, rt.Stars, valStr(rt.Comment), rt.CreatedAt.UTC()); err != nil {
		return 0, domain.Storage("insert rating", err)
	}
	sum += int64(rt.Stars)
	count++
	mean = domain.Mean(sum, count)
	if _, err = tx.ExecContext(ctx, updateRatingTotalsSQL, sum, count, mean, rt.ViewID); err != nil {
		return 0, domain.Storage("update totals", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, domain.Storage("commit", err)
	}
	return mean, nil
}

// RecomputeRating rebuilds the running totals from the ratings table.
func (r *Repo) RecomputeRating(ctx context.Context, viewID uuid.UUID) (mean float64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, domain.Storage("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var sum, count int64
	if err = tx.QueryRowContext(ctx, lockRatingTotalsSQL, viewID).Scan(&sum, &count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.NotFound("view %s not found", viewID)
		}
		return 0, domain.Storage("lock view", err)
	}
	if err = tx.QueryRowContext(ctx, sumRatingsSQL, viewID).Scan(&sum, &count); err != nil {
		return 0, domain.Storage("sum ratings", err)
	}
	mean = domain.Mean(sum, count)
	if _, err = tx.ExecContext(ctx, updateRatingTotalsSQL, sum, count, mean, viewID); err != nil {
		return 0, domain.Storage("update totals", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, domain.Storage("commit", err)
	}
	return mean, nil
}

func scanView(sc interface{ Scan(...any) error }) (domain.View, error) {
	var (
		v      domain.View
		thumb  sql.NullString
		dt     sql.NullTime
		rating float64
	)
	if err := sc.Scan(
		&v.ID, &v.UserID, &v.Name, &v.Description, &v.CreatorName, &v.CityName, &v.CreatorProfileImagePath,
		&v.Latitude, &v.Longitude, &thumb, &v.IsPublic, &dt,
		&rating, &v.RatingSum, &v.RatingCount,
	); err != nil {
		return domain.View{}, err
	}
	v.ThumbnailPath = strPtr(thumb)
	if dt.Valid {
		t := dt.Time.UTC()
		v.DateTime = &t
	}
	v.AverageRating = &rating
	return v, nil
}

func (r *Repo) LoadAggregate(ctx context.Context, id uuid.UUID) (domain.View, error) {
	v, err := scanView(r.db.QueryRowContext(ctx, getViewSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.View{}, domain.NotFound("view %s not found", id)
		}
		return domain.View{}, domain.Storage("get view", err)
	}
	views := []domain.View{v}
	if err := attachChildren(ctx, r.db, views, true); err != nil {
		return domain.View{}, err
	}
	return views[0], nil
}

func (r *Repo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.View, error) {
	views, err := r.queryViews(ctx, listViewsByUserSQL, userID)
	if err != nil {
		return nil, domain.Storage("list views", err)
	}
	if err := attachChildren(ctx, r.db, views, true); err != nil {
		return nil, err
	}
	return views, nil
}

func (r *Repo) queryViews(ctx context.Context, q string, args ...any) ([]domain.View, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.View
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// buildSearch renders a normalised query as SQL. The WHERE args are shared by
// the count and page statements.
func buildSearch(q domain.SearchQuery) (where string, args []any, order string) {
	var b strings.Builder
	if q.Text != nil {
		pat := "%" + escapeLike(strings.ToLower(*q.Text)) + "%"
		b.WriteString(searchTextClause)
		args = append(args, pat, pat, pat)
	}
	switch q.Mode {
	case domain.ModeNearby:
		if q.Near != nil {
			b.WriteString(searchNearbyClause)
			args = append(args, q.Near.Lat, q.Near.Lon, q.Near.Lat, q.RadiusKm)
		}
		order = orderNatural
	case domain.ModeRecent:
		order = orderRecent
	case domain.ModeMostRated:
		order = orderMostRated
	default:
		order = orderNatural
	}
	return b.String(), args, order
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func (r *Repo) SearchPublic(ctx context.Context, q domain.SearchQuery) (domain.ViewsPage, error) {
	where, args, order := buildSearch(q)

	var total int64
	if err := r.db.QueryRowContext(ctx, searchCount+where, args...).Scan(&total); err != nil {
		return domain.ViewsPage{}, domain.Storage("count views", err)
	}
	page := domain.ViewsPage{TotalElements: total, TotalPages: domain.TotalPages(total, q.Size)}
	if total == 0 || int64(q.Offset()) >= total {
		return page, nil
	}

	items, err := r.queryViews(ctx, searchSelect+where+order+pageClause, append(args, q.Size, q.Offset())...)
	if err != nil {
		return domain.ViewsPage{}, domain.Storage("search views", err)
	}
	if err := attachChildren(ctx, r.db, items, false); err != nil {
		return domain.ViewsPage{}, err
	}
	page.Items = items
	return page, nil
}

// attachChildren loads panoramas (and optionally markers and banners) for all
// views in three queries and links them by parent id.
func attachChildren(ctx context.Context, db queryer, views []domain.View, withMarkers bool) error {
	if len(views) == 0 {
		return nil
	}
	in := strings.TrimSuffix(strings.Repeat("?,", len(views)), ",")
	ids := make([]any, len(views))
	viewIdx := make(map[uuid.UUID]int, len(views))
	for i, v := range views {
		ids[i] = v.ID
		viewIdx[v.ID] = i
		views[i].Panoramas = nil
	}

	var panos []domain.Panorama
	err := eachRow(ctx, db, fmt.Sprintf(panoramasByViewsSQL, in), ids, func(rows *sql.Rows) error {
		var p domain.Panorama
		var path sql.NullString
		if err := rows.Scan(&p.ID, &p.ViewID, &p.Position, &p.Name, &path); err != nil {
			return err
		}
		p.ImagePath = strPtr(path)
		panos = append(panos, p)
		return nil
	})
	if err != nil {
		return domain.Storage("load panoramas", err)
	}

	markers := map[uuid.UUID][]domain.Marker{}
	if withMarkers {
		banners := map[uuid.UUID][]domain.BannerImage{}
		err = eachRow(ctx, db, fmt.Sprintf(bannersByViewsSQL, in), ids, func(rows *sql.Rows) error {
			var b domain.BannerImage
			if err := rows.Scan(&b.ID, &b.MarkerID, &b.Position, &b.ImagePath); err != nil {
				return err
			}
			banners[b.MarkerID] = append(banners[b.MarkerID], b)
			return nil
		})
		if err != nil {
			return domain.Storage("load banners", err)
		}
		err = eachRow(ctx, db, fmt.Sprintf(markersByViewsSQL, in), ids, func(rows *sql.Rows) error {
			var (
				m                                         domain.Marker
				label, sub, desc, addr, phone, link, lnkL sql.NullString
				next                                      sql.NullInt64
			)
			if err := rows.Scan(&m.ID, &m.PanoramaID, &m.Position, &m.Longitude, &m.Latitude,
				&label, &sub, &desc, &addr, &phone,
				&m.IconStyle, &m.Icon, &m.IconColor, &m.IconRotation, &m.Action,
				&next, &link, &lnkL); err != nil {
				return err
			}
			m.Label, m.SubTitle, m.Description = strPtr(label), strPtr(sub), strPtr(desc)
			m.Address, m.PhoneNumber = strPtr(addr), strPtr(phone)
			m.Link, m.LinkLabel = strPtr(link), strPtr(lnkL)
			if next.Valid {
				n := int(next.Int64)
				m.NextImageID = &n
			}
			m.Banners = banners[m.ID]
			markers[m.PanoramaID] = append(markers[m.PanoramaID], m)
			return nil
		})
		if err != nil {
			return domain.Storage("load markers", err)
		}
	}

	for _, p := range panos {
		p.Markers = markers[p.ID]
		i := viewIdx[p.ViewID]
		views[i].Panoramas = append(views[i].Panoramas, p)
	}
	return nil
}

func eachRow(ctx context.Context, db queryer, q string, args []any, fn func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *Repo) ListRatings(ctx context.Context, viewID uuid.UUID, pg domain.PageQuery) (domain.RatingsPage, error) {
	var one int
	if err := r.db.QueryRowContext(ctx, viewExistsSQL, viewID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RatingsPage{}, domain.NotFound("view %s not found", viewID)
		}
		return domain.RatingsPage{}, domain.Storage("check view", err)
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, countRatingsSQL, viewID).Scan(&total); err != nil {
		return domain.RatingsPage{}, domain.Storage("count ratings", err)
	}
	page := domain.RatingsPage{TotalElements: total, TotalPages: domain.TotalPages(total, pg.Size)}

	err := eachRow(ctx, r.db, listRatingsSQL, []any{viewID, pg.Size, pg.Offset()}, func(rows *sql.Rows) error {
		var (
			rv          domain.RatingView
			comment     sql.NullString
			first, last sql.NullString
		)
		if err := rows.Scan(&rv.ID, &rv.ViewID, &rv.UserID, &rv.Stars, &comment, &rv.CreatedAt, &first, &last); err != nil {
			return err
		}
		rv.Comment = strPtr(comment)
		rv.CreatedAt = rv.CreatedAt.UTC()
		rv.UserName = domain.User{FirstName: first.String, LastName: last.String}.DisplayName()
		page.Items = append(page.Items, rv)
		return nil
	})
	if err != nil {
		return domain.RatingsPage{}, domain.Storage("list ratings", err)
	}
	return page, nil
}

func (r *Repo) ListViewIDs(ctx context.Context) ([]uuid.UUID, error) {
	var out []uuid.UUID
	err := eachRow(ctx, r.db, listViewIDsSQL, nil, func(rows *sql.Rows) error {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		out = append(out, id)
		return nil
	})
	if err != nil {
		return nil, domain.Storage("list view ids", err)
	}
	return out, nil
}

func (r *Repo) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, userByEmailSQL, email))
}

func (r *Repo) UserByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, userByIDSQL, id))
}

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var img sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &img); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.NotFound("User not found")
		}
		return domain.User{}, domain.Storage("get user", err)
	}
	u.ProfileImagePath = strPtr(img)
	return u, nil
}

// UpdateProfileImage sets the user's image and copies it onto every view they created.
func (r *Repo) UpdateProfileImage(ctx context.Context, userID uuid.UUID, path string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Storage("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	var one int
	if err = tx.QueryRowContext(ctx, lockUserSQL, userID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound("User not found")
		}
		return domain.Storage("lock user", err)
	}
	if _, err = tx.ExecContext(ctx, updateUserImageSQL, path, userID); err != nil {
		return domain.Storage("update user", err)
	}
	if _, err = tx.ExecContext(ctx, updateCreatorImageSQL, path, userID); err != nil {
		return domain.Storage("update views", err)
	}
	if err = tx.Commit(); err != nil {
		return domain.Storage("commit", err)
	}
	return nil
}

// PutUser inserts or replaces a user row. The user directory is owned by the
// account service; this exists for seeding and tests.
func (r *Repo) PutUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, email, first_name, last_name, profile_image_path)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  email              = VALUES(email),
  first_name         = VALUES(first_name),
  last_name          = VALUES(last_name),
  profile_image_path = VALUES(profile_image_path)`,
		u.ID, u.Email, u.FirstName, u.LastName, valStr(u.ProfileImagePath))
	return err
}
