package mysql

// -----------------------------------------------------------------------------
// WRITE STATEMENTS
// -----------------------------------------------------------------------------

const insertViewSQL = `
INSERT INTO views
  (id, user_id, view_name, description, creator_name, city_name, creator_profile_image_path,
   latitude, longitude, thumbnail_image_path, is_public, date_time, average_rating, rating_sum, rating_count)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// Child rows are written in one multi-row INSERT per level; the repo appends
// one tuple per row to these prefixes.
const (
	insertPanoramasPrefix = "INSERT INTO panoramas (id, view_id, pos, image_name, image_path) VALUES "
	panoramaTuple         = "(?,?,?,?,?)"

	insertMarkersPrefix = "INSERT INTO markers\n" +
		"  (id, panorama_id, pos, longitude, latitude, label, sub_title, description, address, phone_number,\n" +
		"   icon_style, icon, icon_color, icon_rotation, action, next_image_id, link, link_label)\nVALUES "
	markerTuple = "(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)"

	insertBannersPrefix = "INSERT INTO banner_images (id, marker_id, pos, image_path) VALUES "
	bannerTuple         = "(?,?,?,?)"
)

const updateViewSQL = `
UPDATE views SET
  view_name            = ?,
  description          = ?,
  latitude             = ?,
  longitude            = ?,
  thumbnail_image_path = ?,
  is_public            = ?
WHERE id = ?
`

// Children go with the view through ON DELETE CASCADE.
const deleteViewSQL = `DELETE FROM views WHERE id = ?`

// Row lock serialises concurrent rating writers for the same view.
const lockRatingTotalsSQL = `SELECT rating_sum, rating_count FROM views WHERE id = ? FOR UPDATE`

const insertRatingSQL = `
INSERT INTO ratings (id, view_id, user_id, stars, comment, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

const updateRatingTotalsSQL = `
UPDATE views SET rating_sum = ?, rating_count = ?, average_rating = ? WHERE id = ?
`

const sumRatingsSQL = `SELECT COALESCE(SUM(stars), 0), COUNT(*) FROM ratings WHERE view_id = ?`

const lockUserSQL = `SELECT 1 FROM users WHERE id = ? FOR UPDATE`

const updateUserImageSQL = `UPDATE users SET profile_image_path = ? WHERE id = ?`

const updateCreatorImageSQL = `UPDATE views SET creator_profile_image_path = ? WHERE user_id = ?`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const viewColumns = `
  v.id, v.user_id, v.view_name, v.description, v.creator_name, v.city_name, v.creator_profile_image_path,
  v.latitude, v.longitude, v.thumbnail_image_path, v.is_public, v.date_time,
  v.average_rating, v.rating_sum, v.rating_count`

const getViewSQL = `SELECT` + viewColumns + `
FROM views v
WHERE v.id = ?`

const listViewsByUserSQL = `SELECT` + viewColumns + `
FROM views v
WHERE v.user_id = ?
ORDER BY v.seq`

const listViewIDsSQL = `SELECT id FROM views ORDER BY seq`

// The IN (...) lists are expanded by the repo.
const (
	panoramasByViewsSQL = `
SELECT id, view_id, pos, image_name, image_path
FROM panoramas
WHERE view_id IN (%s)
ORDER BY view_id, pos`

	markersByViewsSQL = `
SELECT m.id, m.panorama_id, m.pos, m.longitude, m.latitude, m.label, m.sub_title, m.description,
       m.address, m.phone_number, m.icon_style, m.icon, m.icon_color, m.icon_rotation, m.action,
       m.next_image_id, m.link, m.link_label
FROM markers m
JOIN panoramas p ON p.id = m.panorama_id
WHERE p.view_id IN (%s)
ORDER BY m.panorama_id, m.pos`

	bannersByViewsSQL = `
SELECT b.id, b.marker_id, b.pos, b.image_path
FROM banner_images b
JOIN markers m   ON m.id = b.marker_id
JOIN panoramas p ON p.id = m.panorama_id
WHERE p.view_id IN (%s)
ORDER BY b.marker_id, b.pos`
)

// Public search: the WHERE clause is assembled by buildSearch.
const (
	searchSelect = `SELECT` + viewColumns + `
FROM views v
WHERE v.is_public = TRUE`
	searchCount = `SELECT COUNT(*) FROM views v WHERE v.is_public = TRUE`

	searchTextClause = `
  AND (LOWER(v.view_name) LIKE ? OR LOWER(v.city_name) LIKE ? OR LOWER(v.creator_name) LIKE ?)`

	// spherical law of cosines, cosine clamped into [-1, 1]
	searchNearbyClause = `
  AND 6371 * ACOS(LEAST(1, GREATEST(-1,
        COS(RADIANS(?)) * COS(RADIANS(v.latitude)) * COS(RADIANS(v.longitude) - RADIANS(?))
      + SIN(RADIANS(?)) * SIN(RADIANS(v.latitude))))) < ?`

	orderNatural   = "\nORDER BY v.seq"
	orderRecent    = "\nORDER BY v.date_time IS NULL, v.date_time DESC, v.seq"
	orderMostRated = "\nORDER BY v.average_rating DESC, v.seq"
	pageClause     = "\nLIMIT ? OFFSET ?"
)

const countRatingsSQL = `SELECT COUNT(*) FROM ratings WHERE view_id = ?`

const listRatingsSQL = `
SELECT r.id, r.view_id, r.user_id, r.stars, r.comment, r.created_at,
       u.first_name, u.last_name
FROM ratings r
LEFT JOIN users u ON u.id = r.user_id
WHERE r.view_id = ?
ORDER BY r.created_at DESC, r.id DESC
LIMIT ? OFFSET ?`

const viewExistsSQL = `SELECT 1 FROM views WHERE id = ?`

const userByEmailSQL = `
SELECT id, email, first_name, last_name, profile_image_path
FROM users
WHERE email = ?`

const userByIDSQL = `
SELECT id, email, first_name, last_name, profile_image_path
FROM users
WHERE id = ?`
