//go:build integration

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	server "spherelink/internal/adapters/http_server"
	"spherelink/internal/adapters/media"
	redisad "spherelink/internal/adapters/redis"
	"spherelink/internal/app"
	"spherelink/internal/domain"
	"spherelink/internal/search"
	mysqlrepo "spherelink/internal/storage/mysql"
)

const secret = "e2e-secret"

// ---------- helpers ----------

func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir()

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env:        []string{"MYSQL_ROOT_PASSWORD=root", "MYSQL_DATABASE=spherelink"},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/spherelink?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		resource.GetPort("3306/tcp"))

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	applyMigrations(t, db)
	return db
}

func bearer(t *testing.T, email string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": email,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + s
}

type envelope struct {
	Status        int             `json:"status"`
	Message       string          `json:"message"`
	Data          json.RawMessage `json:"data"`
	TotalElements *int64          `json:"totalElements"`
}

func call(t *testing.T, req *http.Request) envelope {
	t.Helper()
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer res.Body.Close()
	var out envelope
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != res.StatusCode {
		t.Fatalf("body status %d, code %d", out.Status, res.StatusCode)
	}
	return out
}

// ---------- the test ----------

func TestHTTP_EndToEnd_UploadSearchRate(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	owner := domain.User{ID: uuid.New(), Email: "ana@example.com", FirstName: "Ana", LastName: "Lima"}
	rater := domain.User{ID: uuid.New(), Email: "bo@example.com", FirstName: "Bo"}
	for _, u := range []domain.User{owner, rater} {
		if err := repo.PutUser(ctx, u); err != nil {
			t.Fatalf("PutUser: %v", err)
		}
	}

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	files := media.New(t.TempDir())

	srv := server.New(secret, false)
	srv.Mount("/Uploads/*", files.Handler())
	srv.MountHandlers(&server.Handlers{
		Commands:  app.NewViewCommands(repo, repo, files, cache, nil),
		Queries:   app.NewQueryService(repo, cache, time.Minute, search.DefaultOptions()),
		Identity:  app.NewIdentity(repo),
		BaseURL:   "http://cdn.test",
		MaxUpload: 1 << 20,
	})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	// upload
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("metadata", `{"viewName":"Ribeira","latitude":41.14,"longitude":-8.61,"cityName":"Porto","dateTime":"2024-05-01T10:00:00"}`)
	_ = mw.WriteField("panorama[0][imageName]", "bridge")
	_ = mw.WriteField("panorama[0][markers]", `[{"longitude":-8.61,"latitude":41.14,"selectedIconStyle":"pin","selectedIcon":1,`+
		`"selectedIconColor":4294198070,"selectedIconRotationRadians":0.5,"selectedAction":"INFO"}]`)
	for _, name := range []string{"thumbnailImage", "panoramaImage_0", "bannerImage_0_0_0"} {
		fw, _ := mw.CreateFormFile(name, name+".jpg")
		_, _ = fw.Write([]byte(name))
	}
	_ = mw.Close()
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/spherelink/views", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", bearer(t, owner.Email))
	if out := call(t, req); out.Status != http.StatusOK {
		t.Fatalf("upload: %+v", out)
	}

	// public search sees it
	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/spherelink/views/public?filter=nearby&latitude=41.15&longitude=-8.62", nil)
	out := call(t, req)
	if out.TotalElements == nil || *out.TotalElements != 1 {
		t.Fatalf("search: %+v", out)
	}
	var views []app.ViewDTO
	if err := json.Unmarshal(out.Data, &views); err != nil {
		t.Fatal(err)
	}
	id := views[0].ID

	// rating recomputes the mean and invalidates the cached page
	for _, stars := range []string{"3", "5"} {
		req, _ = http.NewRequest(http.MethodPost, ts.URL+"/spherelink/views/"+id.String()+"/ratings?stars="+stars, nil)
		req.Header.Set("Authorization", bearer(t, rater.Email))
		if out := call(t, req); out.Status != http.StatusOK {
			t.Fatalf("rate: %+v", out)
		}
	}
	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/spherelink/views/public?filter=most_rated", nil)
	out = call(t, req)
	views = nil
	if err := json.Unmarshal(out.Data, &views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 || views[0].AverageRating == nil || *views[0].AverageRating != 4 {
		t.Fatalf("unexpected ranking: %s", out.Data)
	}

	// owner deletes; the view disappears
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/spherelink/views/"+id.String(), nil)
	req.Header.Set("Authorization", bearer(t, owner.Email))
	if out := call(t, req); out.Status != http.StatusOK {
		t.Fatalf("delete: %+v", out)
	}
	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/spherelink/views/"+id.String(), nil)
	if out := call(t, req); out.Status != http.StatusNotFound {
		t.Fatalf("get after delete: %+v", out)
	}
}
