package archive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stargate/internal/config"
	"stargate/internal/db"
	"stargate/internal/engine"
	"stargate/internal/migrate"
	"stargate/internal/repo"
)

func newTestEngine(t *testing.T) engine.Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn, db.SQLite))
	e := engine.New(repo.Repo{DB: conn, Driver: db.SQLite}, config.Default())
	e.Now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	_, err = e.CreatePerson(context.Background(), "John Doe")
	require.NoError(t, err)
	return e
}

type putRecord struct {
	method      string
	path        string
	contentType string
	body        string
}

func fakeS3(t *testing.T) (*httptest.Server, *[]putRecord) {
	t.Helper()
	var mu sync.Mutex
	var puts []putRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		puts = append(puts, putRecord{method: r.Method, path: r.URL.Path, contentType: r.Header.Get("Content-Type"), body: string(body)})
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &puts
}

func TestKeyFormat(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 5, 0, time.UTC)
	key := Key("rosters/", now)
	assert.True(t, strings.HasPrefix(key, "rosters/roster-20240301T123005Z-"), key)
	assert.True(t, strings.HasSuffix(key, ".json"), key)
	assert.NotEqual(t, key, Key("rosters/", now))
}

func TestExportToS3(t *testing.T) {
	e := newTestEngine(t)
	srv, puts := fakeS3(t)

	store, err := NewS3Store(context.Background(), S3Config{
		Bucket:          "roster-bucket",
		Endpoint:        srv.URL,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      srv.Client(),
	})
	require.NoError(t, err)

	key, err := Export(context.Background(), e, store, "rosters/")
	require.NoError(t, err)
	require.Len(t, *puts, 1)

	got := (*puts)[0]
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/roster-bucket/"+key, got.path)
	assert.Equal(t, "application/json", got.contentType)
	assert.Contains(t, got.body, "John Doe")
}

func TestExportToDir(t *testing.T) {
	e := newTestEngine(t)
	root := t.TempDir()

	key, err := Export(context.Background(), e, DirStore{Root: root}, "rosters/")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)
	var roster engine.Roster
	require.NoError(t, json.Unmarshal(data, &roster))
	require.Len(t, roster.People, 1)
	assert.Equal(t, "John Doe", roster.People[0].Person.Name)
}

func TestDirStoreRejectsEscapingKeys(t *testing.T) {
	store := DirStore{Root: t.TempDir()}
	for _, key := range []string{"../evil.json", "/abs.json", ""} {
		assert.Error(t, store.Put(context.Background(), key, []byte("{}"), ""), key)
	}
}

func TestDirStoreRefusesOverwrite(t *testing.T) {
	store := DirStore{Root: t.TempDir()}
	require.NoError(t, store.Put(context.Background(), "a/b.json", []byte("{}"), ""))
	assert.Error(t, store.Put(context.Background(), "a/b.json", []byte("{}"), ""))
}

func TestOpenSelectsTarget(t *testing.T) {
	store, err := Open(context.Background(), config.Archive{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, DirStore{}, store)

	_, err = Open(context.Background(), config.Archive{})
	assert.Error(t, err)

	store, err = Open(context.Background(), config.Archive{Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"})
	require.NoError(t, err)
	assert.IsType(t, &S3Store{}, store)
}
