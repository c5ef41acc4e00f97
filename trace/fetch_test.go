package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRawURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			"https://github.com/owner/repo/blob/master/data/site1/F1/floor_info.json",
			"https://raw.githubusercontent.com/owner/repo/master/data/site1/F1/floor_info.json",
		},
		{
			"https://github.com/owner/repo/tree/master/data",
			"https://raw.githubusercontent.com/owner/repo/master/data",
		},
		{
			"https://raw.githubusercontent.com/owner/repo/master/a.txt",
			"https://raw.githubusercontent.com/owner/repo/master/a.txt",
		},
		{
			"https://example.com/some/file.txt",
			"https://example.com/some/file.txt",
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToRawURL(tt.in))
	}
}

func TestParseRepoPath(t *testing.T) {
	owner, repo, ref, path, err := parseRepoPath(
		"https://github.com/location-competition/indoor-location-competition-20/tree/master/data/site1/F1")
	require.NoError(t, err)
	assert.Equal(t, "location-competition", owner)
	assert.Equal(t, "indoor-location-competition-20", repo)
	assert.Equal(t, "master", ref)
	assert.Equal(t, "data/site1/F1", path)

	_, _, _, _, err = parseRepoPath("https://github.com/owner/repo")
	assert.Error(t, err)
}

func TestFetchCached(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), WithHTTPClient(srv.Client()))

	data, err := f.FetchCached(context.Background(), srv.URL+"/a.txt", "site/floor/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, 1, hits)

	// Second fetch is served from cache.
	data, err = f.FetchCached(context.Background(), srv.URL+"/a.txt", "site/floor/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, 1, hits)
}

func TestFetchCachedHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), WithHTTPClient(srv.Client()))
	_, err := f.FetchCached(context.Background(), srv.URL+"/missing.txt", "missing.txt")
	assert.Error(t, err)
}

func TestListTxtDirContentsAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo/contents/data/site1/F1" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`[
			{"name": "a.txt", "type": "file"},
			{"name": "sub", "type": "dir"},
			{"name": "b.txt", "type": "file"},
			{"name": "readme.md", "type": "file"}
		]`))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), WithHTTPClient(srv.Client()), WithAPIBase(srv.URL))
	names, err := f.ListTxtDir(context.Background(), "https://github.com/owner/repo/tree/master/data/site1/F1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)
}

func TestListTxtDirTreeFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/owner/repo/git/trees/master":
			_, _ = w.Write([]byte(`{"tree": [
				{"path": "data/site1/F1/a.txt", "type": "blob"},
				{"path": "data/site1/F1/deep/c.txt", "type": "blob"},
				{"path": "data/site1/F2/other.txt", "type": "blob"},
				{"path": "data/site1/F1", "type": "tree"}
			]}`))
		default:
			// Contents API unavailable.
			http.Error(w, "rate limited", http.StatusForbidden)
		}
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), WithHTTPClient(srv.Client()), WithAPIBase(srv.URL))
	names, err := f.ListTxtDir(context.Background(), "https://github.com/owner/repo/tree/master/data/site1/F1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, names)
}

func TestListTxtDirHTMLFallback(t *testing.T) {
	var dirURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/owner/repo/tree/master/data/site1/F1" {
			_, _ = w.Write([]byte(`<html><body>
				<a href="/owner/repo/blob/master/data/site1/F1/x.txt">x</a>
				<a href="/owner/repo/blob/master/data/site1/F1/y.txt">y</a>
				<a href="/owner/repo/blob/master/data/site1/F1/x.txt">x again</a>
			</body></html>`))
			return
		}
		http.Error(w, "api down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	dirURL = srv.URL + "/owner/repo/tree/master/data/site1/F1"

	f := NewFetcher(t.TempDir(), WithHTTPClient(srv.Client()), WithAPIBase(srv.URL))
	names, err := f.ListTxtDir(context.Background(), dirURL)
	require.NoError(t, err)
	assert.Equal(t, []string{"x.txt", "y.txt"}, names)
}

func TestLoadLocalFloorAssets(t *testing.T) {
	dir := t.TempDir()
	floorDir := filepath.Join(dir, "site1", "F1")
	require.NoError(t, os.MkdirAll(filepath.Join(floorDir, "path_data_files"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(floorDir, "floor_info.json"), testFloorInfo, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(floorDir, "path_data_files", "walk.txt"), buildLog(2), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(floorDir, "path_data_files", "notes.md"), []byte("x"), 0644))

	cfg := &Config{LocalData: dir}
	f := NewFetcher(t.TempDir())
	assets, err := f.LoadFloorAssets(context.Background(), cfg, "site1", "F1", DefaultOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, assets.FloorInfo)
	assert.Nil(t, assets.GeoJSON)
	require.Len(t, assets.Files, 1)
	assert.Equal(t, "walk.txt", assets.Files[0].Name)
}
