package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultFetchTimeout is the default HTTP request timeout for data fetches.
	DefaultFetchTimeout = 60 * time.Second

	// maxResponseBytes limits a response body to 50 MB to prevent OOM.
	maxResponseBytes = 50 << 20
)

// FetchOption configures a Fetcher.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	timeout time.Duration
	client  *http.Client
	apiBase string
}

func defaultFetchConfig() fetchConfig {
	return fetchConfig{
		timeout: DefaultFetchTimeout,
		apiBase: "https://api.github.com",
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) FetchOption {
	return func(c *fetchConfig) {
		c.timeout = d
	}
}

// WithHTTPClient overrides the default HTTP client (useful for testing).
func WithHTTPClient(client *http.Client) FetchOption {
	return func(c *fetchConfig) {
		c.client = client
	}
}

// WithAPIBase overrides the GitHub API endpoint (useful for testing).
func WithAPIBase(base string) FetchOption {
	return func(c *fetchConfig) {
		c.apiBase = strings.TrimRight(base, "/")
	}
}

// Fetcher downloads repository files through a local on-disk cache. A cached
// file is reused purely on presence; delete the cache directory to refresh.
type Fetcher struct {
	cacheRoot string
	client    *http.Client
	apiBase   string
}

// NewFetcher creates a Fetcher caching under cacheRoot.
func NewFetcher(cacheRoot string, opts ...FetchOption) *Fetcher {
	cfg := defaultFetchConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	client := cfg.client
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout}
	}
	return &Fetcher{cacheRoot: cacheRoot, client: client, apiBase: cfg.apiBase}
}

// ToRawURL rewrites a github.com blob/tree URL to its raw.githubusercontent.com
// equivalent. Already-raw and non-GitHub URLs pass through unchanged.
func ToRawURL(u string) string {
	if !strings.Contains(u, "github.com/") || strings.Contains(u, "raw.githubusercontent.com/") {
		return u
	}
	out := strings.Replace(u, "github.com/", "raw.githubusercontent.com/", 1)
	out = strings.Replace(out, "/blob/", "/", 1)
	out = strings.Replace(out, "/tree/", "/", 1)
	return out
}

// parseRepoPath splits a github.com URL into owner, repo, ref and the path
// below the ref. Accepts blob and tree forms.
func parseRepoPath(rawURL string) (owner, repo, ref, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", "", "", fmt.Errorf("parsing repo URL: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// owner/repo/{blob|tree}/ref/path...
	if len(parts) < 4 || (parts[2] != "blob" && parts[2] != "tree") {
		return "", "", "", "", fmt.Errorf("unsupported repo URL layout: %s", rawURL)
	}
	return parts[0], parts[1], parts[3], strings.Join(parts[4:], "/"), nil
}

// FetchCached downloads rawURL unless a cached copy exists under the relative
// cache key, and returns the file bytes either way.
func (f *Fetcher) FetchCached(ctx context.Context, rawURL, cacheKey string) ([]byte, error) {
	local := filepath.Join(f.cacheRoot, filepath.FromSlash(cacheKey))
	if data, err := os.ReadFile(local); err == nil {
		return data, nil
	}

	data, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(local), 0755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	if err := os.WriteFile(local, data, 0644); err != nil {
		return nil, fmt.Errorf("writing cache file: %w", err)
	}
	return data, nil
}

// get performs a single HTTP GET and returns the response body bytes.
func (f *Fetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP GET %s: status %d", u, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", u, err)
	}
	return body, nil
}

// ListTxtDir lists the .txt file names under a github.com directory URL.
// Three strategies are tried in order: the contents API, the recursive git
// tree API, and finally scraping hrefs out of the directory's HTML page.
// Results are de-duplicated and returned in first-seen order.
func (f *Fetcher) ListTxtDir(ctx context.Context, dirURL string) ([]string, error) {
	owner, repo, ref, path, err := parseRepoPath(dirURL)
	if err != nil {
		return nil, err
	}

	if names, err := f.listViaContents(ctx, owner, repo, ref, path); err == nil && len(names) > 0 {
		return names, nil
	}
	if names, err := f.listViaTree(ctx, owner, repo, ref, path); err == nil && len(names) > 0 {
		return names, nil
	}
	return f.listViaHTML(ctx, dirURL)
}

func (f *Fetcher) listViaContents(ctx context.Context, owner, repo, ref, path string) ([]string, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s", f.apiBase, owner, repo, path, ref)
	body, err := f.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var entries []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decoding contents listing: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.Type == "file" && strings.HasSuffix(e.Name, ".txt") {
			names = append(names, e.Name)
		}
	}
	return names, nil
}

func (f *Fetcher) listViaTree(ctx context.Context, owner, repo, ref, path string) ([]string, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1", f.apiBase, owner, repo, ref)
	body, err := f.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var tree struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
		} `json:"tree"`
	}
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, fmt.Errorf("decoding tree listing: %w", err)
	}

	prefix := path + "/"
	var names []string
	for _, e := range tree.Tree {
		if e.Type != "blob" || !strings.HasPrefix(e.Path, prefix) || !strings.HasSuffix(e.Path, ".txt") {
			continue
		}
		rest := strings.TrimPrefix(e.Path, prefix)
		if !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	return names, nil
}

var txtHrefRe = regexp.MustCompile(`href="[^"]*/([^"/]+\.txt)"`)

func (f *Fetcher) listViaHTML(ctx context.Context, dirURL string) ([]string, error) {
	body, err := f.get(ctx, dirURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var names []string
	for _, m := range txtHrefRe.FindAllStringSubmatch(string(body), -1) {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no .txt entries found at %s", dirURL)
	}
	return names, nil
}

// LoadFloorAssets gathers one floor's inputs, from the local data directory
// when configured, otherwise through the cache from the repository. The
// GeoJSON file is optional in both modes; a floor without metadata is not.
func (f *Fetcher) LoadFloorAssets(ctx context.Context, cfg *Config, site, floor string, opts Options) (FloorAssets, error) {
	if cfg.LocalData != "" {
		return loadLocalFloorAssets(filepath.Join(cfg.LocalData, site, floor))
	}

	base := strings.TrimRight(cfg.RepoBase, "/")
	floorURL := fmt.Sprintf("%s/%s/%s", base, site, floor)
	key := func(name string) string { return fmt.Sprintf("%s/%s/%s", site, floor, name) }

	var assets FloorAssets

	info, err := f.FetchCached(ctx, ToRawURL(floorURL+"/floor_info.json"), key("floor_info.json"))
	if err != nil {
		return assets, fmt.Errorf("floor %s/%s: %w", site, floor, err)
	}
	assets.FloorInfo = info

	if gj, err := f.FetchCached(ctx, ToRawURL(floorURL+"/geojson_map.json"), key("geojson_map.json")); err == nil {
		assets.GeoJSON = gj
	}

	names, err := f.ListTxtDir(ctx, floorURL+"/path_data_files")
	if err != nil {
		return assets, fmt.Errorf("listing %s/%s trajectories: %w", site, floor, err)
	}

	for _, name := range names {
		raw := ToRawURL(fmt.Sprintf("%s/path_data_files/%s", floorURL, name))
		data, err := f.FetchCached(ctx, raw, key("path_data_files/"+name))
		if err != nil {
			// A single unreachable file does not sink the floor.
			continue
		}
		assets.Files = append(assets.Files, TrajectoryFile{Name: name, Data: data})
	}
	return assets, nil
}

// loadLocalFloorAssets reads a floor directory laid out the same way the
// repository is: floor_info.json, optional geojson_map.json, and a
// path_data_files/ directory of .txt logs.
func loadLocalFloorAssets(dir string) (FloorAssets, error) {
	var assets FloorAssets

	info, err := os.ReadFile(filepath.Join(dir, "floor_info.json"))
	if err != nil {
		return assets, fmt.Errorf("floor %s: %w", dir, err)
	}
	assets.FloorInfo = info

	if gj, err := os.ReadFile(filepath.Join(dir, "geojson_map.json")); err == nil {
		assets.GeoJSON = gj
	}

	entries, err := os.ReadDir(filepath.Join(dir, "path_data_files"))
	if err != nil {
		return assets, fmt.Errorf("listing %s trajectories: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, "path_data_files", e.Name()))
		if err != nil {
			continue
		}
		assets.Files = append(assets.Files, TrajectoryFile{Name: e.Name(), Data: data})
	}
	return assets, nil
}
