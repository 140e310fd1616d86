package imagecache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aniways/anipush/internal/assets"
	"github.com/aniways/anipush/internal/fetch"
)

func setupResolver(t *testing.T, embyEnabled bool, embyHost string) (*Resolver, string) {
	t.Helper()
	dir := t.TempDir()
	client, err := fetch.New("")
	if err != nil {
		t.Fatalf("fetch.New failed: %v", err)
	}
	r, err := New(dir, client, embyEnabled, embyHost, "test-key")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r, dir
}

func imageServer(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(assets.PlaceholderJPEG)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewMaterializesPlaceholder(t *testing.T) {
	r, _ := setupResolver(t, false, "")
	if _, err := os.Stat(r.PlaceholderPath()); err != nil {
		t.Errorf("Expected the placeholder file to exist: %v", err)
	}
}

func TestResolveDownloadsAndCaches(t *testing.T) {
	hits := 0
	srv := imageServer(t, &hits)
	r, _ := setupResolver(t, false, "")

	url := srv.URL + "/covers/a.jpg"
	paths := r.Resolve(context.Background(), []string{url}, "")
	if len(paths) != 1 {
		t.Fatalf("Expected one path, got %v", paths)
	}
	if filepath.Base(paths[0]) != "a.jpg" {
		t.Errorf("Unexpected cache name %q", paths[0])
	}
	if _, err := os.Stat(paths[0]); err != nil {
		t.Fatalf("Cached file missing: %v", err)
	}
	if hits != 1 {
		t.Fatalf("Expected one download, got %d", hits)
	}

	// A fresh cached file is served without another request.
	again := r.Resolve(context.Background(), []string{url}, "")
	if len(again) != 1 || again[0] != paths[0] {
		t.Fatalf("Expected the cached path, got %v", again)
	}
	if hits != 1 {
		t.Errorf("Fresh cache hit must not redownload, got %d requests", hits)
	}
}

func TestResolveRedownloadsStaleFile(t *testing.T) {
	hits := 0
	srv := imageServer(t, &hits)
	r, _ := setupResolver(t, false, "")

	url := srv.URL + "/covers/b.jpg"
	paths := r.Resolve(context.Background(), []string{url}, "")
	if len(paths) != 1 || hits != 1 {
		t.Fatalf("Setup download failed: paths=%v hits=%d", paths, hits)
	}

	// Age the file past the TTL.
	stale := time.Now().Add(-TTL - time.Hour)
	if err := os.Chtimes(paths[0], stale, stale); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	r.Resolve(context.Background(), []string{url}, "")
	if hits != 2 {
		t.Errorf("Stale file must be redownloaded, got %d requests", hits)
	}
}

func TestResolveFallsBackToPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()
	r, _ := setupResolver(t, false, "")

	paths := r.Resolve(context.Background(), []string{srv.URL + "/gone.jpg"}, "")
	if len(paths) != 1 || paths[0] != r.PlaceholderPath() {
		t.Errorf("Expected the placeholder, got %v", paths)
	}
}

func TestResolveEmptyQueueYieldsPlaceholder(t *testing.T) {
	r, _ := setupResolver(t, false, "")
	paths := r.Resolve(context.Background(), nil, "")
	if len(paths) != 1 || paths[0] != r.PlaceholderPath() {
		t.Errorf("Expected the placeholder, got %v", paths)
	}
}

func TestResolveTag(t *testing.T) {
	t.Run("Downloads Via Host", func(t *testing.T) {
		var gotPath, gotToken string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotToken = r.Header.Get("X-Emby-Token")
			w.Write(assets.PlaceholderJPEG)
		}))
		defer srv.Close()
		r, dir := setupResolver(t, true, srv.URL)

		paths := r.Resolve(context.Background(), []string{"tag-xyz"}, "series-1")
		want := filepath.Join(dir, "Emby", "tag-xyz.jpg")
		if len(paths) != 1 || paths[0] != want {
			t.Fatalf("Expected %q, got %v", want, paths)
		}
		if gotPath != "/emby/Items/series-1/Images/Primary" {
			t.Errorf("Unexpected image path %q", gotPath)
		}
		if gotToken != "test-key" {
			t.Errorf("Expected the api key header, got %q", gotToken)
		}
	})

	t.Run("Disabled Without Cache Falls Back", func(t *testing.T) {
		r, _ := setupResolver(t, false, "")
		paths := r.Resolve(context.Background(), []string{"tag-xyz"}, "series-1")
		if len(paths) != 1 || paths[0] != r.PlaceholderPath() {
			t.Errorf("Expected the placeholder, got %v", paths)
		}
	})

	t.Run("Disabled With Cached Copy Serves It", func(t *testing.T) {
		r, dir := setupResolver(t, false, "")
		cached := filepath.Join(dir, "Emby", "tag-old.jpg")
		if err := os.MkdirAll(filepath.Dir(cached), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(cached, assets.PlaceholderJPEG, 0o644); err != nil {
			t.Fatal(err)
		}

		paths := r.Resolve(context.Background(), []string{"tag-old"}, "")
		if len(paths) != 1 || paths[0] != cached {
			t.Errorf("Expected the cached copy, got %v", paths)
		}
	})

	t.Run("Missing Series ID Skips Candidate", func(t *testing.T) {
		r, _ := setupResolver(t, true, "http://emby.local")
		paths := r.Resolve(context.Background(), []string{"tag-xyz"}, "")
		if len(paths) != 1 || paths[0] != r.PlaceholderPath() {
			t.Errorf("Expected the placeholder, got %v", paths)
		}
	})
}

func TestResolveDeduplicatesQueue(t *testing.T) {
	hits := 0
	srv := imageServer(t, &hits)
	r, _ := setupResolver(t, false, "")

	url := srv.URL + "/covers/c.jpg"
	paths := r.Resolve(context.Background(), []string{url, url}, "")
	if len(paths) != 1 {
		t.Errorf("Expected one deduplicated path, got %v", paths)
	}
}
