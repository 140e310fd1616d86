// Cover image resolution with a filesystem cache. Candidates are either
// absolute URLs (AniRSS covers) or opaque Emby image tags that need the
// server host and a series id to become a URL. Files older than the TTL
// are stale and redownloaded; downloads are written to a temp path and
// renamed so a failure never leaves a partial file visible.

package imagecache

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"log"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/nfnt/resize"

	"github.com/aniways/anipush/internal/assets"
	"github.com/aniways/anipush/internal/fetch"
)

// TTL after which a cached cover is considered stale.
const TTL = 14 * 24 * time.Hour

// Covers wider than this are downscaled before caching.
const maxCoverWidth = 1000

const userAgent = "aniways/anipush/1.0 (Go)"

// Resolver turns image candidate queues into usable local file paths.
type Resolver struct {
	dir         string
	client      *fetch.Client
	embyEnabled bool
	embyHost    string
	embyKey     string
}

// New creates a Resolver caching under dir and materializes the
// placeholder file.
func New(dir string, client *fetch.Client, embyEnabled bool, embyHost, embyKey string) (*Resolver, error) {
	r := &Resolver{
		dir:         dir,
		client:      client,
		embyEnabled: embyEnabled,
		embyHost:    embyHost,
		embyKey:     embyKey,
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if _, err := os.Stat(r.PlaceholderPath()); os.IsNotExist(err) {
		if err := os.WriteFile(r.PlaceholderPath(), assets.PlaceholderJPEG, 0o644); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// PlaceholderPath is the fixed fallback cover.
func (r *Resolver) PlaceholderPath() string {
	return filepath.Join(r.dir, "placeholder.jpg")
}

// Resolve processes the candidate queue in order and returns the usable
// local paths, deduplicated, first occurrence first. Candidates that
// fail to download are skipped; an empty result collapses to the
// placeholder.
func (r *Resolver) Resolve(ctx context.Context, queue []string, seriesID string) []string {
	var paths []string
	seen := make(map[string]bool)
	for _, item := range queue {
		var (
			path string
			err  error
		)
		if isAbsoluteURL(item) {
			path, err = r.resolveURL(ctx, item)
		} else {
			path, err = r.resolveTag(ctx, item, seriesID)
		}
		if err != nil {
			log.Printf("ImageCache: candidate %q skipped: %v", item, err)
			continue
		}
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		log.Printf("ImageCache: no usable candidate, using placeholder")
		return []string{r.PlaceholderPath()}
	}
	return paths
}

// resolveURL serves a direct-URL candidate from cache or downloads it.
func (r *Resolver) resolveURL(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	name := filepath.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		name = "cover.jpg"
	}
	local := filepath.Join(r.dir, "AniRSS", name)
	if fresh(local) {
		return local, nil
	}
	headers := map[string]string{"User-Agent": userAgent}
	return r.download(ctx, rawURL, headers, local)
}

// resolveTag serves an Emby image-tag candidate. Without the Emby
// feature a cached file is still usable; a fresh download additionally
// needs a series id and the configured host.
func (r *Resolver) resolveTag(ctx context.Context, tag, seriesID string) (string, error) {
	local := filepath.Join(r.dir, "Emby", tag+".jpg")
	if !r.embyEnabled {
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
		return "", fmt.Errorf("emby disabled and no cached copy")
	}
	if fresh(local) {
		return local, nil
	}
	if seriesID == "" {
		return "", fmt.Errorf("no series id to build emby image url")
	}
	if r.embyHost == "" {
		return "", fmt.Errorf("no emby host configured")
	}
	imageURL := fmt.Sprintf("%s/emby/Items/%s/Images/Primary?tag=%s&quality=90",
		trimSlash(r.embyHost), seriesID, url.QueryEscape(tag))
	headers := map[string]string{
		"User-Agent":   userAgent,
		"X-Emby-Token": r.embyKey,
	}
	return r.download(ctx, imageURL, headers, local)
}

// download fetches the image, downscales oversized covers, and atomically
// replaces the target path. Stale files are removed before the fetch so
// a failure never serves expired content.
func (r *Resolver) download(ctx context.Context, rawURL string, headers map[string]string, local string) (string, error) {
	os.Remove(local)
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", err
	}
	data, err := r.client.Get(ctx, rawURL, headers)
	if err != nil {
		return "", err
	}
	data = downscale(data)

	tmp := local + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, local); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return local, nil
}

// downscale re-encodes covers wider than maxCoverWidth as JPEG. Data
// that does not decode as an image is passed through untouched.
func downscale(data []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}
	if img.Bounds().Dx() <= maxCoverWidth {
		return data
	}
	resized := resize.Resize(maxCoverWidth, 0, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return data
	}
	return buf.Bytes()
}

// fresh reports whether the file exists and is within the TTL.
func fresh(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) <= TTL
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
