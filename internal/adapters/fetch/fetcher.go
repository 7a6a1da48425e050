// Package fetch downloads source archives into a local cache.
package fetch

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/zeebo/blake3"
	"go.trai.ch/pour/internal/core/domain"
	"go.trai.ch/pour/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	dirPerm   = 0o750
	userAgent = "pour"
)

// Fetcher implements ports.Fetcher over HTTP(S) and local files.
// Downloads are cached under CacheDir, keyed by URL.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	logger   ports.Logger
}

// New creates a Fetcher. A nil client means http.DefaultClient.
func New(client *http.Client, cacheDir string, log ports.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, cacheDir: cacheDir, logger: log}
}

// Supports reports whether the scheme can be fetched.
func (f *Fetcher) Supports(scheme string) bool {
	switch scheme {
	case "http", "https", "file":
		return true
	default:
		return false
	}
}

// CacheKey returns the file name a URL is cached under: the hex BLAKE3
// digest of the URL followed by the archive basename.
func CacheKey(rawURL string) string {
	h := blake3.New()
	_, _ = h.Write([]byte(rawURL))
	digest := hex.EncodeToString(h.Sum(nil))

	base := "download"
	if u, err := url.Parse(rawURL); err == nil {
		if b := path.Base(u.Path); b != "." && b != "/" {
			base = b
		}
	}
	return digest + "--" + base
}

// CachePath returns where rawURL is cached.
func (f *Fetcher) CachePath(rawURL string) string {
	return filepath.Join(f.cacheDir, CacheKey(rawURL))
}

// Fetch returns a local path for rawURL. File URLs are used in place;
// HTTP(S) URLs are served from the cache or downloaded into it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrFetchFailed, err.Error()), "url", rawURL)
	}
	if !f.Supports(u.Scheme) {
		return "", zerr.With(zerr.Wrap(domain.ErrUnsupportedScheme, "cannot retrieve source"), "scheme", u.Scheme)
	}

	if u.Scheme == "file" {
		if _, err := os.Stat(u.Path); err != nil {
			return "", zerr.With(zerr.Wrap(domain.ErrFetchFailed, err.Error()), "url", rawURL)
		}
		return u.Path, nil
	}

	dest := f.CachePath(rawURL)
	if _, err := os.Stat(dest); err == nil {
		f.logger.Info("using cached download " + dest)
		return dest, nil
	}

	f.logger.Info("downloading " + rawURL)
	if err := f.download(ctx, rawURL, dest); err != nil {
		return "", zerr.With(err, "url", rawURL)
	}
	return dest, nil
}

// Evict removes the cached download for rawURL. Missing files are not an error.
func (f *Fetcher) Evict(rawURL string) error {
	if u, err := url.Parse(rawURL); err == nil && u.Scheme == "file" {
		return nil
	}
	if err := os.Remove(f.CachePath(rawURL)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, "failed to evict cached download"), "url", rawURL)
	}
	return nil
}

// download writes through a temp file in the cache dir and renames it into
// place, so concurrent fetches of the same URL never see a partial archive.
func (f *Fetcher) download(ctx context.Context, rawURL, dest string) (err error) {
	if err := os.MkdirAll(f.cacheDir, dirPerm); err != nil {
		return zerr.Wrap(domain.ErrFetchFailed, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return zerr.Wrap(domain.ErrFetchFailed, err.Error())
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return zerr.Wrap(domain.ErrFetchFailed, err.Error())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return zerr.With(zerr.Wrap(domain.ErrFetchFailed, "unexpected response"), "status", resp.Status)
	}

	tmp, err := os.CreateTemp(f.cacheDir, ".download-*")
	if err != nil {
		return zerr.Wrap(domain.ErrFetchFailed, err.Error())
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return zerr.Wrap(domain.ErrFetchFailed, err.Error())
	}
	if err = tmp.Close(); err != nil {
		return zerr.Wrap(domain.ErrFetchFailed, err.Error())
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return zerr.Wrap(domain.ErrFetchFailed, err.Error())
	}
	return nil
}
