package ports

import "context"

// Fetcher retrieves source archives.
//
//go:generate mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type Fetcher interface {
	// Supports reports whether the URL scheme can be retrieved by this environment.
	Supports(scheme string) bool

	// Fetch downloads rawURL into the download cache and returns the local archive path.
	Fetch(ctx context.Context, rawURL string) (string, error)

	// Evict drops the cached download for rawURL, if any.
	Evict(rawURL string) error
}
