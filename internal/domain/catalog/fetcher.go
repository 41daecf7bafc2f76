package catalog

import "context"

// Fetcher retrieves the authoritative catalog graph from the remote service
// in a single round trip. No retry: the orchestrator treats every failure the
// same way and falls back to the cache.
type Fetcher interface {
	// FetchCategories returns the full category list with nested questions
	// and answers. Failures carry the fetch_error code.
	FetchCategories(ctx context.Context) ([]Category, error)
}
