package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Fetcher retrieves the raw bytes for one source within a scope. The dataset
// layer decides what a source id means (a file path, a URL handed to some
// transport); the aggregator only needs bytes back.
type Fetcher interface {
	FetchScopeSource(ctx context.Context, sourceID string) ([]byte, error)
}

// FileFetcher resolves source ids as paths relative to a root directory.
type FileFetcher struct {
	Root string
}

// FetchScopeSource reads the source file for sourceID.
func (f FileFetcher) FetchScopeSource(ctx context.Context, sourceID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := sourceID
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.Root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source %s: %w", sourceID, err)
	}
	return data, nil
}

// MapFetcher serves sources from memory, for tests and fixtures.
type MapFetcher map[string][]byte

// FetchScopeSource returns the configured bytes for sourceID.
func (m MapFetcher) FetchScopeSource(ctx context.Context, sourceID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := m[sourceID]
	if !ok {
		return nil, fmt.Errorf("unknown source %s", sourceID)
	}
	return data, nil
}
