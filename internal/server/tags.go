package server

import "context"

// TagRepo stores image tags. Tags are server-authoritative: clients
// only ever see tag state that round-tripped through this repository.
type TagRepo interface {
	// Apply sets tag on every named file and returns how many rows were
	// newly or re-applied. Tagging the same file twice is a no-op.
	Apply(ctx context.Context, filenames []string, tag string) (int, error)

	// All returns every filename's tags.
	All(ctx context.Context) (map[string][]string, error)

	// Remove drops all tag rows for the named files, used after delete.
	Remove(ctx context.Context, filenames []string) error

	Close() error
}
