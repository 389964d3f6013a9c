package knowledge

import (
	"context"
)

// VectorIndex is the similarity half of the knowledge system. Entries are
// keyed by the item id assigned by the Store; the two stores share no
// transaction, so writers order their calls and readers tolerate ids present
// in only one store.
type VectorIndex interface {
	// Query returns the topK nearest entries to vector, most similar first,
	// restricted to filter when non-nil.
	Query(ctx context.Context, vector []float32, topK int, filter *Scope) ([]Match, error)

	// Upsert stores or replaces the vector for id together with its scalar
	// metadata.
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error

	// DeleteByIDs removes entries. Absent ids are a no-op.
	DeleteByIDs(ctx context.Context, ids []string) error

	Close() error
}
