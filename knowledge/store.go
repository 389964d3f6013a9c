package knowledge

import (
	"context"
)

// Store is the relational half of the knowledge system: canonical text,
// ownership metadata, revision history and persona prompts. It never touches
// the vector index.
type Store interface {
	// InsertItem creates a new item with a store-assigned id.
	InsertItem(ctx context.Context, text string, scope Scope) (*Item, error)

	// FindItemID resolves (text, scope) to an existing item id, or "" when
	// absent. This is the dedup pre-check for upserts.
	FindItemID(ctx context.Context, text string, scope Scope) (string, error)

	// GetItemsByIDs fetches rows for the given ids in one batched lookup.
	// Missing ids are silently absent from the result.
	GetItemsByIDs(ctx context.Context, ids []string) ([]Item, error)

	// ListItemIDsByScope returns all item ids owned by scope.
	ListItemIDsByScope(ctx context.Context, scope Scope) ([]string, error)

	// DeleteItemsByIDs removes items and their history entries. Absent ids
	// are a no-op.
	DeleteItemsByIDs(ctx context.Context, ids []string) error

	// AppendHistory appends one revision record. A duplicate
	// (itemID, revisionLabel) pair fails with ErrConflict.
	AppendHistory(ctx context.Context, itemID, revisionLabel, description string) error

	// ListHistoryByItem returns an item's revisions in insertion order.
	ListHistoryByItem(ctx context.Context, itemID string) ([]UpdateHistory, error)

	// DeleteHistoryByLabel removes history entries carrying revisionLabel for
	// the given item ids, leaving the items themselves untouched. Returns the
	// number of removed entries.
	DeleteHistoryByLabel(ctx context.Context, itemIDs []string, revisionLabel string) (int64, error)

	// ListRevisionLabels returns the distinct revision labels present in
	// scope.
	ListRevisionLabels(ctx context.Context, scope Scope) ([]string, error)

	// ListInstanceNames returns the distinct instance names owned by
	// createdBy.
	ListInstanceNames(ctx context.Context, createdBy string) ([]string, error)

	// GetPersona returns the persona prompt configured for scope, or "" when
	// none is set.
	GetPersona(ctx context.Context, scope Scope) (string, error)

	// SetPersona creates or replaces the persona prompt for scope.
	SetPersona(ctx context.Context, scope Scope, prompt string) error

	Close() error
}
