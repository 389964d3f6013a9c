package knowledge

import (
	"context"
	"log/slog"

	"github.com/mokiat/gog"

	"github.com/mechatbot/mechatbot/errors"
	"github.com/mechatbot/mechatbot/internal/stringutils"
)

type (
	// Manager coordinates the knowledge lifecycle across the relational
	// store and the vector index. There is no cross-store transaction: the
	// relational write always goes first, so a failed second half leaves at
	// worst a row without a vector entry, which retrieval tolerates. Such a
	// failure is surfaced as ErrPartialWrite and never retried here.
	Manager struct {
		store  Store
		index  VectorIndex
		logger *slog.Logger
	}

	UpsertRequest struct {
		Text          string
		Vector        []float32
		Metadata      map[string]any
		Scope         Scope
		RevisionLabel string
		Description   string
	}

	UpsertResult struct {
		// ID of the item the upsert resolved to; for a dedup hit this is the
		// pre-existing id.
		ID string `json:"id"`

		// Created is false when the upsert resolved to an existing item and
		// only appended a revision.
		Created bool `json:"created"`
	}
)

func NewManager(store Store, index VectorIndex, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		index:  index,
		logger: logger,
	}
}

func (r *UpsertRequest) validate() error {
	if r.Text == "" {
		return errors.Wrapf(errors.ErrValidation, "text is required")
	}
	if len(r.Vector) == 0 {
		return errors.Wrapf(errors.ErrValidation, "vector values are required")
	}
	if r.RevisionLabel == "" {
		return errors.Wrapf(errors.ErrValidation, "revisionLabel is required")
	}
	if r.Description == "" {
		return errors.Wrapf(errors.ErrValidation, "description is required")
	}
	return r.Scope.Validate()
}

// Upsert creates a knowledge item or, when (text, scope) already exists,
// appends a revision to the existing item. Duplicate knowledge never creates
// a second item; a duplicate revision label reports ErrConflict.
func (m *Manager) Upsert(ctx context.Context, req UpsertRequest) (*UpsertResult, error) {
	// Strip null bytes and stray control characters before the text reaches
	// the database or a prompt.
	req.Text = stringutils.SanitizeUnicodeString(req.Text)

	if err := req.validate(); err != nil {
		return nil, err
	}

	existingID, err := m.store.FindItemID(ctx, req.Text, req.Scope)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "knowledge lookup failed: %v", err)
	}

	if existingID != "" {
		if err := m.store.AppendHistory(ctx, existingID, req.RevisionLabel, req.Description); err != nil {
			return nil, err
		}
		m.logger.Debug("knowledge revision recorded", "id", existingID, "revision", req.RevisionLabel)
		return &UpsertResult{ID: existingID, Created: false}, nil
	}

	item, err := m.store.InsertItem(ctx, req.Text, req.Scope)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "knowledge insert failed: %v", err)
	}

	if err := m.store.AppendHistory(ctx, item.ID, req.RevisionLabel, req.Description); err != nil {
		return nil, err
	}

	metadata := gog.Merge(req.Metadata, req.Scope.Metadata())
	if err := m.index.Upsert(ctx, item.ID, req.Vector, metadata); err != nil {
		// The relational row is already committed. No rollback is attempted;
		// the caller decides whether to retry the vector half.
		return nil, errors.Wrapf(errors.ErrPartialWrite, "item %s stored without vector entry: %v", item.ID, err)
	}

	m.logger.Debug("knowledge item created", "id", item.ID, "scope", req.Scope)
	return &UpsertResult{ID: item.ID, Created: true}, nil
}

// Delete removes one item from both stores. Deleting an absent id is a
// success no-op.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.Wrapf(errors.ErrValidation, "id is required")
	}

	if err := m.store.DeleteItemsByIDs(ctx, []string{id}); err != nil {
		return errors.Wrapf(errors.ErrUpstreamUnavailable, "knowledge delete failed: %v", err)
	}
	if err := m.index.DeleteByIDs(ctx, []string{id}); err != nil {
		return errors.Wrapf(errors.ErrPartialWrite, "item %s removed from store but not from vector index: %v", id, err)
	}
	return nil
}

// DeleteByScope removes every item owned by scope from both stores and
// returns how many items were removed. An empty scope is a no-op.
func (m *Manager) DeleteByScope(ctx context.Context, scope Scope) (int, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}

	ids, err := m.store.ListItemIDsByScope(ctx, scope)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrUpstreamUnavailable, "scope listing failed: %v", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := m.store.DeleteItemsByIDs(ctx, ids); err != nil {
		return 0, errors.Wrapf(errors.ErrUpstreamUnavailable, "knowledge delete failed: %v", err)
	}
	if err := m.index.DeleteByIDs(ctx, ids); err != nil {
		return 0, errors.Wrapf(errors.ErrPartialWrite, "%d items removed from store but not from vector index: %v", len(ids), err)
	}

	m.logger.Info("knowledge scope deleted", "scope", scope, "items", len(ids))
	return len(ids), nil
}

// DeleteRevision removes the history entries tagged revisionLabel for items
// in scope. Items and vector entries stay untouched. Returns the number of
// removed entries; zero is a success, not an error.
func (m *Manager) DeleteRevision(ctx context.Context, scope Scope, revisionLabel string) (int64, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	if revisionLabel == "" {
		return 0, errors.Wrapf(errors.ErrValidation, "revisionLabel is required")
	}

	ids, err := m.store.ListItemIDsByScope(ctx, scope)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrUpstreamUnavailable, "scope listing failed: %v", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	removed, err := m.store.DeleteHistoryByLabel(ctx, ids, revisionLabel)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrUpstreamUnavailable, "history delete failed: %v", err)
	}
	return removed, nil
}
