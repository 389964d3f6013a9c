package knowledge

import (
	"context"
	"log/slog"

	"github.com/mokiat/gog"
	"github.com/samber/lo"

	"github.com/mechatbot/mechatbot/errors"
)

// Retriever joins a similarity search against the canonical rows: embed the
// query, ask the vector index for the nearest ids, fetch those rows in one
// batch, and hand back full documents in similarity order.
type Retriever struct {
	embedder Embedder
	index    VectorIndex
	store    Store
	logger   *slog.Logger
}

func NewRetriever(embedder Embedder, index VectorIndex, store Store, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		store:    store,
		logger:   logger,
	}
}

// Retrieve returns up to topK documents relevant to query, most similar
// first. An empty result is a normal state, not an error. Ids returned by the
// index without a matching row are dropped: the two stores may disagree
// transiently around a partial write, and the reader is the tolerant side of
// that contract.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, filter *Scope) ([]Document, error) {
	embeddings, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrEmbeddingUnavailable, "failed to embed query: %v", err)
	}
	if len(embeddings) == 0 {
		return nil, errors.Wrapf(errors.ErrEmbeddingUnavailable, "no embedding generated for query")
	}

	matches, err := r.index.Query(ctx, embeddings[0], topK, filter)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "vector query failed: %v", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	ids := lo.Map(matches, func(m Match, _ int) string {
		return m.ID
	})

	items, err := r.store.GetItemsByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "knowledge store fetch failed: %v", err)
	}

	itemsByID := make(map[string]Item, len(items))
	for _, item := range items {
		itemsByID[item.ID] = item
	}

	// The batched fetch does not preserve similarity rank; walk the matches
	// to restore it.
	documents := make([]Document, 0, len(matches))
	for _, match := range matches {
		item, ok := itemsByID[match.ID]
		if !ok {
			r.logger.Debug("dropping vector match without knowledge row", "id", match.ID)
			continue
		}
		documents = append(documents, Document{
			ID:   item.ID,
			Text: item.Text,
			Metadata: gog.Merge(item.Scope.Metadata(), map[string]any{
				"id": item.ID,
			}),
			Score: match.Score,
		})
	}

	return documents, nil
}
