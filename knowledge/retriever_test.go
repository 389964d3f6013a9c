package knowledge_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/mechatbot/mechatbot/errors"
	"github.com/mechatbot/mechatbot/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e *fixedEmbedder) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, ok := e.vectors[text]
		if !ok {
			vec = []float32{1, 0}
		}
		out = append(out, vec)
	}
	return out, nil
}

func TestRetriever_Retrieve(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*knowledge.MemoryStore, *knowledge.MemoryIndex, *fixedEmbedder, *knowledge.Retriever) {
		t.Helper()
		store := knowledge.NewMemoryStore()
		index := knowledge.NewMemoryIndex()
		embedder := &fixedEmbedder{vectors: map[string][]float32{}}
		retriever := knowledge.NewRetriever(embedder, index, store, nil)
		return store, index, embedder, retriever
	}

	insert := func(t *testing.T, store *knowledge.MemoryStore, index *knowledge.MemoryIndex, text string, vector []float32) string {
		t.Helper()
		item, err := store.InsertItem(ctx, text, testScope)
		require.NoError(t, err)
		require.NoError(t, index.Upsert(ctx, item.ID, vector, testScope.Metadata()))
		return item.ID
	}

	t.Run("Given indexed knowledge, when retrieving, then documents come back in similarity order", func(t *testing.T) {
		store, index, embedder, retriever := setup(t)
		farID := insert(t, store, index, "far fact", []float32{1, 0})
		nearID := insert(t, store, index, "near fact", []float32{0, 1})
		embedder.vectors["question"] = []float32{0, 1}

		docs, err := retriever.Retrieve(ctx, "question", 4, &testScope)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, nearID, docs[0].ID)
		assert.Equal(t, farID, docs[1].ID)
		assert.Equal(t, "near fact", docs[0].Text)
		assert.Greater(t, docs[0].Score, docs[1].Score)
		assert.Equal(t, "alice", docs[0].Metadata["createdBy"])
		assert.Equal(t, nearID, docs[0].Metadata["id"])
	})

	t.Run("Given a vector entry without a row, when retrieving, then the dangling id is dropped", func(t *testing.T) {
		store, index, embedder, retriever := setup(t)
		keptID := insert(t, store, index, "kept fact", []float32{0, 1})
		require.NoError(t, index.Upsert(ctx, "dangling-id", []float32{0, 1}, testScope.Metadata()))
		embedder.vectors["question"] = []float32{0, 1}

		docs, err := retriever.Retrieve(ctx, "question", 4, &testScope)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, keptID, docs[0].ID)
	})

	t.Run("Given an empty index, when retrieving, then no documents and no error come back", func(t *testing.T) {
		_, _, _, retriever := setup(t)

		docs, err := retriever.Retrieve(ctx, "question", 4, &testScope)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("Given a failing embedder, when retrieving, then the failure is fatal for the turn", func(t *testing.T) {
		_, _, embedder, retriever := setup(t)
		embedder.err = fmt.Errorf("embedding backend down")

		_, err := retriever.Retrieve(ctx, "question", 4, &testScope)
		require.ErrorIs(t, err, errors.ErrEmbeddingUnavailable)
		require.ErrorIs(t, err, errors.ErrUpstreamUnavailable)
	})

	t.Run("Given a scope filter, when retrieving, then foreign knowledge never leaks in", func(t *testing.T) {
		store, index, embedder, retriever := setup(t)
		insert(t, store, index, "mine", []float32{0, 1})

		other := knowledge.Scope{CreatedBy: "bob", InstanceName: "blog"}
		item, err := store.InsertItem(ctx, "theirs", other)
		require.NoError(t, err)
		require.NoError(t, index.Upsert(ctx, item.ID, []float32{0, 1}, other.Metadata()))

		embedder.vectors["question"] = []float32{0, 1}
		docs, err := retriever.Retrieve(ctx, "question", 4, &testScope)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "mine", docs[0].Text)
	})
}
