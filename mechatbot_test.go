package mechatbot_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mechatbot/mechatbot"
	"github.com/mechatbot/mechatbot/engine"
	"github.com/mechatbot/mechatbot/internal/llm"
	"github.com/mechatbot/mechatbot/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModel struct {
	completeOut  string
	streamChunks []string
}

func (m *stubModel) Complete(ctx context.Context, req *llm.Request) (string, error) {
	return m.completeOut, nil
}

func (m *stubModel) CompleteStream(ctx context.Context, req *llm.Request, cb llm.StreamCallback) (string, error) {
	var full strings.Builder
	for _, chunk := range m.streamChunks {
		if err := cb(ctx, chunk); err != nil {
			return "", err
		}
		full.WriteString(chunk)
	}
	return full.String(), nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0, 1}
	}
	return out, nil
}

func newBot(t *testing.T) *mechatbot.MeChatbot {
	t.Helper()
	bot, err := mechatbot.New(
		context.Background(),
		mechatbot.WithModelClient(&stubModel{streamChunks: []string{"Ha", "noi"}}),
		mechatbot.WithEmbedder(stubEmbedder{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, bot.Close())
	})
	return bot
}

func TestMeChatbot_New(t *testing.T) {
	t.Run("Given no api key and no injected clients, when constructing, then it fails", func(t *testing.T) {
		_, err := mechatbot.New(context.Background())
		require.Error(t, err)
	})

	t.Run("Given injected clients, when constructing, then in-memory defaults are wired", func(t *testing.T) {
		bot := newBot(t)
		require.NotNil(t, bot.Store())
		require.NotNil(t, bot.Manager())
		require.NotNil(t, bot.Engine())
	})
}

func TestMeChatbot_KnowledgeLifecycle(t *testing.T) {
	ctx := context.Background()
	bot := newBot(t)
	scope := knowledge.Scope{CreatedBy: "alice", InstanceName: "blog"}

	t.Run("Given knowledge without a vector, when upserted, then the text is embedded first", func(t *testing.T) {
		res, err := bot.UpsertKnowledge(ctx, knowledge.UpsertRequest{
			Text:          "I was born in Hanoi.",
			Scope:         scope,
			RevisionLabel: "v1",
			Description:   "initial import",
		})
		require.NoError(t, err)
		assert.True(t, res.Created)
	})

	t.Run("Given stored knowledge, when retrieved, then documents are scoped", func(t *testing.T) {
		docs, err := bot.Retrieve(ctx, "where was I born?", 0, &scope)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "I was born in Hanoi.", docs[0].Text)
	})

	t.Run("Given an instance, when listing, then it appears for its owner", func(t *testing.T) {
		names, err := bot.ListInstances(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"blog"}, names)
	})

	t.Run("Given a revision, when deleted, then the item survives", func(t *testing.T) {
		removed, err := bot.DeleteRevision(ctx, scope, "v1")
		require.NoError(t, err)
		assert.EqualValues(t, 1, removed)

		docs, err := bot.Retrieve(ctx, "where was I born?", 0, &scope)
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})

	t.Run("Given an instance, when deleted, then its knowledge is gone", func(t *testing.T) {
		removed, err := bot.DeleteInstance(ctx, scope)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		docs, err := bot.Retrieve(ctx, "where was I born?", 0, &scope)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestMeChatbot_Ask(t *testing.T) {
	ctx := context.Background()
	bot := newBot(t)
	scope := knowledge.Scope{CreatedBy: "alice", InstanceName: "blog"}

	_, err := bot.UpsertKnowledge(ctx, knowledge.UpsertRequest{
		Text:          "I was born in Hanoi.",
		Scope:         scope,
		RevisionLabel: "v1",
		Description:   "initial import",
	})
	require.NoError(t, err)

	events, err := bot.Ask(ctx, &engine.AskRequest{
		Question:     "where was I born?",
		CreatedBy:    "alice",
		InstanceName: "blog",
	})
	require.NoError(t, err)

	var kinds []engine.EventKind
	var answer string
	timeout := time.After(5 * time.Second)
loop:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			kinds = append(kinds, ev.Kind)
			if ev.Kind == engine.EventGenerationCompleted {
				answer = ev.Token
			}
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}

	require.NotEmpty(t, kinds)
	assert.Equal(t, engine.EventRetrievalStarted, kinds[0])
	assert.Equal(t, engine.EventGenerationCompleted, kinds[len(kinds)-1])
	assert.Equal(t, "Hanoi", answer)
}
