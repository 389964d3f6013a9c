package httpapi_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mechatbot/mechatbot/config"
	"github.com/mechatbot/mechatbot/engine"
	"github.com/mechatbot/mechatbot/httpapi"
	"github.com/mechatbot/mechatbot/internal/llm"
	"github.com/mechatbot/mechatbot/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-secret"

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

func newTestServer(t *testing.T) (*httptest.Server, *knowledge.MemoryStore, *knowledge.MemoryIndex) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	store := knowledge.NewMemoryStore()
	index := knowledge.NewMemoryIndex()
	manager := knowledge.NewManager(store, index, logger)
	retriever := knowledge.NewRetriever(stubEmbedder{}, index, store, logger)
	eng := engine.NewEngine(
		logger,
		&stubModel{completeOut: "standalone", streamChunks: []string{"an", "swer"}},
		retriever,
		store,
		config.NewOpenAIConfig(),
		config.NewChatConfig(),
		config.NewKnowledgeConfig(),
	)

	conf := config.NewServerConfig()
	conf.BearerToken = testToken
	srv := httpapi.NewServer(logger, manager, store, eng, conf)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store, index
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func upsertBody(text, label string) map[string]any {
	return map[string]any{
		"text":          text,
		"values":        []float32{0, 1},
		"metadata":      map[string]any{"topic": "test"},
		"revisionLabel": label,
		"description":   "added in test",
	}
}

func TestServer_Auth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	t.Run("Given no bearer token, when calling any endpoint, then the request is unauthorized", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/instances/alice")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "UNAUTHORIZED", body["code"])
	})

	t.Run("Given a wrong token, when calling any endpoint, then the request is unauthorized", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/instances/alice", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer wrong")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestServer_UpsertKnowledge(t *testing.T) {
	ts, store, index := newTestServer(t)
	url := ts.URL + "/knowledge/alice/blog"

	t.Run("Given new knowledge, when put, then an item is created in both stores", func(t *testing.T) {
		resp := doJSON(t, http.MethodPut, url, upsertBody("I was born in Hanoi.", "v1"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "OK", body["code"])
		assert.NotEmpty(t, body["id"])
		assert.Equal(t, true, body["created"])
		assert.Equal(t, 1, index.Len())
	})

	t.Run("Given duplicate knowledge with a new label, when put, then only a revision is appended", func(t *testing.T) {
		resp := doJSON(t, http.MethodPut, url, upsertBody("I was born in Hanoi.", "v2"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, false, body["created"])
		assert.Equal(t, 1, index.Len())
	})

	t.Run("Given a duplicate revision label, when put, then the request conflicts", func(t *testing.T) {
		resp := doJSON(t, http.MethodPut, url, upsertBody("I was born in Hanoi.", "v1"))
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "CONFLICT", body["code"])
	})

	t.Run("Given the legacy domainKnowledgeName field, when put, then it is taken as the revision label", func(t *testing.T) {
		body := upsertBody("I was born in Hanoi.", "")
		delete(body, "revisionLabel")
		body["domainKnowledgeName"] = "v3"
		resp := doJSON(t, http.MethodPut, url, body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeBody(t, resp)
	})

	t.Run("Given a missing field, when put, then the request is rejected", func(t *testing.T) {
		body := upsertBody("incomplete", "v1")
		delete(body, "description")
		resp := doJSON(t, http.MethodPut, url, body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	ids, err := store.ListItemIDsByScope(context.Background(), knowledge.Scope{CreatedBy: "alice", InstanceName: "blog"})
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestServer_DeleteEndpoints(t *testing.T) {
	ts, _, index := newTestServer(t)

	resp := doJSON(t, http.MethodPut, ts.URL+"/knowledge/alice/blog", upsertBody("first", "v1"))
	id := decodeBody(t, resp)["id"].(string)
	doJSON(t, http.MethodPut, ts.URL+"/knowledge/alice/blog", upsertBody("second", "v1")).Body.Close()

	t.Run("Given an item id, when deleted, then the item leaves both stores", func(t *testing.T) {
		resp := doJSON(t, http.MethodDelete, ts.URL+"/knowledge/"+id, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
		assert.Equal(t, 1, index.Len())
	})

	t.Run("Given an absent id, when deleted, then the call still succeeds", func(t *testing.T) {
		resp := doJSON(t, http.MethodDelete, ts.URL+"/knowledge/"+id, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("Given a revision label, when deleted, then items and vectors stay", func(t *testing.T) {
		resp := doJSON(t, http.MethodDelete, ts.URL+"/instances/alice/blog/revisions/v1", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.EqualValues(t, 1, body["removed"])
		assert.Equal(t, 1, index.Len())
	})

	t.Run("Given an instance, when deleted, then every item in scope is removed", func(t *testing.T) {
		resp := doJSON(t, http.MethodDelete, ts.URL+"/instances/alice/blog", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.EqualValues(t, 1, body["removed"])
		assert.Zero(t, index.Len())
	})
}

func TestServer_Listings(t *testing.T) {
	ts, _, _ := newTestServer(t)

	doJSON(t, http.MethodPut, ts.URL+"/knowledge/alice/blog", upsertBody("a", "v1")).Body.Close()
	doJSON(t, http.MethodPut, ts.URL+"/knowledge/alice/blog", upsertBody("b", "v2")).Body.Close()
	doJSON(t, http.MethodPut, ts.URL+"/knowledge/alice/portfolio", upsertBody("c", "v1")).Body.Close()

	t.Run("Given knowledge across instances, when listing instances, then names are distinct", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, ts.URL+"/instances/alice", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.ElementsMatch(t, []any{"blog", "portfolio"}, body["instanceNames"])
	})

	t.Run("Given revisions in an instance, when listing revisions, then labels are distinct", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, ts.URL+"/instances/alice/blog/revisions", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.ElementsMatch(t, []any{"v1", "v2"}, body["revisionLabels"])
	})
}

func TestServer_Persona(t *testing.T) {
	ts, _, _ := newTestServer(t)

	t.Run("Given no stored persona, when fetched, then an empty prompt comes back", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, ts.URL+"/instances/alice/blog/persona", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Empty(t, body["prompt"])
	})

	t.Run("Given an instance without knowledge, when setting a persona, then the instance is not found", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/instances/alice/blog/persona", map[string]any{"prompt": "You are a pirate."})
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("Given an instance with knowledge, when setting a persona, then it is stored and readable", func(t *testing.T) {
		doJSON(t, http.MethodPut, ts.URL+"/knowledge/alice/blog", upsertBody("a", "v1")).Body.Close()

		resp := doJSON(t, http.MethodPost, ts.URL+"/instances/alice/blog/persona", map[string]any{"prompt": "You are a pirate."})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = doJSON(t, http.MethodGet, ts.URL+"/instances/alice/blog/persona", nil)
		body := decodeBody(t, resp)
		assert.Equal(t, "You are a pirate.", body["prompt"])
	})
}

func TestServer_Ask(t *testing.T) {
	ts, _, _ := newTestServer(t)
	doJSON(t, http.MethodPut, ts.URL+"/knowledge/alice/blog", upsertBody("I was born in Hanoi.", "v1")).Body.Close()

	t.Run("Given a missing question, when asking, then the request is rejected before streaming", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/ask", map[string]any{
			"filter": map[string]string{"createdBy": "alice", "instanceName": "blog"},
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		resp.Body.Close()
	})

	t.Run("Given a missing filter, when asking, then the request is rejected", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/ask", map[string]any{"question": "hi"})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("Given a valid question, when asking, then events stream in pipeline order", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/ask", map[string]any{
			"question": "where was I born?",
			"filter":   map[string]string{"createdBy": "alice", "instanceName": "blog"},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		defer resp.Body.Close()
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

		var kinds []string
		var final string
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev engine.Event
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
			kinds = append(kinds, string(ev.Kind))
			if ev.Kind == engine.EventGenerationCompleted {
				final = ev.Token
			}
		}
		require.NoError(t, scanner.Err())

		require.Equal(t, []string{
			"retrieval-started",
			"retrieval-completed",
			"generation-token",
			"generation-token",
			"generation-completed",
		}, kinds)
		assert.Equal(t, "answer", final)
	})
}

func TestServer_RouteTable(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/knowledge/alice/blog", ts.URL), nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}
