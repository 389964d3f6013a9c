package llm

import (
	"context"
	"strings"

	goopenai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mechatbot/mechatbot/chat"
	"github.com/mechatbot/mechatbot/errors"
)

type (
	// Request is one structured generation request: a system prompt, the
	// typed conversation history in order, and optional sampling knobs.
	Request struct {
		Model       string
		System      string
		Messages    []chat.Message
		Temperature float64
		MaxTokens   int
	}

	// StreamCallback receives each incremental text chunk as it arrives.
	// Returning an error aborts the stream.
	StreamCallback func(ctx context.Context, chunk string) error

	// Client is the gateway to the OpenAI chat completion and embedding
	// endpoints. All methods are safe for concurrent use.
	Client struct {
		oai *goopenai.Client
	}
)

func NewClient(apiKey string) *Client {
	return &Client{
		oai: goopenai.NewClient(
			option.WithAPIKey(apiKey),
		),
	}
}

func convertRequest(req *Request) (goopenai.ChatCompletionNewParams, error) {
	messages, err := convertMessages(req.System, req.Messages)
	if err != nil {
		return goopenai.ChatCompletionNewParams{}, err
	}

	params := goopenai.ChatCompletionNewParams{
		Model:    goopenai.String(req.Model),
		Messages: goopenai.F(messages),
	}
	if req.Temperature != 0 {
		params.Temperature = goopenai.Float(req.Temperature)
	}
	if req.MaxTokens != 0 {
		params.MaxTokens = goopenai.Int(int64(req.MaxTokens))
	}

	return params, nil
}

func convertMessages(system string, messages []chat.Message) ([]goopenai.ChatCompletionMessageParamUnion, error) {
	var msgs []goopenai.ChatCompletionMessageParamUnion

	if system != "" {
		msgs = append(msgs, goopenai.SystemMessage(system))
	}

	for _, m := range messages {
		switch m.Role {
		case chat.RoleSystem:
			msgs = append(msgs, goopenai.SystemMessage(m.Content))
		case chat.RoleHuman:
			msgs = append(msgs, goopenai.UserMessage(m.Content))
		case chat.RoleAssistant:
			msgs = append(msgs, goopenai.AssistantMessage(m.Content))
		case chat.RoleTool:
			if m.ToolCallID == "" {
				return nil, errors.Wrapf(errors.ErrInvalidHistoryEntry, "tool message without call id")
			}
			msgs = append(msgs, goopenai.ToolMessage(m.ToolCallID, m.Content))
		default:
			return nil, errors.Wrapf(errors.ErrInvalidHistoryEntry, "unknown role: %q", m.Role)
		}
	}

	return msgs, nil
}

// Complete issues one non-streamed completion and returns the model text.
func (c *Client) Complete(ctx context.Context, req *Request) (string, error) {
	params, err := convertRequest(req)
	if err != nil {
		return "", err
	}

	res, err := c.oai.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", errors.Wrapf(errors.ErrUpstreamUnavailable, "chat completion failed: %v", err)
	}
	if len(res.Choices) == 0 {
		return "", errors.Wrapf(errors.ErrUpstreamUnavailable, "chat completion returned no choices")
	}

	return res.Choices[0].Message.Content, nil
}

// CompleteStream issues one streamed completion, invoking cb for every text
// chunk in arrival order, and returns the accumulated text. Cancelling ctx
// cancels the in-flight request.
func (c *Client) CompleteStream(ctx context.Context, req *Request, cb StreamCallback) (string, error) {
	params, err := convertRequest(req)
	if err != nil {
		return "", err
	}

	stream := c.oai.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if err := cb(ctx, delta); err != nil {
			return "", err
		}
	}
	if err := stream.Err(); err != nil {
		return "", errors.Wrapf(errors.ErrUpstreamUnavailable, "chat completion stream failed: %v", err)
	}

	return sb.String(), nil
}

// Embed turns texts into fixed-length vectors using the given embedding
// model. The result preserves input order.
func (c *Client) Embed(ctx context.Context, model string, texts ...string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := goopenai.EmbeddingNewParams{
		Input:          goopenai.F[goopenai.EmbeddingNewParamsInputUnion](goopenai.EmbeddingNewParamsInputArrayOfStrings(texts)),
		Model:          goopenai.F(goopenai.EmbeddingModel(model)),
		EncodingFormat: goopenai.F(goopenai.EmbeddingNewParamsEncodingFormatFloat),
	}

	res, err := c.oai.Embeddings.New(ctx, params)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "embedding request failed: %v", err)
	}

	embeddings := make([][]float32, len(res.Data))
	for i, emb := range res.Data {
		embedding := make([]float32, len(emb.Embedding))
		for j, val := range emb.Embedding {
			embedding[j] = float32(val)
		}
		embeddings[i] = embedding
	}

	return embeddings, nil
}
