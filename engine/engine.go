package engine

import (
	"context"
	"log/slog"

	"github.com/mechatbot/mechatbot/chat"
	"github.com/mechatbot/mechatbot/config"
	"github.com/mechatbot/mechatbot/internal/llm"
	"github.com/mechatbot/mechatbot/knowledge"
)

type (
	// ModelClient is the slice of the chat model surface the engine needs.
	ModelClient interface {
		Complete(ctx context.Context, req *llm.Request) (string, error)
		CompleteStream(ctx context.Context, req *llm.Request, cb llm.StreamCallback) (string, error)
	}

	DocumentRetriever interface {
		Retrieve(ctx context.Context, query string, topK int, filter *knowledge.Scope) ([]knowledge.Document, error)
	}

	PersonaSource interface {
		GetPersona(ctx context.Context, scope knowledge.Scope) (string, error)
	}

	Engine struct {
		logger    *slog.Logger
		model     ModelClient
		retriever DocumentRetriever
		personas  PersonaSource

		modelName   string
		temperature float64
		maxTokens   int

		historyWindow int
		topK          int
	}

	AskRequest struct {
		Question     string      `json:"question"`
		History      []chat.Turn `json:"history,omitempty"`
		CreatedBy    string      `json:"createdBy"`
		InstanceName string      `json:"instanceName"`

		// TopK overrides the configured neighbour count when positive.
		TopK int `json:"topK,omitempty"`
	}
)

func NewEngine(
	logger *slog.Logger,
	model ModelClient,
	retriever DocumentRetriever,
	personas PersonaSource,
	openaiConf *config.OpenAIConfig,
	chatConf *config.ChatConfig,
	knowledgeConf *config.KnowledgeConfig,
) *Engine {
	return &Engine{
		logger:        logger,
		model:         model,
		retriever:     retriever,
		personas:      personas,
		modelName:     openaiConf.ModelName,
		temperature:   openaiConf.Temperature,
		maxTokens:     openaiConf.MaxTokens,
		historyWindow: chatConf.HistoryWindow,
		topK:          knowledgeConf.TopK,
	}
}

func (r *AskRequest) scope() knowledge.Scope {
	return knowledge.Scope{
		CreatedBy:    r.CreatedBy,
		InstanceName: r.InstanceName,
	}
}
