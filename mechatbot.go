package mechatbot

import (
	"context"
	"log/slog"

	"github.com/mechatbot/mechatbot/config"
	"github.com/mechatbot/mechatbot/engine"
	"github.com/mechatbot/mechatbot/errors"
	"github.com/mechatbot/mechatbot/internal/llm"
	"github.com/mechatbot/mechatbot/internal/mylog"
	"github.com/mechatbot/mechatbot/knowledge"
)

type (
	// MeChatbot bundles the knowledge lifecycle and the answer pipeline
	// behind one handle. The zero configuration runs fully in memory, which
	// is what the tests and local experiments use; production wires the
	// sqlite-backed store and index through options.
	MeChatbot struct {
		logger    *slog.Logger
		store     knowledge.Store
		index     knowledge.VectorIndex
		embedder  knowledge.Embedder
		model     engine.ModelClient
		manager   *knowledge.Manager
		retriever *knowledge.Retriever
		engine    *engine.Engine

		openaiConfig    *config.OpenAIConfig
		knowledgeConfig *config.KnowledgeConfig
		chatConfig      *config.ChatConfig
		logConfig       *config.LogConfig
	}
	Option func(*MeChatbot)
)

func New(ctx context.Context, optionFuncs ...Option) (*MeChatbot, error) {
	m := &MeChatbot{
		openaiConfig:    config.NewOpenAIConfig(),
		knowledgeConfig: config.NewKnowledgeConfig(),
		chatConfig:      config.NewChatConfig(),
		logConfig:       config.NewLogConfig(),
	}
	for _, f := range optionFuncs {
		f(m)
	}

	if m.logger == nil {
		m.logger = mylog.NewLogger(m.logConfig.LogLevel, m.logConfig.LogHandler)
	}

	if m.model == nil || m.embedder == nil {
		if m.openaiConfig.APIKey == "" {
			return nil, errors.New("openai api key is required")
		}
		client := llm.NewClient(m.openaiConfig.APIKey)
		if m.model == nil {
			m.model = client
		}
		if m.embedder == nil {
			m.embedder = knowledge.NewOpenAIEmbedder(client, m.openaiConfig.EmbeddingModel)
		}
	}

	if m.store == nil {
		m.store = knowledge.NewMemoryStore()
	}
	if m.index == nil {
		m.index = knowledge.NewMemoryIndex()
	}

	m.manager = knowledge.NewManager(m.store, m.index, m.logger)
	m.retriever = knowledge.NewRetriever(m.embedder, m.index, m.store, m.logger)
	m.engine = engine.NewEngine(
		m.logger,
		m.model,
		m.retriever,
		m.store,
		m.openaiConfig,
		m.chatConfig,
		m.knowledgeConfig,
	)

	return m, nil
}

// Ask runs one answer turn and streams its events.
func (m *MeChatbot) Ask(ctx context.Context, req *engine.AskRequest) (<-chan engine.Event, error) {
	return m.engine.Ask(ctx, req)
}

// UpsertKnowledge stores one piece of knowledge. When the request carries no
// vector it is embedded here first.
func (m *MeChatbot) UpsertKnowledge(ctx context.Context, req knowledge.UpsertRequest) (*knowledge.UpsertResult, error) {
	if len(req.Vector) == 0 && req.Text != "" {
		vectors, err := m.embedder.Embed(ctx, req.Text)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrEmbeddingUnavailable, "failed to embed knowledge text: %v", err)
		}
		if len(vectors) > 0 {
			req.Vector = vectors[0]
		}
	}
	return m.manager.Upsert(ctx, req)
}

func (m *MeChatbot) DeleteKnowledge(ctx context.Context, id string) error {
	return m.manager.Delete(ctx, id)
}

func (m *MeChatbot) DeleteInstance(ctx context.Context, scope knowledge.Scope) (int, error) {
	return m.manager.DeleteByScope(ctx, scope)
}

func (m *MeChatbot) DeleteRevision(ctx context.Context, scope knowledge.Scope, label string) (int64, error) {
	return m.manager.DeleteRevision(ctx, scope, label)
}

func (m *MeChatbot) ListInstances(ctx context.Context, createdBy string) ([]string, error) {
	return m.store.ListInstanceNames(ctx, createdBy)
}

func (m *MeChatbot) ListRevisionLabels(ctx context.Context, scope knowledge.Scope) ([]string, error) {
	return m.store.ListRevisionLabels(ctx, scope)
}

func (m *MeChatbot) GetPersona(ctx context.Context, scope knowledge.Scope) (string, error) {
	return m.store.GetPersona(ctx, scope)
}

func (m *MeChatbot) SetPersona(ctx context.Context, scope knowledge.Scope, prompt string) error {
	return m.store.SetPersona(ctx, scope, prompt)
}

func (m *MeChatbot) Retrieve(ctx context.Context, query string, topK int, filter *knowledge.Scope) ([]knowledge.Document, error) {
	if topK <= 0 {
		topK = m.knowledgeConfig.TopK
	}
	return m.retriever.Retrieve(ctx, query, topK, filter)
}

func (m *MeChatbot) Manager() *knowledge.Manager {
	return m.manager
}

func (m *MeChatbot) Store() knowledge.Store {
	return m.store
}

func (m *MeChatbot) Engine() *engine.Engine {
	return m.engine
}

func (m *MeChatbot) Logger() *slog.Logger {
	return m.logger
}

func (m *MeChatbot) Close() error {
	if err := m.index.Close(); err != nil {
		return errors.Wrapf(err, "failed to close vector index")
	}
	if err := m.store.Close(); err != nil {
		return errors.Wrapf(err, "failed to close knowledge store")
	}
	return nil
}

func WithOpenAIAPIKey(apiKey string) Option {
	return func(m *MeChatbot) {
		m.openaiConfig.APIKey = apiKey
	}
}

func WithOpenAIConfig(conf *config.OpenAIConfig) Option {
	return func(m *MeChatbot) {
		m.openaiConfig = conf
	}
}

func WithKnowledgeConfig(conf *config.KnowledgeConfig) Option {
	return func(m *MeChatbot) {
		m.knowledgeConfig = conf
	}
}

func WithChatConfig(conf *config.ChatConfig) Option {
	return func(m *MeChatbot) {
		m.chatConfig = conf
	}
}

func WithLogConfig(conf *config.LogConfig) Option {
	return func(m *MeChatbot) {
		m.logConfig = conf
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *MeChatbot) {
		m.logger = logger
	}
}

func WithStore(store knowledge.Store) Option {
	return func(m *MeChatbot) {
		m.store = store
	}
}

func WithVectorIndex(index knowledge.VectorIndex) Option {
	return func(m *MeChatbot) {
		m.index = index
	}
}

func WithEmbedder(embedder knowledge.Embedder) Option {
	return func(m *MeChatbot) {
		m.embedder = embedder
	}
}

func WithModelClient(model engine.ModelClient) Option {
	return func(m *MeChatbot) {
		m.model = model
	}
}
