package config

type OpenAIConfig struct {
	// APIKey authenticates against the OpenAI API. Required for both
	// generation and embeddings.
	APIKey string `env:"OPENAI_API_KEY"`

	// ModelName is the chat model used for answering and rephrasing.
	ModelName string `env:"OPENAI_MODEL_NAME"`

	// EmbeddingModel turns knowledge text and queries into vectors.
	EmbeddingModel string `env:"OPENAI_EMBEDDING_MODEL"`

	Temperature float64 `env:"OPENAI_MODEL_TEMPERATURE"`
	MaxTokens   int     `env:"OPENAI_MODEL_MAX_TOKEN"`
}

func NewOpenAIConfig() *OpenAIConfig {
	return &OpenAIConfig{
		ModelName:      "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
		Temperature:    0.2,
		MaxTokens:      1024,
	}
}

func (c *OpenAIConfig) Resolve(testing bool) error {
	return resolveConfig(c, testing)
}
