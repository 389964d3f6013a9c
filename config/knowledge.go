package config

type KnowledgeConfig struct {
	// SqlitePath is the file path of the relational knowledge database.
	// Default: ":memory:".
	SqlitePath string `env:"KNOWLEDGE_SQLITE_PATH"`

	// VectorPath is the file path of the vector index database. It is a
	// separate database from SqlitePath on purpose: the two stores share no
	// transaction and are kept consistent by write ordering.
	// Default: ":memory:".
	VectorPath string `env:"KNOWLEDGE_VECTOR_PATH"`

	// VectorDimension is the embedding width the vector index is created
	// with. Must match the embedding model.
	// Default: 1536 (text-embedding-3-small).
	VectorDimension int `env:"KNOWLEDGE_VECTOR_DIMENSION"`

	// TopK is the default number of nearest neighbours fetched per query.
	TopK int `env:"MODEL_TOPK"`
}

func NewKnowledgeConfig() *KnowledgeConfig {
	return &KnowledgeConfig{
		SqlitePath:      ":memory:",
		VectorPath:      ":memory:",
		VectorDimension: 1536,
		TopK:            4,
	}
}

func (c *KnowledgeConfig) Resolve(testing bool) error {
	return resolveConfig(c, testing)
}
