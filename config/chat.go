package config

type ChatConfig struct {
	// HistoryWindow is the maximum number of conversation turns forwarded to
	// the model. Older turns are dropped, newest kept.
	HistoryWindow int `env:"HISTORY_MODEL_LIMIT"`
}

func NewChatConfig() *ChatConfig {
	return &ChatConfig{
		HistoryWindow: 10,
	}
}

func (c *ChatConfig) Resolve(testing bool) error {
	return resolveConfig(c, testing)
}
