package config

type ServerConfig struct {
	Host string `env:"HOST"`
	Port int    `env:"PORT"`

	// BearerToken guards every mutating endpoint. Empty disables the check,
	// which is only acceptable for local development.
	BearerToken string `env:"SECRET_BEARER_TOKEN"`
}

func NewServerConfig() *ServerConfig {
	return &ServerConfig{
		Host: "0.0.0.0",
		Port: 3000,
	}
}

func (c *ServerConfig) Resolve(testing bool) error {
	return resolveConfig(c, testing)
}
