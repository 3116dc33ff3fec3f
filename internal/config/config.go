package config

import (
	"os"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LogLevel   string            `mapstructure:"log_level"`
	LLM        LLMConfig         `mapstructure:"llm"`
	Embedding  EmbeddingConfig   `mapstructure:"embedding"`
	Index      IndexConfig       `mapstructure:"index"`
	Agent      AgentConfig       `mapstructure:"agent"`
	History    HistoryConfig     `mapstructure:"history"`
	Server     ServerConfig      `mapstructure:"server"`
	MCPServers []MCPServerConfig `mapstructure:"mcp_servers"`
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	Provider     string `mapstructure:"provider"`
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// EmbeddingConfig holds the embedding model configuration
type EmbeddingConfig struct {
	Model string `mapstructure:"model"`
}

// IndexConfig holds the vector index configuration.
// Namespace selects the collection the retriever queries.
type IndexConfig struct {
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
	TopK      int    `mapstructure:"top_k"`
}

// AgentConfig holds the answer-generation configuration.
// Mode is either "agent" (tool-calling loop) or "direct" (retrieve then answer).
type AgentConfig struct {
	Mode          string `mapstructure:"mode"`
	MaxTurns      int    `mapstructure:"max_turns"`
	StreamDelayMS int    `mapstructure:"stream_delay_ms"`
}

// HistoryConfig holds the session history store configuration.
// MaxSessions of 0 keeps history unbounded.
type HistoryConfig struct {
	DBPath      string `mapstructure:"db_path"`
	MaxSessions int    `mapstructure:"max_sessions"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// ClientType identifies the transport used to reach an MCP server.
type ClientType string

const (
	ClientTypeSSE            ClientType = "sse"
	ClientTypeStreamableHTTP ClientType = "streamable_http"
	ClientTypeStdio          ClientType = "stdio"
)

// MCPServerConfig holds the configuration of a single MCP server whose tools
// are registered into the tool set at startup.
type MCPServerConfig struct {
	Name    string            `mapstructure:"name"`
	Type    ClientType        `mapstructure:"type"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
}

// Load loads the configuration from config.yaml, or from the file named by
// the CONFIG_PATH environment variable when set.
func Load() (*Config, error) {
	v := viper.New()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetDefault("log_level", "info")
	v.SetDefault("llm.model", "gpt-3.5-turbo")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("index.namespace", "default")
	v.SetDefault("index.top_k", 4)
	v.SetDefault("agent.mode", "agent")
	v.SetDefault("agent.max_turns", 5)
	v.SetDefault("agent.stream_delay_ms", 20)
	v.SetDefault("server.port", "8080")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
