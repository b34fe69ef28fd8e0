package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: DefaultServerConfig(),
		Qdrant: DefaultQdrantConfig(),
		Ollama: DefaultOllamaConfig(),
		Engine: DefaultEngineConfig(),
		Log:    DefaultLogConfig(),
	}
}

// DefaultServerConfig returns the default HTTP server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		MaxUploadBytes:  32 << 20,
	}
}

// DefaultQdrantConfig returns the default vector store configuration.
func DefaultQdrantConfig() QdrantConfig {
	return QdrantConfig{
		BaseURL:    "http://localhost:6333",
		Collection: "session_documents",
		Timeout:    30 * time.Second,
	}
}

// DefaultOllamaConfig returns the default model backend configuration.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		BaseURL:    "http://localhost:11434",
		Model:      "llama3",
		EmbedModel: "nomic-embed-text",
		Timeout:    60 * time.Second,
	}
}

// DefaultEngineConfig returns the default pipeline configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TopK:           5,
		TargetLanguage: "Russian",
		ContextTokens:  3000,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}
