package domain

import (
	"fmt"
	"strings"
)

// unknownDescription is returned by Description() for unrecognised enum values.
const unknownDescription = "Unknown"

// AIProvider represents supported AI service providers.
type AIProvider string

const (
	// AIProviderOllama is the local Ollama server.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI API or any OpenAI-compatible endpoint.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic API (generation only).
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if the provider requires an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// VectorBackend selects the vector index adapter.
type VectorBackend string

const (
	// VectorBackendMemory keeps points in process memory.
	VectorBackendMemory VectorBackend = "memory"

	// VectorBackendSQLite is the embedded store addressed by a filesystem path.
	VectorBackendSQLite VectorBackend = "sqlite"

	// VectorBackendPgVector is a remote Postgres with the pgvector extension.
	VectorBackendPgVector VectorBackend = "pgvector"

	// VectorBackendQdrant is a remote Qdrant server.
	VectorBackendQdrant VectorBackend = "qdrant"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	switch b {
	case VectorBackendMemory, VectorBackendSQLite, VectorBackendPgVector, VectorBackendQdrant:
		return true
	default:
		return false
	}
}

// IsRemote reports whether the backend is addressed by host and credentials.
func (b VectorBackend) IsRemote() bool {
	return b == VectorBackendPgVector || b == VectorBackendQdrant
}

// String returns the string representation.
func (b VectorBackend) String() string {
	return string(b)
}

// Description returns a human-readable description.
func (b VectorBackend) Description() string {
	switch b {
	case VectorBackendMemory:
		return "In-memory (not persisted)"
	case VectorBackendSQLite:
		return "SQLite (embedded, local file)"
	case VectorBackendPgVector:
		return "PostgreSQL + pgvector (remote)"
	case VectorBackendQdrant:
		return "Qdrant (remote)"
	default:
		return unknownDescription
	}
}

// Locale selects the prompt language and display labels.
type Locale string

const (
	// LocaleEnglish renders English labels and instructions.
	LocaleEnglish Locale = "en"

	// LocaleChinese renders Simplified Chinese labels and instructions.
	LocaleChinese Locale = "zh"
)

// IsValid returns true if the locale is supported.
func (l Locale) IsValid() bool {
	return l == LocaleEnglish || l == LocaleChinese
}

// ChunkStrategy selects the chunking algorithm used at index time.
type ChunkStrategy string

const (
	// ChunkStrategyFixed uses fixed-size windows snapped to whitespace.
	ChunkStrategyFixed ChunkStrategy = "fixed"

	// ChunkStrategyParagraph packs whole paragraphs up to a size cap.
	ChunkStrategyParagraph ChunkStrategy = "paragraph"
)

// IsValid returns true if the strategy is recognised.
func (s ChunkStrategy) IsValid() bool {
	return s == ChunkStrategyFixed || s == ChunkStrategyParagraph
}

// EmbeddingSettings configures the embedding provider.
type EmbeddingSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string

	// RatePerSecond caps outbound embedding requests. Zero disables limiting.
	RatePerSecond float64
}

// IsConfigured returns true if the settings are sufficient to build a client.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings configures the generation provider.
type LLMSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured returns true if the settings are sufficient to build a client.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// VectorStoreSettings configures the vector index backend.
type VectorStoreSettings struct {
	Backend VectorBackend

	// Collection is the collection or table name.
	Collection string

	// Path is the database file for the embedded backend.
	Path string

	// DSN is the Postgres connection string for pgvector.
	DSN string

	// URL is the Qdrant base URL.
	URL string

	// APIKey authenticates against Qdrant.
	APIKey string
}

// RAGSettings configures retrieval and prompt composition.
type RAGSettings struct {
	// ScopeKey is the metadata key used for tenant isolation. It must be the
	// same at index and query time.
	ScopeKey string

	// TopK is the default number of chunks retrieved.
	TopK int

	// ScoreThreshold is the minimum similarity for a retrieved chunk.
	ScoreThreshold float64

	// Locale selects prompt language and labels.
	Locale Locale
}

// ChunkerSettings configures index-time chunking.
type ChunkerSettings struct {
	Strategy     ChunkStrategy
	Size         int
	Overlap      int
	MaxParagraph int
}

// Fingerprint describes the settings that decide chunk boundaries. An empty
// strategy reads as fixed.
func (c ChunkerSettings) Fingerprint() string {
	strategy := c.Strategy
	if strategy == "" {
		strategy = ChunkStrategyFixed
	}
	return fmt.Sprintf("%s size=%d overlap=%d paragraph=%d", strategy, c.Size, c.Overlap, c.MaxParagraph)
}

// AppSettings aggregates all user-configurable settings.
type AppSettings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Vector    VectorStoreSettings
	RAG       RAGSettings
	Chunker   ChunkerSettings
}

// DefaultAppSettings returns settings used when no configuration exists.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider: AIProviderOpenAI,
			Model:    DefaultEmbeddingModels()[AIProviderOpenAI],
		},
		LLM: LLMSettings{
			Provider: AIProviderOpenAI,
			Model:    DefaultLLMModels()[AIProviderOpenAI],
		},
		Vector: VectorStoreSettings{
			Backend:    VectorBackendSQLite,
			Collection: "documents",
			URL:        "http://localhost:6333",
		},
		RAG: RAGSettings{
			ScopeKey:       DefaultScopeKey,
			TopK:           DefaultTopK,
			ScoreThreshold: 0.0,
			Locale:         LocaleEnglish,
		},
		Chunker: ChunkerSettings{
			Strategy:     ChunkStrategyFixed,
			Size:         500,
			Overlap:      50,
			MaxParagraph: 1000,
		},
	}
}

// DefaultEmbeddingModels returns the default embedding model per provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns the default LLM model per provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns known vector sizes for embedding models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// ParseVectorBackend normalises user input into a VectorBackend.
func ParseVectorBackend(s string) VectorBackend {
	return VectorBackend(strings.ToLower(strings.TrimSpace(s)))
}
