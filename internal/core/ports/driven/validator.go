package driven

import "github.com/custodia-labs/sercha-rag/internal/core/domain"

// ConfigValidator verifies settings by connecting to the services they name.
// Each method returns nil when the section is not configured.
type ConfigValidator interface {
	// ValidateEmbedding pings the embedding provider.
	ValidateEmbedding(config *domain.EmbeddingSettings) error

	// ValidateLLM pings the generation provider.
	ValidateLLM(config *domain.LLMSettings) error

	// ValidateVectorStore opens the vector backend. A missing collection is
	// not an error.
	ValidateVectorStore(config *domain.VectorStoreSettings) error
}
