package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAIProvider_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		provider AIProvider
		expected bool
	}{
		{"ollama is valid", AIProviderOllama, true},
		{"openai is valid", AIProviderOpenAI, true},
		{"anthropic is valid", AIProviderAnthropic, true},
		{"empty is invalid", AIProvider(""), false},
		{"unknown is invalid", AIProvider("cohere"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.provider.IsValid())
		})
	}
}

func TestAIProvider_Description(t *testing.T) {
	assert.Equal(t, "Ollama (local)", AIProviderOllama.Description())
	assert.Equal(t, "OpenAI (cloud)", AIProviderOpenAI.Description())
	assert.Equal(t, "Anthropic (cloud)", AIProviderAnthropic.Description())
	assert.Equal(t, "Unknown", AIProvider("x").Description())
}

func TestVectorBackend(t *testing.T) {
	for _, b := range []VectorBackend{VectorBackendMemory, VectorBackendSQLite, VectorBackendPgVector, VectorBackendQdrant} {
		assert.True(t, b.IsValid(), b.String())
		assert.NotEqual(t, "Unknown", b.Description())
	}
	assert.False(t, VectorBackend("chroma").IsValid())

	assert.True(t, VectorBackendPgVector.IsRemote())
	assert.True(t, VectorBackendQdrant.IsRemote())
	assert.False(t, VectorBackendSQLite.IsRemote())
	assert.False(t, VectorBackendMemory.IsRemote())

	assert.Equal(t, VectorBackendQdrant, ParseVectorBackend("  Qdrant "))
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings EmbeddingSettings
		expected bool
	}{
		{"ollama without key", EmbeddingSettings{Provider: AIProviderOllama}, true},
		{"openai with key", EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "sk"}, true},
		{"openai without key", EmbeddingSettings{Provider: AIProviderOpenAI}, false},
		{"anthropic cannot embed", EmbeddingSettings{Provider: AIProviderAnthropic, APIKey: "k"}, false},
		{"empty provider", EmbeddingSettings{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.settings.IsConfigured())
		})
	}
}

func TestLLMSettings_IsConfigured(t *testing.T) {
	assert.True(t, LLMSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderAnthropic, APIKey: "k"}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderAnthropic}.IsConfigured())
	assert.False(t, LLMSettings{}.IsConfigured())
}

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, VectorBackendSQLite, s.Vector.Backend)
	assert.Equal(t, "documents", s.Vector.Collection)
	assert.Equal(t, DefaultScopeKey, s.RAG.ScopeKey)
	assert.Equal(t, 5, s.RAG.TopK)
	assert.Equal(t, 0.0, s.RAG.ScoreThreshold)
	assert.Equal(t, LocaleEnglish, s.RAG.Locale)
	assert.Equal(t, 500, s.Chunker.Size)
	assert.Equal(t, 50, s.Chunker.Overlap)
	assert.Equal(t, 1000, s.Chunker.MaxParagraph)
	assert.Equal(t, ChunkStrategyFixed, s.Chunker.Strategy)
	assert.Equal(t, "text-embedding-3-small", s.Embedding.Model)
	assert.Equal(t, "gpt-4o-mini", s.LLM.Model)
}

func TestEmbeddingDimensions(t *testing.T) {
	dims := EmbeddingDimensions()
	assert.Equal(t, 1536, dims["text-embedding-3-small"])
	assert.Equal(t, 768, dims["nomic-embed-text"])
}

func TestLocaleAndStrategy_IsValid(t *testing.T) {
	assert.True(t, LocaleEnglish.IsValid())
	assert.True(t, LocaleChinese.IsValid())
	assert.False(t, Locale("fr").IsValid())

	assert.True(t, ChunkStrategyFixed.IsValid())
	assert.True(t, ChunkStrategyParagraph.IsValid())
	assert.False(t, ChunkStrategy("semantic").IsValid())
}

func TestDefaultPreamble(t *testing.T) {
	assert.Contains(t, DefaultPreamble(LocaleEnglish), "Reply in English")
	assert.Contains(t, DefaultPreamble(LocaleChinese), "请用中文回答")
	assert.Equal(t, DefaultPreamble(LocaleEnglish), DefaultPreamble("fr"))
}
