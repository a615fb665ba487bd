package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func newTestSettings(seed map[string]any, env map[string]string) (*SettingsService, *memory.ConfigStore) {
	store := memory.NewConfigStore(seed)
	svc := NewSettingsService(store, nil)
	svc.getenv = func(k string) string { return env[k] }
	return svc, store
}

func TestSettingsService_Get_Defaults(t *testing.T) {
	svc, _ := newTestSettings(nil, nil)

	settings, err := svc.Get()
	require.NoError(t, err)

	d := domain.DefaultAppSettings()
	assert.Equal(t, d, *settings)
}

func TestSettingsService_Get_StoredValues(t *testing.T) {
	svc, _ := newTestSettings(map[string]any{
		keyEmbedProvider: "ollama",
		keyLLMProvider:   "anthropic",
		keyVectorBackend: "pgvector",
		keyVectorDSN:     "postgres://localhost/rag",
		keyRAGScopeKey:   "tenant",
		keyRAGTopK:       int64(8),
		keyRAGThreshold:  0.35,
		keyRAGLocale:     "zh",
		keyChunkStrategy: "paragraph",
		keyChunkSize:     int64(300),
		keyChunkOverlap:  int64(30),
		keyEmbedRate:     int64(4),
		keyVectorColl:    "kb",
		keyChunkMaxPara:  int64(800),
	}, nil)

	settings, err := svc.Get()
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", settings.Embedding.Model)
	assert.InDelta(t, 4.0, settings.Embedding.RatePerSecond, 1e-9)
	assert.Equal(t, domain.AIProviderAnthropic, settings.LLM.Provider)
	assert.Equal(t, domain.DefaultLLMModels()[domain.AIProviderAnthropic], settings.LLM.Model)
	assert.Equal(t, domain.VectorBackendPgVector, settings.Vector.Backend)
	assert.Equal(t, "postgres://localhost/rag", settings.Vector.DSN)
	assert.Equal(t, "kb", settings.Vector.Collection)
	assert.Equal(t, domain.RAGSettings{
		ScopeKey:       "tenant",
		TopK:           8,
		ScoreThreshold: 0.35,
		Locale:         domain.LocaleChinese,
	}, settings.RAG)
	assert.Equal(t, domain.ChunkerSettings{
		Strategy:     domain.ChunkStrategyParagraph,
		Size:         300,
		Overlap:      30,
		MaxParagraph: 800,
	}, settings.Chunker)
}

func TestSettingsService_Get_ExplicitModelWins(t *testing.T) {
	svc, _ := newTestSettings(map[string]any{
		keyEmbedProvider: "ollama",
		keyEmbedModel:    "mxbai-embed-large",
	}, nil)

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, "mxbai-embed-large", settings.Embedding.Model)
}

func TestSettingsService_Get_EnvironmentOverrides(t *testing.T) {
	svc, _ := newTestSettings(map[string]any{
		keyEmbedAPIKey:   "sk-file",
		keyLLMProvider:   "anthropic",
		keyVectorBackend: "qdrant",
	}, map[string]string{
		envOpenAIKey:    "sk-env",
		envAnthropicKey: "ant-env",
		envPostgresDSN:  "postgres://env",
		envQdrantAPIKey: "qd-env",
	})

	settings, err := svc.Get()
	require.NoError(t, err)

	assert.Equal(t, "sk-env", settings.Embedding.APIKey)
	assert.Equal(t, "ant-env", settings.LLM.APIKey)
	assert.Equal(t, "postgres://env", settings.Vector.DSN)
	assert.Equal(t, "qd-env", settings.Vector.APIKey)
}

func TestSettingsService_Get_OllamaIgnoresOpenAIKey(t *testing.T) {
	svc, _ := newTestSettings(map[string]any{
		keyEmbedProvider: "ollama",
		keyLLMProvider:   "ollama",
	}, map[string]string{envOpenAIKey: "sk-env"})

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Empty(t, settings.Embedding.APIKey)
	assert.Empty(t, settings.LLM.APIKey)
}

func TestSettingsService_Save_RoundTrip(t *testing.T) {
	svc, store := newTestSettings(nil, nil)

	settings := domain.DefaultAppSettings()
	settings.Embedding.Provider = domain.AIProviderOllama
	settings.Embedding.Model = "nomic-embed-text"
	settings.RAG.TopK = 3
	settings.RAG.Locale = domain.LocaleChinese
	settings.Vector.Path = "/tmp/rag.db"
	settings.LLM.APIKey = "sk-llm"

	require.NoError(t, svc.Save(&settings))

	got, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, settings, *got)

	_, written := store.Get(keyEmbedAPIKey)
	assert.False(t, written, "empty secrets are not written")
}

func TestSettingsService_Save_KeepsStoredSecret(t *testing.T) {
	svc, store := newTestSettings(map[string]any{keyLLMAPIKey: "sk-stored"}, nil)

	settings := domain.DefaultAppSettings()
	require.NoError(t, svc.Save(&settings))

	assert.Equal(t, "sk-stored", store.GetString(keyLLMAPIKey))
}

func TestSettingsService_Set(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  any
	}{
		{keyRAGTopK, " 7 ", 7},
		{keyRAGThreshold, "0.25", 0.25},
		{keyEmbedProvider, "Ollama", "ollama"},
		{keyLLMProvider, "anthropic", "anthropic"},
		{keyVectorBackend, "PGVECTOR", "pgvector"},
		{keyRAGLocale, "ZH", "zh"},
		{keyChunkStrategy, "paragraph", "paragraph"},
		{keyVectorURL, "http://qdrant:6333", "http://qdrant:6333"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			svc, store := newTestSettings(nil, nil)

			require.NoError(t, svc.Set(tt.key, tt.value))

			got, ok := store.Get(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettingsService_Set_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "search.mode", "hybrid"},
		{"non-integer", keyRAGTopK, "five"},
		{"non-number", keyRAGThreshold, "high"},
		{"unknown provider", keyLLMProvider, "cohere"},
		{"anthropic embeddings", keyEmbedProvider, "anthropic"},
		{"unknown backend", keyVectorBackend, "milvus"},
		{"unknown locale", keyRAGLocale, "fr"},
		{"unknown strategy", keyChunkStrategy, "sentence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestSettings(nil, nil)

			err := svc.Set(tt.key, tt.value)

			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Empty(t, store.Keys())
		})
	}
}

func TestSettingsService_Display_MasksSecrets(t *testing.T) {
	svc, _ := newTestSettings(map[string]any{
		keyLLMAPIKey:  "sk-secret",
		keyVectorDSN:  "postgres://user:pw@host/db",
		keyVectorColl: "kb",
	}, nil)

	display, err := svc.Display()
	require.NoError(t, err)

	assert.Equal(t, secretDisplayValue, display[keyLLMAPIKey])
	assert.Equal(t, secretDisplayValue, display[keyVectorDSN])
	assert.Empty(t, display[keyEmbedAPIKey])
	assert.Equal(t, "kb", display[keyVectorColl])
	assert.Equal(t, "5", display[keyRAGTopK])

	for _, key := range SettingKeys() {
		_, ok := display[key]
		assert.True(t, ok, "display is missing %s", key)
	}
}

func TestIsSecretKey(t *testing.T) {
	assert.True(t, IsSecretKey(keyEmbedAPIKey))
	assert.True(t, IsSecretKey(keyVectorAPIKey))
	assert.True(t, IsSecretKey(keyVectorDSN))
	assert.False(t, IsSecretKey(keyVectorURL))
	assert.False(t, IsSecretKey(keyRAGScopeKey))
}

func TestSettingsService_Validate(t *testing.T) {
	t.Run("configured ollama with sqlite", func(t *testing.T) {
		svc, _ := newTestSettings(map[string]any{
			keyEmbedProvider: "ollama",
			keyLLMProvider:   "ollama",
		}, nil)
		assert.NoError(t, svc.Validate())
	})

	t.Run("reports every problem", func(t *testing.T) {
		svc, _ := newTestSettings(map[string]any{
			keyVectorBackend: "pgvector",
			keyRAGTopK:       int64(0),
			keyChunkSize:     int64(100),
			keyChunkOverlap:  int64(100),
		}, nil)

		err := svc.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		msg := err.Error()
		assert.Contains(t, msg, "embedding provider")
		assert.Contains(t, msg, "llm provider")
		assert.Contains(t, msg, "vector.dsn")
		assert.Contains(t, msg, "rag.top_k")
		assert.Contains(t, msg, "chunker.overlap")
	})

	t.Run("key from environment is enough", func(t *testing.T) {
		svc, _ := newTestSettings(nil, map[string]string{envOpenAIKey: "sk-env"})
		assert.NoError(t, svc.Validate())
	})
}

type stubValidator struct {
	embedErr, llmErr, vectorErr error
	seen                        []string
}

func (v *stubValidator) ValidateEmbedding(s *domain.EmbeddingSettings) error {
	v.seen = append(v.seen, "embedding:"+s.Provider.String())
	return v.embedErr
}

func (v *stubValidator) ValidateLLM(s *domain.LLMSettings) error {
	v.seen = append(v.seen, "llm:"+s.Provider.String())
	return v.llmErr
}

func (v *stubValidator) ValidateVectorStore(s *domain.VectorStoreSettings) error {
	v.seen = append(v.seen, "vector:"+s.Backend.String())
	return v.vectorErr
}

func TestSettingsService_CheckConnectivity(t *testing.T) {
	t.Run("without validator", func(t *testing.T) {
		svc, _ := newTestSettings(nil, nil)
		assert.NoError(t, svc.CheckConnectivity())
	})

	t.Run("checks every service", func(t *testing.T) {
		v := &stubValidator{
			llmErr:    errors.New("llm down"),
			vectorErr: errors.New("qdrant down"),
		}
		svc, _ := newTestSettings(map[string]any{keyVectorBackend: "qdrant"}, nil)
		svc.validator = v

		err := svc.CheckConnectivity()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "llm: llm down")
		assert.Contains(t, err.Error(), "vector: qdrant down")
		assert.NotContains(t, err.Error(), "embedding:")
		assert.Equal(t, []string{"embedding:openai", "llm:openai", "vector:qdrant"}, v.seen)
	})
}

func TestSettingsService_GetDefaults(t *testing.T) {
	svc, _ := newTestSettings(nil, nil)
	assert.Equal(t, domain.DefaultAppSettings(), svc.GetDefaults())
}
