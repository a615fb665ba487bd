package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedRate       = "embedding.rate_per_second"
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"
	keyVectorBackend   = "vector.backend"
	keyVectorColl      = "vector.collection"
	keyVectorPath      = "vector.path"
	keyVectorDSN       = "vector.dsn"
	keyVectorURL       = "vector.url"
	keyVectorAPIKey    = "vector.api_key"
	keyRAGScopeKey     = "rag.scope_key"
	keyRAGTopK         = "rag.top_k"
	keyRAGThreshold    = "rag.score_threshold"
	keyRAGLocale       = "rag.locale"
	keyChunkSize       = "chunker.size"
	keyChunkOverlap    = "chunker.overlap"
	keyChunkStrategy   = "chunker.strategy"
	keyChunkMaxPara    = "chunker.max_paragraph"
	envOpenAIKey       = "OPENAI_API_KEY"
	envAnthropicKey    = "ANTHROPIC_API_KEY"
	envPostgresDSN     = "SERCHA_RAG_PG_DSN"
	envQdrantAPIKey    = "QDRANT_API_KEY"
	secretDisplayValue = "********"
)

// keyKind says how Set parses a string value.
type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindFloat
	kindProvider
	kindBackend
	kindLocale
	kindStrategy
)

var settingKeys = map[string]keyKind{
	keyEmbedProvider: kindProvider,
	keyEmbedModel:    kindString,
	keyEmbedBaseURL:  kindString,
	keyEmbedAPIKey:   kindString,
	keyEmbedRate:     kindFloat,
	keyLLMProvider:   kindProvider,
	keyLLMModel:      kindString,
	keyLLMBaseURL:    kindString,
	keyLLMAPIKey:     kindString,
	keyVectorBackend: kindBackend,
	keyVectorColl:    kindString,
	keyVectorPath:    kindString,
	keyVectorDSN:     kindString,
	keyVectorURL:     kindString,
	keyVectorAPIKey:  kindString,
	keyRAGScopeKey:   kindString,
	keyRAGTopK:       kindInt,
	keyRAGThreshold:  kindFloat,
	keyRAGLocale:     kindLocale,
	keyChunkSize:     kindInt,
	keyChunkOverlap:  kindInt,
	keyChunkStrategy: kindStrategy,
	keyChunkMaxPara:  kindInt,
}

// IsSecretKey reports whether a key holds a credential that should not be
// echoed back.
func IsSecretKey(key string) bool {
	return strings.HasSuffix(key, ".api_key") || key == keyVectorDSN
}

// SettingKeys returns every key Set accepts.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingKeys))
	for k := range settingKeys {
		keys = append(keys, k)
	}
	return keys
}

// SettingsService maps dotted config keys onto domain.AppSettings.
// Environment variables override stored credentials.
type SettingsService struct {
	configStore driven.ConfigStore
	validator   driven.ConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service. The validator may be
// nil, which skips connectivity checks.
func NewSettingsService(configStore driven.ConfigStore, validator driven.ConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		validator:   validator,
		getenv:      os.Getenv,
	}
}

// Get returns stored settings over defaults, with environment overrides.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:      domain.AIProvider(s.getString(keyEmbedProvider, string(d.Embedding.Provider))),
			BaseURL:       s.configStore.GetString(keyEmbedBaseURL),
			APIKey:        s.configStore.GetString(keyEmbedAPIKey),
			RatePerSecond: s.getFloat(keyEmbedRate, d.Embedding.RatePerSecond),
		},
		LLM: domain.LLMSettings{
			Provider: domain.AIProvider(s.getString(keyLLMProvider, string(d.LLM.Provider))),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Vector: domain.VectorStoreSettings{
			Backend:    domain.ParseVectorBackend(s.getString(keyVectorBackend, string(d.Vector.Backend))),
			Collection: s.getString(keyVectorColl, d.Vector.Collection),
			Path:       s.configStore.GetString(keyVectorPath),
			DSN:        s.configStore.GetString(keyVectorDSN),
			URL:        s.getString(keyVectorURL, d.Vector.URL),
			APIKey:     s.configStore.GetString(keyVectorAPIKey),
		},
		RAG: domain.RAGSettings{
			ScopeKey:       s.getString(keyRAGScopeKey, d.RAG.ScopeKey),
			TopK:           s.getInt(keyRAGTopK, d.RAG.TopK),
			ScoreThreshold: s.getFloat(keyRAGThreshold, d.RAG.ScoreThreshold),
			Locale:         domain.Locale(s.getString(keyRAGLocale, string(d.RAG.Locale))),
		},
		Chunker: domain.ChunkerSettings{
			Strategy:     domain.ChunkStrategy(s.getString(keyChunkStrategy, string(d.Chunker.Strategy))),
			Size:         s.getInt(keyChunkSize, d.Chunker.Size),
			Overlap:      s.getInt(keyChunkOverlap, d.Chunker.Overlap),
			MaxParagraph: s.getInt(keyChunkMaxPara, d.Chunker.MaxParagraph),
		},
	}

	// Model defaults follow the provider, so switching provider alone works.
	settings.Embedding.Model = s.getString(keyEmbedModel, domain.DefaultEmbeddingModels()[settings.Embedding.Provider])
	settings.LLM.Model = s.getString(keyLLMModel, domain.DefaultLLMModels()[settings.LLM.Provider])

	s.applyEnv(settings)
	return settings, nil
}

// applyEnv fills credentials from the environment. An environment value
// wins over the file so secrets can stay out of config.toml.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) {
	keyFor := func(p domain.AIProvider) string {
		switch p {
		case domain.AIProviderOpenAI:
			return s.getenv(envOpenAIKey)
		case domain.AIProviderAnthropic:
			return s.getenv(envAnthropicKey)
		default:
			return ""
		}
	}

	if v := keyFor(settings.Embedding.Provider); v != "" {
		settings.Embedding.APIKey = v
	}
	if v := keyFor(settings.LLM.Provider); v != "" {
		settings.LLM.APIKey = v
	}
	if v := s.getenv(envPostgresDSN); v != "" {
		settings.Vector.DSN = v
	}
	if v := s.getenv(envQdrantAPIKey); v != "" {
		settings.Vector.APIKey = v
	}
}

// Save persists application settings. Empty credentials are not written,
// so a key supplied through the environment is never cleared from the file.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedRate, settings.Embedding.RatePerSecond},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyVectorBackend, settings.Vector.Backend.String()},
		{keyVectorColl, settings.Vector.Collection},
		{keyVectorPath, settings.Vector.Path},
		{keyVectorURL, settings.Vector.URL},
		{keyRAGScopeKey, settings.RAG.ScopeKey},
		{keyRAGTopK, settings.RAG.TopK},
		{keyRAGThreshold, settings.RAG.ScoreThreshold},
		{keyRAGLocale, string(settings.RAG.Locale)},
		{keyChunkStrategy, string(settings.Chunker.Strategy)},
		{keyChunkSize, settings.Chunker.Size},
		{keyChunkOverlap, settings.Chunker.Overlap},
		{keyChunkMaxPara, settings.Chunker.MaxParagraph},
	}
	secrets := map[string]string{
		keyEmbedAPIKey:  settings.Embedding.APIKey,
		keyLLMAPIKey:    settings.LLM.APIKey,
		keyVectorDSN:    settings.Vector.DSN,
		keyVectorAPIKey: settings.Vector.APIKey,
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	for key, value := range secrets {
		if value == "" {
			continue
		}
		if err := s.configStore.Set(key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return nil
}

// Set parses value according to the key's type and stores it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	value = strings.TrimSpace(value)

	var parsed any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, key)
		}
		parsed = n
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s must be a number", domain.ErrInvalidInput, key)
		}
		parsed = f
	case kindProvider:
		p := domain.AIProvider(strings.ToLower(value))
		if !p.IsValid() {
			return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, value)
		}
		if key == keyEmbedProvider && p == domain.AIProviderAnthropic {
			return fmt.Errorf("%w: anthropic does not provide embeddings", domain.ErrInvalidInput)
		}
		parsed = string(p)
	case kindBackend:
		b := domain.ParseVectorBackend(value)
		if !b.IsValid() {
			return fmt.Errorf("%w: unknown vector backend %q", domain.ErrInvalidInput, value)
		}
		parsed = string(b)
	case kindLocale:
		l := domain.Locale(strings.ToLower(value))
		if !l.IsValid() {
			return fmt.Errorf("%w: unsupported locale %q", domain.ErrInvalidInput, value)
		}
		parsed = string(l)
	case kindStrategy:
		st := domain.ChunkStrategy(strings.ToLower(value))
		if !st.IsValid() {
			return fmt.Errorf("%w: unknown chunk strategy %q", domain.ErrInvalidInput, value)
		}
		parsed = string(st)
	default:
		parsed = value
	}

	return s.configStore.Set(key, parsed)
}

// Display returns key/value pairs for every known setting, with secrets
// masked.
func (s *SettingsService) Display() (map[string]string, error) {
	settings, err := s.Get()
	if err != nil {
		return nil, err
	}

	mask := func(v string) string {
		if v == "" {
			return ""
		}
		return secretDisplayValue
	}

	return map[string]string{
		keyEmbedProvider: settings.Embedding.Provider.String(),
		keyEmbedModel:    settings.Embedding.Model,
		keyEmbedBaseURL:  settings.Embedding.BaseURL,
		keyEmbedAPIKey:   mask(settings.Embedding.APIKey),
		keyEmbedRate:     strconv.FormatFloat(settings.Embedding.RatePerSecond, 'g', -1, 64),
		keyLLMProvider:   settings.LLM.Provider.String(),
		keyLLMModel:      settings.LLM.Model,
		keyLLMBaseURL:    settings.LLM.BaseURL,
		keyLLMAPIKey:     mask(settings.LLM.APIKey),
		keyVectorBackend: settings.Vector.Backend.String(),
		keyVectorColl:    settings.Vector.Collection,
		keyVectorPath:    settings.Vector.Path,
		keyVectorDSN:     mask(settings.Vector.DSN),
		keyVectorURL:     settings.Vector.URL,
		keyVectorAPIKey:  mask(settings.Vector.APIKey),
		keyRAGScopeKey:   settings.RAG.ScopeKey,
		keyRAGTopK:       strconv.Itoa(settings.RAG.TopK),
		keyRAGThreshold:  strconv.FormatFloat(settings.RAG.ScoreThreshold, 'g', -1, 64),
		keyRAGLocale:     string(settings.RAG.Locale),
		keyChunkStrategy: string(settings.Chunker.Strategy),
		keyChunkSize:     strconv.Itoa(settings.Chunker.Size),
		keyChunkOverlap:  strconv.Itoa(settings.Chunker.Overlap),
		keyChunkMaxPara:  strconv.Itoa(settings.Chunker.MaxParagraph),
	}, nil
}

// Validate checks the settings are complete enough to index and query.
// All problems are reported together.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidInput}, args...)...))
	}

	if !settings.Embedding.IsConfigured() {
		add("embedding provider %q is not configured", settings.Embedding.Provider)
	}
	if !settings.LLM.IsConfigured() {
		add("llm provider %q is not configured", settings.LLM.Provider)
	}

	switch settings.Vector.Backend {
	case domain.VectorBackendPgVector:
		if settings.Vector.DSN == "" {
			add("vector backend pgvector needs vector.dsn or %s", envPostgresDSN)
		}
	case domain.VectorBackendQdrant:
		if settings.Vector.URL == "" {
			add("vector backend qdrant needs vector.url")
		}
	case domain.VectorBackendMemory, domain.VectorBackendSQLite:
	default:
		add("unknown vector backend %q", settings.Vector.Backend)
	}

	if settings.RAG.ScopeKey == "" {
		add("rag.scope_key must not be empty")
	}
	if settings.RAG.TopK <= 0 || settings.RAG.TopK > domain.MaxTopK {
		add("rag.top_k must be between 1 and %d, got %d", domain.MaxTopK, settings.RAG.TopK)
	}
	if !settings.RAG.Locale.IsValid() {
		add("unsupported locale %q", settings.RAG.Locale)
	}
	if settings.Chunker.Size <= 0 || settings.Chunker.Overlap < 0 || settings.Chunker.Overlap >= settings.Chunker.Size {
		add("chunker.overlap (%d) must be at least 0 and below chunker.size (%d)",
			settings.Chunker.Overlap, settings.Chunker.Size)
	}

	return errors.Join(errs...)
}

// CheckConnectivity pings every configured service through the validator.
func (s *SettingsService) CheckConnectivity() error {
	if s.validator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if err := s.validator.ValidateEmbedding(&settings.Embedding); err != nil {
		errs = append(errs, fmt.Errorf("embedding: %w", err))
	}
	if err := s.validator.ValidateLLM(&settings.LLM); err != nil {
		errs = append(errs, fmt.Errorf("llm: %w", err))
	}
	if err := s.validator.ValidateVectorStore(&settings.Vector); err != nil {
		errs = append(errs, fmt.Errorf("vector: %w", err))
	}
	return errors.Join(errs...)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (s *SettingsService) getString(key, defaultVal string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}
