package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
	"github.com/custodia-labs/stash/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	KeyHTTPAddr             = "http.addr"
	KeyStorageDriver        = "storage.driver"
	KeyStorageDataDir       = "storage.data_dir"
	KeyEmbeddingProvider    = "embedding.provider"
	KeyEmbeddingModel       = "embedding.model"
	KeyEmbeddingDimensions  = "embedding.dimensions"
	KeyEmbeddingAPIKey      = "embedding.api_key"
	KeyEmbeddingBaseURL     = "embedding.base_url"
	KeyEmbeddingRegion      = "embedding.region"
	KeyEmbeddingProject     = "embedding.project"
	KeyEmbeddingLocation    = "embedding.location"
	KeyEmbeddingRPS         = "embedding.requests_per_second"
	KeyEmbeddingBurst       = "embedding.burst"
	KeyEmbeddingFallback    = "embedding.fallback_on_error"
	KeyWorkerConcurrency    = "worker.concurrency"
	KeyWorkerPollInterval   = "worker.poll_interval"
	KeyWorkerLease          = "worker.lease"
	KeyWorkerMaxBackoff     = "worker.max_backoff"
	KeySearchKeywordWeight  = "search.keyword_weight"
	KeySearchSemanticWeight = "search.semantic_weight"
	KeySearchTopK           = "search.top_k"
	KeySearchMinScore       = "search.min_score"
	KeySearchCacheSize      = "search.cache_size"
	KeySearchCacheTTL       = "search.cache_ttl"
	KeyLogLevel             = "log.level"
	KeyLogFile              = "log.file"
)

// EnvPrefix prefixes environment overrides. A key maps to its variable by
// upper-casing it and replacing dots with underscores.
const EnvPrefix = "STASH_"

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindDuration
)

var keyKinds = map[string]valueKind{
	KeyHTTPAddr:             kindString,
	KeyStorageDriver:        kindString,
	KeyStorageDataDir:       kindString,
	KeyEmbeddingProvider:    kindString,
	KeyEmbeddingModel:       kindString,
	KeyEmbeddingDimensions:  kindInt,
	KeyEmbeddingAPIKey:      kindString,
	KeyEmbeddingBaseURL:     kindString,
	KeyEmbeddingRegion:      kindString,
	KeyEmbeddingProject:     kindString,
	KeyEmbeddingLocation:    kindString,
	KeyEmbeddingRPS:         kindFloat,
	KeyEmbeddingBurst:       kindInt,
	KeyEmbeddingFallback:    kindBool,
	KeyWorkerConcurrency:    kindInt,
	KeyWorkerPollInterval:   kindDuration,
	KeyWorkerLease:          kindDuration,
	KeyWorkerMaxBackoff:     kindDuration,
	KeySearchKeywordWeight:  kindFloat,
	KeySearchSemanticWeight: kindFloat,
	KeySearchTopK:           kindInt,
	KeySearchMinScore:       kindFloat,
	KeySearchCacheSize:      kindInt,
	KeySearchCacheTTL:       kindDuration,
	KeyLogLevel:             kindString,
	KeyLogFile:              kindString,
}

// envAliases are shorter variable names accepted alongside the derived ones.
var envAliases = map[string]string{
	"STASH_OPENAI_API_KEY": KeyEmbeddingAPIKey,
	"STASH_DATA_DIR":       KeyStorageDataDir,
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// SettingsService resolves configuration from the environment, the config
// store and defaults.
type SettingsService struct {
	store          driven.ConfigStore
	defaultDataDir string
	lookupEnv      func(string) (string, bool)
}

// NewSettingsService creates a settings service. defaultDataDir is used
// when storage.data_dir is unset.
func NewSettingsService(store driven.ConfigStore, defaultDataDir string) *SettingsService {
	return &SettingsService{
		store:          store,
		defaultDataDir: defaultDataDir,
		lookupEnv:      os.LookupEnv,
	}
}

// Keys lists every recognised config key in order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(keyKinds))
	for k := range keyKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get resolves the current settings.
func (s *SettingsService) Get() (domain.Settings, error) {
	r := resolver{s: s}
	d := domain.DefaultSettings()
	dataDir := s.defaultDataDir
	if dataDir == "" {
		dataDir = filepath.Join(".", "data")
	}

	settings := domain.Settings{
		HTTP: domain.HTTPSettings{
			Addr: r.str(KeyHTTPAddr, d.HTTP.Addr),
		},
		Storage: domain.StorageSettings{
			Driver:  domain.StorageDriver(r.str(KeyStorageDriver, string(d.Storage.Driver))),
			DataDir: expandHome(r.str(KeyStorageDataDir, dataDir)),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:          domain.EmbeddingProvider(r.str(KeyEmbeddingProvider, string(d.Embedding.Provider))),
			Model:             r.str(KeyEmbeddingModel, d.Embedding.Model),
			Dimensions:        r.integer(KeyEmbeddingDimensions, d.Embedding.Dimensions),
			APIKey:            r.str(KeyEmbeddingAPIKey, ""),
			BaseURL:           r.str(KeyEmbeddingBaseURL, ""),
			Region:            r.str(KeyEmbeddingRegion, ""),
			Project:           r.str(KeyEmbeddingProject, ""),
			Location:          r.str(KeyEmbeddingLocation, ""),
			RequestsPerSecond: r.float(KeyEmbeddingRPS, d.Embedding.RequestsPerSecond),
			Burst:             r.integer(KeyEmbeddingBurst, d.Embedding.Burst),
			FallbackOnError:   r.boolean(KeyEmbeddingFallback, d.Embedding.FallbackOnError),
		},
		Worker: domain.WorkerSettings{
			Concurrency:  r.integer(KeyWorkerConcurrency, d.Worker.Concurrency),
			PollInterval: r.duration(KeyWorkerPollInterval, d.Worker.PollInterval),
			Lease:        r.duration(KeyWorkerLease, d.Worker.Lease),
			MaxBackoff:   r.duration(KeyWorkerMaxBackoff, d.Worker.MaxBackoff),
		},
		Search: domain.SearchSettings{
			Weights: domain.SearchWeights{
				Keyword:  r.float(KeySearchKeywordWeight, d.Search.Weights.Keyword),
				Semantic: r.float(KeySearchSemanticWeight, d.Search.Weights.Semantic),
			},
			TopK:      r.integer(KeySearchTopK, d.Search.TopK),
			MinScore:  r.float(KeySearchMinScore, d.Search.MinScore),
			CacheSize: r.integer(KeySearchCacheSize, d.Search.CacheSize),
			CacheTTL:  r.duration(KeySearchCacheTTL, d.Search.CacheTTL),
		},
		Log: domain.LogSettings{
			Level: r.str(KeyLogLevel, d.Log.Level),
			File:  expandHome(r.str(KeyLogFile, d.Log.File)),
		},
	}
	if r.err != nil {
		return settings, r.err
	}
	return settings, nil
}

// Values formats settings by config key. The API key is masked.
func (s *SettingsService) Values(st domain.Settings) map[string]string {
	return map[string]string{
		KeyHTTPAddr:             st.HTTP.Addr,
		KeyStorageDriver:        string(st.Storage.Driver),
		KeyStorageDataDir:       st.Storage.DataDir,
		KeyEmbeddingProvider:    string(st.Embedding.Provider),
		KeyEmbeddingModel:       st.Embedding.Model,
		KeyEmbeddingDimensions:  strconv.Itoa(st.Embedding.Dimensions),
		KeyEmbeddingAPIKey:      maskSecret(st.Embedding.APIKey),
		KeyEmbeddingBaseURL:     st.Embedding.BaseURL,
		KeyEmbeddingRegion:      st.Embedding.Region,
		KeyEmbeddingProject:     st.Embedding.Project,
		KeyEmbeddingLocation:    st.Embedding.Location,
		KeyEmbeddingRPS:         formatFloat(st.Embedding.RequestsPerSecond),
		KeyEmbeddingBurst:       strconv.Itoa(st.Embedding.Burst),
		KeyEmbeddingFallback:    strconv.FormatBool(st.Embedding.FallbackOnError),
		KeyWorkerConcurrency:    strconv.Itoa(st.Worker.Concurrency),
		KeyWorkerPollInterval:   st.Worker.PollInterval.String(),
		KeyWorkerLease:          st.Worker.Lease.String(),
		KeyWorkerMaxBackoff:     st.Worker.MaxBackoff.String(),
		KeySearchKeywordWeight:  formatFloat(st.Search.Weights.Keyword),
		KeySearchSemanticWeight: formatFloat(st.Search.Weights.Semantic),
		KeySearchTopK:           strconv.Itoa(st.Search.TopK),
		KeySearchMinScore:       formatFloat(st.Search.MinScore),
		KeySearchCacheSize:      strconv.Itoa(st.Search.CacheSize),
		KeySearchCacheTTL:       st.Search.CacheTTL.String(),
		KeyLogLevel:             st.Log.Level,
		KeyLogFile:              st.Log.File,
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// maskSecret keeps the last four characters of secrets long enough to hide.
func maskSecret(v string) string {
	switch {
	case v == "":
		return ""
	case len(v) <= 8:
		return "****"
	default:
		return "****" + v[len(v)-4:]
	}
}

// Set parses value according to key's type and stores it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := keyKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown config key %q", domain.ErrInvalidInput, key)
	}
	typed, err := parseValue(kind, value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
	}
	if d, ok := typed.(time.Duration); ok {
		typed = d.String()
	}
	if err := s.store.Set(key, typed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Validate checks settings for values the application cannot start with.
func (s *SettingsService) Validate(settings domain.Settings) error {
	if !settings.Storage.Driver.IsValid() {
		return fmt.Errorf("%w: unknown storage driver %q", domain.ErrConfiguration, settings.Storage.Driver)
	}

	emb := settings.Embedding
	if !emb.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", domain.ErrConfiguration, emb.Provider)
	}
	switch emb.Provider {
	case domain.EmbeddingProviderOpenAI:
		if emb.APIKey == "" {
			return fmt.Errorf("%w: openai embeddings need %s or %s",
				domain.ErrConfiguration, EnvName(KeyEmbeddingAPIKey), "STASH_OPENAI_API_KEY")
		}
	case domain.EmbeddingProviderBedrock:
		if emb.Region == "" {
			return fmt.Errorf("%w: bedrock embeddings need %s", domain.ErrConfiguration, KeyEmbeddingRegion)
		}
	case domain.EmbeddingProviderVertex:
		if emb.Project == "" || emb.Location == "" {
			return fmt.Errorf("%w: vertex embeddings need %s and %s",
				domain.ErrConfiguration, KeyEmbeddingProject, KeyEmbeddingLocation)
		}
	}
	if emb.Dimensions <= 0 {
		return fmt.Errorf("%w: %s must be positive", domain.ErrConfiguration, KeyEmbeddingDimensions)
	}

	w := settings.Search.Weights
	if w.Keyword < 0 || w.Semantic < 0 || w.Keyword+w.Semantic == 0 {
		return fmt.Errorf("%w: search weights must be non-negative and not both zero", domain.ErrConfiguration)
	}
	if settings.Worker.Concurrency < 1 {
		return fmt.Errorf("%w: %s must be at least 1", domain.ErrConfiguration, KeyWorkerConcurrency)
	}
	if settings.Worker.PollInterval < domain.MinWorkerInterval {
		return fmt.Errorf("%w: %s must be at least %s",
			domain.ErrConfiguration, KeyWorkerPollInterval, domain.MinWorkerInterval)
	}
	if settings.Worker.Lease < domain.MinWorkerInterval {
		return fmt.Errorf("%w: %s must be at least %s",
			domain.ErrConfiguration, KeyWorkerLease, domain.MinWorkerInterval)
	}
	return nil
}

// resolver reads typed values, remembering the first malformed override.
type resolver struct {
	s   *SettingsService
	err error
}

// env returns the override for key from its derived or aliased variable.
func (r *resolver) env(key string) (string, bool) {
	if v, ok := r.s.lookupEnv(EnvName(key)); ok && v != "" {
		return v, true
	}
	for alias, k := range envAliases {
		if k != key {
			continue
		}
		if v, ok := r.s.lookupEnv(alias); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func (r *resolver) fromEnv(key string, kind valueKind) (any, bool) {
	raw, ok := r.env(key)
	if !ok {
		return nil, false
	}
	v, err := parseValue(kind, raw)
	if err != nil {
		if r.err == nil {
			r.err = fmt.Errorf("%w: %s: %v", domain.ErrConfiguration, EnvName(key), err)
		}
		return nil, false
	}
	return v, true
}

func (r *resolver) str(key, def string) string {
	if v, ok := r.fromEnv(key, kindString); ok {
		return v.(string)
	}
	if v := r.s.store.GetString(key); v != "" {
		return v
	}
	return def
}

func (r *resolver) integer(key string, def int) int {
	if v, ok := r.fromEnv(key, kindInt); ok {
		return v.(int)
	}
	if v := r.s.store.GetInt(key); v != 0 {
		return v
	}
	return def
}

// float honours an explicit zero from the file.
func (r *resolver) float(key string, def float64) float64 {
	if v, ok := r.fromEnv(key, kindFloat); ok {
		return v.(float64)
	}
	if _, ok := r.s.store.Get(key); ok {
		return r.s.store.GetFloat(key)
	}
	return def
}

func (r *resolver) boolean(key string, def bool) bool {
	if v, ok := r.fromEnv(key, kindBool); ok {
		return v.(bool)
	}
	if _, ok := r.s.store.Get(key); ok {
		return r.s.store.GetBool(key)
	}
	return def
}

func (r *resolver) duration(key string, def time.Duration) time.Duration {
	if v, ok := r.fromEnv(key, kindDuration); ok {
		return v.(time.Duration)
	}
	if v := r.s.store.GetDuration(key); v > 0 {
		return v
	}
	return def
}

func parseValue(kind valueKind, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case kindInt:
		return strconv.Atoi(raw)
	case kindFloat:
		return strconv.ParseFloat(raw, 64)
	case kindBool:
		return strconv.ParseBool(raw)
	case kindDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
