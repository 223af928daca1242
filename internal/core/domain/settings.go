package domain

import "time"

// StorageDriver selects the persistence backend.
type StorageDriver string

// Available storage drivers.
const (
	StorageDriverSQLite StorageDriver = "sqlite"
	StorageDriverMemory StorageDriver = "memory"
)

// IsValid returns true if the driver is recognised.
func (d StorageDriver) IsValid() bool {
	return d == StorageDriverSQLite || d == StorageDriverMemory
}

// Settings is the resolved application configuration.
type Settings struct {
	HTTP      HTTPSettings
	Storage   StorageSettings
	Embedding EmbeddingSettings
	Worker    WorkerSettings
	Search    SearchSettings
	Log       LogSettings
}

// HTTPSettings configures the REST API.
type HTTPSettings struct {
	Addr string
}

// StorageSettings configures persistence.
type StorageSettings struct {
	Driver  StorageDriver
	DataDir string
}

// EmbeddingSettings configures the embedding backend.
type EmbeddingSettings struct {
	Provider   EmbeddingProvider
	Model      string
	Dimensions int

	// APIKey is used by openai.
	APIKey string

	// BaseURL overrides the openai or ollama endpoint.
	BaseURL string

	// Region is the AWS region for bedrock.
	Region string

	// Project and Location address the vertex endpoint.
	Project  string
	Location string

	RequestsPerSecond float64
	Burst             int

	// FallbackOnError answers failed remote calls with the local backend.
	FallbackOnError bool
}

// IsRemote reports whether the provider calls out to a network service.
func (s *EmbeddingSettings) IsRemote() bool {
	return s.Provider != "" && s.Provider != EmbeddingProviderLocal
}

// MinWorkerInterval is the shortest accepted poll interval and lease.
const MinWorkerInterval = time.Second

// WorkerSettings configures the dispatcher.
type WorkerSettings struct {
	Concurrency  int
	PollInterval time.Duration
	Lease        time.Duration
	MaxBackoff   time.Duration
}

// SearchSettings configures ranking. Reloaded when the config file changes.
type SearchSettings struct {
	Weights   SearchWeights
	TopK      int
	MinScore  float64
	CacheSize int
	CacheTTL  time.Duration
}

// LogSettings configures logging.
type LogSettings struct {
	Level string
	File  string
}

// DefaultSettings returns the built-in configuration.
func DefaultSettings() Settings {
	return Settings{
		HTTP: HTTPSettings{Addr: ":8080"},
		Storage: StorageSettings{
			Driver: StorageDriverSQLite,
		},
		Embedding: EmbeddingSettings{
			Provider:          EmbeddingProviderLocal,
			Dimensions:        DefaultEmbeddingDimensions,
			RequestsPerSecond: 3,
			Burst:             1,
			FallbackOnError:   true,
		},
		Worker: WorkerSettings{
			Concurrency:  2,
			PollInterval: 5 * time.Second,
			Lease:        2 * time.Minute,
			MaxBackoff:   60 * time.Second,
		},
		Search: SearchSettings{
			Weights:   DefaultSearchWeights(),
			TopK:      DefaultTopK,
			MinScore:  DefaultMinScore,
			CacheSize: 256,
			CacheTTL:  30 * time.Second,
		},
		Log: LogSettings{Level: "info"},
	}
}
