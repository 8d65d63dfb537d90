// Package config loads the engine's environment-driven configuration
// using a sync.Once-singleton / apply-defaults pattern, read from the
// environment rather than a JSON file.
package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config is the engine's full runtime configuration, loaded once from the
// environment at process start.
type Config struct {
	Host string
	Port int

	OpenAIKey      string
	OpenAIBaseURL  string
	OpenAIChatModel  string
	OpenAIEmbedModel string

	SupermemoryKey string
	SupermemoryURL string

	ExaKey string
	ExaURL string

	QdrantURL        string
	QdrantCollection string
	QdrantAPIKey     string

	MaxAnchors          int
	EchoThreshold       float64
	SweetThreshold       float64
	MaxSuggestions      int

	OrthogonalEnabled        bool
	OrthogonalNoiseScale     float64
	OrthogonalTargetDomains  []string
	OrthogonalVibeTemperature float64

	PCALambdaSurprise float64
	PCAMinMemories    int
	PCANumComponents  int

	AntonymAlpha       float64
	AntonymTargetVibes []string

	BridgeDomains []string

	RerankPoolSize int
	RerankTopK     int

	JudgeLogPath string
}

var (
	once   sync.Once
	cfg    *Config
	loaded bool
)

// Load reads the configuration from the environment (singleton).
func Load() *Config {
	once.Do(func() {
		cfg = &Config{
			Host: getEnv("HOST", "0.0.0.0"),
			Port: getEnvInt("PORT", 8090),

			OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIChatModel:  getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			OpenAIEmbedModel: getEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),

			SupermemoryKey: os.Getenv("SUPERMEMORY_API_KEY"),
			SupermemoryURL: getEnv("SUPERMEMORY_URL", ""),

			ExaKey: os.Getenv("EXA_API_KEY"),
			ExaURL: getEnv("EXA_URL", "https://api.exa.ai"),

			QdrantURL:        getEnv("QDRANT_URL", "localhost:6334"),
			QdrantCollection: getEnv("QDRANT_COLLECTION", "tangent_memories"),
			QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),

			MaxAnchors:     getEnvInt("MAX_ANCHORS", 5),
			EchoThreshold:  getEnvFloat("ECHO_THRESHOLD", 0.85),
			SweetThreshold: getEnvFloat("SWEET_THRESHOLD", 0.65),
			MaxSuggestions: getEnvInt("MAX_SUGGESTIONS", 3),

			OrthogonalEnabled:         getEnvBool("ORTHOGONAL_ENABLED", true),
			OrthogonalNoiseScale:      getEnvFloat("ORTHOGONAL_NOISE_SCALE", 0.15),
			OrthogonalTargetDomains:   getEnvList("ORTHOGONAL_TARGET_DOMAINS", []string{"restaurant", "movie", "music", "book", "architecture"}),
			OrthogonalVibeTemperature: getEnvFloat("ORTHOGONAL_VIBE_TEMPERATURE", 0.8),

			PCALambdaSurprise: getEnvFloat("PCA_LAMBDA_SURPRISE", 1.0),
			PCAMinMemories:    getEnvInt("PCA_MIN_MEMORIES", 5),
			PCANumComponents:  getEnvInt("PCA_NUM_COMPONENTS", 2),

			AntonymAlpha:       getEnvFloat("ANTONYM_ALPHA", 0.5),
			AntonymTargetVibes: getEnvList("ANTONYM_TARGET_VIBES", []string{"cozy nostalgia", "cold minimalism", "chaotic maximalism", "quiet melancholy"}),

			BridgeDomains: getEnvList("BRIDGE_DOMAINS", []string{"restaurant", "movie", "music", "book", "architecture"}),

			RerankPoolSize: getEnvInt("RERANK_POOL_SIZE", 50),
			RerankTopK:     getEnvInt("RERANK_TOP_K", 5),

			JudgeLogPath: getEnv("JUDGE_LOG_PATH", "decisions.jsonl"),
		}
		loaded = true
	})
	return cfg
}

// Get returns the already-loaded config, loading it if necessary.
func Get() *Config {
	if !loaded {
		return Load()
	}
	return cfg
}

// Reset clears the singleton state. Test-only.
func Reset() {
	once = sync.Once{}
	cfg = nil
	loaded = false
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
