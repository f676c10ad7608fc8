package config

import (
	"errors"
	"io"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// PipelineConfig holds the caps and budgets of the search → crawl → report/archive pipeline.
type PipelineConfig struct {
	MaxSeeds         int    `yaml:"max_seeds"`
	PageBudget       int    `yaml:"page_budget"`
	MaxDocuments     int    `yaml:"max_documents"`
	MinPromptLength  int    `yaml:"min_prompt_length"`
	DedupeSeeds      bool   `yaml:"dedupe_seeds"`
	PreviewLength    int    `yaml:"preview_length"`
	MaxPageBytes     int64  `yaml:"max_page_bytes"`
	MaxDocumentBytes int64  `yaml:"max_document_bytes"`
	UserAgent        string `yaml:"user_agent"`
}

// DefaultPipeline returns the pipeline settings the service ships with.
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		MaxSeeds:         8,
		PageBudget:       14,
		MaxDocuments:     16,
		MinPromptLength:  4,
		DedupeSeeds:      false,
		PreviewLength:    400,
		MaxPageBytes:     2 << 20,
		MaxDocumentBytes: 25 << 20,
		UserAgent:        "Mozilla/5.0",
	}
}

type Config struct {
	Port    string
	GinMode string

	// Logging
	LogLevel  string
	LogFormat string

	// Search
	SearchProvider string // "serpapi" or "duckduckgo"
	SerpAPIKey     string
	SearchTimeout  time.Duration

	// Report synthesis
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Crawl
	CrawlConcurrency int
	CrawlTimeout     time.Duration

	// Archive
	DocumentFetchTimeout     time.Duration
	DocumentFetchConcurrency int

	// Prefix cache shared by /research and /archive
	CacheBackend    string // "none", "memory" or "redis"
	CacheTTL        time.Duration
	CacheMaxEntries int
	RedisURL        string

	// Operation budget for every server-side operation.
	OperationTimeout time.Duration

	// Server
	ServerShutdownTimeoutSeconds int
	CORSAllowedOrigins           string
	RateLimitRPS                 float64
	RateLimitBurst               int

	// Client
	ServerURL string

	Pipeline PipelineConfig `yaml:"pipeline"`
}

var AppConfig *Config

// fileConfig is the subset of settings read from the YAML config file.
// Pointer fields tell "absent" apart from zero values.
type fileConfig struct {
	Pipeline struct {
		MaxSeeds         *int    `yaml:"max_seeds"`
		PageBudget       *int    `yaml:"page_budget"`
		MaxDocuments     *int    `yaml:"max_documents"`
		MinPromptLength  *int    `yaml:"min_prompt_length"`
		DedupeSeeds      *bool   `yaml:"dedupe_seeds"`
		PreviewLength    *int    `yaml:"preview_length"`
		MaxPageBytes     *int64  `yaml:"max_page_bytes"`
		MaxDocumentBytes *int64  `yaml:"max_document_bytes"`
		UserAgent        *string `yaml:"user_agent"`
	} `yaml:"pipeline"`
}

func (fc *fileConfig) apply(p *PipelineConfig) {
	fp := fc.Pipeline
	if fp.MaxSeeds != nil {
		p.MaxSeeds = *fp.MaxSeeds
	}
	if fp.PageBudget != nil {
		p.PageBudget = *fp.PageBudget
	}
	if fp.MaxDocuments != nil {
		p.MaxDocuments = *fp.MaxDocuments
	}
	if fp.MinPromptLength != nil {
		p.MinPromptLength = *fp.MinPromptLength
	}
	if fp.DedupeSeeds != nil {
		p.DedupeSeeds = *fp.DedupeSeeds
	}
	if fp.PreviewLength != nil {
		p.PreviewLength = *fp.PreviewLength
	}
	if fp.MaxPageBytes != nil {
		p.MaxPageBytes = *fp.MaxPageBytes
	}
	if fp.MaxDocumentBytes != nil {
		p.MaxDocumentBytes = *fp.MaxDocumentBytes
	}
	if fp.UserAgent != nil {
		p.UserAgent = *fp.UserAgent
	}
}

// LoadConfig reads .env, the environment and the optional YAML config file into AppConfig.
func LoadConfig() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = FromEnv()

	configFilePath := getEnvOrDefault("CONFIG_FILE", "config.yaml")
	configFile, err := os.Open(configFilePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Printf("Config file %s not found, using pipeline defaults", configFilePath)
	case err != nil:
		log.Fatalf("Failed to open config file: %v", err)
	default:
		defer configFile.Close()
		if err := LoadConfigFile(configFile, AppConfig); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
	}

	if AppConfig.SearchProvider == "serpapi" && AppConfig.SerpAPIKey == "" {
		log.Println("Warning: SerpAPI key is missing. Please set SERPAPI_API_KEY environment variable.")
	}

	if AppConfig.OpenAIAPIKey == "" {
		log.Println("Warning: OpenAI API key is missing, reports will use the local summarizer.")
	}

	return AppConfig
}

// FromEnv builds a Config from environment variables only.
func FromEnv() *Config {
	searchProvider := getEnvOrDefault("SEARCH_PROVIDER", "")
	if searchProvider == "" {
		searchProvider = "duckduckgo"
		if os.Getenv("SERPAPI_API_KEY") != "" {
			searchProvider = "serpapi"
		}
	}

	cfg := &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),

		SearchProvider: strings.ToLower(searchProvider),
		SerpAPIKey:     strings.TrimSpace(getEnvOrDefault("SERPAPI_API_KEY", "")),
		SearchTimeout:  getEnvAsDuration("SEARCH_TIMEOUT", 20*time.Second),

		OpenAIAPIKey:  strings.TrimSpace(getEnvOrDefault("OPENAI_API_KEY", "")),
		OpenAIBaseURL: getEnvOrDefault("OPENAI_BASE_URL", ""),
		OpenAIModel:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),

		CrawlConcurrency: getEnvAsInt("CRAWL_CONCURRENCY", 4),
		CrawlTimeout:     getEnvAsDuration("CRAWL_PAGE_TIMEOUT", 10*time.Second),

		DocumentFetchTimeout:     getEnvAsDuration("DOCUMENT_FETCH_TIMEOUT", 20*time.Second),
		DocumentFetchConcurrency: getEnvAsInt("DOCUMENT_FETCH_CONCURRENCY", 16),

		CacheBackend:    strings.ToLower(getEnvOrDefault("CACHE_BACKEND", "none")),
		CacheTTL:        getEnvAsDuration("CACHE_TTL", 2*time.Minute),
		CacheMaxEntries: getEnvAsInt("CACHE_MAX_ENTRIES", 256),
		RedisURL:        getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),

		OperationTimeout: getEnvAsDuration("OPERATION_TIMEOUT", 60*time.Second),

		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30),
		CORSAllowedOrigins:           getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"),
		RateLimitRPS:                 getEnvFloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst:               getEnvAsInt("RATE_LIMIT_BURST", 5),

		ServerURL: getEnvOrDefault("AGENTIC_SERVER_URL", "http://localhost:8080"),

		Pipeline: DefaultPipeline(),
	}

	cfg.Pipeline.DedupeSeeds = getEnvOrDefault("DEDUPE_SEEDS", "false") == "true"

	return cfg
}

// LoadConfigFile overlays the pipeline block of a YAML file onto config.
// Fields absent from the file keep their current values.
func LoadConfigFile(reader io.Reader, config *Config) error {
	var fc fileConfig

	decoder := yaml.NewDecoder(reader)
	if err := decoder.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	fc.apply(&config.Pipeline)
	return nil
}

// AllowedOrigins splits CORSAllowedOrigins on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as float, using default %f: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}
