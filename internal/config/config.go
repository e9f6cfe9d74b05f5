// Package config centralizes how PhotoSearch reads its settings and exposes
// them as one immutable, strongly typed value built at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration shared by the API, the worker and
// the CLI. It is read once and passed explicitly to every constructor.
type Config struct {
	Env            string        `yaml:"env"`
	LogLevel       string        `yaml:"log_level"`
	Address        string        `yaml:"address"`
	MaxFileSize    int64         `yaml:"max_file_bytes"`
	AllowedTypes   []string      `yaml:"allowed_types"`
	SignedURLTTL   time.Duration `yaml:"signed_url_ttl"`
	ProcessingPool int           `yaml:"workers"`
	DatabaseURL    string        `yaml:"database_url"`
	AWSRegion      string        `yaml:"aws_region"`

	Redis         RedisConfig         `yaml:"redis"`
	S3            S3Config            `yaml:"s3"`
	Store         StoreConfig         `yaml:"store"`
	Detection     DetectionConfig     `yaml:"detection"`
	Disambiguator DisambiguatorConfig `yaml:"disambiguator"`
	Lex           LexConfig           `yaml:"lex"`
	OpenAI        OpenAIConfig        `yaml:"openai"`
}

// RedisConfig points asynq at its broker.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// S3Config describes the object store holding uploaded photos.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
	// Listen subscribes the worker to bucket notifications.
	Listen bool `yaml:"listen"`
}

// StoreConfig selects and addresses the document store.
type StoreConfig struct {
	Driver   string `yaml:"driver"` // opensearch, postgres
	Endpoint string `yaml:"endpoint"`
	Index    string `yaml:"index"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// DetectionConfig toggles the object-detection label source.
type DetectionConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DisambiguatorConfig selects the slot-extraction backend.
type DisambiguatorConfig struct {
	Provider string `yaml:"provider"` // lex, openai, none
}

// LexConfig identifies the Lex V2 bot. Any empty field disables Lex.
type LexConfig struct {
	BotID      string `yaml:"bot_id"`
	BotAliasID string `yaml:"bot_alias_id"`
	LocaleID   string `yaml:"locale_id"`
}

// OpenAIConfig addresses an OpenAI-compatible chat completion endpoint.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

const (
	defaultEnv          = "local"
	defaultAddress      = ":8080"
	defaultMaxFileSize  = 25 << 20 // 25 MiB
	defaultAllowedTypes = "image/jpeg,image/png,image/gif,image/webp"
	defaultSignedTTL    = 5 * time.Minute
	defaultWorkerCount  = 2
	defaultRedisAddr    = "127.0.0.1:6379"
	defaultS3Endpoint   = "127.0.0.1:9000"
	defaultBucket       = "photos"
	defaultStoreDriver  = "opensearch"
	defaultIndex        = "photos"
	defaultAWSRegion    = "us-east-1"
	defaultProvider     = "lex"
	defaultLexLocale    = "en_US"
	defaultOpenAIModel  = "gpt-4o-mini"
)

// Load reads the optional YAML file at path, applies PHOTOSEARCH_* environment
// overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{
		S3:        S3Config{Listen: true},
		Detection: DetectionConfig{Enabled: true},
	}
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Env = readEnv("PHOTOSEARCH_ENV", c.Env)
	c.LogLevel = readEnv("PHOTOSEARCH_LOG_LEVEL", c.LogLevel)
	c.Address = readEnv("PHOTOSEARCH_ADDRESS", c.Address)
	c.MaxFileSize = parseInt64("PHOTOSEARCH_MAX_FILE_BYTES", c.MaxFileSize)
	c.AllowedTypes = parseList("PHOTOSEARCH_ALLOWED_TYPES", c.AllowedTypes)
	c.SignedURLTTL = parseDuration("PHOTOSEARCH_SIGNED_TTL", c.SignedURLTTL)
	c.ProcessingPool = parseInt("PHOTOSEARCH_WORKERS", c.ProcessingPool)
	c.DatabaseURL = readEnv("PHOTOSEARCH_DATABASE_URL", c.DatabaseURL)
	c.AWSRegion = readEnv("PHOTOSEARCH_AWS_REGION", c.AWSRegion)

	c.Redis.Addr = readEnv("PHOTOSEARCH_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = readEnv("PHOTOSEARCH_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = parseInt("PHOTOSEARCH_REDIS_DB", c.Redis.DB)

	c.S3.Endpoint = readEnv("PHOTOSEARCH_S3_ENDPOINT", c.S3.Endpoint)
	c.S3.AccessKey = readEnv("PHOTOSEARCH_S3_ACCESS_KEY", c.S3.AccessKey)
	c.S3.SecretKey = readEnv("PHOTOSEARCH_S3_SECRET_KEY", c.S3.SecretKey)
	c.S3.Region = readEnv("PHOTOSEARCH_S3_REGION", c.S3.Region)
	c.S3.UseSSL = parseBool("PHOTOSEARCH_S3_USE_SSL", c.S3.UseSSL)
	c.S3.Bucket = readEnv("PHOTOSEARCH_S3_BUCKET", c.S3.Bucket)
	c.S3.Listen = parseBool("PHOTOSEARCH_S3_LISTEN", c.S3.Listen)

	c.Store.Driver = readEnv("PHOTOSEARCH_STORE_DRIVER", c.Store.Driver)
	c.Store.Endpoint = readEnv("PHOTOSEARCH_STORE_ENDPOINT", c.Store.Endpoint)
	c.Store.Index = readEnv("PHOTOSEARCH_STORE_INDEX", c.Store.Index)
	c.Store.User = readEnv("PHOTOSEARCH_STORE_USER", c.Store.User)
	c.Store.Password = readEnv("PHOTOSEARCH_STORE_PASSWORD", c.Store.Password)

	c.Detection.Enabled = parseBool("PHOTOSEARCH_DETECTION_ENABLED", c.Detection.Enabled)
	c.Disambiguator.Provider = readEnv("PHOTOSEARCH_DISAMBIGUATOR", c.Disambiguator.Provider)

	c.Lex.BotID = readEnv("PHOTOSEARCH_LEX_BOT_ID", c.Lex.BotID)
	c.Lex.BotAliasID = readEnv("PHOTOSEARCH_LEX_BOT_ALIAS_ID", c.Lex.BotAliasID)
	c.Lex.LocaleID = readEnv("PHOTOSEARCH_LEX_LOCALE_ID", c.Lex.LocaleID)

	c.OpenAI.APIKey = readEnv("PHOTOSEARCH_OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.BaseURL = readEnv("PHOTOSEARCH_OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.OpenAI.Model = readEnv("PHOTOSEARCH_OPENAI_MODEL", c.OpenAI.Model)
}

func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = defaultEnv
	}
	if c.Address == "" {
		c.Address = defaultAddress
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = defaultMaxFileSize
	}
	if len(c.AllowedTypes) == 0 {
		c.AllowedTypes = splitList(defaultAllowedTypes)
	}
	if c.SignedURLTTL <= 0 {
		c.SignedURLTTL = defaultSignedTTL
	}
	if c.ProcessingPool <= 0 {
		c.ProcessingPool = defaultWorkerCount
	}
	if c.AWSRegion == "" {
		c.AWSRegion = defaultAWSRegion
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = defaultRedisAddr
	}
	if c.S3.Endpoint == "" {
		c.S3.Endpoint = defaultS3Endpoint
	}
	if c.S3.Bucket == "" {
		c.S3.Bucket = defaultBucket
	}
	if c.S3.Region == "" {
		c.S3.Region = c.AWSRegion
	}
	if c.Store.Driver == "" {
		c.Store.Driver = defaultStoreDriver
	}
	if c.Store.Index == "" {
		c.Store.Index = defaultIndex
	}
	if c.Disambiguator.Provider == "" {
		c.Disambiguator.Provider = defaultProvider
	}
	if c.Lex.LocaleID == "" {
		c.Lex.LocaleID = defaultLexLocale
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = defaultOpenAIModel
	}
}

// Validate rejects values no component can work with. Missing endpoints and
// bot identifiers are not errors; the affected feature is disabled instead.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "opensearch":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for store driver postgres")
		}
	default:
		return fmt.Errorf("store.driver must be \"opensearch\" or \"postgres\", got %q", c.Store.Driver)
	}
	switch c.Disambiguator.Provider {
	case "lex", "openai", "none":
	default:
		return fmt.Errorf("disambiguator.provider must be \"lex\", \"openai\" or \"none\", got %q", c.Disambiguator.Provider)
	}
	return nil
}

// LexEnabled reports whether all three Lex identifiers are present.
func (c *Config) LexEnabled() bool {
	return c.Lex.BotID != "" && c.Lex.BotAliasID != "" && c.Lex.LocaleID != ""
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return splitList(v)
	}
	return def
}

func splitList(val string) []string {
	out := strings.Split(val, ",")
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

// envVarRegex matches ${VAR} and ${VAR:-default}.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, def, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasDefault {
			val = def
		}
		return []byte(val)
	})
}
