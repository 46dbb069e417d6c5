package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// RANSOMWARE_DETECTOR_ARTIFACTS_MODEL_PATH
const EnvPrefix = "RANSOMWARE_DETECTOR"

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance from the default search paths
func New() (*Config, error) {
	return NewFromFile("")
}

// NewFromFile reads the configuration from path, or searches the default
// locations when path is empty. A missing default file is not an error.
func NewFromFile(path string) (*Config, error) {
	v := NewEmptyViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/ransomware-detector/")
		v.AddConfigPath("$HOME/.ransomware-detector")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults and environment
// overrides
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	// Artifacts
	v.SetDefault("artifacts.model_path", "best_model.json")
	v.SetDefault("artifacts.model_format", "json")
	v.SetDefault("artifacts.metadata_path", "")
	v.SetDefault("artifacts.scaler_mean_path", "esnh_output/scaler_mean.npy")
	v.SetDefault("artifacts.scaler_scale_path", "esnh_output/scaler_scale.npy")
	v.SetDefault("artifacts.features_csv", "features.csv")
	v.SetDefault("artifacts.onnx_library_path", "/usr/lib/libonnxruntime.so")
	v.SetDefault("artifacts.onnx_threads", 1)

	// Explanation
	v.SetDefault("explain.enabled", true)
	v.SetDefault("explain.output_dir", "static")
	v.SetDefault("explain.image_naming", "filename")
	v.SetDefault("explain.num_samples", 5000)
	v.SetDefault("explain.num_features", 10)
	v.SetDefault("explain.top_k", 5)
	v.SetDefault("explain.seed", 42)
	v.SetDefault("explain.background", "zeros")

	// Detection
	v.SetDefault("detection.threshold", 0.5)
	v.SetDefault("detection.allowlisted_hashes", []string{})
	v.SetDefault("detection.allowlist_file", "")

	// Server defaults
	v.SetDefault("server.filter_type", "postfix")
	v.SetDefault("server.listen_address", "0.0.0.0:10026")
	v.SetDefault("server.block_ransomware", false)
	v.SetDefault("server.max_attachment_size", 50<<20)
	v.SetDefault("server.temp_dir", "")
	v.SetDefault("server.headers.status", "X-Ransomware-Status")
	v.SetDefault("server.headers.score", "X-Ransomware-Score")
	v.SetDefault("server.headers.reason", "X-Ransomware-Reason")
	v.SetDefault("server.postfix.enabled", true)
	v.SetDefault("server.postfix.address", "127.0.0.1")
	v.SetDefault("server.postfix.port", 10027)

	// Narrator
	v.SetDefault("narrator.provider", "none")
	v.SetDefault("narrator.max_length", 1024)

	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 400)
	v.SetDefault("bedrock.temperature", 0.2)
	v.SetDefault("bedrock.top_p", 0.9)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-pro")
	v.SetDefault("gemini.max_tokens", 400)
	v.SetDefault("gemini.temperature", 0.2)
	v.SetDefault("gemini.top_p", 0.9)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4")
	v.SetDefault("openai.max_tokens", 400)
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("openai.top_p", 0.9)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_frequency", "1h")
	v.SetDefault("cache.sqlite_path", "/data/ransomware_cache.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/ransomware_detector")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Set overrides a configuration value
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration parses a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
