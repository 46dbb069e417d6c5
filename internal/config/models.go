package config

// ArtifactsConfig locates the persisted model, scaler and schema
type ArtifactsConfig struct {
	ModelPath       string
	ModelFormat     string
	MetadataPath    string
	ScalerMeanPath  string
	ScalerScalePath string
	FeaturesCSV     string
	ONNXLibraryPath string
	ONNXThreads     int
}

// ExplainConfig represents the configuration of the local explainer
type ExplainConfig struct {
	Enabled     bool
	OutputDir   string
	ImageNaming string
	NumSamples  int
	NumFeatures int
	TopK        int
	Seed        uint64
	Background  string
}

// DetectionConfig represents verdict policy
type DetectionConfig struct {
	Threshold         float64
	AllowlistedHashes []string
	AllowlistFile     string
}

// NarratorConfig selects the optional narrative provider
type NarratorConfig struct {
	Provider  string
	MaxLength int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// ServerConfig represents the mail gateway settings
type ServerConfig struct {
	FilterType        string
	ListenAddress     string
	BlockRansomware   bool
	MaxAttachmentSize int64
	TempDir           string
	StatusHeader      string
	ScoreHeader       string
	ReasonHeader      string
	PostfixEnabled    bool
	PostfixAddress    string
	PostfixPort       int
}

// GetArtifacts returns the artifact locations
func (c *Config) GetArtifacts() ArtifactsConfig {
	return ArtifactsConfig{
		ModelPath:       c.GetString("artifacts.model_path"),
		ModelFormat:     c.GetString("artifacts.model_format"),
		MetadataPath:    c.GetString("artifacts.metadata_path"),
		ScalerMeanPath:  c.GetString("artifacts.scaler_mean_path"),
		ScalerScalePath: c.GetString("artifacts.scaler_scale_path"),
		FeaturesCSV:     c.GetString("artifacts.features_csv"),
		ONNXLibraryPath: c.GetString("artifacts.onnx_library_path"),
		ONNXThreads:     c.GetInt("artifacts.onnx_threads"),
	}
}

// GetExplain returns the explainer configuration
func (c *Config) GetExplain() ExplainConfig {
	return ExplainConfig{
		Enabled:     c.GetBool("explain.enabled"),
		OutputDir:   c.GetString("explain.output_dir"),
		ImageNaming: c.GetString("explain.image_naming"),
		NumSamples:  c.GetInt("explain.num_samples"),
		NumFeatures: c.GetInt("explain.num_features"),
		TopK:        c.GetInt("explain.top_k"),
		Seed:        c.v.GetUint64("explain.seed"),
		Background:  c.GetString("explain.background"),
	}
}

// GetDetection returns the detection policy
func (c *Config) GetDetection() DetectionConfig {
	return DetectionConfig{
		Threshold:         c.GetFloat64("detection.threshold"),
		AllowlistedHashes: c.GetStringSlice("detection.allowlisted_hashes"),
		AllowlistFile:     c.GetString("detection.allowlist_file"),
	}
}

// GetNarrator returns the narrator configuration
func (c *Config) GetNarrator() NarratorConfig {
	return NarratorConfig{
		Provider:  c.GetString("narrator.provider"),
		MaxLength: c.GetInt("narrator.max_length"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetServer returns the mail gateway configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType:        c.GetString("server.filter_type"),
		ListenAddress:     c.GetString("server.listen_address"),
		BlockRansomware:   c.GetBool("server.block_ransomware"),
		MaxAttachmentSize: c.v.GetInt64("server.max_attachment_size"),
		TempDir:           c.GetString("server.temp_dir"),
		StatusHeader:      c.GetString("server.headers.status"),
		ScoreHeader:       c.GetString("server.headers.score"),
		ReasonHeader:      c.GetString("server.headers.reason"),
		PostfixEnabled:    c.GetBool("server.postfix.enabled"),
		PostfixAddress:    c.GetString("server.postfix.address"),
		PostfixPort:       c.GetInt("server.postfix.port"),
	}
}
