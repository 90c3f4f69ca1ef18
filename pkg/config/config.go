package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath        = "config.yaml"
	defaultAddress           = ":3333"
	defaultAPIBaseURL        = "http://localhost:3333"
	defaultBodyLimitMB       = 25
	defaultRateLimitMax      = 60
	defaultRateLimitWindow   = time.Minute
	defaultTranscribeModel   = "whisper-large-v3"
	defaultCompletionModel   = "llama-3.3-70b-versatile"
	defaultTranscribeLang    = "pt"
	defaultAudioBitrate      = "20k"
	defaultAudioCodec        = "libmp3lame"
	defaultFFmpegPath        = "ffmpeg"
	defaultFFprobePath       = "ffprobe"
	defaultLocalStorageDir   = "./tmp"
	defaultPromptsPath       = "prompts.yaml"
	defaultRetryMax          = 3
	defaultRetryInitialDelay = 500 * time.Millisecond
	defaultRetryMaxDelay     = 5 * time.Second
	defaultGroqSecretName    = "groq-api-key"
)

// Env holds secrets and deployment settings read from the environment.
type Env struct {
	GroqAPIKey      string `env:"GROQ_API_KEY"`
	MongoURI        string `env:"MONGODB_URI"`
	MongoDatabase   string `env:"MONGODB_DATABASE" envDefault:"upload_ai"`
	GCSBucket       string `env:"GCS_BUCKET"`
	GCPProject      string `env:"GOOGLE_CLOUD_PROJECT"`
	APIBaseURL      string `env:"API_BASE_URL"`
	Address         string `env:"ADDRESS"`
	CORSOrigins     string `env:"CORS_ORIGINS" envDefault:"*"`
	GroqSecretName  string `env:"GROQ_SECRET_NAME"`
	RateLimitEnable bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
}

type Config struct {
	Env

	Server  ServerConfig  `yaml:"server"`
	Groq    GroqConfig    `yaml:"groq"`
	Media   MediaConfig   `yaml:"media"`
	Storage StorageConfig `yaml:"storage"`
	Prompts PromptsConfig `yaml:"prompts"`
	Retry   RetryConfig   `yaml:"retry"`
}

type ServerConfig struct {
	Address         string        `yaml:"address"`
	BodyLimitMB     int           `yaml:"body_limit_mb"`
	RateLimitMax    int           `yaml:"rate_limit_max"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
}

type GroqConfig struct {
	TranscribeModel string `yaml:"transcribe_model"`
	CompletionModel string `yaml:"completion_model"`
	Language        string `yaml:"language"`
}

type MediaConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
	Bitrate     string `yaml:"bitrate"`
	Codec       string `yaml:"codec"`
}

type StorageConfig struct {
	LocalDir string `yaml:"local_dir"`
}

type PromptsConfig struct {
	Path     string `yaml:"path"`
	SkipSeed bool   `yaml:"skip_seed"`
}

type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// Load reads .env, config.yaml and the environment, in that order of
// precedence from lowest to highest.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, defaultConfigPath)
}

func LoadFrom(ctx context.Context, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{}
	if err := loadYAMLConfig(path, cfg); err != nil {
		return nil, err
	}
	if err := env.Parse(&cfg.Env); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	applyDefaults(cfg)

	if cfg.GroqAPIKey == "" && cfg.GCPProject != "" {
		key, err := groqKeyFromSecretManager(ctx, cfg.GCPProject, cfg.GroqSecretName)
		if err != nil {
			slog.Warn("Failed to read Groq key from Secret Manager", "error", err)
		} else {
			cfg.GroqAPIKey = key
		}
	}

	return cfg, nil
}

func loadYAMLConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("No config file found, using defaults", "path", path)
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(cfg)
	applyGroqDefaults(cfg)
	applyMediaDefaults(cfg)
	applyStorageDefaults(cfg)
	applyPromptsDefaults(cfg)
	applyRetryDefaults(cfg)
}

func applyServerDefaults(cfg *Config) {
	// ADDRESS wins over the yaml value
	if cfg.Address != "" {
		cfg.Server.Address = cfg.Address
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = defaultAddress
	}
	if cfg.Server.BodyLimitMB == 0 {
		cfg.Server.BodyLimitMB = defaultBodyLimitMB
	}
	if cfg.Server.RateLimitMax == 0 {
		cfg.Server.RateLimitMax = defaultRateLimitMax
	}
	if cfg.Server.RateLimitWindow == 0 {
		cfg.Server.RateLimitWindow = defaultRateLimitWindow
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.GroqSecretName == "" {
		cfg.GroqSecretName = defaultGroqSecretName
	}
}

func applyGroqDefaults(cfg *Config) {
	if cfg.Groq.TranscribeModel == "" {
		cfg.Groq.TranscribeModel = defaultTranscribeModel
	}
	if cfg.Groq.CompletionModel == "" {
		cfg.Groq.CompletionModel = defaultCompletionModel
	}
	if cfg.Groq.Language == "" {
		cfg.Groq.Language = defaultTranscribeLang
	}
}

func applyMediaDefaults(cfg *Config) {
	if cfg.Media.FFmpegPath == "" {
		cfg.Media.FFmpegPath = defaultFFmpegPath
	}
	if cfg.Media.FFprobePath == "" {
		cfg.Media.FFprobePath = defaultFFprobePath
	}
	if cfg.Media.Bitrate == "" {
		cfg.Media.Bitrate = defaultAudioBitrate
	}
	if cfg.Media.Codec == "" {
		cfg.Media.Codec = defaultAudioCodec
	}
}

func applyStorageDefaults(cfg *Config) {
	if cfg.Storage.LocalDir == "" {
		cfg.Storage.LocalDir = defaultLocalStorageDir
	}
}

func applyPromptsDefaults(cfg *Config) {
	if cfg.Prompts.Path == "" {
		cfg.Prompts.Path = defaultPromptsPath
	}
}

func applyRetryDefaults(cfg *Config) {
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = defaultRetryMax
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = defaultRetryInitialDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = defaultRetryMaxDelay
	}
}

// CORSOriginList splits CORS_ORIGINS on commas.
func (c *Config) CORSOriginList() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func groqKeyFromSecretManager(ctx context.Context, project, name string) (string, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create secret manager client: %w", err)
	}
	defer func() { _ = client.Close() }()

	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", project, name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", name, err)
	}

	return strings.TrimSpace(string(resp.GetPayload().GetData())), nil
}
