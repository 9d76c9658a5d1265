// Package config contains utilities for loading configs.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

const (
	defaultConfigFilePath = "/data/snapdish.yaml"
	configPathEnv         = "SNAPDISH_CONFIG"
	appSecretBytes        = 32
)

const (
	EnvProd = "PROD"
	EnvDev  = "DEV"
)

// Import-pipeline constants. These are deliberately configuration values,
// not computed, and are exported so tests can assert against them.
const (
	// RateLimitCeiling is the maximum number of import attempts admitted in
	// any trailing 24-hour window.
	RateLimitCeiling = 150

	// RateLimitWindow is the length of the trailing rate-limit window.
	RateLimitWindow = 24 * time.Hour

	// Token cost per source kind.
	CostWebsite = 1
	CostVideo   = 2
	CostImage   = 3
	CostPDF     = 3
)

// External call timeouts, bounded per call class.
const (
	FetchTimeout   = 8 * time.Second  // HTML, metadata, image fetches
	ExtractTimeout = 3 * time.Minute  // model calls on large OCR payloads
	StoreTimeout   = 30 * time.Second // blob reads/writes
)

type AppSecretValue string

func (a AppSecretValue) Validate() error {
	if len([]byte(a)) < appSecretBytes {
		return errors.New("app secret should be at least 32 bytes")
	}
	return nil
}

type DatabaseConfig struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"required"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password" validate:"required"`
	Name     string `yaml:"name" validate:"required"`
}

func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.User, d.Password, d.Host, d.Port, d.Name)
}

type ObjectStoreConfig struct {
	Endpoint      string `yaml:"endpoint" validate:"required"`
	AccessKey     string `yaml:"access-key" validate:"required"`
	SecretKey     string `yaml:"secret-key" validate:"required"`
	Bucket        string `yaml:"bucket" validate:"required"`
	UploadsBucket string `yaml:"uploads-bucket" validate:"required"`
	UseSSL        bool   `yaml:"use-ssl"`
	// PublicBaseURL is prepended to object keys to form the public image URL.
	PublicBaseURL string `yaml:"public-base-url" validate:"required,url"`
}

type ExtractionConfig struct {
	// Model handles text content (HTML, transcripts).
	Model string `yaml:"model"`
	// VisionModel handles raw image and PDF bytes.
	VisionModel string `yaml:"vision-model"`
	APIKey      string `yaml:"api-key" validate:"required"`
}

type TranscriptConfig struct {
	// BaseURL of the caption provider service.
	BaseURL string `yaml:"base-url" validate:"required,url"`
	// SpeechToTextURL enables the audio-transcription fallback when set.
	SpeechToTextURL string `yaml:"speech-to-text-url" validate:"omitempty,url"`
}

type Config struct {
	Env              string            `yaml:"env" validate:"required,oneof=PROD DEV"`
	Port             int               `yaml:"port" validate:"required"`
	AppSecret        AppSecretValue    `yaml:"app-secret" validate:"required"`
	AppSecretVersion string            `yaml:"app-secret-version"`
	Database         DatabaseConfig    `yaml:"database"`
	ObjectStore      ObjectStoreConfig `yaml:"object-store"`
	Extraction       ExtractionConfig  `yaml:"extraction"`
	Transcripts      TranscriptConfig  `yaml:"transcripts"`
}

func defaults() Config {
	return Config{
		Env:              EnvDev,
		Port:             8080,
		AppSecretVersion: "1",
		Extraction: ExtractionConfig{
			Model:       "gemini-2.5-flash",
			VisionModel: "gemini-2.5-flash",
		},
	}
}

// LoadConfig reads the YAML config file, applies environment overrides for
// secrets, and validates the result.
func LoadConfig() (*Config, error) {
	path := os.Getenv(configPathEnv)
	if path == "" {
		path = defaultConfigFilePath
	}

	conf := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(&conf)

	if err := Validate(&conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

func applyEnvOverrides(conf *Config) {
	if v := os.Getenv("APP_SECRET"); v != "" {
		conf.AppSecret = AppSecretValue(v)
	}
	if v := os.Getenv("APP_SECRET_VERSION"); v != "" {
		conf.AppSecretVersion = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		conf.Database.Password = v
	}
	if v := os.Getenv("OBJECT_STORE_SECRET_KEY"); v != "" {
		conf.ObjectStore.SecretKey = v
	}
	if v := os.Getenv("EXTRACTION_API_KEY"); v != "" {
		conf.Extraction.APIKey = v
	}
}

// Validate checks struct tags plus the custom secret rule.
func Validate(conf *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(conf); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	if err := conf.AppSecret.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}
