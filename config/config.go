// Package config loads application settings from a JSON or YAML file, an
// optional .env file and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"bloggerator/publisher"
)

// Duration accepts Go duration strings ("10s") in JSON and YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	return d.parse(s)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config is the full application configuration.
type Config struct {
	Provider   string `json:"provider" yaml:"provider"`
	APIKey     string `json:"api_key,omitempty" yaml:"api_key"`
	TextModel  string `json:"text_model" yaml:"text_model"`
	ImageModel string `json:"image_model" yaml:"image_model"`
	VideoModel string `json:"video_model" yaml:"video_model"`
	// BaseURL is only used by the openai provider.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url"`

	ServerAddr   string `json:"server_addr" yaml:"server_addr"`
	MediaDir     string `json:"media_dir" yaml:"media_dir"`
	MediaBaseURL string `json:"media_base_url" yaml:"media_base_url"`
	ExportDir    string `json:"export_dir" yaml:"export_dir"`
	ExportURL    string `json:"export_url,omitempty" yaml:"export_url"`

	S3 *publisher.S3Config `json:"s3,omitempty" yaml:"s3"`

	TickInterval    Duration `json:"tick_interval" yaml:"tick_interval"`
	PollInterval    Duration `json:"poll_interval" yaml:"poll_interval"`
	MaxVideoWait    Duration `json:"max_video_wait" yaml:"max_video_wait"`
	SyncConcurrency int      `json:"sync_concurrency" yaml:"sync_concurrency"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
}

func Default() Config {
	return Config{
		Provider:        "gemini",
		TextModel:       "gemini-3-flash-preview",
		ImageModel:      "gemini-3-pro-image-preview",
		VideoModel:      "veo-3.1-generate-preview",
		ServerAddr:      ":8080",
		MediaDir:        "media",
		MediaBaseURL:    "/media",
		ExportDir:       "export",
		TickInterval:    Duration(time.Second),
		PollInterval:    Duration(10 * time.Second),
		SyncConcurrency: 1,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// LoadDotEnv loads .env files into the environment. Missing files are
// ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, &cfg)
		default:
			err = json.Unmarshal(data, &cfg)
		}
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Provider = getEnvWithDefault("BLOGGERATOR_PROVIDER", c.Provider)
	c.APIKey = getEnvWithDefault("GEMINI_API_KEY", c.APIKey)
	if c.Provider == "openai" {
		c.APIKey = getEnvWithDefault("OPENAI_API_KEY", c.APIKey)
		c.BaseURL = getEnvWithDefault("OPENAI_BASE_URL", c.BaseURL)
	}
	c.TextModel = getEnvWithDefault("BLOGGERATOR_TEXT_MODEL", c.TextModel)
	c.ServerAddr = getEnvWithDefault("BLOGGERATOR_ADDR", c.ServerAddr)
	c.MediaDir = getEnvWithDefault("BLOGGERATOR_MEDIA_DIR", c.MediaDir)
	c.ExportDir = getEnvWithDefault("BLOGGERATOR_EXPORT_DIR", c.ExportDir)
	c.LogLevel = getEnvWithDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = strings.ToLower(getEnvWithDefault("LOG_FORMAT", c.LogFormat))

	if v := os.Getenv("BLOGGERATOR_SYNC_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BLOGGERATOR_SYNC_CONCURRENCY: %w", err)
		}
		c.SyncConcurrency = n
	}
	if v := os.Getenv("BLOGGERATOR_MAX_VIDEO_WAIT"); v != "" {
		if err := c.MaxVideoWait.parse(v); err != nil {
			return fmt.Errorf("BLOGGERATOR_MAX_VIDEO_WAIT: %w", err)
		}
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		c.S3 = &publisher.S3Config{
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Region:          os.Getenv("S3_REGION"),
			Bucket:          bucket,
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			PublicURL:       os.Getenv("S3_PUBLIC_URL"),
		}
	}
	return nil
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Provider, validation.Required, validation.In("gemini", "openai", "mock")),
		validation.Field(&c.TextModel, validation.Required),
		validation.Field(&c.MediaDir, validation.Required),
		validation.Field(&c.SyncConcurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.TickInterval, validation.Required, validation.Min(Duration(time.Millisecond))),
		validation.Field(&c.PollInterval, validation.Required, validation.Min(c.TickInterval)),
		validation.Field(&c.MaxVideoWait, validation.Min(Duration(0))),
		validation.Field(&c.LogFormat, validation.In("text", "json")),
	)
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
