package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"BLOGGERATOR_PROVIDER", "GEMINI_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL",
		"BLOGGERATOR_TEXT_MODEL", "BLOGGERATOR_ADDR", "BLOGGERATOR_MEDIA_DIR", "BLOGGERATOR_EXPORT_DIR",
		"LOG_LEVEL", "LOG_FORMAT", "BLOGGERATOR_SYNC_CONCURRENCY", "BLOGGERATOR_MAX_VIDEO_WAIT", "S3_BUCKET",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider != "gemini" || cfg.TextModel != "gemini-3-flash-preview" || cfg.VideoModel != "veo-3.1-generate-preview" {
		t.Errorf("unexpected model defaults: %+v", cfg)
	}
	if cfg.TickInterval.Std() != time.Second || cfg.PollInterval.Std() != 10*time.Second || cfg.MaxVideoWait != 0 {
		t.Errorf("unexpected interval defaults: %+v", cfg)
	}
	if cfg.SyncConcurrency != 1 || cfg.ServerAddr != ":8080" || cfg.MediaDir != "media" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", `{
  "provider": "openai",
  "api_key": "file-key",
  "text_model": "gpt-4o-mini",
  "base_url": "http://localhost:11434/v1",
  "poll_interval": "5s",
  "max_video_wait": "10m",
  "sync_concurrency": 3
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider != "openai" || cfg.APIKey != "file-key" || cfg.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("unexpected provider settings: %+v", cfg)
	}
	if cfg.PollInterval.Std() != 5*time.Second || cfg.MaxVideoWait.Std() != 10*time.Minute || cfg.SyncConcurrency != 3 {
		t.Errorf("unexpected tuning: %+v", cfg)
	}
	if cfg.ImageModel != "gemini-3-pro-image-preview" {
		t.Errorf("unset fields keep defaults, got %q", cfg.ImageModel)
	}
}

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yaml", `
provider: gemini
api_key: from-file
server_addr: ":9000"
tick_interval: 500ms
poll_interval: 2s
s3:
  bucket: posts
  endpoint: https://r2.example.com
`)
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("BLOGGERATOR_SYNC_CONCURRENCY", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIKey != "from-env" || cfg.LogFormat != "json" || cfg.SyncConcurrency != 2 {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.ServerAddr != ":9000" || cfg.TickInterval.Std() != 500*time.Millisecond {
		t.Errorf("yaml values not applied: %+v", cfg)
	}
	if cfg.S3 == nil || cfg.S3.Bucket != "posts" || cfg.S3.Endpoint != "https://r2.example.com" {
		t.Errorf("s3 section not parsed: %+v", cfg.S3)
	}
}

func TestLoadInvalid(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"bad provider":    `{"provider": "claude"}`,
		"poll below tick": `{"tick_interval": "2s", "poll_interval": "1s"}`,
		"bad duration":    `{"poll_interval": 10}`,
		"zero sync":       `{"sync_concurrency": 0}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeFile(t, "c.json", body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	t.Setenv("BLOGGERATOR_SYNC_CONCURRENCY", "many")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "BLOGGERATOR_SYNC_CONCURRENCY") {
		t.Fatalf("expected env parse error, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that is already set, even to "".
	os.Unsetenv("GEMINI_API_KEY")
	path := writeFile(t, ".env", "GEMINI_API_KEY=dotenv-key\n")
	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIKey != "dotenv-key" {
		t.Errorf("expected key from .env, got %q", cfg.APIKey)
	}
}
