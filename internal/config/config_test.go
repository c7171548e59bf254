package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
  allowed_origins: ["https://app.example.com"]
stt:
  provider: whisper
  whisper:
    base_url: http://localhost:9000/v1
    timeout_seconds: 30
mongodb:
  uri: mongodb://localhost:27017
request_log:
  retention_hours: 48
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.STT.Provider != "whisper" {
		t.Errorf("Unexpected config %+v", cfg)
	}
	if cfg.STT.Whisper.BaseURL != "http://localhost:9000/v1" || Seconds(cfg.STT.Whisper.TimeoutSeconds) != 30*time.Second {
		t.Errorf("Unexpected whisper config %+v", cfg.STT.Whisper)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("Unexpected origins %v", cfg.Server.AllowedOrigins)
	}
	if cfg.RequestRetention() != 48*time.Hour {
		t.Errorf("Expected 48h retention, got %v", cfg.RequestRetention())
	}
	// Defaults survive a partial file
	if cfg.CleanupInterval() != 15*time.Minute || cfg.Server.MaxUploadMB != 100 {
		t.Errorf("Expected defaults to be kept, got %+v", cfg.RequestLog)
	}
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "stt:\n  provider: whisper\n")

	t.Setenv("STT_PROVIDER", "elevenlabs")
	t.Setenv("ELEVEN_LABS_API_KEY", "legacy-key")
	t.Setenv("XI_API_KEY", "xi-key")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("MAX_UPLOAD_MB", "25")
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.STT.Provider != "elevenlabs" {
		t.Errorf("Expected env provider, got %s", cfg.STT.Provider)
	}
	if cfg.STT.ElevenLabs.APIKey != "xi-key" {
		t.Errorf("Expected XI_API_KEY to win, got %s", cfg.STT.ElevenLabs.APIKey)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("Unexpected origins %v", cfg.Server.AllowedOrigins)
	}
	if cfg.MaxUploadBytes() != 25<<20 {
		t.Errorf("Unexpected upload limit %d", cfg.MaxUploadBytes())
	}
	if !cfg.IsDevelopment() {
		t.Error("Expected development mode")
	}
}

func TestLoadFile_DefaultOrigins(t *testing.T) {
	path := writeConfig(t, "server:\n  frontend_url: https://scribe.example.com/\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	origins := cfg.Server.AllowedOrigins
	if len(origins) != 7 {
		t.Fatalf("Expected 6 local origins plus the frontend, got %v", origins)
	}
	if origins[0] != "http://localhost:5173" || origins[6] != "https://scribe.example.com" {
		t.Errorf("Unexpected origins %v", origins)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{"invalid yaml", "server: [", nil},
		{"non numeric port", "server:\n  port: http\n", nil},
		{"invalid integer env", "", map[string]string{"MAX_UPLOAD_MB": "lots"}},
		{"zero upload limit", "server:\n  max_upload_mb: 0\n", nil},
		{"speaker range", "stt:\n  google:\n    min_speakers: 5\n    max_speakers: 2\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadFile(writeConfig(t, tt.content)); err == nil {
				t.Error("Expected error")
			}
		})
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	t.Run("without config file", func(t *testing.T) {
		t.Setenv("SCRIBE_CONFIG", "")
		t.Setenv("PORT", "7070")

		cfg, err := Load(zaptest.NewLogger(t))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Server.Port != "7070" || cfg.STT.Provider != "elevenlabs" {
			t.Errorf("Unexpected config %+v", cfg.Server)
		}
	})

	t.Run("explicit missing file", func(t *testing.T) {
		t.Setenv("SCRIBE_CONFIG", filepath.Join(dir, "nope.yaml"))
		if _, err := Load(zaptest.NewLogger(t)); err == nil {
			t.Error("Expected error for missing explicit config file")
		}
	})
}
