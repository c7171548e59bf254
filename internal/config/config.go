package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when SCRIBE_CONFIG is not set. It is optional.
const DefaultConfigFile = "config.yaml"

// Config is the service configuration. Values come from defaults, then the
// YAML file, then environment variables.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	STT        STTConfig        `yaml:"stt"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
	RequestLog RequestLogConfig `yaml:"request_log"`
	Auth       AuthConfig       `yaml:"auth"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	Environment    string   `yaml:"environment"`
	FrontendURL    string   `yaml:"frontend_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type STTConfig struct {
	Provider   string           `yaml:"provider"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	Whisper    WhisperConfig    `yaml:"whisper"`
	Google     GoogleConfig     `yaml:"google"`
	Gemini     GeminiConfig     `yaml:"gemini"`
}

type ElevenLabsConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type WhisperConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	Language        string `yaml:"language"`
	Model           string `yaml:"model"`
	MinSpeakers     int    `yaml:"min_speakers"`
	MaxSpeakers     int    `yaml:"max_speakers"`
}

type GeminiConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type MongoDBConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RequestLogConfig struct {
	RetentionHours int `yaml:"retention_hours"`
	CleanupMinutes int `yaml:"cleanup_minutes"`
	Capacity       int `yaml:"capacity"`
}

type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Environment: "production",
			MaxUploadMB: 100,
		},
		Log: LogConfig{Level: "info"},
		STT: STTConfig{Provider: "elevenlabs"},
		RequestLog: RequestLogConfig{
			RetentionHours: 24,
			CleanupMinutes: 15,
			Capacity:       1000,
		},
		Auth: AuthConfig{TokenTTLHours: 24 * 30},
	}
}

// Load reads .env files, the optional config file named by SCRIBE_CONFIG
// (default config.yaml) and the environment.
func Load(logger *zap.Logger) (*Config, error) {
	// Load .env from the working directory and its parent
	for _, path := range []string{".env", "../.env"} {
		if err := godotenv.Load(path); err == nil {
			logger.Info("Loaded environment file", zap.String("path", path))
		}
	}

	path, explicit := os.LookupEnv("SCRIBE_CONFIG")
	if !explicit || path == "" {
		path = DefaultConfigFile
		explicit = false
	}

	cfg := Default()
	err := cfg.readFile(path)
	switch {
	case err == nil:
		logger.Info("Loaded config file", zap.String("path", path))
	case !explicit && errors.Is(err, fs.ErrNotExist):
		logger.Info("No config file, using environment", zap.String("path", path))
	default:
		return nil, err
	}

	return cfg.finish()
}

// LoadFile reads the given YAML file and applies environment overrides
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.readFile(path); err != nil {
		return nil, err
	}
	return cfg.finish()
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) finish() (*Config, error) {
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = defaultOrigins(c.Server.FrontendURL)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Environment, "ENVIRONMENT")
	setString(&c.Server.FrontendURL, "FRONTEND_URL")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	setString(&c.Log.Level, "LOG_LEVEL")

	setString(&c.STT.Provider, "STT_PROVIDER")
	setString(&c.STT.ElevenLabs.APIKey, "ELEVEN_LABS_API_KEY")
	setString(&c.STT.ElevenLabs.APIKey, "XI_API_KEY")
	setString(&c.STT.ElevenLabs.BaseURL, "ELEVEN_LABS_API_BASE_URL")
	setString(&c.STT.ElevenLabs.Model, "ELEVEN_LABS_STT_MODEL")
	setString(&c.STT.Whisper.APIKey, "OPENAI_API_KEY")
	setString(&c.STT.Whisper.APIKey, "WHISPER_API_KEY")
	setString(&c.STT.Whisper.BaseURL, "WHISPER_BASE_URL")
	setString(&c.STT.Whisper.Model, "WHISPER_MODEL")
	setString(&c.STT.Google.CredentialsFile, "GOOGLE_STT_CREDENTIALS_FILE")
	setString(&c.STT.Google.Language, "GOOGLE_STT_LANGUAGE")
	setString(&c.STT.Google.Model, "GOOGLE_STT_MODEL")
	setString(&c.STT.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.STT.Gemini.Model, "GEMINI_MODEL")

	setString(&c.MongoDB.URI, "MONGODB_URI")
	setString(&c.MongoDB.Database, "MONGODB_DATABASE")
	setString(&c.Auth.JWTSecret, "API_JWT_SECRET")

	ints := []struct {
		target *int
		key    string
	}{
		{&c.Server.MaxUploadMB, "MAX_UPLOAD_MB"},
		{&c.STT.ElevenLabs.TimeoutSeconds, "ELEVEN_LABS_TIMEOUT_SECONDS"},
		{&c.STT.Whisper.TimeoutSeconds, "WHISPER_TIMEOUT_SECONDS"},
		{&c.STT.Gemini.TimeoutSeconds, "GEMINI_TIMEOUT_SECONDS"},
		{&c.STT.Google.MinSpeakers, "GOOGLE_STT_MIN_SPEAKERS"},
		{&c.STT.Google.MaxSpeakers, "GOOGLE_STT_MAX_SPEAKERS"},
		{&c.RequestLog.RetentionHours, "REQUEST_LOG_RETENTION_HOURS"},
		{&c.RequestLog.CleanupMinutes, "REQUEST_LOG_CLEANUP_MINUTES"},
		{&c.RequestLog.Capacity, "REQUEST_LOG_CAPACITY"},
		{&c.Auth.TokenTTLHours, "API_TOKEN_TTL_HOURS"},
	}
	for _, i := range ints {
		if err := setInt(i.target, i.key); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("port must be numeric, got %q", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("max upload size must be positive")
	}
	if c.RequestLog.RetentionHours <= 0 {
		return errors.New("request log retention must be positive")
	}
	if c.RequestLog.CleanupMinutes <= 0 {
		return errors.New("request log cleanup interval must be positive")
	}
	if c.STT.Google.MinSpeakers < 0 || c.STT.Google.MaxSpeakers < 0 {
		return errors.New("speaker counts must not be negative")
	}
	if c.STT.Google.MaxSpeakers > 0 && c.STT.Google.MinSpeakers > c.STT.Google.MaxSpeakers {
		return errors.New("min speakers must not exceed max speakers")
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Environment, "development")
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

func (c *Config) RequestRetention() time.Duration {
	return time.Duration(c.RequestLog.RetentionHours) * time.Hour
}

func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.RequestLog.CleanupMinutes) * time.Minute
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

// Seconds converts a seconds setting, zero meaning the adapter default
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func defaultOrigins(frontendURL string) []string {
	var origins []string
	for _, host := range []string{"localhost", "127.0.0.1"} {
		for _, port := range []string{"5173", "5174", "3000"} {
			origins = append(origins, "http://"+host+":"+port)
		}
	}
	if frontendURL != "" {
		origins = append(origins, strings.TrimRight(frontendURL, "/"))
	}
	return origins
}

func setString(target *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*target = v
	}
}

func setInt(target *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*target = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
