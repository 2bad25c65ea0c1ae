package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Bot       BotConfig       `yaml:"bot"`
	Storage   StorageConfig   `yaml:"storage"`
	Download  DownloadConfig  `yaml:"download"`
	Transcode TranscodeConfig `yaml:"transcode"`
	Caption   CaptionConfig   `yaml:"caption"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration for the metadata proxy.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"PORT" default:"3000"`
	BaseURL      string        `yaml:"base_url" envconfig:"PUBLIC_BASE_URL"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token         string `yaml:"token" envconfig:"TELEGRAM_BOT_TOKEN"`
	Workers       int    `yaml:"workers" envconfig:"BOT_WORKERS" default:"2"`
	QueueSize     int    `yaml:"queue_size" envconfig:"BOT_QUEUE_SIZE" default:"64"`
	UpdateTimeout int    `yaml:"update_timeout" envconfig:"BOT_UPDATE_TIMEOUT" default:"60"`
	SingleFlight  bool   `yaml:"single_flight" envconfig:"BOT_SINGLE_FLIGHT" default:"true"`
	Debug         bool   `yaml:"debug" envconfig:"BOT_DEBUG" default:"false"`
}

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// StorageConfig holds artifact cache and scratch space configuration.
type StorageConfig struct {
	Backend      string `yaml:"backend" envconfig:"CACHE_BACKEND" default:"sqlite"`
	SQLitePath   string `yaml:"sqlite_path" envconfig:"SQLITE_PATH" default:"reelbot.db"`
	RedisURL     string `yaml:"redis_url" envconfig:"REDIS_URL"`
	RedisPrefix  string `yaml:"redis_prefix" envconfig:"REDIS_PREFIX" default:"reelbot:artifact:"`
	TempPath     string `yaml:"temp_path" envconfig:"STORAGE_TEMP_PATH"`
	MinFreeBytes int64  `yaml:"min_free_bytes" envconfig:"MIN_FREE_BYTES" default:"209715200"` // 200MB
}

// DownloadConfig holds yt-dlp configuration.
type DownloadConfig struct {
	BinaryPath string        `yaml:"binary_path" envconfig:"YTDLP_PATH" default:"yt-dlp"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"DOWNLOAD_TIMEOUT" default:"60s"`
	Format     string        `yaml:"format" envconfig:"DOWNLOAD_FORMAT" default:"bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]/b"`
}

// TranscodeConfig holds ffmpeg compression and frame extraction configuration.
type TranscodeConfig struct {
	FFmpegPath      string        `yaml:"ffmpeg_path" envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath     string        `yaml:"ffprobe_path" envconfig:"FFPROBE_PATH" default:"ffprobe"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"52428800"`    // 50MB
	TargetSizeBytes int64         `yaml:"target_size_bytes" envconfig:"TARGET_SIZE_BYTES" default:"50331648"` // 48MB
	AudioKbps       int           `yaml:"audio_kbps" envconfig:"AUDIO_KBPS" default:"128"`
	MinVideoKbps    int           `yaml:"min_video_kbps" envconfig:"MIN_VIDEO_KBPS" default:"150"`
	CompressTimeout time.Duration `yaml:"compress_timeout" envconfig:"COMPRESS_TIMEOUT" default:"120s"`
	FrameTimeout    time.Duration `yaml:"frame_timeout" envconfig:"FRAME_TIMEOUT" default:"10s"`
	FrameMaxSize    int           `yaml:"frame_max_size" envconfig:"FRAME_MAX_SIZE" default:"512"`
}

// CaptionConfig holds AI captioning configuration. An empty APIKey disables captioning.
type CaptionConfig struct {
	APIKey   string        `yaml:"api_key" envconfig:"OPENAI_API_KEY"`
	BaseURL  string        `yaml:"base_url" envconfig:"OPENAI_BASE_URL"`
	Model    string        `yaml:"model" envconfig:"CAPTION_MODEL" default:"gpt-4o-mini"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"CAPTION_TIMEOUT" default:"20s"`
	MaxWords int           `yaml:"max_words" envconfig:"CAPTION_MAX_WORDS" default:"8"`
	Language string        `yaml:"language" envconfig:"CAPTION_LANGUAGE" default:"English"`
}

// MetadataConfig holds Open Graph scraping configuration for the proxy.
type MetadataConfig struct {
	BaseURL      string        `yaml:"base_url" envconfig:"INSTAGRAM_BASE_URL" default:"https://www.instagram.com"`
	TTL          time.Duration `yaml:"ttl" envconfig:"METADATA_TTL" default:"5m"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" envconfig:"METADATA_FETCH_TIMEOUT" default:"10s"`
	UserAgent    string        `yaml:"user_agent" envconfig:"METADATA_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"`
	RatePerSec   float64       `yaml:"rate_per_sec" envconfig:"METADATA_RATE_PER_SEC" default:"2"`
	Burst        int           `yaml:"burst" envconfig:"METADATA_BURST" default:"4"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT" default:"json"`
}

// Load reads configuration from defaults, then the YAML file, then
// environment variables. Only variables that are set override file values.
func Load(configPath string) (*Config, error) {
	// Defaults plus whatever the environment sets.
	env := &Config{}
	if err := envconfig.Process("", env); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	cfg := &Config{}
	*cfg = *env

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		overlaySetEnv(reflect.ValueOf(cfg).Elem(), reflect.ValueOf(env).Elem(), "")
	}

	if cfg.Storage.TempPath == "" {
		cfg.Storage.TempPath = filepath.Join(os.TempDir(), "reelbot")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// overlaySetEnv copies into dst every field of src whose environment
// variable is set. Keys are resolved the way envconfig does: the
// section-prefixed name first, then the bare envconfig tag.
func overlaySetEnv(dst, src reflect.Value, prefix string) {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Tag.Get("envconfig")

		if field.Type.Kind() == reflect.Struct {
			section := field.Name
			if name != "" {
				section = name
			}
			if prefix != "" {
				section = prefix + "_" + section
			}
			overlaySetEnv(dst.Field(i), src.Field(i), strings.ToUpper(section))
			continue
		}
		if name == "" {
			continue
		}

		keys := []string{name}
		if prefix != "" {
			keys = []string{strings.ToUpper(prefix + "_" + name), name}
		}
		for _, key := range keys {
			if _, ok := os.LookupEnv(key); ok {
				dst.Field(i).Set(src.Field(i))
				break
			}
		}
	}
}

// Validate checks settings shared by every command. The proxy has no required values.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.Storage.Backend)
	}
	if c.Transcode.TargetSizeBytes <= 0 || c.Transcode.TargetSizeBytes > c.Transcode.MaxUploadBytes {
		return fmt.Errorf("TARGET_SIZE_BYTES must be positive and at most MAX_UPLOAD_BYTES")
	}
	return nil
}

// ValidateBot checks settings required to run the chat bot.
func (c *Config) ValidateBot() error {
	if c.Bot.Token == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

// CaptionEnabled reports whether an AI captioning key is configured.
func (c *CaptionConfig) CaptionEnabled() bool {
	return c.APIKey != ""
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
