// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// Platform credentials are optional; use ValidateHelixReady where Helix access is required.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Mute check methods.
const (
	MuteMethodAPI        = "api"
	MuteMethodStreamlink = "streamlink"
)

// Qualities accepted in VOD_QUALITY, best first.
var Qualities = []string{"best", "1080p60", "1080p", "720p60", "720p", "480p", "360p", "160p", "140p", "worst"}

type Config struct {
	// Storage
	DataDir      string
	CacheDir     string
	SavedVodsDir string

	// Pipeline
	CheckMuteMethod string
	VodQuality      string
	Debug           bool
	Verbose         bool

	// External tools
	StreamlinkPath string
	FFmpegPath     string
	MediainfoPath  string
	ToolTimeout    time.Duration

	// Twitch
	TwitchClientID     string
	TwitchClientSecret string
	HelixRatePerSec    float64

	// Database (optional index)
	DBDsn string

	// Delivery
	WebhookURL string

	// Jobs
	VerifyInterval         time.Duration
	MaxConcurrentDownloads int
	VerifyConcurrency      int

	// Server
	HTTPAddr      string
	AdminUsername string
	AdminPassword string
	AdminToken    string

	// Logging
	LogLevel  string
	LogFormat string
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s (duration): %q", key, v)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s (positive integer): %q", key, v)
	}
	return n, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads environment variables and applies defaults. Malformed numbers or durations are
// errors; unknown enum values are left for Validate.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.DataDir = envOr("DATA_DIR", "data")
	cfg.CacheDir = envOr("CACHE_DIR", filepath.Join(cfg.DataDir, "cache"))
	cfg.SavedVodsDir = envOr("SAVED_VODS_DIR", filepath.Join(cfg.DataDir, "saved_vods"))

	cfg.CheckMuteMethod = strings.ToLower(envOr("CHECKMUTE_METHOD", MuteMethodAPI))
	cfg.VodQuality = envOr("VOD_QUALITY", "best")
	cfg.Debug = envBool("APP_DEBUG")
	cfg.Verbose = envBool("APP_VERBOSE")

	cfg.StreamlinkPath = envOr("STREAMLINK_PATH", "streamlink")
	cfg.FFmpegPath = envOr("FFMPEG_PATH", "ffmpeg")
	cfg.MediainfoPath = envOr("MEDIAINFO_PATH", "mediainfo")
	if cfg.ToolTimeout, err = envDuration("TOOL_TIMEOUT", 0); err != nil {
		return nil, err
	}

	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.HelixRatePerSec = 10
	if v := os.Getenv("HELIX_RATE_PER_SEC"); v != "" {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil || f <= 0 {
			return nil, fmt.Errorf("invalid HELIX_RATE_PER_SEC: %q", v)
		}
		cfg.HelixRatePerSec = f
	}

	// empty disables the Postgres index
	cfg.DBDsn = os.Getenv("DB_DSN")
	cfg.WebhookURL = os.Getenv("WEBHOOK_URL")

	if cfg.VerifyInterval, err = envDuration("VERIFY_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrentDownloads, err = envInt("MAX_CONCURRENT_DOWNLOADS", 1); err != nil {
		return nil, err
	}
	if cfg.VerifyConcurrency, err = envInt("VERIFY_CONCURRENCY", 2); err != nil {
		return nil, err
	}

	cfg.HTTPAddr = envOr("HTTP_ADDR", ":8080")
	cfg.AdminUsername = os.Getenv("ADMIN_USERNAME")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")
	cfg.LogLevel = strings.ToLower(envOr("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(envOr("LOG_FORMAT", "text"))
	return cfg, nil
}

// Validate rejects unknown enum values.
func (c *Config) Validate() error {
	switch c.CheckMuteMethod {
	case MuteMethodAPI, MuteMethodStreamlink:
	default:
		return fmt.Errorf("invalid CHECKMUTE_METHOD %q: want %s or %s", c.CheckMuteMethod, MuteMethodAPI, MuteMethodStreamlink)
	}
	ok := false
	for _, q := range Qualities {
		if q == c.VodQuality {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("invalid VOD_QUALITY %q: want one of %s", c.VodQuality, strings.Join(Qualities, ","))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

// ValidateHelixReady checks the credentials needed for platform lookups.
func (c *Config) ValidateHelixReady() error {
	if c.TwitchClientID == "" || c.TwitchClientSecret == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CLIENT_ID, TWITCH_CLIENT_SECRET")
	}
	return nil
}
