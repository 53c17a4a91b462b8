package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DATA_DIR", "CACHE_DIR", "SAVED_VODS_DIR", "CHECKMUTE_METHOD", "VOD_QUALITY",
		"VERIFY_INTERVAL", "MAX_CONCURRENT_DOWNLOADS", "VERIFY_CONCURRENCY", "DB_DSN", "HELIX_RATE_PER_SEC", "TOOL_TIMEOUT"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.CacheDir != filepath.Join("data", "cache") {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.SavedVodsDir != filepath.Join("data", "saved_vods") {
		t.Errorf("SavedVodsDir = %q", cfg.SavedVodsDir)
	}
	if cfg.CheckMuteMethod != MuteMethodAPI || cfg.VodQuality != "best" {
		t.Errorf("method/quality = %q/%q", cfg.CheckMuteMethod, cfg.VodQuality)
	}
	if cfg.VerifyInterval != 6*time.Hour || cfg.MaxConcurrentDownloads != 1 || cfg.VerifyConcurrency != 2 {
		t.Errorf("job defaults = %v/%d/%d", cfg.VerifyInterval, cfg.MaxConcurrentDownloads, cfg.VerifyConcurrency)
	}
	if cfg.DBDsn != "" {
		t.Errorf("DBDsn should default to empty, got %q", cfg.DBDsn)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/srv/vods")
	t.Setenv("CHECKMUTE_METHOD", "Streamlink")
	t.Setenv("VOD_QUALITY", "720p60")
	t.Setenv("APP_DEBUG", "true")
	t.Setenv("VERIFY_INTERVAL", "30m")
	t.Setenv("MAX_CONCURRENT_DOWNLOADS", "3")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.CacheDir != filepath.Join("/srv/vods", "cache") {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.CheckMuteMethod != MuteMethodStreamlink {
		t.Errorf("CheckMuteMethod = %q", cfg.CheckMuteMethod)
	}
	if !cfg.Debug || cfg.VerifyInterval != 30*time.Minute || cfg.MaxConcurrentDownloads != 3 {
		t.Errorf("unexpected overrides: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	tests := []struct{ key, val string }{
		{"VERIFY_INTERVAL", "soon"},
		{"MAX_CONCURRENT_DOWNLOADS", "0"},
		{"VERIFY_CONCURRENCY", "many"},
		{"HELIX_RATE_PER_SEC", "-1"},
		{"TOOL_TIMEOUT", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), tt.key) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.key)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	base := Config{CheckMuteMethod: MuteMethodAPI, VodQuality: "best", LogFormat: "text"}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad method", func(c *Config) { c.CheckMuteMethod = "magic" }, true},
		{"bad quality", func(c *Config) { c.VodQuality = "4k" }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateHelixReady(t *testing.T) {
	c := &Config{TwitchClientID: "id"}
	if err := c.ValidateHelixReady(); err == nil {
		t.Error("expected error without secret")
	}
	c.TwitchClientSecret = "secret"
	if err := c.ValidateHelixReady(); err != nil {
		t.Errorf("ValidateHelixReady() error = %v", err)
	}
}
