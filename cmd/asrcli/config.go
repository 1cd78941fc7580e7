package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config drives one asrcli invocation. Values come from a YAML file when
// present, overridden by ASR_-prefixed environment variables
// (ASR_SECRET_KEY, ASR_ACCOUNT_ID, ...).
type Config struct {
	Endpoint      string `koanf:"endpoint"`
	FlashEndpoint string `koanf:"flash_endpoint"`
	AccountID     int64  `koanf:"account_id"`
	AppID         int64  `koanf:"app_id"`
	SecretKey     string `koanf:"secret_key"`

	EngineModel string `koanf:"engine_model"`
	VoiceFormat int    `koanf:"voice_format"`
	HotwordID   string `koanf:"hotword_id"`

	// FrameBytes is the audio chunk size per write. 6400 bytes is 200 ms
	// of 16 kHz 16-bit PCM.
	FrameBytes int `koanf:"frame_bytes"`

	// Realtime paces writes at the audio's natural rate instead of
	// sending as fast as possible.
	Realtime bool `koanf:"realtime"`

	MetricsAddr string `koanf:"metrics_addr"`
	Trace       bool   `koanf:"trace"`
	LogLevel    string `koanf:"log_level"`
}

func loadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	} else if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if err := k.Load(env.Provider("ASR_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "ASR_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	if !k.Exists("engine_model") {
		k.Set("engine_model", "16k_zh")
	}
	if !k.Exists("frame_bytes") {
		k.Set("frame_bytes", 6400)
	}
	if !k.Exists("realtime") {
		k.Set("realtime", true)
	}
	if !k.Exists("log_level") {
		k.Set("log_level", "info")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) logLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
