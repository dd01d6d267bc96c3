package config

import (
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/naijatalk/client-go/domain/entities"
)

// Config is the environment-driven client configuration.
type Config struct {
	// ServerURL is the ws:// or wss:// channel endpoint.
	ServerURL string
	// RoomID is the chat room joined on connect.
	RoomID string
	// UserName identifies this participant in the room.
	UserName string
	// DeviceID identifies this installation; generated when unset.
	DeviceID string

	// Recognizer selects the speech backend: "google" or "mock".
	Recognizer string
	// CaptureFormat/CaptureDevice configure the ffmpeg microphone input.
	CaptureFormat string
	CaptureDevice string
	// SampleRate for microphone capture.
	SampleRate int

	// DataDir holds the local SQLite database.
	DataDir string

	// DefaultSourceLanguage seeds settings on first run.
	DefaultSourceLanguage entities.Language
	// DefaultTargetLanguage seeds settings on first run.
	DefaultTargetLanguage entities.Language

	// MaxReconnectAttempts bounds automatic channel reconnects.
	MaxReconnectAttempts int
	// ReconnectDelay is the fixed delay between reconnect attempts.
	ReconnectDelay time.Duration
	// MaxRecording is the hard cutoff for one voice recording.
	MaxRecording time.Duration
	// AutoSend stops a recording after each finalized utterance.
	AutoSend bool
}

// Load reads .env when present, then the environment, with defaults for
// everything not set.
func Load() Config {
	godotenv.Load()

	cfg := Config{
		ServerURL:             getEnv("NAIJATALK_SERVER_URL", "ws://localhost:8080/ws"),
		RoomID:                getEnv("NAIJATALK_ROOM", "lobby"),
		UserName:              getEnv("NAIJATALK_USER", "guest"),
		DeviceID:              os.Getenv("NAIJATALK_DEVICE_ID"),
		Recognizer:            getEnv("NAIJATALK_RECOGNIZER", "google"),
		CaptureFormat:         getEnv("NAIJATALK_CAPTURE_FORMAT", "pulse"),
		CaptureDevice:         getEnv("NAIJATALK_CAPTURE_DEVICE", "default"),
		SampleRate:            getEnvInt("NAIJATALK_SAMPLE_RATE", 16000),
		DataDir:               getEnv("NAIJATALK_DATA_DIR", defaultDataDir()),
		DefaultSourceLanguage: language("NAIJATALK_SOURCE_LANGUAGE", entities.LanguageEnglish),
		DefaultTargetLanguage: language("NAIJATALK_TARGET_LANGUAGE", entities.LanguageYoruba),
		MaxReconnectAttempts:  getEnvInt("NAIJATALK_MAX_RECONNECT_ATTEMPTS", 5),
		ReconnectDelay:        getEnvDuration("NAIJATALK_RECONNECT_DELAY", 3*time.Second),
		MaxRecording:          getEnvDuration("NAIJATALK_MAX_RECORDING", 30*time.Second),
		AutoSend:              getEnvBool("NAIJATALK_AUTO_SEND", true),
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
	}
	return cfg
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.naijatalk"
	}
	return ".naijatalk"
}

func language(key string, fallback entities.Language) entities.Language {
	if v := entities.Language(os.Getenv(key)); v.IsSupported() {
		return v
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
