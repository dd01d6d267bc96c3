package config

import (
	"testing"
	"time"

	"github.com/naijatalk/client-go/domain/entities"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"NAIJATALK_SERVER_URL", "NAIJATALK_ROOM", "NAIJATALK_USER",
		"NAIJATALK_DEVICE_ID", "NAIJATALK_SOURCE_LANGUAGE",
		"NAIJATALK_MAX_RECONNECT_ATTEMPTS", "NAIJATALK_RECONNECT_DELAY",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.ServerURL != "ws://localhost:8080/ws" {
		t.Errorf("Unexpected default server URL %s", cfg.ServerURL)
	}
	if cfg.RoomID != "lobby" {
		t.Errorf("Unexpected default room %s", cfg.RoomID)
	}
	if cfg.DeviceID == "" {
		t.Error("Device ID should be generated when unset")
	}
	if cfg.DefaultSourceLanguage != entities.LanguageEnglish {
		t.Errorf("Unexpected default source language %s", cfg.DefaultSourceLanguage)
	}
	if cfg.MaxReconnectAttempts != 5 {
		t.Errorf("Expected 5 reconnect attempts, got %d", cfg.MaxReconnectAttempts)
	}
	if cfg.ReconnectDelay != 3*time.Second {
		t.Errorf("Expected 3s reconnect delay, got %v", cfg.ReconnectDelay)
	}
	if cfg.MaxRecording != 30*time.Second {
		t.Errorf("Expected 30s max recording, got %v", cfg.MaxRecording)
	}
	if !cfg.AutoSend {
		t.Error("Auto-send should default to on")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NAIJATALK_SERVER_URL", "wss://chat.example.com/ws")
	t.Setenv("NAIJATALK_SOURCE_LANGUAGE", "pcm")
	t.Setenv("NAIJATALK_TARGET_LANGUAGE", "ha")
	t.Setenv("NAIJATALK_RECONNECT_DELAY", "500ms")
	t.Setenv("NAIJATALK_AUTO_SEND", "false")

	cfg := Load()

	if cfg.ServerURL != "wss://chat.example.com/ws" {
		t.Errorf("Server URL not read from env, got %s", cfg.ServerURL)
	}
	if cfg.DefaultSourceLanguage != entities.LanguagePidgin {
		t.Errorf("Source language not read from env, got %s", cfg.DefaultSourceLanguage)
	}
	if cfg.DefaultTargetLanguage != entities.LanguageHausa {
		t.Errorf("Target language not read from env, got %s", cfg.DefaultTargetLanguage)
	}
	if cfg.ReconnectDelay != 500*time.Millisecond {
		t.Errorf("Reconnect delay not read from env, got %v", cfg.ReconnectDelay)
	}
	if cfg.AutoSend {
		t.Error("Auto-send should be off")
	}
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("NAIJATALK_SOURCE_LANGUAGE", "klingon")
	t.Setenv("NAIJATALK_MAX_RECONNECT_ATTEMPTS", "many")
	t.Setenv("NAIJATALK_RECONNECT_DELAY", "soon")

	cfg := Load()

	if cfg.DefaultSourceLanguage != entities.LanguageEnglish {
		t.Errorf("Invalid language should fall back to default, got %s", cfg.DefaultSourceLanguage)
	}
	if cfg.MaxReconnectAttempts != 5 {
		t.Errorf("Invalid int should fall back to default, got %d", cfg.MaxReconnectAttempts)
	}
	if cfg.ReconnectDelay != 3*time.Second {
		t.Errorf("Invalid duration should fall back to default, got %v", cfg.ReconnectDelay)
	}
}
