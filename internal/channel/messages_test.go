package channel

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/naijatalk/client-go/domain/entities"
)

func TestNewChatMessage(t *testing.T) {
	msg := NewChatMessage("room-1", "Bawo ni", "How are you", entities.LanguageYoruba)

	if msg.Type != MessageTypeChatMessage {
		t.Errorf("Expected type %s, got %s", MessageTypeChatMessage, msg.Type)
	}
	if msg.RoomID != "room-1" {
		t.Errorf("Expected room room-1, got %s", msg.RoomID)
	}
	if msg.Body != "Bawo ni" {
		t.Errorf("Expected body 'Bawo ni', got %q", msg.Body)
	}
	if msg.OriginalText != "How are you" {
		t.Errorf("Expected original text, got %q", msg.OriginalText)
	}
	if msg.SourceLanguage != entities.LanguageYoruba {
		t.Errorf("Expected source language yo, got %s", msg.SourceLanguage)
	}
	if msg.MessageID == "" {
		t.Error("Message ID should be generated")
	}
	if msg.Timestamp != "" {
		t.Error("Timestamp should be empty until the message is transmitted")
	}
}

func TestMessageIDsAreUnique(t *testing.T) {
	a := NewJoinRoom("lobby")
	b := NewJoinRoom("lobby")
	if a.MessageID == b.MessageID {
		t.Error("Message IDs should be unique per message")
	}
}

func TestNewSpeechToTextEncodesAudio(t *testing.T) {
	audio := []byte{0x01, 0x02, 0x03, 0xFF}
	msg := NewSpeechToText(audio)

	decoded, err := base64.StdEncoding.DecodeString(msg.AudioData)
	if err != nil {
		t.Fatalf("Audio data should be valid base64: %v", err)
	}
	if string(decoded) != string(audio) {
		t.Error("Decoded audio does not match original")
	}
}

func TestNewUpdateSettingsCopiesRecord(t *testing.T) {
	settings := entities.DefaultSettings()
	msg := NewUpdateSettings(settings)

	settings.TargetLanguage = entities.LanguageIgbo
	if msg.Settings.TargetLanguage == entities.LanguageIgbo {
		t.Error("Message should carry its own copy of the settings")
	}
}

func TestMessageWireFormat(t *testing.T) {
	msg := NewTranslateText("How far", entities.LanguagePidgin, entities.LanguageEnglish)
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if raw["type"] != "translate_text" {
		t.Errorf("Expected type translate_text, got %v", raw["type"])
	}
	if raw["sourceLanguage"] != "pcm" {
		t.Errorf("Expected sourceLanguage pcm, got %v", raw["sourceLanguage"])
	}
	if raw["targetLanguage"] != "en" {
		t.Errorf("Expected targetLanguage en, got %v", raw["targetLanguage"])
	}
	if _, ok := raw["timestamp"]; ok {
		t.Error("Unstamped timestamp should be omitted from the wire frame")
	}
	if _, ok := raw["roomId"]; ok {
		t.Error("Empty roomId should be omitted from the wire frame")
	}
}

func TestParseInboundChatMessage(t *testing.T) {
	data := []byte(`{
		"type": "chat_message",
		"roomId": "lobby",
		"message": {
			"id": "msg-1",
			"sender": "Ada",
			"text": "Kedu",
			"sourceLanguage": "ig",
			"timestamp": "2026-08-30T10:00:00Z"
		}
	}`)

	msg, err := ParseInbound(data)
	if err != nil {
		t.Fatalf("ParseInbound failed: %v", err)
	}
	if msg.Type != MessageTypeChatMessage {
		t.Errorf("Expected chat_message, got %s", msg.Type)
	}
	if msg.Message == nil {
		t.Fatal("Expected embedded message record")
	}
	if msg.Message.Sender != "Ada" {
		t.Errorf("Expected sender Ada, got %s", msg.Message.Sender)
	}
	if msg.Message.SourceLanguage != entities.LanguageIgbo {
		t.Errorf("Expected source language ig, got %s", msg.Message.SourceLanguage)
	}

	want := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	if !msg.Message.LocalTime().Equal(want) {
		t.Errorf("Expected timestamp %v, got %v", want, msg.Message.LocalTime())
	}
}

func TestParseInboundErrors(t *testing.T) {
	if _, err := ParseInbound([]byte(`{not json`)); err == nil {
		t.Error("Malformed JSON should fail to parse")
	}

	if _, err := ParseInbound([]byte(`{"roomId":"lobby"}`)); err == nil {
		t.Error("Frame without a type should fail to parse")
	}

	_, err := ParseInbound([]byte(`{"type":"mystery"}`))
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Errorf("Expected ErrUnknownMessageType, got %v", err)
	}
}

func TestWireChatMessageLocalTimeFallback(t *testing.T) {
	w := &WireChatMessage{Timestamp: "not-a-time"}
	before := time.Now()
	got := w.LocalTime()
	if got.Before(before) {
		t.Error("Unparseable timestamp should fall back to receipt time")
	}
}
