package entities

import (
	"errors"
	"time"
)

// Language is one of the closed set of language codes the service supports.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageYoruba  Language = "yo"
	LanguageIgbo    Language = "ig"
	LanguageHausa   Language = "ha"
	LanguagePidgin  Language = "pcm"
)

// SupportedLanguages returns every language code the service accepts.
func SupportedLanguages() []Language {
	return []Language{
		LanguageEnglish,
		LanguageYoruba,
		LanguageIgbo,
		LanguageHausa,
		LanguagePidgin,
	}
}

// IsSupported reports whether the code belongs to the closed language set.
func (l Language) IsSupported() bool {
	switch l {
	case LanguageEnglish, LanguageYoruba, LanguageIgbo, LanguageHausa, LanguagePidgin:
		return true
	}
	return false
}

// RecognitionTag returns the BCP-47 tag used by speech recognition backends.
func (l Language) RecognitionTag() string {
	switch l {
	case LanguageYoruba:
		return "yo-NG"
	case LanguageIgbo:
		return "ig-NG"
	case LanguageHausa:
		return "ha-NG"
	case LanguagePidgin:
		return "pcm-NG"
	default:
		return "en-NG"
	}
}

// UserSettings holds the per-user preferences echoed to the server on change.
type UserSettings struct {
	SourceLanguage Language `json:"sourceLanguage"`
	TargetLanguage Language `json:"targetLanguage"`
	VoiceEnabled   bool     `json:"voiceEnabled"`
	AutoTranslate  bool     `json:"autoTranslate"`
	ShowCaptions   bool     `json:"showCaptions"`
}

// DefaultSettings returns the settings used when nothing has been persisted yet.
func DefaultSettings() UserSettings {
	return UserSettings{
		SourceLanguage: LanguageEnglish,
		TargetLanguage: LanguageYoruba,
		VoiceEnabled:   true,
		AutoTranslate:  true,
		ShowCaptions:   true,
	}
}

// Validate checks that both languages belong to the supported set.
func (s UserSettings) Validate() error {
	if !s.SourceLanguage.IsSupported() {
		return errors.New("unsupported source language")
	}
	if !s.TargetLanguage.IsSupported() {
		return errors.New("unsupported target language")
	}
	return nil
}

// ChatMessage is one entry in the conversation transcript.
type ChatMessage struct {
	ID             string    `json:"id"`
	RoomID         string    `json:"room_id"`
	Sender         string    `json:"sender"`
	Text           string    `json:"text"`
	OriginalText   string    `json:"original_text,omitempty"`
	SourceLanguage Language  `json:"source_language"`
	Timestamp      time.Time `json:"timestamp"`
	Own            bool      `json:"own"`
}

// Validate checks the fields required for a transcript entry.
func (m *ChatMessage) Validate() error {
	if m.ID == "" {
		return errors.New("id is required")
	}
	if m.Text == "" {
		return errors.New("text is required")
	}
	return nil
}
