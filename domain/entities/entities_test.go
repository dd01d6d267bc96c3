package entities

import "testing"

func TestLanguageIsSupported(t *testing.T) {
	for _, lang := range SupportedLanguages() {
		if !lang.IsSupported() {
			t.Errorf("Language %s should be supported", lang)
		}
	}

	for _, lang := range []Language{"", "fr", "en-US", "EN"} {
		if lang.IsSupported() {
			t.Errorf("Language %q should not be supported", lang)
		}
	}
}

func TestLanguageRecognitionTag(t *testing.T) {
	cases := map[Language]string{
		LanguageEnglish: "en-NG",
		LanguageYoruba:  "yo-NG",
		LanguageIgbo:    "ig-NG",
		LanguageHausa:   "ha-NG",
		LanguagePidgin:  "pcm-NG",
	}
	for lang, want := range cases {
		if got := lang.RecognitionTag(); got != want {
			t.Errorf("Expected tag %s for %s, got %s", want, lang, got)
		}
	}
}

func TestDefaultSettingsAreValid(t *testing.T) {
	settings := DefaultSettings()
	if err := settings.Validate(); err != nil {
		t.Errorf("Default settings should validate: %v", err)
	}
	if settings.SourceLanguage != LanguageEnglish {
		t.Errorf("Expected default source en, got %s", settings.SourceLanguage)
	}
	if settings.TargetLanguage != LanguageYoruba {
		t.Errorf("Expected default target yo, got %s", settings.TargetLanguage)
	}
}

func TestUserSettingsValidate(t *testing.T) {
	settings := DefaultSettings()
	settings.SourceLanguage = "de"
	if err := settings.Validate(); err == nil {
		t.Error("Unsupported source language should fail validation")
	}

	settings = DefaultSettings()
	settings.TargetLanguage = ""
	if err := settings.Validate(); err == nil {
		t.Error("Empty target language should fail validation")
	}
}

func TestChatMessageValidate(t *testing.T) {
	msg := &ChatMessage{ID: "m1", Text: "hello"}
	if err := msg.Validate(); err != nil {
		t.Errorf("Valid message should pass: %v", err)
	}

	if err := (&ChatMessage{Text: "hello"}).Validate(); err == nil {
		t.Error("Message without ID should fail validation")
	}
	if err := (&ChatMessage{ID: "m1"}).Validate(); err == nil {
		t.Error("Message without text should fail validation")
	}
}
