package storage

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/naijatalk/client-go/domain/entities"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SettingsRoundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	settings := entities.UserSettings{
		SourceLanguage: entities.LanguagePidgin,
		TargetLanguage: entities.LanguageIgbo,
		VoiceEnabled:   false,
		AutoTranslate:  true,
		ShowCaptions:   false,
	}
	if err := store.Save(ctx, settings); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != settings {
		t.Errorf("Expected %+v, got %+v", settings, got)
	}
}

func TestStore_LoadDefaultsWhenEmpty(t *testing.T) {
	store := openTestStore(t)

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != entities.DefaultSettings() {
		t.Errorf("Empty store should load defaults, got %+v", got)
	}
}

func TestStore_LoadDefaultsOnCorruptPayload(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.db.ExecContext(ctx,
		`INSERT INTO settings (id, payload) VALUES (1, '{broken')`); err != nil {
		t.Fatalf("Failed to plant corrupt payload: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load should never surface corruption: %v", err)
	}
	if got != entities.DefaultSettings() {
		t.Errorf("Corrupt payload should load defaults, got %+v", got)
	}
}

func TestStore_LoadDefaultsOnInvalidLanguage(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.db.ExecContext(ctx,
		`INSERT INTO settings (id, payload) VALUES (1, '{"sourceLanguage":"fr","targetLanguage":"yo"}')`); err != nil {
		t.Fatalf("Failed to plant invalid payload: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != entities.DefaultSettings() {
		t.Errorf("Invalid persisted language should load defaults, got %+v", got)
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := entities.DefaultSettings()
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	second := first
	second.TargetLanguage = entities.LanguageHausa
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	got, _ := store.Load(ctx)
	if got.TargetLanguage != entities.LanguageHausa {
		t.Errorf("Save should overwrite the single settings row, got %+v", got)
	}
}

func TestStore_HistoryRoundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	messages := []entities.ChatMessage{
		{ID: "m1", RoomID: "lobby", Sender: "amara", Text: "first",
			SourceLanguage: entities.LanguageEnglish, Timestamp: base, Own: true},
		{ID: "m2", RoomID: "lobby", Sender: "chinedu", Text: "second",
			SourceLanguage: entities.LanguageIgbo, Timestamp: base.Add(time.Minute)},
		{ID: "m3", RoomID: "lobby", Sender: "amara", Text: "third",
			SourceLanguage: entities.LanguageEnglish, Timestamp: base.Add(2 * time.Minute), Own: true},
	}
	for _, msg := range messages {
		if err := store.Append(ctx, msg); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(got))
	}
	for i, msg := range got {
		if msg.ID != messages[i].ID {
			t.Errorf("Expected chronological order, position %d is %s", i, msg.ID)
		}
	}
	if !got[0].Own || got[1].Own {
		t.Error("Own flag should roundtrip")
	}
	if !got[0].Timestamp.Equal(base) {
		t.Errorf("Timestamp should roundtrip, got %v", got[0].Timestamp)
	}
}

func TestStore_RecentHonorsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		msg := entities.ChatMessage{
			ID:        string(rune('a' + i)),
			RoomID:    "lobby",
			Text:      "message",
			Timestamp: time.Now(),
		}
		if err := store.Append(ctx, msg); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(got))
	}
	// The newest two, still chronological.
	if got[0].ID != "d" || got[1].ID != "e" {
		t.Errorf("Expected the newest entries d,e, got %s,%s", got[0].ID, got[1].ID)
	}
}

func TestStore_AppendIsIdempotentPerID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	msg := entities.ChatMessage{ID: "dup", RoomID: "lobby", Text: "once", Timestamp: time.Now()}
	if err := store.Append(ctx, msg); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	msg.Text = "twice"
	if err := store.Append(ctx, msg); err != nil {
		t.Fatalf("Second append failed: %v", err)
	}

	got, _ := store.Recent(ctx, 10)
	if len(got) != 1 {
		t.Fatalf("Duplicate ID should replace, got %d rows", len(got))
	}
	if got[0].Text != "twice" {
		t.Errorf("Expected the replacement text, got %q", got[0].Text)
	}
}

func TestStore_Clear(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.Append(ctx, entities.ChatMessage{ID: "m1", RoomID: "lobby", Text: "hi", Timestamp: time.Now()})
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	got, _ := store.Recent(ctx, 10)
	if len(got) != 0 {
		t.Errorf("Expected empty history after clear, got %d rows", len(got))
	}
}
