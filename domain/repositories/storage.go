package repositories

import (
	"context"

	"github.com/naijatalk/client-go/domain/entities"
)

// SettingsStore persists the last-used user settings. Load must fall back to
// defaults on missing or corrupt data instead of returning an error.
type SettingsStore interface {
	Load(ctx context.Context) (entities.UserSettings, error)
	Save(ctx context.Context, settings entities.UserSettings) error
}

// HistoryStore persists the conversation transcript.
type HistoryStore interface {
	Append(ctx context.Context, message entities.ChatMessage) error
	Recent(ctx context.Context, limit int) ([]entities.ChatMessage, error)
	Clear(ctx context.Context) error
}
