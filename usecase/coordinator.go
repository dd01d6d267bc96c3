package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/naijatalk/client-go/domain/entities"
	"github.com/naijatalk/client-go/domain/repositories"
	"github.com/naijatalk/client-go/internal/channel"
	"github.com/naijatalk/client-go/internal/voice"
)

const historyWindow = 200

// Channel is the slice of the channel client the coordinator drives.
type Channel interface {
	Connect()
	Disconnect()
	Connected() bool
	Events() <-chan channel.Event
	JoinRoom(roomID string)
	SendChatMessage(roomID, body, originalText string, source entities.Language)
	SendTranslateText(text string, source, target entities.Language)
	UpdateSettings(settings entities.UserSettings)
}

// VoiceRecorder is the slice of the voice recorder the coordinator drives.
type VoiceRecorder interface {
	SetResultHandler(fn voice.ResultFunc)
	Events() <-chan voice.Event
	StartRecording(ctx context.Context) error
	StopRecording()
	Abort()
}

// EventKind classifies coordinator events for the caller's UI.
type EventKind string

const (
	EventMessage     EventKind = "message"
	EventStatus      EventKind = "status"
	EventCaption     EventKind = "caption"
	EventTranslation EventKind = "translation"
	EventLevel       EventKind = "level"
	EventSettings    EventKind = "settings"
	EventNotice      EventKind = "notice"
)

// Event is one coordinator occurrence.
type Event struct {
	Kind     EventKind
	Message  *entities.ChatMessage
	Status   channel.Status
	Text     string
	Level    float64
	Settings entities.UserSettings
}

// Config identifies the chat session the coordinator runs.
type Config struct {
	RoomID   string
	UserName string
}

// Coordinator wires the channel client and the voice recorder to chat state.
// It is the only component that mutates the conversation transcript; it reads
// the other components' state purely through their event streams. Outbound
// messages are appended locally before transmission and never rolled back.
type Coordinator struct {
	ch            Channel
	recorder      VoiceRecorder
	settingsStore repositories.SettingsStore
	historyStore  repositories.HistoryStore
	cfg           Config
	logger        *zap.Logger

	events chan Event

	mu         sync.Mutex
	settings   entities.UserSettings
	transcript []entities.ChatMessage
}

// NewCoordinator creates the session coordinator. Call Start to run it.
func NewCoordinator(
	ch Channel,
	recorder VoiceRecorder,
	settingsStore repositories.SettingsStore,
	historyStore repositories.HistoryStore,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		ch:            ch,
		recorder:      recorder,
		settingsStore: settingsStore,
		historyStore:  historyStore,
		cfg:           cfg,
		logger:        logger,
		events:        make(chan Event, 256),
		settings:      entities.DefaultSettings(),
	}
}

// Events yields coordinator events for the caller's UI. The channel is
// buffered; a UI that stops draining loses the oldest buffered events rather
// than stalling the coordinator, so delivery of every event is not
// guaranteed.
func (co *Coordinator) Events() <-chan Event {
	return co.events
}

// Start loads persisted state, connects the channel and begins consuming both
// event sources. It returns once the loops are running.
func (co *Coordinator) Start(ctx context.Context) {
	settings, err := co.settingsStore.Load(ctx)
	if err != nil {
		co.logger.Warn("failed to load settings, using defaults", zap.Error(err))
		settings = entities.DefaultSettings()
	}
	history, err := co.historyStore.Recent(ctx, historyWindow)
	if err != nil {
		co.logger.Warn("failed to load chat history", zap.Error(err))
		history = nil
	}

	co.mu.Lock()
	co.settings = settings
	co.transcript = history
	co.mu.Unlock()

	co.recorder.SetResultHandler(func(text string, confidence float64) {
		co.logger.Info("voice transcript finalized",
			zap.Float64("confidence", confidence))
		co.SendText(text)
	})

	co.ch.Connect()
	go co.runChannel(ctx)
	go co.runRecorder(ctx)
}

// Stop tears both components down.
func (co *Coordinator) Stop() {
	co.recorder.Abort()
	co.ch.Disconnect()
}

// Settings returns the current user settings.
func (co *Coordinator) Settings() entities.UserSettings {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.settings
}

// Transcript returns a copy of the visible conversation transcript.
func (co *Coordinator) Transcript() []entities.ChatMessage {
	co.mu.Lock()
	defer co.mu.Unlock()
	out := make([]entities.ChatMessage, len(co.transcript))
	copy(out, co.transcript)
	return out
}

// SendText appends the message to the local transcript optimistically, then
// transmits it fire-and-forget. Delivery is never reconciled on failure; the
// channel's own queue covers disconnected periods.
func (co *Coordinator) SendText(text string) {
	if text == "" {
		return
	}

	co.mu.Lock()
	source := co.settings.SourceLanguage
	msg := entities.ChatMessage{
		ID:             uuid.NewString(),
		RoomID:         co.cfg.RoomID,
		Sender:         co.cfg.UserName,
		Text:           text,
		SourceLanguage: source,
		Timestamp:      time.Now(),
		Own:            true,
	}
	co.transcript = append(co.transcript, msg)
	co.mu.Unlock()

	if err := co.historyStore.Append(context.Background(), msg); err != nil {
		co.logger.Warn("failed to persist outbound message", zap.Error(err))
	}
	co.emit(Event{Kind: EventMessage, Message: &msg})

	co.ch.SendChatMessage(co.cfg.RoomID, text, "", source)
}

// StartVoice begins a voice recording.
func (co *Coordinator) StartVoice(ctx context.Context) error {
	return co.recorder.StartRecording(ctx)
}

// StopVoice ends a voice recording.
func (co *Coordinator) StopVoice() {
	co.recorder.StopRecording()
}

// UpdateSettings validates and persists the settings, and echoes them to the
// server iff the channel is currently connected. There is no delivery retry
// for settings; they are re-sent only on the next change.
func (co *Coordinator) UpdateSettings(settings entities.UserSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	if err := co.settingsStore.Save(context.Background(), settings); err != nil {
		co.logger.Warn("failed to persist settings", zap.Error(err))
	}

	co.mu.Lock()
	co.settings = settings
	co.mu.Unlock()

	if co.ch.Connected() {
		co.ch.UpdateSettings(settings)
	}
	co.emit(Event{Kind: EventSettings, Settings: settings})
	return nil
}

func (co *Coordinator) runChannel(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-co.ch.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case channel.EventStatus:
				if ev.Status.State == channel.StateConnected {
					co.ch.JoinRoom(co.cfg.RoomID)
				}
				co.emit(Event{Kind: EventStatus, Status: ev.Status})
			case channel.EventMessage:
				co.handleInbound(ev.Message)
			}
		}
	}
}

func (co *Coordinator) handleInbound(msg *channel.Inbound) {
	switch msg.Type {
	case channel.MessageTypeConnection:
		co.logger.Debug("server connection acknowledged",
			zap.String("status", msg.Status))

	case channel.MessageTypeRoomJoined:
		co.logger.Info("room joined", zap.String("room", msg.RoomID))
		co.emit(Event{Kind: EventNotice, Text: "joined room " + msg.RoomID})

	case channel.MessageTypeChatMessage:
		co.handleChatMessage(msg)

	case channel.MessageTypeSpeechRecognition:
		co.emit(Event{Kind: EventCaption, Text: msg.Transcript})

	case channel.MessageTypeTranslationResult:
		co.emit(Event{Kind: EventTranslation, Text: msg.TranslatedText})

	case channel.MessageTypeSettingsUpdated:
		co.logger.Debug("settings acknowledged by server")
	}
}

func (co *Coordinator) handleChatMessage(msg *channel.Inbound) {
	wire := msg.Message
	if wire == nil || wire.Text == "" {
		co.logger.Warn("chat_message without message record dropped")
		return
	}

	entry := entities.ChatMessage{
		ID:             wire.ID,
		RoomID:         msg.RoomID,
		Sender:         wire.Sender,
		Text:           wire.Text,
		OriginalText:   wire.OriginalText,
		SourceLanguage: wire.SourceLanguage,
		Timestamp:      wire.LocalTime(),
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.RoomID == "" {
		entry.RoomID = co.cfg.RoomID
	}

	co.mu.Lock()
	co.transcript = append(co.transcript, entry)
	settings := co.settings
	co.mu.Unlock()

	if err := co.historyStore.Append(context.Background(), entry); err != nil {
		co.logger.Warn("failed to persist inbound message", zap.Error(err))
	}
	co.emit(Event{Kind: EventMessage, Message: &entry})

	if settings.AutoTranslate &&
		entry.SourceLanguage != "" &&
		entry.SourceLanguage != settings.TargetLanguage &&
		co.ch.Connected() {
		co.ch.SendTranslateText(entry.Text, entry.SourceLanguage, settings.TargetLanguage)
	}
}

func (co *Coordinator) runRecorder(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-co.recorder.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case voice.EventInterim:
				co.mu.Lock()
				captions := co.settings.ShowCaptions
				co.mu.Unlock()
				if captions {
					co.emit(Event{Kind: EventCaption, Text: ev.Text})
				}
			case voice.EventLevel:
				co.emit(Event{Kind: EventLevel, Level: ev.Level})
			case voice.EventError:
				if ev.Err != nil {
					co.emit(Event{Kind: EventNotice, Text: ev.Err.Error()})
				}
			}
		}
	}
}

func (co *Coordinator) emit(ev Event) {
	select {
	case co.events <- ev:
	default:
		select {
		case <-co.events:
		default:
		}
		co.events <- ev
	}
}
