package channel

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/naijatalk/client-go/domain/entities"
)

// MessageType defines the type tag of a channel message.
type MessageType string

// Outbound message types.
const (
	MessageTypeJoinRoom       MessageType = "join_room"
	MessageTypeLeaveRoom      MessageType = "leave_room"
	MessageTypeChatMessage    MessageType = "chat_message"
	MessageTypeSpeechToText   MessageType = "speech_to_text"
	MessageTypeTranslateText  MessageType = "translate_text"
	MessageTypeUpdateSettings MessageType = "update_settings"
)

// Inbound message types.
const (
	MessageTypeConnection        MessageType = "connection"
	MessageTypeRoomJoined        MessageType = "room_joined"
	MessageTypeSpeechRecognition MessageType = "speech_recognition_result"
	MessageTypeTranslationResult MessageType = "translation_result"
	MessageTypeSettingsUpdated   MessageType = "settings_updated"
)

// ErrUnknownMessageType marks an inbound tag outside the consumed set.
// Such messages are dropped without surfacing an error to the caller.
var ErrUnknownMessageType = errors.New("unknown message type")

// Message is an outbound channel message. The type tag selects which of the
// optional fields are populated. Timestamp is stamped by the client at send
// time, not when the message is built or queued.
type Message struct {
	Type           MessageType            `json:"type"`
	MessageID      string                 `json:"message_id,omitempty"`
	Timestamp      string                 `json:"timestamp,omitempty"`
	RoomID         string                 `json:"roomId,omitempty"`
	Body           string                 `json:"message,omitempty"`
	OriginalText   string                 `json:"originalText,omitempty"`
	SourceLanguage entities.Language      `json:"sourceLanguage,omitempty"`
	TargetLanguage entities.Language      `json:"targetLanguage,omitempty"`
	Text           string                 `json:"text,omitempty"`
	AudioData      string                 `json:"audioData,omitempty"`
	Settings       *entities.UserSettings `json:"settings,omitempty"`
}

// NewJoinRoom builds a join_room message.
func NewJoinRoom(roomID string) *Message {
	return &Message{
		Type:      MessageTypeJoinRoom,
		MessageID: uuid.NewString(),
		RoomID:    roomID,
	}
}

// NewLeaveRoom builds a leave_room message.
func NewLeaveRoom(roomID string) *Message {
	return &Message{
		Type:      MessageTypeLeaveRoom,
		MessageID: uuid.NewString(),
		RoomID:    roomID,
	}
}

// NewChatMessage builds a chat_message. originalText may be empty when the
// body was not produced from another language.
func NewChatMessage(roomID, body, originalText string, source entities.Language) *Message {
	return &Message{
		Type:           MessageTypeChatMessage,
		MessageID:      uuid.NewString(),
		RoomID:         roomID,
		Body:           body,
		OriginalText:   originalText,
		SourceLanguage: source,
	}
}

// NewSpeechToText builds a speech_to_text message carrying base64 audio.
func NewSpeechToText(audio []byte) *Message {
	return &Message{
		Type:      MessageTypeSpeechToText,
		MessageID: uuid.NewString(),
		AudioData: base64.StdEncoding.EncodeToString(audio),
	}
}

// NewTranslateText builds a translate_text request.
func NewTranslateText(text string, source, target entities.Language) *Message {
	return &Message{
		Type:           MessageTypeTranslateText,
		MessageID:      uuid.NewString(),
		Text:           text,
		SourceLanguage: source,
		TargetLanguage: target,
	}
}

// NewUpdateSettings builds an update_settings message carrying the full record.
func NewUpdateSettings(settings entities.UserSettings) *Message {
	s := settings
	return &Message{
		Type:      MessageTypeUpdateSettings,
		MessageID: uuid.NewString(),
		Settings:  &s,
	}
}

// WireChatMessage is the message record carried by an inbound chat_message.
type WireChatMessage struct {
	ID             string            `json:"id"`
	Sender         string            `json:"sender"`
	Text           string            `json:"text"`
	OriginalText   string            `json:"originalText,omitempty"`
	SourceLanguage entities.Language `json:"sourceLanguage,omitempty"`
	Timestamp      string            `json:"timestamp"`
}

// LocalTime converts the serialized wire instant to a local time value.
// An unparseable timestamp falls back to the receipt time.
func (w *WireChatMessage) LocalTime() time.Time {
	if w.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, w.Timestamp); err == nil {
			return ts.Local()
		}
	}
	return time.Now()
}

// Inbound is a parsed server-to-client message.
type Inbound struct {
	Type           MessageType            `json:"type"`
	Timestamp      string                 `json:"timestamp"`
	RoomID         string                 `json:"roomId"`
	Status         string                 `json:"status"`
	Message        *WireChatMessage       `json:"message"`
	Transcript     string                 `json:"transcript"`
	Confidence     float64                `json:"confidence"`
	Text           string                 `json:"text"`
	TranslatedText string                 `json:"translatedText"`
	SourceLanguage entities.Language      `json:"sourceLanguage"`
	TargetLanguage entities.Language      `json:"targetLanguage"`
	Settings       *entities.UserSettings `json:"settings"`
}

// ParseInbound decodes one wire frame. Malformed JSON returns a decode error;
// a well-formed frame with an unconsumed tag returns ErrUnknownMessageType.
func ParseInbound(data []byte) (*Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid message frame: %w", err)
	}
	if msg.Type == "" {
		return nil, errors.New("message missing type field")
	}

	switch msg.Type {
	case MessageTypeConnection,
		MessageTypeRoomJoined,
		MessageTypeChatMessage,
		MessageTypeSpeechRecognition,
		MessageTypeTranslationResult,
		MessageTypeSettingsUpdated:
		return &msg, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
	}
}
