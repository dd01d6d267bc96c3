// Package devserver implements a loopback chat server speaking the channel
// wire protocol. It exists for local development and for exercising the
// client end to end; it is not the production backend.
package devserver

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/naijatalk/client-go/domain/entities"
	"github.com/naijatalk/client-go/internal/auth"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server maintains the set of connected clients and their room memberships.
type Server struct {
	register   chan *client
	unregister chan *client

	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]*client

	// RequireAuth rejects connections without a valid token.
	RequireAuth bool

	logger *zap.Logger
}

// NewServer creates a devserver.
func NewServer(logger *zap.Logger) *Server {
	return &Server{
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[string]*client),
		rooms:      make(map[string]map[string]*client),
		logger:     logger,
	}
}

// Run starts the server's registration loop.
func (s *Server) Run() {
	for {
		select {
		case cl := <-s.register:
			s.mu.Lock()
			s.clients[cl.id] = cl
			s.mu.Unlock()
			s.logger.Info("client registered", zap.String("clientID", cl.id))

		case cl := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[cl.id]; ok {
				delete(s.clients, cl.id)
				for _, members := range s.rooms {
					delete(members, cl.id)
				}
				close(cl.send)
			}
			s.mu.Unlock()
			s.logger.Info("client unregistered", zap.String("clientID", cl.id))
		}
	}
}

// Attach registers the HTTP routes on an echo instance.
func (s *Server) Attach(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "naijatalk-devserver",
		})
	})
	e.GET("/ws", s.HandleWebSocket)
}

// HandleWebSocket upgrades a connection and starts its pumps.
func (s *Server) HandleWebSocket(c echo.Context) error {
	name := "guest"
	id := ""
	if token := c.QueryParam("token"); token != "" {
		claims, err := auth.ValidateToken(token)
		if err != nil {
			if s.RequireAuth {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "invalid token",
				})
			}
		} else {
			id = claims.DeviceID
			if claims.UserName != "" {
				name = claims.UserName
			}
		}
	} else if s.RequireAuth {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "missing token",
		})
	}
	if id == "" {
		id = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return err
	}

	cl := &client{
		server: s,
		conn:   conn,
		send:   make(chan []byte, 256),
		id:     id,
		name:   name,
		logger: s.logger,
	}

	s.register <- cl

	go cl.writePump()
	go cl.readPump()

	cl.reply(map[string]interface{}{
		"type":      "connection",
		"status":    "connected",
		"timestamp": time.Now().Format(time.RFC3339),
	})
	return nil
}

func (s *Server) joinRoom(roomID string, cl *client) {
	s.mu.Lock()
	members, ok := s.rooms[roomID]
	if !ok {
		members = make(map[string]*client)
		s.rooms[roomID] = members
	}
	members[cl.id] = cl
	s.mu.Unlock()
}

func (s *Server) leaveRoom(roomID string, cl *client) {
	s.mu.Lock()
	if members, ok := s.rooms[roomID]; ok {
		delete(members, cl.id)
	}
	s.mu.Unlock()
}

// broadcast delivers payload to every room member except the sender.
func (s *Server) broadcast(roomID, senderID string, payload []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, member := range s.rooms[roomID] {
		if id == senderID {
			continue
		}
		select {
		case member.send <- payload:
		default:
			s.logger.Warn("dropping broadcast to slow client",
				zap.String("clientID", id))
		}
	}
}

// client is a middleman between one websocket connection and the server.
type client struct {
	server *Server
	conn   *websocket.Conn
	send   chan []byte
	id     string
	name   string
	logger *zap.Logger
}

func (c *client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", zap.Error(err))
			}
			return
		}
		c.process(message)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type frame struct {
	Type           string                 `json:"type"`
	RoomID         string                 `json:"roomId"`
	Body           string                 `json:"message"`
	OriginalText   string                 `json:"originalText"`
	SourceLanguage string                 `json:"sourceLanguage"`
	TargetLanguage string                 `json:"targetLanguage"`
	Text           string                 `json:"text"`
	AudioData      string                 `json:"audioData"`
	Settings       *entities.UserSettings `json:"settings"`
}

func (c *client) process(message []byte) {
	var msg frame
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Error("failed to parse message", zap.Error(err))
		return
	}
	if msg.Type == "" {
		c.logger.Error("message missing type field")
		return
	}

	switch msg.Type {
	case "join_room":
		c.server.joinRoom(msg.RoomID, c)
		c.reply(map[string]interface{}{
			"type":      "room_joined",
			"roomId":    msg.RoomID,
			"timestamp": time.Now().Format(time.RFC3339),
		})

	case "leave_room":
		c.server.leaveRoom(msg.RoomID, c)

	case "chat_message":
		c.handleChatMessage(msg)

	case "translate_text":
		c.handleTranslateText(msg)

	case "update_settings":
		c.reply(map[string]interface{}{
			"type":      "settings_updated",
			"timestamp": time.Now().Format(time.RFC3339),
		})

	case "speech_to_text":
		c.handleSpeechToText(msg)

	default:
		c.logger.Warn("unknown message type", zap.String("type", msg.Type))
	}
}

func (c *client) handleChatMessage(msg frame) {
	payload, _ := json.Marshal(map[string]interface{}{
		"type":   "chat_message",
		"roomId": msg.RoomID,
		"message": map[string]interface{}{
			"id":             uuid.NewString(),
			"sender":         c.name,
			"text":           msg.Body,
			"originalText":   msg.OriginalText,
			"sourceLanguage": msg.SourceLanguage,
			"timestamp":      time.Now().Format(time.RFC3339),
		},
		"timestamp": time.Now().Format(time.RFC3339),
	})
	c.server.broadcast(msg.RoomID, c.id, payload)
}

// handleTranslateText fakes a translation by tagging the text with the
// target language. Real translation lives behind the production backend.
func (c *client) handleTranslateText(msg frame) {
	c.reply(map[string]interface{}{
		"type":           "translation_result",
		"text":           msg.Text,
		"translatedText": "[" + msg.TargetLanguage + "] " + msg.Text,
		"sourceLanguage": msg.SourceLanguage,
		"targetLanguage": msg.TargetLanguage,
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// handleSpeechToText fakes recognition with a size-based transcript.
func (c *client) handleSpeechToText(msg frame) {
	audio, err := base64.StdEncoding.DecodeString(msg.AudioData)
	if err != nil {
		c.logger.Warn("invalid audio payload", zap.Error(err))
		return
	}

	var transcript string
	switch {
	case len(audio) > 10000:
		transcript = "How you dey? I wan gist you about my day."
	case len(audio) > 1000:
		transcript = "How far, my friend!"
	default:
		transcript = "Hello"
	}

	c.reply(map[string]interface{}{
		"type":       "speech_recognition_result",
		"transcript": transcript,
		"confidence": 0.9,
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}

func (c *client) reply(payload map[string]interface{}) {
	data, _ := json.Marshal(payload)
	select {
	case c.send <- data:
	default:
		c.logger.Warn("dropping reply to slow client", zap.String("clientID", c.id))
	}
}
