package channel

import (
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/naijatalk/client-go/domain/entities"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Delay between a manual Reconnect's disconnect and its redial.
	redialDelay = 500 * time.Millisecond

	defaultMaxAttempts    = 5
	defaultReconnectDelay = 3 * time.Second
	defaultDialTimeout    = 10 * time.Second

	eventBuffer = 256
)

// State is the connection state of the channel.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Status is a snapshot of the channel's connection state.
type Status struct {
	State    State
	Err      string
	Attempts int
}

// EventKind discriminates channel events.
type EventKind string

const (
	EventStatus  EventKind = "status"
	EventMessage EventKind = "message"
)

// Event is delivered on the client's event stream: either a status transition
// or a parsed inbound message, in arrival order.
type Event struct {
	Kind    EventKind
	Status  Status
	Message *Inbound
}

// Config controls one channel client instance.
type Config struct {
	// URL is the ws:// or wss:// endpoint.
	URL string
	// Token, when set, is appended to the endpoint as a token query parameter.
	Token string
	// MaxAttempts bounds automatic reconnects after unclean closes.
	MaxAttempts int
	// ReconnectDelay is the fixed delay between reconnect attempts.
	ReconnectDelay time.Duration
	// DialTimeout bounds the websocket handshake.
	DialTimeout time.Duration
}

// Client owns one persistent bidirectional message channel to the server.
// Messages sent while the channel is not open are queued FIFO and flushed the
// instant the channel opens. Unclean closes trigger a bounded number of
// automatic reconnects with a fixed delay; a manual Disconnect never retries.
type Client struct {
	cfg    Config
	logger *zap.Logger
	dialer *websocket.Dialer

	events chan Event

	mu             sync.Mutex
	state          State
	lastErr        string
	attempts       int
	conn           *websocket.Conn
	queue          []*Message
	reconnectTimer *time.Timer
	manual         bool
	gen            int
}

// NewClient creates a channel client. It does not connect.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		events: make(chan Event, eventBuffer),
		state:  StateDisconnected,
	}
}

// Events yields status transitions and inbound messages in arrival order.
// The channel is buffered; when the consumer stops draining, the oldest
// buffered events are shed rather than blocking the socket pumps, so
// delivery of every event is not guaranteed.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Status returns a snapshot of the connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Connected reports whether the channel is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

func (c *Client) statusLocked() Status {
	return Status{State: c.state, Err: c.lastErr, Attempts: c.attempts}
}

// Connect opens the channel. It is idempotent: a no-op while connecting or
// connected.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.manual = false
	c.lastErr = ""
	gen := c.gen
	st := c.statusLocked()
	c.mu.Unlock()

	c.emit(Event{Kind: EventStatus, Status: st})
	go c.dial(gen)
}

func (c *Client) dial(gen int) {
	conn, _, err := c.dialer.Dial(c.endpoint(), nil)

	c.mu.Lock()
	if gen != c.gen || c.manual {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		// A failed dial is the wire-level equivalent of an unclean close:
		// it consumes one reconnect attempt.
		c.logger.Warn("channel dial failed", zap.Error(err))
		st := c.scheduleReconnectLocked(err.Error())
		c.mu.Unlock()
		c.emit(Event{Kind: EventStatus, Status: st})
		return
	}

	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.lastErr = ""
	c.gen++
	pumpGen := c.gen

	// Drain the pending queue in FIFO order before releasing the lock, so a
	// racing Send cannot jump ahead of queued messages.
	pending := c.queue
	c.queue = nil
	for i, msg := range pending {
		if werr := c.writeLocked(msg); werr != nil {
			c.logger.Warn("flush interrupted, requeueing", zap.Error(werr),
				zap.Int("remaining", len(pending)-i))
			c.queue = append(pending[i:], c.queue...)
			st := c.dropConnLocked(werr.Error())
			c.mu.Unlock()
			c.emit(Event{Kind: EventStatus, Status: st})
			return
		}
	}

	st := c.statusLocked()
	c.mu.Unlock()

	c.logger.Info("channel connected", zap.String("url", c.cfg.URL))
	c.emit(Event{Kind: EventStatus, Status: st})
	go c.readPump(conn, pumpGen)
}

// Send transmits immediately when the channel is open, stamping the transmit
// timestamp; otherwise it queues the message and, when fully disconnected,
// triggers a connect.
func (c *Client) Send(msg *Message) {
	c.mu.Lock()
	if c.state == StateConnected && c.conn != nil {
		if err := c.writeLocked(msg); err != nil {
			c.logger.Warn("channel write failed, requeueing", zap.Error(err),
				zap.String("type", string(msg.Type)))
			c.queue = append(c.queue, msg)
			st := c.dropConnLocked(err.Error())
			c.mu.Unlock()
			c.emit(Event{Kind: EventStatus, Status: st})
			return
		}
		c.mu.Unlock()
		return
	}

	c.queue = append(c.queue, msg)
	needConnect := c.state == StateDisconnected
	c.mu.Unlock()

	if needConnect {
		c.Connect()
	}
}

// Disconnect closes the channel with a normal-closure code, cancels any
// pending reconnect timer and resets the attempt counter. It never retries.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.manual = true
	c.gen++
	c.stopReconnectTimerLocked()
	c.attempts = 0
	c.lastErr = ""
	conn := c.conn
	c.conn = nil
	changed := c.state != StateDisconnected
	c.state = StateDisconnected
	st := c.statusLocked()
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(writeWait)
		conn.SetWriteDeadline(deadline)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}
	if changed {
		c.emit(Event{Kind: EventStatus, Status: st})
	}
}

// Reconnect disconnects and dials again after a short fixed delay with the
// attempt counter reset.
func (c *Client) Reconnect() {
	c.Disconnect()
	c.mu.Lock()
	c.reconnectTimer = time.AfterFunc(redialDelay, c.Connect)
	c.mu.Unlock()
}

// JoinRoom sends a join_room message.
func (c *Client) JoinRoom(roomID string) {
	c.Send(NewJoinRoom(roomID))
}

// LeaveRoom sends a leave_room message.
func (c *Client) LeaveRoom(roomID string) {
	c.Send(NewLeaveRoom(roomID))
}

// SendChatMessage sends a chat_message.
func (c *Client) SendChatMessage(roomID, body, originalText string, source entities.Language) {
	c.Send(NewChatMessage(roomID, body, originalText, source))
}

// SendSpeechToText sends raw audio for server-side recognition.
func (c *Client) SendSpeechToText(audio []byte) {
	c.Send(NewSpeechToText(audio))
}

// SendTranslateText requests a translation.
func (c *Client) SendTranslateText(text string, source, target entities.Language) {
	c.Send(NewTranslateText(text, source, target))
}

// UpdateSettings pushes the full settings record to the server.
func (c *Client) UpdateSettings(settings entities.UserSettings) {
	c.Send(NewUpdateSettings(settings))
}

func (c *Client) readPump(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}

		msg, perr := ParseInbound(data)
		if perr != nil {
			// Malformed or unknown frames are dropped, never fatal.
			c.logger.Warn("dropping inbound message", zap.Error(perr))
			continue
		}
		c.emit(Event{Kind: EventMessage, Message: msg})
	}
}

func (c *Client) handleClose(gen int, err error) {
	c.mu.Lock()
	if gen != c.gen {
		// A stale pump from a connection already replaced or torn down.
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	if c.manual || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.state = StateDisconnected
		st := c.statusLocked()
		c.mu.Unlock()
		c.logger.Info("channel closed", zap.Error(err))
		c.emit(Event{Kind: EventStatus, Status: st})
		return
	}

	c.logger.Warn("channel closed uncleanly", zap.Error(err))
	st := c.scheduleReconnectLocked(err.Error())
	c.mu.Unlock()
	c.emit(Event{Kind: EventStatus, Status: st})
}

// dropConnLocked tears down the live connection after a write failure and
// schedules a reconnect as if the peer had closed uncleanly.
func (c *Client) dropConnLocked(cause string) Status {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.gen++
	return c.scheduleReconnectLocked(cause)
}

// scheduleReconnectLocked transitions to disconnected and, while attempts
// remain, arms exactly one reconnect after the fixed delay. Exhaustion is the
// terminal, user-visible failure state.
func (c *Client) scheduleReconnectLocked(cause string) Status {
	c.state = StateDisconnected

	if c.attempts >= c.cfg.MaxAttempts {
		c.lastErr = "failed to reconnect: giving up after " +
			strconv.Itoa(c.cfg.MaxAttempts) + " attempts"
		c.logger.Error("channel reconnect attempts exhausted",
			zap.Int("attempts", c.attempts))
		return c.statusLocked()
	}

	c.attempts++
	c.lastErr = cause
	c.stopReconnectTimerLocked()
	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectDelay, c.Connect)
	c.logger.Info("channel reconnect scheduled",
		zap.Int("attempt", c.attempts),
		zap.Duration("delay", c.cfg.ReconnectDelay))
	return c.statusLocked()
}

func (c *Client) stopReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Client) writeLocked(msg *Message) error {
	msg.Timestamp = time.Now().Format(time.RFC3339Nano)
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		// The consumer has fallen impossibly far behind; shed the oldest
		// rather than block the socket pumps.
		select {
		case <-c.events:
		default:
		}
		c.events <- ev
	}
}

func (c *Client) endpoint() string {
	if c.cfg.Token == "" {
		return c.cfg.URL
	}
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return c.cfg.URL
	}
	q := u.Query()
	q.Set("token", c.cfg.Token)
	u.RawQuery = q.Encode()
	return u.String()
}
