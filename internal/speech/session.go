package speech

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/naijatalk/client-go/domain/entities"
	"github.com/naijatalk/client-go/domain/repositories"
)

const (
	defaultRestartDelay = 300 * time.Millisecond
	defaultChunkSize    = 4096

	eventBuffer = 64
)

// EventKind classifies a speech session event.
type EventKind string

const (
	// EventStart fires when a capture run begins.
	EventStart EventKind = "start"
	// EventInterim carries a provisional transcript that replaces the
	// previous interim wholesale.
	EventInterim EventKind = "interim"
	// EventFinal carries a confirmed transcript appended to the accumulated
	// utterance, with the max alternative confidence.
	EventFinal EventKind = "final"
	// EventEnd fires when a capture run ends, before any auto-restart.
	EventEnd EventKind = "end"
	// EventError carries a non-restartable failure.
	EventError EventKind = "error"
)

// Event is one speech session occurrence, delivered in emission order.
type Event struct {
	Kind       EventKind
	Text       string
	Confidence float64
	Err        error
}

// Config controls one speech capture session.
type Config struct {
	Language entities.Language
	// Continuous keeps the session listening across natural engine ends
	// until StopListening is called.
	Continuous bool
	// Audio is the capture format; its Language field is overwritten per run.
	Audio repositories.AudioConfig
	// RestartDelay is the pause before a continuous-mode auto-restart.
	RestartDelay time.Duration
	// ChunkSize is the audio read size pumped into the recognizer.
	ChunkSize int
}

// Snapshot is a point-in-time view of the session state.
type Snapshot struct {
	Listening         bool
	Language          entities.Language
	FinalTranscript   string
	InterimTranscript string
	Confidence        float64
	LastError         string
}

type run struct {
	cancel context.CancelFunc
	audio  repositories.AudioSession
	stream repositories.RecognitionStream
}

// Session owns one continuous speech-recognition session: it pumps microphone
// audio into a streaming recognizer, accumulates final transcripts, and in
// continuous mode restarts itself after natural engine ends until the user
// explicitly stops. Restart is gated on an explicit userStopped flag, never
// inferred from error absence.
type Session struct {
	recognizer repositories.Recognizer
	capture    repositories.AudioCapture
	cfg        Config
	logger     *zap.Logger

	events chan Event

	mu           sync.Mutex
	listening    bool
	starting     bool
	userStopped  bool
	language     entities.Language
	finalText    string
	interimText  string
	confidence   float64
	lastErr      string
	restartTimer *time.Timer
	current      *run
	runCtx       context.Context
	gen          int
	levelSink    func(float64)
}

// NewSession creates a speech capture session against the given backends.
func NewSession(recognizer repositories.Recognizer, capture repositories.AudioCapture, cfg Config, logger *zap.Logger) *Session {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = defaultRestartDelay
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = defaultChunkSize
	}
	if !cfg.Language.IsSupported() {
		cfg.Language = entities.LanguageEnglish
	}
	return &Session{
		recognizer: recognizer,
		capture:    capture,
		cfg:        cfg,
		logger:     logger,
		events:     make(chan Event, eventBuffer),
		language:   cfg.Language,
	}
}

// Events yields session events in emission order. The channel is buffered;
// a consumer that stops draining loses the oldest buffered events rather
// than stalling recognition, so delivery of every event is not guaranteed.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Supported reports whether the recognition backend can run at all.
func (s *Session) Supported() bool {
	return s.recognizer.Supported()
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Listening:         s.listening,
		Language:          s.language,
		FinalTranscript:   s.finalText,
		InterimTranscript: s.interimText,
		Confidence:        s.confidence,
		LastError:         s.lastErr,
	}
}

// SetLanguage changes the capture language. It applies to the next capture
// run (including continuous-mode restarts); an in-progress run keeps going.
func (s *Session) SetLanguage(lang entities.Language) {
	if !lang.IsSupported() {
		return
	}
	s.mu.Lock()
	live := s.listening
	s.language = lang
	s.mu.Unlock()
	if live {
		s.logger.Debug("language change applies from next capture run",
			zap.String("language", string(lang)))
	}
}

// SetLevelSink installs a best-effort audio-level tap fed with a normalized
// 0..1 sample per pumped chunk. Pass nil to release the tap.
func (s *Session) SetLevelSink(fn func(float64)) {
	s.mu.Lock()
	s.levelSink = fn
	s.mu.Unlock()
}

// StartListening begins a capture run tagged with the configured language.
// When the backend is unsupported it records a fixed lastError and returns
// the sentinel without crashing the surrounding flow.
func (s *Session) StartListening(ctx context.Context) error {
	if !s.recognizer.Supported() {
		s.mu.Lock()
		s.lastErr = repositories.ErrRecognizerUnsupported.Error()
		s.mu.Unlock()
		s.emit(Event{Kind: EventError, Err: repositories.ErrRecognizerUnsupported})
		return repositories.ErrRecognizerUnsupported
	}

	s.mu.Lock()
	if s.listening || s.starting {
		s.mu.Unlock()
		return nil
	}
	// Backend startup below blocks outside the lock; the flag keeps a second
	// concurrent StartListening from opening a duplicate run meanwhile.
	s.starting = true
	s.userStopped = false
	s.stopRestartTimerLocked()
	lang := s.language
	s.mu.Unlock()

	audioCfg := s.cfg.Audio
	audioCfg.Language = lang.RecognitionTag()

	rctx, cancel := context.WithCancel(ctx)
	stream, err := s.recognizer.Start(rctx, audioCfg)
	if err != nil {
		cancel()
		return s.failStart(err)
	}
	audio, err := s.capture.Start(rctx, audioCfg)
	if err != nil {
		stream.Close()
		cancel()
		return s.failStart(err)
	}

	r := &run{cancel: cancel, audio: audio, stream: stream}

	s.mu.Lock()
	s.starting = false
	s.current = r
	s.listening = true
	s.runCtx = ctx
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.logger.Info("listening started", zap.String("language", string(lang)))
	s.emit(Event{Kind: EventStart})

	go s.pumpAudio(r)
	go s.consume(r, gen)
	return nil
}

// StopListening requests a graceful end of the current run: capture stops,
// trailing recognition results drain, and no auto-restart follows. Safe to
// call when not listening.
func (s *Session) StopListening() {
	s.mu.Lock()
	s.userStopped = true
	s.stopRestartTimerLocked()
	r := s.current
	s.mu.Unlock()

	if r != nil {
		r.audio.Stop()
	}
}

// AbortListening hard-stops without waiting for trailing results.
func (s *Session) AbortListening() {
	s.mu.Lock()
	s.userStopped = true
	s.stopRestartTimerLocked()
	r := s.current
	s.current = nil
	wasListening := s.listening
	s.listening = false
	s.gen++
	s.mu.Unlock()

	if r != nil {
		r.cancel()
		r.audio.Stop()
		r.stream.Close()
	}
	if wasListening {
		s.emit(Event{Kind: EventEnd})
	}
}

// ResetTranscript clears the accumulated transcripts, confidence and last
// error ahead of a new logical utterance.
func (s *Session) ResetTranscript() {
	s.mu.Lock()
	s.finalText = ""
	s.interimText = ""
	s.confidence = 0
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *Session) failStart(err error) error {
	s.mu.Lock()
	s.starting = false
	s.lastErr = err.Error()
	s.mu.Unlock()
	s.logger.Warn("failed to start listening", zap.Error(err))
	s.emit(Event{Kind: EventError, Err: err})
	return err
}

func (s *Session) pumpAudio(r *run) {
	buf := make([]byte, s.cfg.ChunkSize)
	for {
		n, err := r.audio.Read(buf)
		if n > 0 {
			s.observeLevel(buf[:n])
			chunk := append([]byte(nil), buf[:n]...)
			if serr := r.stream.Send(chunk); serr != nil {
				s.logger.Warn("failed to stream audio chunk", zap.Error(serr))
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("audio capture read ended", zap.Error(err))
			}
			r.stream.CloseSend()
			return
		}
	}
}

func (s *Session) consume(r *run, gen int) {
	for ev := range r.stream.Events() {
		switch ev.Kind {
		case repositories.RecognitionInterim:
			s.mu.Lock()
			s.interimText = ev.Text
			s.mu.Unlock()
			s.emit(Event{Kind: EventInterim, Text: ev.Text})

		case repositories.RecognitionFinal:
			s.mu.Lock()
			if s.finalText != "" {
				s.finalText += " "
			}
			s.finalText += ev.Text
			s.confidence = ev.Confidence
			s.interimText = ""
			s.mu.Unlock()
			s.emit(Event{Kind: EventFinal, Text: ev.Text, Confidence: ev.Confidence})
		}
	}

	s.handleEnd(gen, r.stream.Wait())
}

func (s *Session) handleEnd(gen int, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.listening = false
	s.current = nil

	restartable := err == nil ||
		errors.Is(err, repositories.ErrRecognitionNetwork) ||
		errors.Is(err, repositories.ErrRecognizerUnavailable) ||
		errors.Is(err, repositories.ErrNoSpeech)
	if err != nil && !errors.Is(err, repositories.ErrNoSpeech) {
		s.lastErr = err.Error()
	}

	restart := s.cfg.Continuous && !s.userStopped && restartable
	ctx := s.runCtx
	if restart && ctx != nil && ctx.Err() == nil {
		s.stopRestartTimerLocked()
		s.restartTimer = time.AfterFunc(s.cfg.RestartDelay, func() {
			if rerr := s.StartListening(ctx); rerr != nil {
				s.logger.Warn("auto-restart failed", zap.Error(rerr))
			}
		})
	}
	s.mu.Unlock()

	if err != nil && !restartable {
		s.logger.Warn("recognition ended with error", zap.Error(err))
		s.emit(Event{Kind: EventError, Err: err})
	} else if restart {
		s.logger.Debug("recognition ended, auto-restart armed", zap.Error(err))
	}
	s.emit(Event{Kind: EventEnd})
}

func (s *Session) stopRestartTimerLocked() {
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
}

func (s *Session) observeLevel(chunk []byte) {
	s.mu.Lock()
	sink := s.levelSink
	s.mu.Unlock()
	if sink == nil {
		return
	}
	sink(rmsLevel(chunk))
}

// rmsLevel computes a normalized 0..1 level from little-endian s16 PCM.
func rmsLevel(chunk []byte) float64 {
	samples := len(chunk) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		v := int16(binary.LittleEndian.Uint16(chunk[2*i:]))
		f := float64(v) / 32768
		sum += f * f
	}
	level := math.Sqrt(sum / float64(samples))
	if level > 1 {
		level = 1
	}
	return level
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		select {
		case <-s.events:
		default:
		}
		s.events <- ev
	}
}
