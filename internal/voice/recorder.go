package voice

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/naijatalk/client-go/domain/repositories"
	"github.com/naijatalk/client-go/internal/speech"
)

const (
	defaultMaxDuration    = 30 * time.Second
	defaultProcessingHold = 500 * time.Millisecond

	eventBuffer = 64
)

// CaptureSession is the slice of the speech session the recorder drives. The
// recorder borrows the session; it never owns its lifecycle beyond
// start/stop of individual recordings.
type CaptureSession interface {
	Supported() bool
	StartListening(ctx context.Context) error
	StopListening()
	AbortListening()
	ResetTranscript()
	SetLevelSink(fn func(float64))
	Events() <-chan speech.Event
}

// EventKind classifies recorder events.
type EventKind string

const (
	EventStarted    EventKind = "started"
	EventInterim    EventKind = "interim"
	EventFinal      EventKind = "final"
	EventLevel      EventKind = "level"
	EventProcessing EventKind = "processing"
	EventIdle       EventKind = "idle"
	EventError      EventKind = "error"
)

// Event is one recorder occurrence for the caller's UI.
type Event struct {
	Kind       EventKind
	Text       string
	Confidence float64
	Level      float64
	Err        error
}

// Config controls the recording gesture.
type Config struct {
	// MaxDuration is the hard wall-clock cutoff for one recording.
	MaxDuration time.Duration
	// ProcessingHold is how long the recorder stays in its processing state
	// after a stop, letting trailing recognition results settle.
	ProcessingHold time.Duration
	// AutoSend stops the recording right after each final transcript is
	// delivered, so one utterance equals one message.
	AutoSend bool
}

// State is a snapshot of the recording gesture.
type State struct {
	Recording  bool
	Processing bool
	Elapsed    time.Duration
	Level      float64
}

// ResultFunc receives every finalized transcript with its confidence.
type ResultFunc func(text string, confidence float64)

// Recorder composes a fixed-duration recording gesture on top of a speech
// capture session: elapsed-time bookkeeping, a max-duration cutoff, and an
// audio-level tap used only for visual feedback.
type Recorder struct {
	session CaptureSession
	cfg     Config
	logger  *zap.Logger

	events chan Event

	mu        sync.Mutex
	recording bool
	// processing holds StartRecording off while a result is being finalized.
	processing bool
	startedAt  time.Time
	elapsed    time.Duration
	level      float64
	maxTimer   *time.Timer
	holdTimer  *time.Timer
	onResult   ResultFunc
}

// NewRecorder creates a recorder over the given capture session and starts
// forwarding its events.
func NewRecorder(session CaptureSession, cfg Config, logger *zap.Logger) *Recorder {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = defaultMaxDuration
	}
	if cfg.ProcessingHold <= 0 {
		cfg.ProcessingHold = defaultProcessingHold
	}
	r := &Recorder{
		session: session,
		cfg:     cfg,
		logger:  logger,
		events:  make(chan Event, eventBuffer),
	}
	go r.consumeSession()
	return r
}

// Events yields recorder events in emission order. The channel is buffered;
// a consumer that stops draining loses the oldest buffered events rather
// than stalling the recording flow, so delivery of every event is not
// guaranteed.
func (r *Recorder) Events() <-chan Event {
	return r.events
}

// SetResultHandler installs the callback receiving finalized transcripts.
func (r *Recorder) SetResultHandler(fn ResultFunc) {
	r.mu.Lock()
	r.onResult = fn
	r.mu.Unlock()
}

// State returns a snapshot of the recording gesture.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := State{
		Recording:  r.recording,
		Processing: r.processing,
		Elapsed:    r.elapsed,
		Level:      r.level,
	}
	if r.recording {
		st.Elapsed = time.Since(r.startedAt)
	}
	return st
}

// StartRecording begins a recording. It is a no-op while already recording,
// while a previous result is being finalized, or when speech capture is
// unsupported.
func (r *Recorder) StartRecording(ctx context.Context) error {
	if !r.session.Supported() {
		r.logger.Warn("recording unavailable, speech capture unsupported")
		return repositories.ErrRecognizerUnsupported
	}

	r.mu.Lock()
	if r.recording || r.processing {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	r.session.ResetTranscript()
	// The level tap is acquired per recording and released on every stop.
	// Losing it only degrades the meter, never speech capture.
	r.session.SetLevelSink(r.observeLevel)

	if err := r.session.StartListening(ctx); err != nil {
		r.session.SetLevelSink(nil)
		return err
	}

	r.mu.Lock()
	r.recording = true
	r.startedAt = time.Now()
	r.elapsed = 0
	r.level = 0
	r.maxTimer = time.AfterFunc(r.cfg.MaxDuration, func() {
		r.logger.Info("max recording duration reached",
			zap.Duration("max", r.cfg.MaxDuration))
		r.StopRecording()
	})
	r.mu.Unlock()

	r.emit(Event{Kind: EventStarted})
	return nil
}

// StopRecording ends the recording exactly as the max-duration cutoff does:
// timers stop, the level tap is released, listening ends gracefully, and the
// recorder holds a brief processing state before returning to idle.
func (r *Recorder) StopRecording() {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	r.recording = false
	r.processing = true
	r.elapsed = time.Since(r.startedAt)
	if r.maxTimer != nil {
		r.maxTimer.Stop()
		r.maxTimer = nil
	}
	r.holdTimer = time.AfterFunc(r.cfg.ProcessingHold, r.finishProcessing)
	r.mu.Unlock()

	r.session.SetLevelSink(nil)
	r.session.StopListening()
	r.emit(Event{Kind: EventProcessing})
}

// Abort tears the recording down without the processing hold. The session is
// hard-stopped and trailing results are discarded, never delivered.
func (r *Recorder) Abort() {
	r.mu.Lock()
	r.recording = false
	r.processing = false
	if r.maxTimer != nil {
		r.maxTimer.Stop()
		r.maxTimer = nil
	}
	if r.holdTimer != nil {
		r.holdTimer.Stop()
		r.holdTimer = nil
	}
	r.mu.Unlock()

	r.session.SetLevelSink(nil)
	r.session.AbortListening()
	r.emit(Event{Kind: EventIdle})
}

func (r *Recorder) finishProcessing() {
	r.mu.Lock()
	r.processing = false
	r.holdTimer = nil
	r.mu.Unlock()
	r.emit(Event{Kind: EventIdle})
}

func (r *Recorder) observeLevel(level float64) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	r.level = level
	r.mu.Unlock()
	r.emit(Event{Kind: EventLevel, Level: level})
}

// active reports whether a recording is live or finalizing. Session events
// arriving outside this window belong to an aborted recording and are dropped.
func (r *Recorder) active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording || r.processing
}

func (r *Recorder) consumeSession() {
	for ev := range r.session.Events() {
		switch ev.Kind {
		case speech.EventInterim:
			if !r.active() {
				continue
			}
			r.emit(Event{Kind: EventInterim, Text: ev.Text})

		case speech.EventFinal:
			if !r.active() {
				r.logger.Debug("discarding transcript from aborted recording")
				continue
			}
			r.mu.Lock()
			fn := r.onResult
			r.mu.Unlock()
			if fn != nil {
				fn(ev.Text, ev.Confidence)
			}
			r.emit(Event{Kind: EventFinal, Text: ev.Text, Confidence: ev.Confidence})
			if r.cfg.AutoSend {
				r.StopRecording()
			}

		case speech.EventError:
			r.emit(Event{Kind: EventError, Err: ev.Err})
		}
	}
}

func (r *Recorder) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		select {
		case <-r.events:
		default:
		}
		r.events <- ev
	}
}
