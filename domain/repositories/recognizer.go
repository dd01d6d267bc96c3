package repositories

import (
	"context"
	"errors"
)

// Recognition backend errors. ErrRecognizerUnavailable and ErrRecognitionNetwork
// are transient; a continuous session may restart after them. Everything else is
// surfaced to the caller without a retry.
var (
	ErrRecognizerUnsupported = errors.New("speech recognition is not supported in this environment")
	ErrRecognizerUnavailable = errors.New("speech recognition service unavailable")
	ErrRecognitionNetwork    = errors.New("network error during speech recognition")
	ErrNoSpeech              = errors.New("no speech detected")
)

// AudioConfig describes the capture format handed to a recognition stream.
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// RecognitionEventKind classifies a recognition result.
type RecognitionEventKind string

const (
	RecognitionInterim RecognitionEventKind = "interim"
	RecognitionFinal   RecognitionEventKind = "final"
)

// RecognitionEvent is one incremental result from a recognition stream.
// Confidence is only meaningful on final events.
type RecognitionEvent struct {
	Kind       RecognitionEventKind
	Text       string
	Confidence float64
}

// RecognitionStream is one live streaming recognition session.
type RecognitionStream interface {
	// Send pushes raw audio bytes into the stream.
	Send(data []byte) error
	// CloseSend signals end of audio and lets trailing results drain.
	CloseSend() error
	// Events yields results in emission order; closed when the stream ends.
	Events() <-chan RecognitionEvent
	// Wait blocks until the stream has ended and returns its terminal error.
	Wait() error
	// Close hard-stops the stream without waiting for trailing results.
	Close() error
}

// Recognizer abstracts a streaming speech-to-text backend.
type Recognizer interface {
	// Supported reports whether the backend can run at all in this environment.
	Supported() bool
	// Start opens a streaming recognition session.
	Start(ctx context.Context, config AudioConfig) (RecognitionStream, error)
}
