package repositories

import (
	"context"
	"io"
)

// AudioSession is one live microphone capture.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture opens microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, config AudioConfig) (AudioSession, error)
}
