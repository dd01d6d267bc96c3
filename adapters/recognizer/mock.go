package recognizer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/naijatalk/client-go/domain/repositories"
)

// Script describes one scripted recognition run for the mock backend.
type Script struct {
	// Events are replayed in order on the stream's event channel.
	Events []repositories.RecognitionEvent
	// Err is the terminal error returned by Wait.
	Err error
	// AutoEnd closes the stream after replaying without waiting for
	// CloseSend, simulating the engine ending on its own.
	AutoEnd bool
}

// Mock is a scripted recognizer. Each Start consumes the next script; when
// the scripts run out, streams replay the last one.
type Mock struct {
	logger *zap.Logger

	mu          sync.Mutex
	unsupported bool
	startErr    error
	scripts     []Script
	starts      int
}

func NewMock(logger *zap.Logger, scripts ...Script) *Mock {
	return &Mock{logger: logger, scripts: scripts}
}

// SetUnsupported flips the capability-unsupported state.
func (m *Mock) SetUnsupported(v bool) {
	m.mu.Lock()
	m.unsupported = v
	m.mu.Unlock()
}

// SetStartError makes subsequent Start calls fail.
func (m *Mock) SetStartError(err error) {
	m.mu.Lock()
	m.startErr = err
	m.mu.Unlock()
}

// Starts reports how many streams have been opened.
func (m *Mock) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

func (m *Mock) Supported() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.unsupported
}

func (m *Mock) Start(ctx context.Context, config repositories.AudioConfig) (repositories.RecognitionStream, error) {
	m.mu.Lock()
	if m.unsupported {
		m.mu.Unlock()
		return nil, repositories.ErrRecognizerUnsupported
	}
	if m.startErr != nil {
		err := m.startErr
		m.mu.Unlock()
		return nil, err
	}

	var script Script
	if len(m.scripts) > 0 {
		script = m.scripts[0]
		if len(m.scripts) > 1 {
			m.scripts = m.scripts[1:]
		}
	}
	m.starts++
	m.mu.Unlock()

	m.logger.Debug("mock recognition stream started",
		zap.String("language", config.Language))

	s := &mockStream{
		script:    script,
		events:    make(chan repositories.RecognitionEvent, 32),
		done:      make(chan struct{}),
		closeSend: make(chan struct{}),
	}
	go s.run(ctx)
	return s, nil
}

type mockStream struct {
	script Script

	events    chan repositories.RecognitionEvent
	done      chan struct{}
	closeSend chan struct{}

	mu        sync.Mutex
	sentBytes int
	sendOnce  sync.Once
	closeOnce sync.Once
}

func (s *mockStream) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	for _, ev := range s.script.Events {
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return
		}
	}
	if s.script.AutoEnd {
		return
	}
	select {
	case <-s.closeSend:
	case <-ctx.Done():
	}
}

func (s *mockStream) Send(data []byte) error {
	s.mu.Lock()
	s.sentBytes += len(data)
	s.mu.Unlock()
	return nil
}

// SentBytes reports how much audio the stream swallowed.
func (s *mockStream) SentBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sentBytes
}

func (s *mockStream) CloseSend() error {
	s.sendOnce.Do(func() { close(s.closeSend) })
	return nil
}

func (s *mockStream) Events() <-chan repositories.RecognitionEvent {
	return s.events
}

func (s *mockStream) Wait() error {
	<-s.done
	return s.script.Err
}

func (s *mockStream) Close() error {
	s.closeOnce.Do(func() {
		s.CloseSend()
	})
	<-s.done
	return nil
}
