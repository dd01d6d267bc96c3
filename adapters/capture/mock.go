package capture

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/naijatalk/client-go/domain/repositories"
)

// Mock produces silent PCM chunks on a fixed cadence until stopped. It stands
// in for a microphone in tests and in environments without a capture device.
type Mock struct {
	// Interval between chunks; defaults to 20ms.
	Interval time.Duration
	// ChunkSize in bytes; defaults to 640 (20ms of 16kHz mono s16).
	ChunkSize int
	// StartErr, when set, makes Start fail.
	StartErr error

	mu     sync.Mutex
	starts int
}

// Starts reports how many capture sessions have been opened.
func (m *Mock) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

func (m *Mock) Start(ctx context.Context, config repositories.AudioConfig) (repositories.AudioSession, error) {
	if m.StartErr != nil {
		return nil, m.StartErr
	}
	interval := m.Interval
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	chunkSize := m.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 640
	}

	m.mu.Lock()
	m.starts++
	m.mu.Unlock()

	return &mockSession{
		ctx:       ctx,
		interval:  interval,
		chunkSize: chunkSize,
		stopped:   make(chan struct{}),
	}, nil
}

type mockSession struct {
	ctx       context.Context
	interval  time.Duration
	chunkSize int

	stopOnce sync.Once
	stopped  chan struct{}
}

func (s *mockSession) Read(p []byte) (int, error) {
	select {
	case <-s.stopped:
		return 0, io.EOF
	case <-s.ctx.Done():
		return 0, io.EOF
	case <-time.After(s.interval):
	}

	n := s.chunkSize
	if n > len(p) {
		n = len(p)
	}
	for i := 0; i < n; i++ {
		p[i] = 0
	}
	return n, nil
}

func (s *mockSession) Close() error {
	return s.Stop()
}

func (s *mockSession) Stop() error {
	s.stopOnce.Do(func() { close(s.stopped) })
	return nil
}
