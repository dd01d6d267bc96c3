package recognizer

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/naijatalk/client-go/domain/repositories"
)

// Google implements repositories.Recognizer on Google Cloud streaming
// speech-to-text with interim results enabled.
type Google struct {
	logger *zap.Logger
}

func NewGoogle(logger *zap.Logger) *Google {
	return &Google{logger: logger}
}

// Supported reports whether credentials are present. Absence is the
// capability-unsupported state, not a transient error.
func (g *Google) Supported() bool {
	return os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != ""
}

func (g *Google) Start(ctx context.Context, config repositories.AudioConfig) (repositories.RecognitionStream, error) {
	if !g.Supported() {
		return nil, repositories.ErrRecognizerUnsupported
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	encoding, err := audioEncoding(config.Encoding)
	if err != nil {
		stream.CloseSend()
		client.Close()
		return nil, err
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(config.SampleRate),
					LanguageCode:    config.Language,
					MaxAlternatives: 3,
				},
				InterimResults: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	s := &googleStream{
		client: client,
		stream: stream,
		logger: g.logger,
		events: make(chan repositories.RecognitionEvent, 32),
		done:   make(chan struct{}),
	}
	go s.receive()

	return s, nil
}

type googleStream struct {
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	logger *zap.Logger

	events chan repositories.RecognitionEvent
	done   chan struct{}

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
}

func (s *googleStream) Send(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

func (s *googleStream) CloseSend() error {
	var err error
	s.closeSendOnce.Do(func() {
		err = s.stream.CloseSend()
	})
	return err
}

func (s *googleStream) Events() <-chan repositories.RecognitionEvent {
	return s.events
}

func (s *googleStream) Wait() error {
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *googleStream) Close() error {
	err := s.CloseSend()
	s.closeOnce.Do(func() {
		s.client.Close()
	})
	return err
}

func (s *googleStream) receive() {
	defer func() {
		close(s.events)
		close(s.done)
		s.closeOnce.Do(func() {
			s.client.Close()
		})
	}()

	for {
		resp, err := s.stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			s.setErr(classify(err))
			return
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			text := result.Alternatives[0].Transcript
			if result.IsFinal {
				var confidence float64
				for _, alt := range result.Alternatives {
					if c := float64(alt.Confidence); c > confidence {
						confidence = c
					}
				}
				s.emit(repositories.RecognitionEvent{
					Kind:       repositories.RecognitionFinal,
					Text:       text,
					Confidence: confidence,
				})
			} else {
				s.emit(repositories.RecognitionEvent{
					Kind: repositories.RecognitionInterim,
					Text: text,
				})
			}
		}
	}
}

func (s *googleStream) emit(ev repositories.RecognitionEvent) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("recognition event dropped, consumer too slow")
	}
}

func (s *googleStream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// classify maps transport-level failures onto the transient recognition
// sentinels so a continuous session can restart after them.
func classify(err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted:
		return fmt.Errorf("%w: %v", repositories.ErrRecognizerUnavailable, err)
	case codes.DeadlineExceeded, codes.Aborted, codes.Canceled:
		return fmt.Errorf("%w: %v", repositories.ErrRecognitionNetwork, err)
	default:
		return fmt.Errorf("failed to receive recognition response: %w", err)
	}
}

func audioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "", "LINEAR16", "WAV":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
			fmt.Errorf("unsupported audio encoding: %s", encoding)
	}
}
