package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/naijatalk/client-go/adapters/capture"
	"github.com/naijatalk/client-go/adapters/recognizer"
	"github.com/naijatalk/client-go/adapters/storage"
	"github.com/naijatalk/client-go/domain/entities"
	"github.com/naijatalk/client-go/domain/repositories"
	"github.com/naijatalk/client-go/internal/auth"
	"github.com/naijatalk/client-go/internal/channel"
	"github.com/naijatalk/client-go/internal/config"
	"github.com/naijatalk/client-go/internal/speech"
	"github.com/naijatalk/client-go/internal/voice"
	"github.com/naijatalk/client-go/usecase"
)

func main() {
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	store, err := storage.Open(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal("failed to open local storage", zap.Error(err))
	}
	defer store.Close()

	token, err := auth.GenerateClientToken(cfg.DeviceID, cfg.UserName)
	if err != nil {
		logger.Fatal("failed to generate client token", zap.Error(err))
	}

	ch := channel.NewClient(channel.Config{
		URL:            cfg.ServerURL,
		Token:          token,
		MaxAttempts:    cfg.MaxReconnectAttempts,
		ReconnectDelay: cfg.ReconnectDelay,
	}, logger)

	session := speech.NewSession(buildRecognizer(cfg, logger), buildCapture(cfg, logger), speech.Config{
		Language:   cfg.DefaultSourceLanguage,
		Continuous: true,
		Audio: repositories.AudioConfig{
			SampleRate: cfg.SampleRate,
			Channels:   1,
			Encoding:   "LINEAR16",
		},
	}, logger)

	recorder := voice.NewRecorder(session, voice.Config{
		MaxDuration: cfg.MaxRecording,
		AutoSend:    cfg.AutoSend,
	}, logger)

	coordinator := usecase.NewCoordinator(ch, recorder, store, store, usecase.Config{
		RoomID:   cfg.RoomID,
		UserName: cfg.UserName,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coordinator.Start(ctx)
	go printEvents(coordinator.Events())

	fmt.Printf("naijatalk: room %q as %q (/voice, /stop, /lang <src> <tgt>, /quit)\n",
		cfg.RoomID, cfg.UserName)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-quit:
			logger.Info("shutting down")
			coordinator.Stop()
			return

		case line, ok := <-lines:
			if !ok {
				coordinator.Stop()
				return
			}
			if done := handleLine(ctx, coordinator, line); done {
				coordinator.Stop()
				return
			}
		}
	}
}

// handleLine runs one REPL command; it reports whether the session should end.
func handleLine(ctx context.Context, co *usecase.Coordinator, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false

	case line == "/quit":
		return true

	case line == "/voice":
		if err := co.StartVoice(ctx); err != nil {
			fmt.Println("voice:", err)
		}
		return false

	case line == "/stop":
		co.StopVoice()
		return false

	case strings.HasPrefix(line, "/lang"):
		fields := strings.Fields(line)
		if len(fields) != 3 {
			fmt.Println("usage: /lang <source> <target> (en, yo, ig, ha, pcm)")
			return false
		}
		settings := co.Settings()
		settings.SourceLanguage = entities.Language(fields[1])
		settings.TargetLanguage = entities.Language(fields[2])
		if err := co.UpdateSettings(settings); err != nil {
			fmt.Println("settings:", err)
		}
		return false

	default:
		co.SendText(line)
		return false
	}
}

func printEvents(events <-chan usecase.Event) {
	for ev := range events {
		switch ev.Kind {
		case usecase.EventMessage:
			msg := ev.Message
			prefix := msg.Sender
			if msg.Own {
				prefix = "you"
			}
			fmt.Printf("[%s] %s: %s\n", msg.Timestamp.Format("15:04:05"), prefix, msg.Text)

		case usecase.EventStatus:
			if ev.Status.Err != "" {
				fmt.Printf("-- %s (%s)\n", ev.Status.State, ev.Status.Err)
			} else {
				fmt.Printf("-- %s\n", ev.Status.State)
			}

		case usecase.EventCaption:
			fmt.Printf("~ %s\n", ev.Text)

		case usecase.EventTranslation:
			fmt.Printf("» %s\n", ev.Text)

		case usecase.EventSettings:
			fmt.Printf("-- languages %s → %s\n", ev.Settings.SourceLanguage, ev.Settings.TargetLanguage)

		case usecase.EventNotice:
			fmt.Printf("-- %s\n", ev.Text)
		}
	}
}

func buildRecognizer(cfg config.Config, logger *zap.Logger) repositories.Recognizer {
	if cfg.Recognizer == "mock" {
		return recognizer.NewMock(logger, recognizer.Script{
			Events: []repositories.RecognitionEvent{
				{Kind: repositories.RecognitionInterim, Text: "how far"},
				{Kind: repositories.RecognitionFinal, Text: "How far, my friend!", Confidence: 0.9},
			},
		})
	}
	return recognizer.NewGoogle(logger)
}

func buildCapture(cfg config.Config, logger *zap.Logger) repositories.AudioCapture {
	if cfg.Recognizer == "mock" {
		return &capture.Mock{}
	}
	return capture.NewFFMPEG("ffmpeg", cfg.CaptureFormat, cfg.CaptureDevice, logger)
}
