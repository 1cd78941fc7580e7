// asrcli streams an audio file through the recognition service and prints
// the transcript as it forms. It can also submit the whole file at once
// against the flash endpoint.
//
// Usage:
//
//	ASR_ACCOUNT_ID=... ASR_APP_ID=... ASR_SECRET_KEY=... \
//	    asrcli -file speech.pcm
//	asrcli -mode flash -file speech.pcm
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/vango-go/tencentasr/internal/telemetry"
	"github.com/vango-go/tencentasr/pkg/asr"
	"github.com/vango-go/tencentasr/pkg/tcauth"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "", "path to a YAML config file (default config.yaml if present)")
		mode       = flag.String("mode", "stream", "recognition mode: stream or flash")
		audioPath  = flag.String("file", "", "audio file to recognize (raw 16 kHz 16-bit PCM), - for stdin")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.logLevel(),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, *mode, *audioPath, logger); err != nil {
		logger.Error("asrcli failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *Config, mode, audioPath string, logger *slog.Logger) error {
	if cfg.AccountID == 0 || cfg.AppID == 0 || cfg.SecretKey == "" {
		return errors.New("account_id, app_id and secret_key are required (ASR_ACCOUNT_ID, ASR_APP_ID, ASR_SECRET_KEY)")
	}
	if cfg.FrameBytes <= 0 {
		return fmt.Errorf("frame_bytes must be positive, got %d", cfg.FrameBytes)
	}
	audio, err := readAudio(audioPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Trace {
		shutdown, err := telemetry.InitTracer("asrcli", logger)
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Error("tracer shutdown failed", "error", err)
			}
		}()
	}

	cred := tcauth.NewCredential(cfg.AccountID, cfg.AppID, cfg.SecretKey)

	switch mode {
	case "stream":
		return runStream(ctx, cfg, cred, audio, logger)
	case "flash":
		return runFlash(ctx, cfg, cred, audio, logger)
	default:
		return fmt.Errorf("unknown mode %q, want stream or flash", mode)
	}
}

func runStream(ctx context.Context, cfg *Config, cred *tcauth.Credential, audio []byte, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	metrics := asr.NewMetrics(reg)

	opts := []asr.Option{
		asr.WithLogger(logger),
		asr.WithMetrics(metrics),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, asr.WithEndpoint(cfg.Endpoint))
	}
	if cfg.VoiceFormat != 0 {
		opts = append(opts, asr.WithVoiceFormat(cfg.VoiceFormat))
	}
	if cfg.HotwordID != "" {
		opts = append(opts, asr.WithHotwordID(cfg.HotwordID))
	}
	if cfg.Trace {
		opts = append(opts, asr.WithTracer(otel.Tracer("asrcli")))
	}

	sess, err := asr.NewSession(cred, cfg.EngineModel, &printListener{out: os.Stdout, logger: logger}, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}
		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		// Session finished, one way or another: wind down the group.
		defer cancel()

		if err := sess.Start(gctx); err != nil {
			return err
		}
		logger.Info("streaming audio",
			"voice_id", sess.VoiceID(),
			"bytes", len(audio),
			"frame_bytes", cfg.FrameBytes,
			"realtime", cfg.Realtime)

		var tick <-chan time.Time
		if cfg.Realtime {
			// 32 bytes of 16 kHz 16-bit PCM per millisecond.
			ticker := time.NewTicker(time.Duration(cfg.FrameBytes/32) * time.Millisecond)
			defer ticker.Stop()
			tick = ticker.C
		}

		for off := 0; off < len(audio); off += cfg.FrameBytes {
			if tick != nil {
				select {
				case <-gctx.Done():
				case <-tick:
				}
			}
			if gctx.Err() != nil {
				logger.Info("interrupted, stopping session early")
				_ = sess.Stop()
				return nil
			}
			end := min(off+cfg.FrameBytes, len(audio))
			if err := sess.Write(audio[off:end]); err != nil {
				return err
			}
		}
		return sess.Stop()
	})

	return g.Wait()
}

func runFlash(ctx context.Context, cfg *Config, cred *tcauth.Credential, audio []byte, logger *slog.Logger) error {
	opts := []asr.FlashOption{asr.WithFlashLogger(logger)}
	if cfg.FlashEndpoint != "" {
		opts = append(opts, asr.WithFlashEndpoint(cfg.FlashEndpoint))
	}
	if cfg.Trace {
		opts = append(opts, asr.WithFlashHTTPClient(&http.Client{
			Timeout:   60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}))
	}

	rec, err := asr.NewFlashRecognizer(cred, cfg.EngineModel, opts...)
	if err != nil {
		return err
	}
	result, err := rec.Recognize(ctx, audio)
	if err != nil {
		return err
	}

	for _, ch := range result.Channels {
		fmt.Printf("channel %d: %s\n", ch.ChannelID, ch.Text)
	}
	logger.Info("flash recognition finished",
		"request_id", result.RequestID,
		"audio_duration_ms", result.AudioDuration)
	return nil
}

func readAudio(path string) ([]byte, error) {
	switch path {
	case "":
		return nil, errors.New("-file is required")
	case "-":
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// printListener renders the forming transcript on the terminal: interim
// fragments rewrite the current line, completed sentences commit it.
type printListener struct {
	out    io.Writer
	logger *slog.Logger
}

func (l *printListener) OnRecognitionStart(ev *asr.Event) {
	l.logger.Info("recognition started", "voice_id", ev.VoiceID)
}

func (l *printListener) OnSentenceBegin(ev *asr.Event) {
	fmt.Fprintf(l.out, "\r... %s", ev.Result.VoiceTextStr)
}

func (l *printListener) OnRecognitionResultChange(ev *asr.Event) {
	fmt.Fprintf(l.out, "\r... %s", ev.Result.VoiceTextStr)
}

func (l *printListener) OnSentenceEnd(ev *asr.Event) {
	fmt.Fprintf(l.out, "\r%s\n", ev.Result.VoiceTextStr)
}

func (l *printListener) OnRecognitionComplete(ev *asr.Event) {
	l.logger.Info("recognition complete", "voice_id", ev.VoiceID)
}

func (l *printListener) OnFail(ev *asr.Event, err error) {
	l.logger.Error("recognition failed", "error", err)
}
