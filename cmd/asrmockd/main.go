// asrmockd serves the mock recognition service over plain HTTP. Point
// asrcli (or any client of the streaming protocol) at it with
// ASR_ENDPOINT=ws://localhost:8089 and ASR_FLASH_ENDPOINT=http://localhost:8089.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vango-go/tencentasr/internal/mockasr"
)

func main() {
	_ = godotenv.Load()

	var (
		addr       = flag.String("addr", ":8089", "listen address")
		secretKey  = flag.String("secret-key", os.Getenv("ASR_SECRET_KEY"), "verify inbound signatures with this key (empty accepts any caller)")
		transcript = flag.String("transcript", "", "transcript every session recognizes (default built in)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	mock := mockasr.New(mockasr.Config{
		SecretKey:  *secretKey,
		Transcript: *transcript,
	}, logger)

	server := &http.Server{
		Addr:              *addr,
		Handler:           mock.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock recognition service listening",
			"addr", *addr,
			"verify_signatures", *secretKey != "")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
			os.Exit(1)
		}
		logger.Info("shutdown complete")
	}
}
