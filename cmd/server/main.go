package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"

	"github.com/romshark/todonotify/domain"
	"github.com/romshark/todonotify/server"
)

func main() {
	fDebug := flag.Bool("debug", false, "enable debug logs")
	fAccessLog := flag.Bool("logaccess", true, "enables access logs")
	fHost := flag.String("host", ":8080", "server host address")
	fStableIDs := flag.Bool("stable-ids", false,
		"assign todo IDs from a counter instead of their position in the list")
	fQueue := flag.Int("queue", server.DefaultQueueSize,
		"per-subscriber notification buffer size")
	fBrotli := flag.Int("brotli", -1,
		"brotli compression level for REST responses (0-11), -1 disables")
	flag.Parse()

	var slogHandler slog.Handler
	if *fDebug {
		slogHandler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	} else {
		slogHandler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}

	logger := slog.New(slogHandler)

	slog.SetDefault(logger)
	slog.Debug("debug mode enabled")

	var opts []domain.Option
	if *fStableIDs {
		opts = append(opts, domain.WithStableIDs())
	}
	store := domain.New(opts...)

	srv := server.New(store, server.Config{
		AccessLog:   *fAccessLog,
		Brotli:      *fBrotli >= 0,
		BrotliLevel: *fBrotli,
		QueueSize:   *fQueue,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	s := &http.Server{
		Addr:        *fHost,
		Handler:     srv,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	var wg sync.WaitGroup
	wg.Go(func() {
		slog.Info("listening", slog.String("host", *fHost))
		if err := s.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				slog.Error("serving http", slog.Any("err", err))
				cancel()
			}
		}
	})

	<-ctx.Done() // Wait until shutdown signal is received.

	// Hijacked WebSocket connections aren't tracked by Shutdown.
	srv.Close()
	if err := s.Shutdown(context.Background()); err != nil {
		slog.Error("shutting down HTTP server", slog.Any("err", err))
	}

	wg.Wait()
}
