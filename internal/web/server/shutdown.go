package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownHook is a cleanup function called during graceful shutdown
type ShutdownHook func(ctx context.Context) error

// RunWithGracefulShutdown starts the server and blocks until SIGINT or
// SIGTERM, then drains connections and runs the hooks in order within the
// timeout.
func RunWithGracefulShutdown(s *Server, logger *zap.Logger, timeout time.Duration, hooks ...ShutdownHook) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed, closing", zap.Error(err))
		s.Close()
	}

	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			logger.Error("shutdown hook failed", zap.Error(err))
		}
	}
	return nil
}
