package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the world engine HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	sched := newScheduler(a)
	sched.start()
	defer sched.stop()

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			a.logger.Error("server exited with error", zap.Error(err))
			return err
		}
	case sig := <-sigCh:
		a.logger.Info("received shutdown signal", zap.String("signal", sig.String()))

		grace := a.cfg.Server.ShutdownGracePeriod
		if grace <= 0 {
			grace = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()

		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("graceful shutdown failed", zap.Error(err))
			return err
		}
	}

	return nil
}
