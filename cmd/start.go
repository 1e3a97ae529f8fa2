package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nancarrowm/rangesync/internal/logging"
	"github.com/nancarrowm/rangesync/internal/metrics"
)

// RunStart runs the sync loop as a foreground service until
// interrupted. When a metrics listen address is configured, the
// Prometheus endpoint is served alongside it.
func RunStart(configFile string) error {
	eng, err := buildEngine(configFile)
	if err != nil {
		return err
	}
	defer eng.close()

	logger := eng.logger.WithComponent("service")

	var metricsSrv *http.Server
	if eng.cfg.Metrics != nil && eng.cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: eng.cfg.Metrics.Listen, Handler: mux}

		go func() {
			logger.Info("metrics endpoint listening", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	eng.service.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	eng.service.Stop()

	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Shutdown(ctx)
	}

	logging.Info("shutdown complete")
	return nil
}
