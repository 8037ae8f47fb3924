package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Oracle as a long-lived HTTP service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP listen port (overrides config metrics.port)")
}

// runServe follows the teacher's cmd/server/main.go shape: build once,
// serve on a goroutine, block on an interrupt signal, shut down with a
// bounded grace period.
func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := buildApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.shutdown(ctx)

	port := a.cfg.Metrics.Port
	if servePort != 0 {
		port = servePort
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)
	mux.HandleFunc(a.cfg.Metrics.Path, promhttp.Handler().ServeHTTP)
	mux.HandleFunc("/analyze", a.analyzeHandler)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("oracle HTTP server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("oracle serve: %w", err)
	case <-quit:
		a.logger.Info("shutting down oracle HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("oracle serve: forced shutdown: %w", err)
	}
	a.logger.Info("oracle HTTP server exited")
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (a *app) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var input domain.OracleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	output, err := a.oracle.Analyze(r.Context(), input)
	if err != nil {
		a.logger.Warn("analyze request rejected", "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(output); err != nil {
		a.logger.Error("failed to encode analyze response", "error", err)
	}
}
