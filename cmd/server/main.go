package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/osvaldoandrade/geoscope/pkg/app"
	"github.com/osvaldoandrade/geoscope/pkg/config"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	cfgPath := getenv("GEOSCOPE_CONFIG_PATH", "")

	cfg, err := config.LoadConfigOptional(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR] load config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR] invalid config:", err)
		os.Exit(1)
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR] init app:", err)
		os.Exit(1)
	}
	app.SetupMappings(application)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           application.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(os.Stderr, "[ERROR] http server:", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	// Stop accepting requests first, then drain in-flight batches so partial
	// reports still get persisted.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = application.Shutdown(ctx)
}
