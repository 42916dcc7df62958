package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lnurld/lnurld/lnnode"
	"github.com/lnurld/lnurld/lnurl"
	"github.com/lnurld/lnurld/secrets"
	"github.com/lnurld/lnurld/signal"
)

const (
	appName = "lnurld"
	version = "0.2.0"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := lnurldMain(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// lnurldMain is the real main function for lnurld. It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is
// called.
func lnurldMain(cfg *Config) error {
	// Initialize logging at the default logging level.
	initLogRotator(
		filepath.Join(cfg.LogDir, defaultLogFilename),
		cfg.MaxLogFileSize, cfg.MaxLogFiles,
	)
	defer logRotator.Close()

	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return err
	}

	// Hook interceptor for os signals.
	shutdownInterceptor, err := signal.Intercept()
	if err != nil {
		return err
	}

	lurdLog.Infof("Version: %v, network: %v, backend: %v", version,
		cfg.Network, cfg.Backend)

	defaultClock := clock.NewDefaultClock()

	// Set up the secret store.
	var store secrets.Store
	switch cfg.Store {
	case "memory":
		store = secrets.NewMemoryStore(defaultClock)

	case "bolt":
		boltStore, err := secrets.NewBoltStore(
			filepath.Join(cfg.DataDir, defaultSecretsFilename),
			defaultClock,
		)
		if err != nil {
			return fmt.Errorf("unable to open secret store: %w",
				err)
		}
		defer boltStore.Close()
		store = boltStore
	}

	// Connect the configured Lightning node backend.
	ctx := context.Background()
	var backend lnnode.Backend
	switch cfg.Backend {
	case "lnd":
		lndBackend, err := lnnode.NewLndBackend(
			ctx, cfg.Lnd, cfg.netParams,
		)
		if err != nil {
			return fmt.Errorf("unable to connect lnd backend: "+
				"%w", err)
		}
		defer lndBackend.Close()
		backend = lndBackend

	case "clightning":
		backend = lnnode.NewClightningBackend(
			cfg.Clightning, cfg.netParams,
		)

	case "eclair":
		backend = lnnode.NewEclairBackend(cfg.Eclair, cfg.netParams)
	}

	server := lnurl.NewServer(&lnurl.Config{
		Callback:          cfg.URL,
		APIKeys:           cfg.apiKeys,
		AuthTimeThreshold: cfg.AuthTimeThreshold,
		Store:             store,
		Backend:           backend,
		Clock:             defaultClock,
	})

	mux := http.NewServeMux()
	mux.Handle(cfg.Endpoint, server)

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: mux,
	}

	errChan := make(chan error, 1)
	go func() {
		lurdLog.Infof("LNURL endpoint listening on %v%v (callback "+
			"%v)", cfg.Listen, cfg.Endpoint, cfg.URL)

		var err error
		if cfg.TLSCertPath != "" && cfg.TLSKeyPath != "" {
			err = httpServer.ListenAndServeTLS(
				cfg.TLSCertPath, cfg.TLSKeyPath,
			)
		} else {
			err = httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for shutdown signal from either a graceful server stop or from
	// the interrupt handler.
	select {
	case err := <-errChan:
		return err

	case <-shutdownInterceptor.ShutdownChannel():
	}

	lurdLog.Info("Stopping LNURL server...")
	if err := httpServer.Shutdown(ctx); err != nil {
		return err
	}
	lurdLog.Info("Shutdown complete")

	return nil
}
