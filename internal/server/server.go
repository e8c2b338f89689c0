// Package server provides functionalities to start and manage the gateway server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"filegate/internal/config"
	"filegate/internal/server/file"
	"filegate/pkg/logger"
	"filegate/pkg/object"

	"golang.org/x/sync/errgroup"
)

// Serve opens the configured backend, listens on cfg.Port and serves until
// ctx is done. In-flight requests get cfg.ShutdownTimeout to finish.
func Serve(ctx context.Context, cfg config.ServerConfig) error {
	store, err := openBackend(ctx, cfg.Backend)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Log.Warn().Err(err).Msg("close object storage")
		}
	}()

	handler, err := NewHandler(store, cfg)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	logger.Log.Info().Int("port", cfg.Port).Str("base_path", cfg.BasePath).Msg("starting server")
	return run(ctx, lis, handler, cfg)
}

// NewHandler builds the full route tree over store:
//
//	GET  /ping
//	     <base>/file/...  token gate, then the file gateway
//
// Every route is wrapped with request logging and panic recovery.
func NewHandler(store object.ObjectStorage, cfg config.ServerConfig) (http.Handler, error) {
	gate, err := newTokenGate(cfg.TokenHashes)
	if err != nil {
		return nil, err
	}

	gw := file.NewGateway(store)
	prefix := cfg.BasePath + "/file"

	// Mux definition start
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	handle(mux, prefix+"/", http.StripPrefix(prefix, file.Handler(gw, file.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
	})), gate.middleware)
	// Mux definition end

	return chain(mux, requestLog, recoverer), nil
}

func run(ctx context.Context, lis net.Listener, handler http.Handler, cfg config.ServerConfig) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		// Requests outlive ctx so Shutdown can drain them.
		BaseContext: func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info().Msg("shutting down server")

		timeout := cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
