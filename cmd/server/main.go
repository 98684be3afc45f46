package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admin-auth/internal/config"
	"admin-auth/internal/factory"
	"admin-auth/internal/handler"
	apptls "admin-auth/internal/tls"
	"admin-auth/internal/util"
)

func main() {
	f, err := factory.New()
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}
	defer f.Close()

	cfg := f.Config()
	router, err := setupRouter(f)
	if err != nil {
		util.Fatal("Failed to build components", util.ErrorField(err))
	}

	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if !cfg.Server.TLS.Enabled {
		util.Warn("Starting HTTP server - TLS is disabled",
			util.String("environment", cfg.Environment),
			util.Int("port", cfg.Server.Port),
		)
		startServer(f, cfg, server, nil)
		return
	}

	tlsManager, err := apptls.NewManager(cfg.Server.TLS)
	if err != nil {
		util.Fatal("Failed to configure TLS", util.ErrorField(err))
	}
	server.TLSConfig = tlsManager.TLSConfig()

	// ACME http-01 challenges need plain HTTP on :80
	var challengeServer *http.Server
	if h := tlsManager.ChallengeHandler(nil); h != nil {
		challengeServer = &http.Server{Addr: ":80", Handler: h, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			util.Info("Starting ACME challenge server on port 80")
			if err := challengeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				util.Error("ACME challenge server failed", util.ErrorField(err))
			}
		}()
	}

	util.Info("Starting HTTPS server",
		util.String("environment", cfg.Environment),
		util.Int("port", cfg.Server.Port),
		util.String("certificate_source", tlsManager.Mode()),
	)
	startServer(f, cfg, server, challengeServer)
}

// setupRouter mounts all three components on one router for local use.
func setupRouter(f *factory.Factory) (http.Handler, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	issuer, err := f.Issuer(ctx)
	if err != nil {
		return nil, err
	}
	verifier, err := f.Verifier(ctx)
	if err != nil {
		return nil, err
	}
	authorizer, err := f.Authorizer(ctx)
	if err != nil {
		return nil, err
	}
	if err := f.Warm(ctx, true, true); err != nil {
		util.Warn("Warm-up failed", util.ErrorField(err))
	}

	cfg := f.Config()
	return handler.NewRouter(handler.RouterConfig{
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Health:         f.HealthReport,
	},
		handler.NewIssueHandler(issuer).RegisterRoutes,
		handler.NewVerifyHandler(verifier).RegisterRoutes,
		handler.NewSessionHandler(authorizer).RegisterRoutes,
	), nil
}

func startServer(f *factory.Factory, cfg *config.Config, server *http.Server, extra *http.Server) {
	go func() {
		var err error
		if server.TLSConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.Fatal("Server failed to start", util.ErrorField(err))
		}
	}()

	util.Info("Server started successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", server.TLSConfig != nil),
		util.String("address", server.Addr),
	)

	waitForShutdown(f, server, extra)
}

func waitForShutdown(f *factory.Factory, servers ...*http.Server) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-signalChan
	util.Info("Received shutdown signal", util.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			util.Error("Failed to shutdown server gracefully", util.ErrorField(err))
		} else {
			util.Info("Server shutdown completed", util.String("address", srv.Addr))
		}
	}
	f.Close()
}
