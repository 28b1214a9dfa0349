package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"macromap/routes"
	"macromap/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	hub := services.NewRealtimeHub()
	a.menus.WithListener(hub)

	r := routes.SetupRouter(routes.Deps{
		Menus:         a.menus,
		Hub:           hub,
		GoogleMapsKey: a.cfg.GoogleMapsKey,
		JWTSecret:     a.cfg.JWTSecret,
		StaticDir:     a.cfg.StaticDir,
	})
	if a.cfg.JWTSecret == "" {
		log.Printf("[SYS] JWT_SECRET not set, /cleanup is unauthenticated")
	}

	srv := &http.Server{Addr: ":" + a.cfg.Port, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[SYS] listening on :%s", a.cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Printf("[SYS] shutting down")
	return srv.Shutdown(shutdownCtx)
}
