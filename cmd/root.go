package main

import (
	"context"
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"macromap/config"
	"macromap/services"
)

var rootCmd = &cobra.Command{
	Use:          "macromap",
	Short:        "macromap: healthiest menu items near you",
	Long:         "Fetches chain menus from FatSecret, stores them, and ranks items by protein per calorie.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(tokenCmd)
}

// app is the wired service graph shared by the subcommands.
type app struct {
	cfg   *config.Config
	store services.RestaurantStore
	menus *services.MenuService
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Printf("[DB] close: %v", err)
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := config.OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.FatSecretTimeout}
	tokens := services.NewTokenSource(cfg.FatSecretClientID, cfg.FatSecretClientSecret, cfg.FatSecretTokenURL, httpClient)
	foods := services.NewFatSecretService(tokens, cfg.FatSecretSearchURL, httpClient)

	menus := services.NewMenuService(services.NewResolver(foods), store, services.MenuServiceConfig{
		ChunkSize:  cfg.ChunkSize,
		RankLimit:  cfg.RankLimit,
		RefreshTTL: cfg.RefreshTTL,
	})

	if cfg.SNSTopicARN != "" {
		n, err := services.NewSNSNotifier(ctx, cfg.AWSRegion, cfg.SNSTopicARN)
		if err != nil {
			log.Printf("[NOTIFY] SNS disabled: %v", err)
		} else {
			menus.WithNotifier(n)
		}
	}

	return &app{cfg: cfg, store: store, menus: menus}, nil
}

// loadApp reads config and wires the app.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg)
}
