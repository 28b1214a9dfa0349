package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"macromap/config"
	"macromap/utils"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin JWT for maintenance endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		tok, err := utils.GenerateAdminJWT(cfg.JWTSecret, tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "ops", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 72*time.Hour, "Token lifetime")
}
