package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove malformed menu items and empty restaurants",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.menus.Sweep(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d items, %d restaurants\n", res.ItemsRemoved, res.RestaurantsRemoved)
		return nil
	},
}
