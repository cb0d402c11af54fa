package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Cache maintenance operations",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnrichment(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		purged, err := env.Cache.PurgeExpired(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("cache purge complete", zap.Int("purged", purged))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
