package cmd

import (
	"fmt"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/bidsquery/bidsquery/internal/config"
	"github.com/bidsquery/bidsquery/internal/discover"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the persisted discovery cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the persisted discovery cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		cachePath, err := config.CachePath()
		if err != nil {
			return err
		}
		cache := discover.NewCache(osfs.New("/"), cachePath, log)
		if err := cache.Clear(); err != nil {
			return err
		}
		fmt.Println("discovery cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
