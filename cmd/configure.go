package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bidsquery/bidsquery/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update the persisted configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		changed := false
		if baseDirFlag != "" {
			cfg.BaseDir = baseDirFlag
			changed = true
		}
		if rosterFlag != "" {
			cfg.ParticipantFile = rosterFlag
			changed = true
		}
		if changed {
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Println("configuration saved")
		}

		if jsonOut {
			return printJSON(cfg)
		}
		fmt.Printf("base_dir:         %s\n", cfg.BaseDir)
		fmt.Printf("participant_file: %s\n", cfg.ParticipantFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
