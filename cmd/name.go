package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var nameCmd = &cobra.Command{
	Use:   "name [query]",
	Short: "Find the data files of every participant whose name matches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		engine, err := buildEngine(log)
		if err != nil {
			return err
		}
		base, err := resolveBaseDir()
		if err != nil {
			return err
		}
		rost, err := loadRoster(log)
		if err != nil {
			return err
		}

		res := engine.QueryByName(args[0], base, rost)
		if jsonOut {
			return printJSON(res)
		}

		if res.Error != "" {
			fmt.Println(res.Error)
		}
		fmt.Printf("%d participant(s), %d file(s) across %d dataset(s)\n",
			len(res.ParticipantsFound), res.TotalFiles, len(res.DatasetsSearched))
		for pid, files := range res.FilesByParticipant {
			fmt.Printf("  %s (%d files)\n", pid, len(files))
			for _, f := range files {
				fmt.Printf("    %s\n", f.Path)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nameCmd)
}
