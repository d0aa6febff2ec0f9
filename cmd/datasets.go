package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "Summarize the BIDS datasets below the base directory",
	Args:  cobra.NoArgs,
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

		summary := engine.Summarize(base)
		if jsonOut {
			return printJSON(summary)
		}

		fmt.Printf("%d dataset(s) under %s\n", summary.TotalDatasets, base)
		for _, ds := range summary.Datasets {
			fmt.Printf("  %s\t%s\n", ds.Name, ds.Path)
			fmt.Printf("    subjects: %d  sessions: %d  datatypes: %s\n",
				ds.SubjectsCount, ds.SessionsCount, strings.Join(ds.Datatypes, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
}
