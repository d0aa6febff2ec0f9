package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects [dataset-path]",
	Short: "List subjects, per dataset or across every discovered dataset",
	Long: `List subjects. With a dataset path, describe that dataset in full
(subjects, sessions, datatypes, tasks). Without arguments, list the distinct
subject ids across every dataset below the base directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		engine, err := buildEngine(log)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			base, err := resolveBaseDir()
			if err != nil {
				return err
			}
			datasets := engine.Scanner.Discover(base, engine.Discovery)
			subjects := engine.Index.SubjectsAcross(datasets)
			if jsonOut {
				return printJSON(subjects)
			}
			fmt.Printf("%d subject(s) across %d dataset(s)\n", len(subjects), len(datasets))
			for _, s := range subjects {
				fmt.Printf("  %s\n", s)
			}
			return nil
		}

		info := engine.Index.Describe(args[0])
		if jsonOut {
			return printJSON(info)
		}

		if info.Err != "" {
			fmt.Printf("%s: %s\n", info.Path, info.Err)
			return nil
		}
		fmt.Printf("%s\n", info.Path)
		fmt.Printf("  subjects:  %s\n", strings.Join(info.Subjects, ", "))
		fmt.Printf("  sessions:  %s\n", strings.Join(info.Sessions, ", "))
		fmt.Printf("  datatypes: %s\n", strings.Join(info.Datatypes, ", "))
		fmt.Printf("  tasks:     %s\n", strings.Join(info.Tasks, ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(subjectsCmd)
}
