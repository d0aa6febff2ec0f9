package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var criteriaCmd = &cobra.Command{
	Use:   "criteria [key=value ...]",
	Short: "Find participants whose files and demographics match the criteria",
	Long: `Find participants whose files and demographics match the criteria.

File-entity keys (datatype, suffix, extension, task, session, run,
acquisition) are answered by the dataset index; every other key filters the
roster. Roster values may embed a comparison operator, e.g. age=">=60".`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		criteria := make(map[string]string, len(args))
		for _, arg := range args {
			key, value, found := strings.Cut(arg, "=")
			if !found || key == "" {
				return fmt.Errorf("malformed criterion %q, expected key=value", arg)
			}
			criteria[key] = value
		}

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

		res := engine.QueryByCriteria(base, rost, criteria)
		if jsonOut {
			return printJSON(res)
		}

		if res.Error != "" {
			fmt.Println(res.Error)
		}
		if len(res.UnknownCriteria) > 0 {
			fmt.Printf("unknown roster columns ignored: %s\n", strings.Join(res.UnknownCriteria, ", "))
		}
		fmt.Printf("%d participant(s), %d file(s) across %d dataset(s)\n",
			len(res.ParticipantsFound), res.TotalFiles, len(res.DatasetsSearched))
		for _, f := range res.FilesFound {
			fmt.Printf("  %s\n", f.Path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(criteriaCmd)
}
