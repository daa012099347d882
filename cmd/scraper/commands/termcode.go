package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aggieschedule/registrar-scraper/term"
)

func init() {
	rootCmd.AddCommand(termCodeCmd)
}

var termCodeCmd = &cobra.Command{
	Use:   "term-code [--year Y] [--semester S] [--location L]",
	Short: "Prints the registrar term code for a year, semester and campus.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		semester, err := term.ParseSemester(cfg.Semester)
		if err != nil {
			return err
		}
		location, err := term.ParseLocation(cfg.Location)
		if err != nil {
			return err
		}
		code, err := term.Resolve(cfg.Year, semester, location)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), code)
		return nil
	},
}
