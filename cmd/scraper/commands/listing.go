package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aggieschedule/registrar-scraper/registrar"
	"github.com/aggieschedule/registrar-scraper/term"
)

var (
	departmentsLimit int
	termsLimit       int
)

func init() {
	departmentsCmd.Flags().IntVar(&departmentsLimit, "limit", 500, "Maximum departments to list")
	termsCmd.Flags().IntVar(&termsLimit, "limit", 20, "Maximum terms to list")
	rootCmd.AddCommand(departmentsCmd, termsCmd)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func newClient(cmd *cobra.Command) (*registrar.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	t, err := cfg.Term()
	if err != nil {
		return nil, err
	}
	return registrar.NewClient(cfg, t)
}

var departmentsCmd = &cobra.Command{
	Use:   "departments [--limit N]",
	Short: "Lists the subject codes offered in the term.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		departments, err := client.GetDepartments(cmd.Context(), departmentsLimit)
		if err != nil {
			return err
		}

		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Code", "Description"})
		for _, d := range departments {
			t.AppendRow(table.Row{d.Code, d.Description})
		}
		t.Render()
		return nil
	},
}

var termsCmd = &cobra.Command{
	Use:   "terms [--limit N]",
	Short: "Lists the terms the registrar offers, newest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		terms, err := client.GetTerms(cmd.Context(), termsLimit)
		if err != nil {
			return err
		}

		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Code", "Description", "Decoded"})
		for _, rec := range terms {
			decoded := ""
			if parsed, err := term.Parse(rec.Code); err == nil {
				decoded = parsed.String()
			}
			t.AppendRow(table.Row{rec.Code, rec.Description, decoded})
		}
		t.Render()
		return nil
	},
}
