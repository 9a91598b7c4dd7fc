package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/martinbeasnunez/superscrap-sub000/internal/export"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <search-id>",
	Short: "Export a search's leads to an xlsx spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		out := exportOutput
		if out == "" {
			out = fmt.Sprintf("leads-%s.xlsx", args[0])
		}

		f, err := os.Create(out)
		if err != nil {
			return eris.Wrap(err, "create output file")
		}
		defer f.Close()

		if err := export.New(st).WriteSearch(ctx, args[0], f); err != nil {
			return err
		}

		fmt.Printf("Exportado a %s\n", out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output path (default leads-<search-id>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}
