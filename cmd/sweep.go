package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sweepHours int

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Mark stale processing searches as failed",
	Long:  "A search left in processing after a crash has no other reconciliation path. The sweep fails every processing search whose last update is older than the cutoff.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		cutoff := cfg.Ingest.StaleSweepCutoff()
		if sweepHours > 0 {
			cutoff = time.Duration(sweepHours) * time.Hour
		}

		n, err := st.SweepStaleSearches(ctx, cutoff)
		if err != nil {
			return err
		}

		fmt.Printf("Barridas %d busquedas estancadas (mas de %s sin avance)\n", n, cutoff.Round(time.Minute))
		return nil
	},
}

func init() {
	sweepCmd.Flags().IntVar(&sweepHours, "hours", 0, "stale cutoff in hours (default from config)")
	rootCmd.AddCommand(sweepCmd)
}
