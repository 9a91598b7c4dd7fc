package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/martinbeasnunez/superscrap-sub000/internal/stats"
	"github.com/martinbeasnunez/superscrap-sub000/internal/store"
)

var statsFollowUpDays int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show contact stats and pending follow-ups",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		businesses, err := st.ListBusinesses(ctx, store.BusinessFilter{})
		if err != nil {
			return eris.Wrap(err, "list businesses")
		}

		now := time.Now()
		summary := stats.Summarize(businesses, now)

		fmt.Printf("Total de negocios: %d (hoy: %d)\n", summary.AllTime.Total, summary.Today.Total)
		fmt.Println("\nPor accion de contacto:")
		for action, n := range summary.AllTime.Actions {
			fmt.Printf("  %-10s %d\n", action, n)
		}
		fmt.Println("\nPor estado:")
		for status, n := range summary.AllTime.Statuses {
			fmt.Printf("  %-12s %d\n", status, n)
		}

		followUps := stats.FollowUps(businesses, now, statsFollowUpDays)
		fmt.Printf("\nSeguimientos pendientes (>= %d dias): %d\n", statsFollowUpDays, len(followUps))
		for _, item := range followUps {
			fmt.Printf("  %-40s %d dias\n", item.Business.Name, item.DaysSinceContact)
		}

		return nil
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsFollowUpDays, "days", stats.DefaultFollowUpDays, "minimum days since contact for the follow-up list")
	rootCmd.AddCommand(statsCmd)
}
