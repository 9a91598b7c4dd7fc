package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/martinbeasnunez/superscrap-sub000/internal/ingest"
	"github.com/martinbeasnunez/superscrap-sub000/internal/model"
)

var (
	searchCity     string
	searchServices []string
	searchSource   string
	searchPage     int
	searchLoadMore bool
	searchDeep     bool
	searchUser     string
)

var searchCmd = &cobra.Command{
	Use:   "search <business-type>",
	Short: "Search for prospects and run the full ingestion pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("search"); err != nil {
			return err
		}

		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		source := model.SourceMaps
		if searchSource == string(model.SourceDirectory) {
			source = model.SourceDirectory
		}

		search := &model.Search{
			UserID:           searchUser,
			BusinessType:     args[0],
			City:             searchCity,
			RequiredServices: searchServices,
			Source:           source,
		}
		if err := st.CreateSearch(ctx, search); err != nil {
			return eris.Wrap(err, "create search")
		}

		pipeline := initPipeline(st)
		events := pipeline.Run(ctx, search, ingest.Options{
			Page:       searchPage,
			LoadMore:   searchLoadMore,
			DeepScrape: searchDeep,
		})
		for e := range events {
			if e.Total > 0 {
				fmt.Printf("[%s] %s (%d/%d)\n", e.Stage, e.Message, e.Current, e.Total)
			} else {
				fmt.Printf("[%s] %s\n", e.Stage, e.Message)
			}
		}

		done, err := st.GetSearch(ctx, search.ID)
		if err != nil {
			return eris.Wrap(err, "reload search")
		}
		fmt.Printf("\nBusqueda %s: %s, %d resultados, %d coinciden\n",
			done.ID, done.Status, done.TotalResults, done.MatchingResults)

		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchCity, "city", "Lima", "city to search in")
	searchCmd.Flags().StringSliceVar(&searchServices, "services", nil, "required services (empty = auto-detect)")
	searchCmd.Flags().StringVar(&searchSource, "source", "maps", "listing source: maps or directory")
	searchCmd.Flags().IntVar(&searchPage, "page", 0, "result page (maps source)")
	searchCmd.Flags().BoolVar(&searchLoadMore, "load-more", false, "skip candidates already saved for this search")
	searchCmd.Flags().BoolVar(&searchDeep, "deep", false, "probe common service sub-paths when scraping")
	searchCmd.Flags().StringVar(&searchUser, "user", "", "user id to attribute the search to")
	rootCmd.AddCommand(searchCmd)
}
