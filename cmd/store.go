package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/martinbeasnunez/superscrap-sub000/internal/classifier"
	"github.com/martinbeasnunez/superscrap-sub000/internal/ingest"
	"github.com/martinbeasnunez/superscrap-sub000/internal/scorer"
	"github.com/martinbeasnunez/superscrap-sub000/internal/store"
	anthropicpkg "github.com/martinbeasnunez/superscrap-sub000/pkg/anthropic"
	"github.com/martinbeasnunez/superscrap-sub000/pkg/directory"
	"github.com/martinbeasnunez/superscrap-sub000/pkg/scraper"
	"github.com/martinbeasnunez/superscrap-sub000/pkg/serper"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline wires the listing sources, scraper and scorer around a store.
func initPipeline(st store.Store) *ingest.Pipeline {
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	claude := classifier.NewClaude(anthropicClient, cfg.Anthropic.Model,
		time.Duration(cfg.Anthropic.TimeoutSecs)*time.Second)

	mapsClient := serper.NewClient(cfg.Serper.Key, serper.WithBaseURL(cfg.Serper.BaseURL))
	dirClient := directory.NewClient(directory.WithBaseURL(cfg.Directory.BaseURL))
	sc := scraper.New(time.Duration(cfg.Scrape.TimeoutSecs) * time.Second)

	return ingest.New(st, mapsClient, dirClient, sc,
		scorer.New(claude, nil), cfg.Ingest.CandidateDelay())
}
