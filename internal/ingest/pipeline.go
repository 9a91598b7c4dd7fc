// Package ingest runs the per-search prospect pipeline: fetch listings,
// scrape, classify, score, persist. Candidates are processed strictly one
// at a time so the external classifier and scraping targets are never
// fanned out against, and progress events stay ordered.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/martinbeasnunez/superscrap-sub000/internal/model"
	"github.com/martinbeasnunez/superscrap-sub000/internal/resilience"
	"github.com/martinbeasnunez/superscrap-sub000/internal/scorer"
	"github.com/martinbeasnunez/superscrap-sub000/internal/store"
	"github.com/martinbeasnunez/superscrap-sub000/pkg/directory"
	"github.com/martinbeasnunez/superscrap-sub000/pkg/scraper"
	"github.com/martinbeasnunez/superscrap-sub000/pkg/serper"
)

// Stage labels a progress event.
type Stage string

const (
	StageSearching Stage = "searching"
	StageScraping  Stage = "scraping"
	StageAnalyzing Stage = "analyzing"
	StageSaving    Stage = "saving"
	StageCompleted Stage = "completed"
	StageError     Stage = "error"
)

// Event is one progress notification. Delivery is best effort: a consumer
// that stops reading loses events but never stalls ingestion.
type Event struct {
	SearchID string `json:"search_id"`
	Stage    Stage  `json:"stage"`
	Message  string `json:"message"`
	Current  int    `json:"current,omitempty"`
	Total    int    `json:"total,omitempty"`
}

// progressBuffer bounds the event channel so a slow consumer drops events
// instead of blocking the candidate loop.
const progressBuffer = 64

// priorityDistricts ranks candidates whose address mentions a premium Lima
// neighborhood ahead of everything else, in this order.
var priorityDistricts = []string{
	"Miraflores",
	"San Isidro",
	"Barranco",
	"Santiago de Surco",
	"La Molina",
	"San Borja",
}

// Options tune one pipeline run.
type Options struct {
	// Page selects the listing-source result page (maps source only).
	Page int
	// LoadMore enables dedupe against external ids already persisted for
	// this search.
	LoadMore bool
	// DeepScrape probes common service sub-paths in addition to the
	// landing page.
	DeepScrape bool
}

// Pipeline wires the listing sources, scraper, scorer and store together.
type Pipeline struct {
	store   store.Store
	maps    serper.Client
	dir     directory.Client
	scraper *scraper.Scraper
	scorer  *scorer.Scorer
	limiter *rate.Limiter
	log     *zap.Logger
}

// New creates a Pipeline. delay is the fixed inter-candidate courtesy
// delay; zero disables it.
func New(st store.Store, maps serper.Client, dir directory.Client, sc *scraper.Scraper, scr *scorer.Scorer, delay time.Duration) *Pipeline {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return &Pipeline{
		store:   st,
		maps:    maps,
		dir:     dir,
		scraper: sc,
		scorer:  scr,
		limiter: limiter,
		log:     zap.L().With(zap.String("component", "ingest")),
	}
}

// candidate is a listing normalized across sources.
type candidate struct {
	ExternalID  string
	Name        string
	Address     string
	Phone       string
	Website     string
	Rating      float64
	Reviews     int
	Description string
}

// Run executes the whole pipeline for search in a goroutine and returns the
// progress stream. The channel is closed when the run finishes, whatever
// the outcome. Events the consumer does not drain in time are dropped.
func (p *Pipeline) Run(ctx context.Context, search *model.Search, opts Options) <-chan Event {
	events := make(chan Event, progressBuffer)
	go func() {
		defer close(events)
		p.run(ctx, search, opts, events)
	}()
	return events
}

func (p *Pipeline) run(ctx context.Context, search *model.Search, opts Options, events chan<- Event) {
	log := p.log.With(zap.String("search_id", search.ID))

	if err := p.store.UpdateSearchStatus(ctx, search.ID, model.SearchProcessing); err != nil {
		log.Error("mark processing failed", zap.Error(err))
		p.emit(events, Event{SearchID: search.ID, Stage: StageError, Message: "no se pudo iniciar la busqueda"})
		return
	}

	p.emit(events, Event{
		SearchID: search.ID,
		Stage:    StageSearching,
		Message:  fmt.Sprintf("Buscando %s en %s", search.BusinessType, search.City),
	})

	candidates, err := p.fetchCandidates(ctx, search, opts)
	if err != nil {
		// Only the initial listing search is terminal for the whole run.
		log.Error("listing search failed", zap.Error(err))
		if serr := p.store.UpdateSearchStatus(ctx, search.ID, model.SearchFailed); serr != nil {
			log.Error("mark failed failed", zap.Error(serr))
		}
		p.emit(events, Event{SearchID: search.ID, Stage: StageError, Message: "la busqueda de listados fallo"})
		return
	}

	if opts.LoadMore {
		candidates, err = p.dedupe(ctx, search.ID, candidates)
		if err != nil {
			log.Warn("dedupe lookup failed, keeping all candidates", zap.Error(err))
		}
	}

	sortByPriorityDistrict(candidates)

	total := len(candidates)
	saved := 0
	matching := 0

	for i, c := range candidates {
		if err := p.limiter.Wait(ctx); err != nil {
			log.Warn("rate limiter interrupted", zap.Error(err))
			break
		}

		p.emit(events, Event{
			SearchID: search.ID,
			Stage:    StageScraping,
			Message:  fmt.Sprintf("Procesando %s", c.Name),
			Current:  i + 1,
			Total:    total,
		})

		biz, analysis := p.processCandidate(ctx, search, c, opts, events, i+1, total)

		if err := p.store.CreateBusiness(ctx, biz); err != nil {
			log.Error("persist business failed, skipping candidate",
				zap.String("business", c.Name), zap.Error(err))
			continue
		}
		analysis.BusinessID = biz.ID
		analysis.SearchID = search.ID
		if err := p.store.CreateAnalysis(ctx, analysis); err != nil {
			log.Error("persist analysis failed",
				zap.String("business_id", biz.ID), zap.Error(err))
			continue
		}

		saved++
		if analysis.MatchesRequirement {
			matching++
		}
	}

	if err := p.store.UpdateSearchTotals(ctx, search.ID, total, matching); err != nil {
		log.Error("update totals failed", zap.Error(err))
	}
	if err := p.store.UpdateSearchStatus(ctx, search.ID, model.SearchCompleted); err != nil {
		log.Error("mark completed failed", zap.Error(err))
	}

	log.Info("search completed",
		zap.Int("total", total),
		zap.Int("saved", saved),
		zap.Int("matching", matching),
	)
	p.emit(events, Event{
		SearchID: search.ID,
		Stage:    StageCompleted,
		Message:  fmt.Sprintf("Busqueda completada: %d resultados, %d coinciden", total, matching),
		Current:  total,
		Total:    total,
	})
}

// processCandidate runs scrape and scoring for one candidate. It never
// fails: scrape errors degrade to no contact info and the scorer degrades
// classifier errors internally.
func (p *Pipeline) processCandidate(ctx context.Context, search *model.Search, c candidate, opts Options, events chan<- Event, current, total int) (*model.Business, *model.ServiceAnalysis) {
	var contacts *scraper.Contacts
	content := ""
	if c.Website != "" {
		var err error
		contacts, err = p.scraper.FetchContacts(ctx, c.Website)
		if err != nil {
			p.log.Debug("scrape failed, no contact info",
				zap.String("website", c.Website), zap.Error(err))
			contacts = nil
		} else {
			content = contacts.Content
			if opts.DeepScrape {
				if deep := p.scraper.FetchDeep(ctx, c.Website); deep != "" {
					content = deep
				}
			}
		}
	}

	p.emit(events, Event{
		SearchID: search.ID,
		Stage:    StageAnalyzing,
		Message:  fmt.Sprintf("Analizando %s", c.Name),
		Current:  current,
		Total:    total,
	})

	analysis := p.scorer.Score(ctx, scorer.Input{
		Name:             c.Name,
		Description:      c.Description,
		BusinessType:     search.BusinessType,
		WebsiteContent:   content,
		RequiredServices: search.RequiredServices,
		TitleFallback:    search.Source == model.SourceDirectory,
	})

	p.emit(events, Event{
		SearchID: search.ID,
		Stage:    StageSaving,
		Message:  fmt.Sprintf("Guardando %s", c.Name),
		Current:  current,
		Total:    total,
	})

	biz := &model.Business{
		SearchID:       search.ID,
		ExternalID:     c.ExternalID,
		Name:           c.Name,
		Address:        c.Address,
		Phone:          c.Phone,
		Website:        c.Website,
		Rating:         c.Rating,
		Reviews:        c.Reviews,
		Description:    c.Description,
		DecisionMakers: deriveDecisionMakers(contacts),
		LeadStatus:     model.LeadNoContact,
	}

	return biz, &model.ServiceAnalysis{
		DetectedServices:   analysis.DetectedServices,
		Confidence:         analysis.Confidence,
		Evidence:           analysis.Evidence,
		MatchesRequirement: analysis.MatchesRequirement,
		MatchPercentage:    analysis.MatchPercentage,
	}
}

func (p *Pipeline) fetchCandidates(ctx context.Context, search *model.Search, opts Options) ([]candidate, error) {
	switch search.Source {
	case model.SourceDirectory:
		listings, err := p.dir.Search(ctx, search.BusinessType, search.City)
		if err != nil {
			return nil, err
		}
		out := make([]candidate, 0, len(listings))
		for _, l := range listings {
			out = append(out, candidate{
				ExternalID:  directoryExternalID(l),
				Name:        l.Name,
				Address:     l.Address,
				Phone:       l.Phone,
				Website:     l.Website,
				Description: l.Description,
			})
		}
		return out, nil
	default:
		cfg := resilience.DefaultRetryConfig()
		cfg.MaxAttempts = 2
		places, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]serper.Place, error) {
			return p.maps.Search(ctx, search.BusinessType, search.City, opts.Page)
		})
		if err != nil {
			return nil, err
		}
		out := make([]candidate, 0, len(places))
		for _, pl := range places {
			out = append(out, candidate{
				ExternalID:  pl.ExternalID(),
				Name:        pl.Title,
				Address:     pl.Address,
				Phone:       pl.Phone,
				Website:     pl.Website,
				Rating:      pl.Rating,
				Reviews:     pl.RatingCount,
				Description: pl.Description,
			})
		}
		return out, nil
	}
}

// dedupe drops candidates whose external id is already persisted for the
// search. Exact match only.
func (p *Pipeline) dedupe(ctx context.Context, searchID string, candidates []candidate) ([]candidate, error) {
	seen, err := p.store.ExternalIDs(ctx, searchID)
	if err != nil {
		return candidates, err
	}
	out := candidates[:0]
	for _, c := range candidates {
		if c.ExternalID != "" && seen[c.ExternalID] {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// emit sends without blocking; a full buffer drops the event.
func (p *Pipeline) emit(events chan<- Event, e Event) {
	select {
	case events <- e:
	default:
	}
}

// districtRank returns the index of the first priority district mentioned
// in the address, or len(priorityDistricts) for everything else.
func districtRank(address string) int {
	addr := strings.ToLower(address)
	for i, d := range priorityDistricts {
		if strings.Contains(addr, strings.ToLower(d)) {
			return i
		}
	}
	return len(priorityDistricts)
}

// sortByPriorityDistrict is a stable sort: non-priority candidates keep
// their listing order.
func sortByPriorityDistrict(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return districtRank(candidates[i].Address) < districtRank(candidates[j].Address)
	})
}

func directoryExternalID(l directory.Listing) string {
	if l.Website != "" {
		return l.Website
	}
	if l.Phone != "" {
		return l.Name + "|" + l.Phone
	}
	return l.Name + "|" + l.Address
}

// deriveDecisionMakers builds contact entries from scraped emails and
// phones. Emails rank higher; each email is paired positionally with a
// phone when one is available. Phone-only contacts score lower. No scrape
// data yields nil.
func deriveDecisionMakers(contacts *scraper.Contacts) []model.DecisionMaker {
	if contacts == nil {
		return nil
	}
	if len(contacts.Emails) > 0 {
		out := make([]model.DecisionMaker, 0, len(contacts.Emails))
		for i, email := range contacts.Emails {
			dm := model.DecisionMaker{
				Name:       "Contacto",
				Email:      email,
				Confidence: 80,
				Source:     "website",
			}
			if i < len(contacts.Phones) {
				dm.Phone = contacts.Phones[i]
			}
			out = append(out, dm)
		}
		return out
	}
	if len(contacts.Phones) > 0 {
		out := make([]model.DecisionMaker, 0, len(contacts.Phones))
		for _, phone := range contacts.Phones {
			out = append(out, model.DecisionMaker{
				Name:       "Contacto",
				Phone:      phone,
				Confidence: 70,
				Source:     "website",
			})
		}
		return out
	}
	return nil
}
