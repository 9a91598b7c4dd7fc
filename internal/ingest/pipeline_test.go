package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/martinbeasnunez/superscrap-sub000/internal/classifier"
	"github.com/martinbeasnunez/superscrap-sub000/internal/model"
	"github.com/martinbeasnunez/superscrap-sub000/internal/scorer"
	"github.com/martinbeasnunez/superscrap-sub000/internal/store"
	"github.com/martinbeasnunez/superscrap-sub000/pkg/directory"
	"github.com/martinbeasnunez/superscrap-sub000/pkg/scraper"
	"github.com/martinbeasnunez/superscrap-sub000/pkg/serper"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newTestSearch(t *testing.T, st store.Store, source model.SearchSource) *model.Search {
	t.Helper()
	search := &model.Search{
		BusinessType:     "hotel",
		City:             "Lima",
		Source:           source,
		RequiredServices: []string{"toallas"},
	}
	require.NoError(t, st.CreateSearch(context.Background(), search))
	return search
}

func drain(events <-chan Event) []Event {
	var out []Event
	for e := range events {
		out = append(out, e)
	}
	return out
}

func stages(events []Event) []Stage {
	var out []Stage
	for _, e := range events {
		out = append(out, e.Stage)
	}
	return out
}

func TestPipelineCompletesWithScrapeTimeout(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Hotel Azul</title></head><body>
			Ofrecemos toallas limpias todos los dias.
			Escribenos a reservas@hotelazul.pe o llama al +51 987 654 321.
		</body></html>`))
	}))
	defer good.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer slow.Close()

	st := newTestStore(t)
	search := newTestSearch(t, st, model.SourceMaps)

	maps := &mockMaps{places: []serper.Place{
		{Title: "Hotel Azul", Address: "Av. Larco 100, Miraflores", Website: good.URL, CID: "cid-1"},
		{Title: "Hotel Lento", Address: "Jr. Union 5", Website: slow.URL, CID: "cid-2"},
		{Title: "Hostal Sin Web", Address: "Av. Brasil 300", CID: "cid-3"},
	}}

	sc := scorer.New(&stubClassifier{}, nil)
	p := New(st, maps, &mockDirectory{}, scraper.New(300*time.Millisecond), sc, 0)

	events := drain(p.Run(context.Background(), search, Options{}))

	got, err := st.GetSearch(context.Background(), search.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SearchCompleted, got.Status)
	assert.Equal(t, 3, got.TotalResults)
	assert.Equal(t, 3, got.MatchingResults)

	businesses, err := st.ListBusinesses(context.Background(), store.BusinessFilter{SearchID: search.ID})
	require.NoError(t, err)
	require.Len(t, businesses, 3)

	byName := map[string]*model.Business{}
	for _, b := range businesses {
		byName[b.Name] = b
	}

	// Scrape timeout degrades to no contact info, never aborts the candidate.
	require.Contains(t, byName, "Hotel Lento")
	assert.Nil(t, byName["Hotel Lento"].DecisionMakers)
	analysis, err := st.GetAnalysisForBusiness(context.Background(), byName["Hotel Lento"].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, analysis.Evidence)

	// The good site yields email-based decision makers at high confidence.
	require.Contains(t, byName, "Hotel Azul")
	dms := byName["Hotel Azul"].DecisionMakers
	require.NotEmpty(t, dms)
	assert.Equal(t, "reservas@hotelazul.pe", dms[0].Email)
	assert.Equal(t, 80, dms[0].Confidence)

	st1 := stages(events)
	assert.Equal(t, StageSearching, st1[0])
	assert.Equal(t, StageCompleted, st1[len(st1)-1])
}

func TestPipelineListingFailureIsTerminal(t *testing.T) {
	st := newTestStore(t)
	search := newTestSearch(t, st, model.SourceMaps)

	maps := &mockMaps{err: errors.New("serper unreachable")}
	p := New(st, maps, &mockDirectory{}, scraper.New(time.Second), scorer.New(&stubClassifier{}, nil), 0)

	events := drain(p.Run(context.Background(), search, Options{}))

	got, err := st.GetSearch(context.Background(), search.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SearchFailed, got.Status)

	st1 := stages(events)
	assert.Equal(t, StageError, st1[len(st1)-1])

	businesses, err := st.ListBusinesses(context.Background(), store.BusinessFilter{SearchID: search.ID})
	require.NoError(t, err)
	assert.Empty(t, businesses)
}

func TestPipelinePersistFailureSkipsCandidate(t *testing.T) {
	st := newTestStore(t)
	search := newTestSearch(t, st, model.SourceMaps)

	maps := &mockMaps{places: []serper.Place{
		{Title: "Hotel Uno", CID: "c1"},
		{Title: "Hotel Dos", CID: "c2"},
	}}
	wrapped := &failingStore{Store: st, failName: "Hotel Uno"}
	p := New(wrapped, maps, &mockDirectory{}, scraper.New(time.Second), scorer.New(&stubClassifier{}, nil), 0)

	drain(p.Run(context.Background(), search, Options{}))

	got, err := st.GetSearch(context.Background(), search.ID)
	require.NoError(t, err)
	// The run still completes; the failed candidate is simply absent.
	assert.Equal(t, model.SearchCompleted, got.Status)
	assert.Equal(t, 2, got.TotalResults)

	businesses, err := st.ListBusinesses(context.Background(), store.BusinessFilter{SearchID: search.ID})
	require.NoError(t, err)
	require.Len(t, businesses, 1)
	assert.Equal(t, "Hotel Dos", businesses[0].Name)
}

func TestPipelineLoadMoreDedupes(t *testing.T) {
	st := newTestStore(t)
	search := newTestSearch(t, st, model.SourceMaps)

	require.NoError(t, st.CreateBusiness(context.Background(), &model.Business{
		SearchID: search.ID, Name: "Hotel Repetido", ExternalID: "cid-dup",
	}))

	maps := &mockMaps{places: []serper.Place{
		{Title: "Hotel Repetido", CID: "cid-dup"},
		{Title: "Hotel Nuevo", CID: "cid-new"},
	}}
	p := New(st, maps, &mockDirectory{}, scraper.New(time.Second), scorer.New(&stubClassifier{}, nil), 0)

	drain(p.Run(context.Background(), search, Options{Page: 2, LoadMore: true}))

	businesses, err := st.ListBusinesses(context.Background(), store.BusinessFilter{SearchID: search.ID})
	require.NoError(t, err)
	require.Len(t, businesses, 2)

	got, err := st.GetSearch(context.Background(), search.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalResults)
}

func TestPipelineDirectorySourceUsesTitleFallback(t *testing.T) {
	st := newTestStore(t)
	search := newTestSearch(t, st, model.SourceDirectory)
	search.RequiredServices = nil

	dir := &mockDirectory{listings: []directory.Listing{
		{Name: "Lavanderia Hotel Plaza", Description: "servicio para hoteles", Phone: "(01) 445-6789"},
	}}
	// Classifier always fails; the directory path must still classify via
	// the search term in the listing title.
	sc := scorer.New(&stubClassifier{err: errors.New("api down")}, nil)
	p := New(st, &mockMaps{}, dir, scraper.New(time.Second), sc, 0)

	drain(p.Run(context.Background(), search, Options{}))

	got, err := st.GetSearch(context.Background(), search.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SearchCompleted, got.Status)

	businesses, err := st.ListBusinesses(context.Background(), store.BusinessFilter{SearchID: search.ID})
	require.NoError(t, err)
	require.Len(t, businesses, 1)

	analysis, err := st.GetAnalysisForBusiness(context.Background(), businesses[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, analysis.Confidence)
	assert.NotEmpty(t, analysis.DetectedServices)
}

func TestPriorityDistrictOrdering(t *testing.T) {
	candidates := []candidate{
		{Name: "C", Address: "Av. Tomas Marsano 3000, Surquillo"},
		{Name: "B", Address: "Calle Schell 100, Miraflores"},
		{Name: "D", Address: "Jr. Lampa 500, Cercado"},
		{Name: "A", Address: "Av. Camino Real 456, San Isidro"},
	}
	sortByPriorityDistrict(candidates)

	names := []string{candidates[0].Name, candidates[1].Name, candidates[2].Name, candidates[3].Name}
	// Priority districts in list order first, everything else stable.
	assert.Equal(t, []string{"B", "A", "C", "D"}, names)
}

func TestDeriveDecisionMakers(t *testing.T) {
	tests := []struct {
		name     string
		contacts *scraper.Contacts
		want     []model.DecisionMaker
	}{
		{
			name:     "nil contacts",
			contacts: nil,
			want:     nil,
		},
		{
			name:     "emails paired with phones",
			contacts: &scraper.Contacts{Emails: []string{"a@x.pe", "b@x.pe"}, Phones: []string{"+51 911 111 111"}},
			want: []model.DecisionMaker{
				{Name: "Contacto", Email: "a@x.pe", Phone: "+51 911 111 111", Confidence: 80, Source: "website"},
				{Name: "Contacto", Email: "b@x.pe", Confidence: 80, Source: "website"},
			},
		},
		{
			name:     "phones only",
			contacts: &scraper.Contacts{Phones: []string{"+51 922 222 222"}},
			want: []model.DecisionMaker{
				{Name: "Contacto", Phone: "+51 922 222 222", Confidence: 70, Source: "website"},
			},
		},
		{
			name:     "no contact data",
			contacts: &scraper.Contacts{Content: "solo texto"},
			want:     nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveDecisionMakers(tt.contacts))
		})
	}
}

var _ classifier.Classifier = (*stubClassifier)(nil)
