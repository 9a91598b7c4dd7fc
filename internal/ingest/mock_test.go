package ingest

import (
	"context"
	"errors"

	"github.com/martinbeasnunez/superscrap-sub000/internal/classifier"
	"github.com/martinbeasnunez/superscrap-sub000/internal/model"
	"github.com/martinbeasnunez/superscrap-sub000/internal/store"
	"github.com/martinbeasnunez/superscrap-sub000/pkg/directory"
	"github.com/martinbeasnunez/superscrap-sub000/pkg/serper"
)

type mockMaps struct {
	places []serper.Place
	err    error
	calls  int
}

func (m *mockMaps) Search(ctx context.Context, businessType, city string, page int) ([]serper.Place, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.places, nil
}

type mockDirectory struct {
	listings []directory.Listing
	err      error
}

func (m *mockDirectory) Search(ctx context.Context, query, city string) ([]directory.Listing, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.listings, nil
}

type stubClassifier struct {
	result *classifier.Classification
	err    error
}

func (s *stubClassifier) Classify(ctx context.Context, name, description, businessType string, required []string) (*classifier.Classification, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &classifier.Classification{
		DetectedServices: required,
		Confidence:       0.9,
		Evidence:         "clasificacion de prueba",
	}, nil
}

// failingStore wraps a real store and fails CreateBusiness for one name,
// for per-candidate isolation tests.
type failingStore struct {
	store.Store
	failName string
}

func (f *failingStore) CreateBusiness(ctx context.Context, b *model.Business) error {
	if b.Name == f.failName {
		return errors.New("disk full")
	}
	return f.Store.CreateBusiness(ctx, b)
}
