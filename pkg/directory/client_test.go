package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><body>
<article class="result listing" data-phone="+51 1 4567890" data-email="ventas@textiles.pe" data-website="https://textiles.pe" data-category="Textiles">
  <h2><a href="/e/1">Textiles <b>Andinos</b> SAC</a></h2>
  <span class="address">Av. Argentina 2020, Callao</span>
  <p class="description">Fabricación de sábanas y manteles para hoteles.</p>
</article>
<article class="listing" data-phone="">
  <h2>Lavandería Central</h2>
</article>
<article class="listing">
  <span class="address">sin nombre, se descarta</span>
</article>
</body></html>`

func TestSearch_ParsesListings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/buscar/lavanderia/lima", r.URL.Path)
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	listings, err := c.Search(context.Background(), "Lavanderia", "Lima")
	require.NoError(t, err)
	require.Len(t, listings, 2, "entries without a name are dropped")

	first := listings[0]
	assert.Equal(t, "Textiles Andinos SAC", first.Name)
	assert.Equal(t, "+51 1 4567890", first.Phone)
	assert.Equal(t, "ventas@textiles.pe", first.Email)
	assert.Equal(t, "Av. Argentina 2020, Callao", first.Address)
	assert.Contains(t, first.Description, "sábanas")
	assert.Equal(t, "https://textiles.pe", first.Website)
	assert.Equal(t, "Textiles", first.Category)

	assert.Equal(t, "Lavandería Central", listings[1].Name)
	assert.Empty(t, listings[1].Phone)
}

func TestSearch_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), "hotel", "Lima")
	assert.Error(t, err)
}
