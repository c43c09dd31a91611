package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bullion-backend/pkg/enums"
)

func TestGoldAPIProviderQuotesPerOunce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/XAU/INR", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("x-access-token"))
		_, _ = w.Write([]byte(`{"price": 217724.5, "price_gram_24k": 7000.01}`))
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPConfig{Name: ProviderGoldAPI, BaseURL: srv.URL, APIKey: "key-1", Currency: "inr"})
	require.NoError(t, err)

	quote, err := p.Quote(context.Background(), enums.CommodityGold)
	require.NoError(t, err)
	assert.Equal(t, UnitTroyOunce, quote.Unit)
	assert.Equal(t, "217724.5", quote.Price.String())
}

func TestGoldAPIProviderGramField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"price": 217724.5, "price_gram_24k": 7000.01}`))
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPConfig{Name: ProviderGoldAPI, BaseURL: srv.URL, APIKey: "k", Currency: "INR", Unit: UnitGram})
	require.NoError(t, err)

	quote, err := p.Quote(context.Background(), enums.CommodityGold)
	require.NoError(t, err)
	assert.Equal(t, "7000.01", quote.Price.String())
}

func TestMetalsAPIProviderInvertsRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "XAG", r.URL.Query().Get("symbols"))
		assert.Equal(t, "INR", r.URL.Query().Get("base"))
		_, _ = w.Write([]byte(`{"success": true, "rates": {"XAG": 0.0004}}`))
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPConfig{Name: ProviderMetalsAPI, BaseURL: srv.URL + "/", APIKey: "k", Currency: "INR"})
	require.NoError(t, err)

	quote, err := p.Quote(context.Background(), enums.CommoditySilver)
	require.NoError(t, err)
	assert.Equal(t, "2500", quote.Price.String())
}

func TestMetalsAPIProviderPrefersDirectRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": true, "rates": {"XAU": 0.0000046, "INRXAU": 217724.5}}`))
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPConfig{Name: ProviderMetalsAPI, BaseURL: srv.URL, APIKey: "k", Currency: "INR"})
	require.NoError(t, err)

	quote, err := p.Quote(context.Background(), enums.CommodityGold)
	require.NoError(t, err)
	assert.Equal(t, "217724.5", quote.Price.String())
}

func TestHTTPProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPConfig{Name: ProviderGoldAPI, BaseURL: srv.URL, APIKey: "k", Currency: "INR"})
	require.NoError(t, err)
	_, err = p.Quote(context.Background(), enums.CommodityGold)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "error": {"info": "invalid access key"}}`))
	}))
	defer failing.Close()
	p, err = NewHTTPProvider(HTTPConfig{Name: ProviderMetalsAPI, BaseURL: failing.URL, APIKey: "k", Currency: "INR"})
	require.NoError(t, err)
	_, err = p.Quote(context.Background(), enums.CommodityGold)
	require.ErrorContains(t, err, "invalid access key")

	_, err = NewHTTPProvider(HTTPConfig{Name: "unknown", BaseURL: srv.URL, APIKey: "k", Currency: "INR"})
	require.Error(t, err)
	_, err = NewHTTPProvider(HTTPConfig{Name: ProviderGoldAPI, BaseURL: srv.URL, Currency: "INR"})
	require.Error(t, err)
}
