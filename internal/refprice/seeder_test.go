package refprice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinanceSeeder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"97001.23000000"}`))
	}))
	defer srv.Close()

	p, err := NewBinanceSeeder(srv.URL, "").Seed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "97001.23", p.Price.String())
	assert.False(t, p.ObservedAt.IsZero())
}

func TestBinanceSeeder_PlainTextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain;charset=UTF-8")
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"96500.10000000"}`))
	}))
	defer srv.Close()

	p, err := NewBinanceSeeder(srv.URL, "BTCUSDT").Seed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "96500.1", p.Price.String())
}

func TestBinanceSeeder_BadPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"0"}`))
	}))
	defer srv.Close()

	_, err := NewBinanceSeeder(srv.URL, "BTCUSDT").Seed(context.Background())
	require.Error(t, err)
}
