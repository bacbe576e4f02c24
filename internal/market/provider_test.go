package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowStartAndSlug(t *testing.T) {
	at := time.Unix(1765985400+437, 0)
	start := WindowStart(at, 15*time.Minute)
	assert.Equal(t, int64(1765985400), start.Unix())
	assert.Equal(t, "btc-updown-15m-1765985400", Slug("btc-updown-15m", start))
}

func jsonContent(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}
}

func newProvider(t *testing.T, gamma, crypto http.HandlerFunc, now time.Time) *GammaProvider {
	t.Helper()
	return newRawProvider(t, jsonContent(gamma), jsonContent(crypto), now)
}

// newRawProvider 响应不带 Content-Type
func newRawProvider(t *testing.T, gamma, crypto http.HandlerFunc, now time.Time) *GammaProvider {
	t.Helper()
	gs := httptest.NewServer(gamma)
	cs := httptest.NewServer(crypto)
	t.Cleanup(gs.Close)
	t.Cleanup(cs.Close)

	cfg := DefaultConfig()
	cfg.GammaURL = gs.URL
	cfg.CryptoPriceURL = cs.URL
	p := NewGammaProvider(cfg)
	p.SetClock(func() time.Time { return now })
	return p
}

func TestGammaProvider_Current(t *testing.T) {
	now := time.Unix(1765985400+60, 0)
	var gotSlug, gotStart string
	p := newProvider(t,
		func(w http.ResponseWriter, r *http.Request) {
			gotSlug = r.URL.Query().Get("slug")
			_, _ = w.Write([]byte(`[{"id":"1","conditionId":"0xcond","slug":"btc-updown-15m-1765985400",
				"outcomes":"[\"Down\", \"Up\"]","outcomePrices":"[\"0.6\", \"0.4\"]",
				"clobTokenIds":"[\"tok-down\", \"tok-up\"]"}]`))
		},
		func(w http.ResponseWriter, r *http.Request) {
			gotStart = r.URL.Query().Get("eventStartTime")
			_, _ = w.Write([]byte(`{"openPrice":100000.5,"closePrice":null,"completed":false}`))
		}, now)

	snap, err := p.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "btc-updown-15m-1765985400", gotSlug)
	assert.Equal(t, "2025-12-17T15:30:00Z", gotStart)

	assert.Equal(t, "0xcond", snap.MarketID)
	assert.Equal(t, "tok-up", snap.OutcomeAID)
	assert.Equal(t, "tok-down", snap.OutcomeBID)
	assert.Equal(t, "0.4", snap.OutcomeAPrice.String())
	assert.Equal(t, "0.6", snap.OutcomeBPrice.String())
	assert.Equal(t, "100000.5", snap.ThresholdValue.String())
	assert.Equal(t, int64(1765985400+900), snap.WindowEnd.Unix())
	assert.True(t, snap.IsValid())
	assert.True(t, snap.Contains(now))
}

func TestGammaProvider_CurrentWithoutContentType(t *testing.T) {
	now := time.Unix(1765985400+60, 0)
	p := newRawProvider(t,
		func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"conditionId":"c","outcomes":"[\"Up\",\"Down\"]","outcomePrices":"[\"0.55\",\"0.45\"]","clobTokenIds":"[\"a\",\"b\"]"}]`))
		},
		func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"openPrice":99000}`))
		}, now)

	snap, err := p.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c", snap.MarketID)
	assert.Equal(t, "a", snap.OutcomeAID)
	assert.Equal(t, "0.55", snap.OutcomeAPrice.String())
	assert.Equal(t, "99000", snap.ThresholdValue.String())
}

func TestGammaProvider_ThresholdCachedPerWindow(t *testing.T) {
	now := time.Unix(1765985400+60, 0)
	var cryptoHits atomic.Int32
	p := newProvider(t,
		func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"conditionId":"c","outcomePrices":"[\"0.5\",\"0.5\"]","clobTokenIds":"[\"a\",\"b\"]"}]`))
		},
		func(w http.ResponseWriter, r *http.Request) {
			cryptoHits.Add(1)
			_, _ = w.Write([]byte(`{"openPrice":100000}`))
		}, now)
	p.SetClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		_, err := p.Current(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), cryptoHits.Load())

	// 下一个周期重新查询
	now = now.Add(15 * time.Minute)
	_, err := p.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), cryptoHits.Load())
}

func TestGammaProvider_NotFound(t *testing.T) {
	crypto := func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"openPrice":1}`))
	}
	empty := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, crypto, time.Now())
	_, err := empty.Current(context.Background())
	assert.ErrorIs(t, err, ErrMarketNotFound)

	missing := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}, crypto, time.Now())
	_, err = missing.Current(context.Background())
	assert.ErrorIs(t, err, ErrMarketNotFound)
}

func TestGammaProvider_ThresholdMissing(t *testing.T) {
	p := newProvider(t,
		func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"conditionId":"c","outcomePrices":"[\"0.5\",\"0.5\"]","clobTokenIds":"[\"a\",\"b\"]"}]`))
		},
		func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"openPrice":null}`))
		}, time.Now())

	_, err := p.Current(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMarketNotFound)
}

func TestToSnapshot_MissingQuotes(t *testing.T) {
	snap, err := toSnapshot(gammaMarket{ConditionID: "c", ClobTokenIDs: `["a","b"]`, OutcomePrices: `["bad",""]`})
	require.NoError(t, err)
	assert.Equal(t, "a", snap.OutcomeAID)
	assert.True(t, snap.OutcomeAPrice.IsZero())
	assert.True(t, snap.OutcomeBPrice.IsZero())

	_, err = toSnapshot(gammaMarket{ClobTokenIDs: `["only-one"]`})
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	cfg := DefaultConfig()
	cfg.Window = time.Second
	assert.Error(t, cfg.Validate())
}
