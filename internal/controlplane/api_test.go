package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/betbot/oddsbot/internal/engine"
	"github.com/betbot/oddsbot/internal/execution"
	"github.com/betbot/oddsbot/internal/journal"
	"github.com/betbot/oddsbot/internal/risk"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	err error
}

func (f fakeEngine) Status(context.Context) (engine.Status, error) {
	return engine.Status{Mode: "simulate", ReferencePrice: decimal.NewFromInt(100150), Trend: domain.TrendUp}, f.err
}

func (f fakeEngine) Positions(context.Context) ([]domain.Position, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Position{{MarketID: "m", OutcomeID: "up", Shares: decimal.RequireFromString("6.25")}}, nil
}

type fakeJournal struct{}

func (fakeJournal) Recent(context.Context, int) ([]journal.Entry, error) {
	return []journal.Entry{{ID: "1", TokenID: "up", Side: domain.SideBuy, Success: true}}, nil
}

func newTestAPI(eng StatusSource) (*API, *execution.ModeGateway, *risk.CircuitBreaker) {
	mode := execution.NewModeGateway(execution.NewSimulatedGateway(), execution.NewSimulatedGateway(), execution.ModeSimulate)
	cb := risk.NewCircuitBreaker(risk.Config{})
	return New(Deps{Engine: eng, Mode: mode, Journal: fakeJournal{}, Breaker: cb}), mode, cb
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStatusAndPositions(t *testing.T) {
	api, _, _ := newTestAPI(fakeEngine{})
	h := api.Router()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)

	w := do(t, h, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st struct {
		Engine struct {
			Mode           string `json:"mode"`
			ReferencePrice string `json:"reference_price"`
			Trend          string `json:"trend"`
		} `json:"engine"`
		Risk risk.State `json:"risk"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "simulate", st.Engine.Mode)
	assert.Equal(t, "100150", st.Engine.ReferencePrice)
	assert.Equal(t, "up", st.Engine.Trend)
	assert.False(t, st.Risk.Halted)

	w = do(t, h, http.MethodGet, "/positions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"shares":"6.25"`)

	w = do(t, h, http.MethodGet, "/orders?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"token_id":"up"`)
}

func TestStatus_EngineStopped(t *testing.T) {
	api, _, _ := newTestAPI(fakeEngine{err: engine.ErrStopped})
	w := do(t, api.Router(), http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestModeSwitch(t *testing.T) {
	api, mode, _ := newTestAPI(fakeEngine{})
	h := api.Router()

	w := do(t, h, http.MethodPost, "/mode", `{"mode":"live"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mode.IsLive())

	w = do(t, h, http.MethodPost, "/mode", `{"mode":"paper"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, mode.IsLive())

	do(t, h, http.MethodPost, "/mode", `{"mode":"simulate"}`)
	assert.False(t, mode.IsLive())
}

func TestRiskHaltResume(t *testing.T) {
	api, _, cb := newTestAPI(fakeEngine{})
	h := api.Router()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/risk/halt", "").Code)
	assert.ErrorIs(t, cb.AllowTrading(), risk.ErrCircuitBreakerOpen)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/risk/resume", "").Code)
	assert.NoError(t, cb.AllowTrading())
}
