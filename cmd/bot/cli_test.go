package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestStatusCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"engine":{"mode":"simulate"}}`))
	}))
	defer srv.Close()

	out, err := runCLI(t, "status", "--api", srv.URL)
	require.NoError(t, err)

	var got map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "simulate", got["engine"]["mode"])
}

func TestModeCommandPostsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/mode", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "live", body["mode"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"mode":"live"}`))
	}))
	defer srv.Close()

	out, err := runCLI(t, "mode", "live", "--api", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, `"mode": "live"`)
}

func TestOrdersCommandSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"journal disabled"}`))
	}))
	defer srv.Close()

	_, err := runCLI(t, "orders", "--limit", "5", "--api", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal disabled")
}

func TestConfigCommandPrintsYAML(t *testing.T) {
	t.Setenv("BOT_MODE", "simulate")
	out, err := runCLI(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "mode: simulate")
	assert.Contains(t, out, "slug_prefix: btc-updown-15m")
}
