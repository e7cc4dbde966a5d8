package sublink

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpn-reseller-bot/internal/provision"
)

func TestHandlerSubscription(t *testing.T) {
	nodes := []provision.Node{{PanelTitle: "P1", URI: "vless://aaa@h:443?type=tcp#P1"}}
	s := testService(nodes, true)
	mux := http.NewServeMux()
	s.RegisterHandlers(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/subscription/100500?token=" + s.SignToken("100500"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
}

func TestHandlerForbidden(t *testing.T) {
	s := testService(nil, true)
	mux := http.NewServeMux()
	s.RegisterHandlers(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/subscription/100500?token=nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandlerDebug(t *testing.T) {
	s := testService(nil, false)
	mux := http.NewServeMux()
	s.RegisterHandlers(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/subscription/debug/100500?token=" + s.SignToken("100500"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info DebugInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.True(t, info.TokenOK)
	assert.True(t, info.UserFound)
	assert.False(t, info.ActiveSub)
	assert.Equal(t, 0, info.Links)
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	s := testService(nil, true)
	mux := http.NewServeMux()
	s.RegisterHandlers(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/subscription/100500", "text/plain", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
