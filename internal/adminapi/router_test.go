package adminapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrti/rtinode/internal/dispatch"
	"github.com/openrti/rtinode/internal/logger"
	"github.com/openrti/rtinode/internal/node"
	"github.com/openrti/rtinode/internal/serverloop"
	"github.com/openrti/rtinode/internal/wire"
	"github.com/openrti/rtinode/internal/wire/handshake"
)

type dropSender struct{}

func (dropSender) Send(wire.Message) {}
func (dropSender) Close()            {}

func newTestServer(t *testing.T, auth *Auth) (*Server, *serverloop.Loop) {
	t.Helper()
	log := logger.NewTesting(io.Discard)
	d := dispatch.New(node.New("test"), log, nil)
	loop := serverloop.NewLoop(d, log)
	go loop.Run()
	t.Cleanup(func() {
		loop.PostDone()
		loop.Wait()
	})
	return NewServer(loop, log, auth), loop
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListFederations(t *testing.T) {
	s, loop := newTestServer(t, nil)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	connect, err := loop.PostConnect(dropSender{}, handshake.Options{})
	require.NoError(t, err)
	loop.PostMessage(&wire.CreateFederationExecutionRequest{FederationName: "f"}, connect)

	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/federations")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var feds []FederationSummary
		if err := json.NewDecoder(resp.Body).Decode(&feds); err != nil {
			return false
		}
		return len(feds) == 1 && feds[0].Name == "f"
	}, time.Second, 10*time.Millisecond)
}

func TestFederatesOfUnknownFederation(t *testing.T) {
	s, _ := newTestServer(t, nil)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/federations/missing/federates")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuthGuardsEndpoints(t *testing.T) {
	auth := NewAuth("secret", "test")
	s, _ := newTestServer(t, auth)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	// No token: rejected.
	resp, err := http.Get(srv.URL + "/federations")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Health stays open.
	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// A minted token passes.
	token, err := auth.IssueToken("operator", time.Minute)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/federations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// A token signed with another secret fails.
	other := NewAuth("other", "test")
	badToken, err := other.IssueToken("operator", time.Minute)
	require.NoError(t, err)
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/federations", nil)
	req.Header.Set("Authorization", "Bearer "+badToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTokenExpiry(t *testing.T) {
	auth := NewAuth("secret", "test")
	token, err := auth.IssueToken("operator", -time.Minute)
	require.NoError(t, err)
	assert.Error(t, auth.Verify(token))
}
