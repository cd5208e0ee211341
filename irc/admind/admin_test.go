package admind

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presbrey/ircd/irc"
	"github.com/presbrey/ircd/irc/config"
	"github.com/presbrey/ircd/irc/modlog"
)

const token = "test-token"

const testConfig = `
server:
  name: admin.test
admin:
  bearer_tokens: [test-token]
modules: [modlog]
tags:
  modlog:
    - mode: ban
`

type discard struct{}

func (discard) WriteLine(string) error { return nil }
func (discard) Close() error           { return nil }

func setup(t *testing.T) (*irc.Server, *Server) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ircd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	s := irc.NewServer(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(cancel)

	var loadErr error
	require.NoError(t, s.Do(context.Background(), func() { loadErr = s.LoadModules() }))
	require.NoError(t, loadErr)
	return s, New(s)
}

// populate creates #chan with an op, a member and one ban
func populate(t *testing.T, s *irc.Server) {
	t.Helper()
	var err error
	require.NoError(t, s.Do(context.Background(), func() {
		var op, member *irc.User
		if op, err = s.Connect("op", "~op", "host.test", discard{}); err != nil {
			return
		}
		if member, err = s.Connect("member", "~member", "host.test", discard{}); err != nil {
			return
		}
		s.Join(op, "#chan")
		s.Join(member, "#chan")
		s.Execute(op, "MODE", []string{"#chan", "+b", "troll"})
	}))
	require.NoError(t, err)
}

func request(t *testing.T, a *Server, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRequiresBearerToken(t *testing.T) {
	_, a := setup(t)

	rec := request(t, a, http.MethodGet, "/api/stats", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(t, a, http.MethodGet, "/api/stats", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStats(t *testing.T) {
	s, a := setup(t)
	populate(t, s)

	rec := request(t, a, http.MethodGet, "/api/stats", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats irc.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "admin.test", stats.Name)
	assert.Equal(t, 2, stats.Users)
	assert.Equal(t, 1, stats.Channels)
	assert.Equal(t, []string{modlog.Name}, stats.Modules)
}

func TestChannels(t *testing.T) {
	s, a := setup(t)

	rec := request(t, a, http.MethodGet, "/api/channels", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	populate(t, s)
	rec = request(t, a, http.MethodGet, "/api/channels", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var channels []ChannelInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &channels))
	require.Len(t, channels, 1)
	assert.Equal(t, "#chan", channels[0].Name)
	assert.Equal(t, 2, channels[0].Members)
	assert.Equal(t, "+nt", channels[0].Modes)
}

func TestChannelDetail(t *testing.T) {
	s, a := setup(t)
	populate(t, s)

	rec := request(t, a, http.MethodGet, "/api/channels/chan", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail ChannelDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "#chan", detail.Name)
	require.Len(t, detail.MemberList, 2)
	assert.Equal(t, MemberInfo{Nick: "member", Rank: "none"}, detail.MemberList[0])
	assert.Equal(t, MemberInfo{Nick: "op", Prefixes: "@", Rank: "op"}, detail.MemberList[1])
	require.Len(t, detail.Lists["ban"], 1)
	assert.Equal(t, "troll!*@*", detail.Lists["ban"][0].Mask)
	assert.Empty(t, detail.Lists["invex"])

	rec = request(t, a, http.MethodGet, "/api/channels/%23chan", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = request(t, a, http.MethodGet, "/api/channels/nowhere", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModlogHistory(t *testing.T) {
	s, a := setup(t)
	populate(t, s)

	rec := request(t, a, http.MethodGet, "/api/modlog/chan", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []modlog.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "ban", entries[0].Mode)
	assert.Equal(t, "troll!*@*", entries[0].Param)
	assert.Equal(t, "op!~op@host.test", entries[0].Setter)

	rec = request(t, a, http.MethodGet, "/api/modlog/chan?limit=0", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = request(t, a, http.MethodGet, "/api/modlog/empty?limit=5", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestUnloadModule(t *testing.T) {
	s, a := setup(t)

	rec := request(t, a, http.MethodPost, "/api/modules/unload", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "module")

	rec = request(t, a, http.MethodPost, "/api/modules/unload", `{"module":"nosuch"}`, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = request(t, a, http.MethodPost, "/api/modules/unload", `{"module":"modlog"}`, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	var loaded bool
	require.NoError(t, s.Do(context.Background(), func() {
		_, loaded = s.Module(modlog.Name)
	}))
	assert.False(t, loaded)

	rec = request(t, a, http.MethodGet, "/api/modlog/chan", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRehash(t *testing.T) {
	s, a := setup(t)

	path := s.Config().Source
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(testConfig, "admin.test", "renamed.test", 1)), 0o600))

	rec := request(t, a, http.MethodPost, "/api/rehash", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var name string
	require.NoError(t, s.Do(context.Background(), func() { name = s.Name() }))
	assert.Equal(t, "renamed.test", name)

	require.NoError(t, os.WriteFile(path, []byte(testConfig+"    - mode: nosuch\n"), 0o600))
	rec = request(t, a, http.MethodPost, "/api/rehash", "", true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "modlog")
}

func TestMetricsEndpoint(t *testing.T) {
	_, a := setup(t)

	request(t, a, http.MethodGet, "/api/stats", "", true)
	rec := request(t, a, http.MethodGet, "/metrics", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ircd_admin_requests_total")

	rec = request(t, a, http.MethodGet, "/metrics", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServerClosed(t *testing.T) {
	s := irc.NewServer(config.Default())
	s.Config().Admin.BearerTokens = []string{token}
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		s.Run(ctx)
	}()
	cancel()
	<-stopped

	rec := request(t, New(s), http.MethodGet, "/api/stats", "", true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
