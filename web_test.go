/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	cfg    *Config
	gm     *GameManager
	router *httprouter.Router
}

func newTestServer(t *testing.T, mutate ...func(*Config)) *testServer {
	t.Helper()

	cfg := validConfig()
	cfg.sessionTimeout = 0
	for _, fn := range mutate {
		fn(cfg)
	}

	errs := make(chan error, 64)
	go drainErrors(errs)

	m := newMetrics()
	gm := newGameManager(cfg, m)

	t.Cleanup(func() {
		gm.closeAll()
		close(errs)
	})

	return &testServer{cfg: cfg, gm: gm, router: newRouter(cfg, gm, m, errs)}
}

func (s *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	return rec.Result()
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return string(data)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	resp := s.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ok\n", body(t, resp))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestVersion(t *testing.T) {
	s := newTestServer(t)

	resp := s.get(t, "/version")
	assert.Equal(t, "scavenger v"+releaseVersion+"\n", body(t, resp))
}

func TestRobots(t *testing.T) {
	s := newTestServer(t)

	resp := s.get(t, "/robots.txt")
	assert.Contains(t, body(t, resp), "Disallow: /hunt/")
}

func TestHomePage(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.prefix = "/fun" })

	resp := s.get(t, "/fun/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), `href="/fun/hunt"`)
}

func TestReferenceImage_Placeholder(t *testing.T) {
	s := newTestServer(t)

	resp := s.get(t, "/images/park-bench.jpg")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, body(t, resp), "<svg")
}

func TestAssets(t *testing.T) {
	s := newTestServer(t)

	resp := s.get(t, "/assets/hunt/app.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/javascript; charset=utf-8", resp.Header.Get("Content-Type"))

	resp = s.get(t, "/assets/hunt/../../main.go")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFavicon(t *testing.T) {
	s := newTestServer(t)

	resp := s.get(t, "/favicon.svg")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
}

func TestRedirectNewGame(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.prefix = "/fun" })

	resp := s.get(t, "/fun/hunt")
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Regexp(t, regexp.MustCompile(`^/fun/hunt/[A-Za-z0-9]{8}$`), resp.Header.Get("Location"))
}

func TestGamePage(t *testing.T) {
	s := newTestServer(t)

	resp := s.get(t, "/hunt/AbCd1234")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "app.js")

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == deviceCookieName {
			found = true
			assert.NotEmpty(t, c.Value)
		}
	}
	assert.True(t, found, "device cookie should be set")

	resp = s.get(t, "/hunt/short")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQRCode(t *testing.T) {
	s := newTestServer(t)

	resp := s.get(t, "/hunt/AbCd1234/qr")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body(t, resp), "\x89PNG"))

	resp = s.get(t, "/hunt/bad!id!!/qr")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPhoto_NotFound(t *testing.T) {
	s := newTestServer(t)

	resp := s.get(t, "/hunt/AbCd1234/photo/bench")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	s.gm.getHub("AbCd1234")

	resp = s.get(t, "/hunt/AbCd1234/photo/bench")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	resp := newTestServer(t).get(t, "/metrics")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	s := newTestServer(t, func(c *Config) { c.metrics = true })
	s.gm.getHub("AbCd1234")

	resp = s.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "scavenger_active_games 1")
}

func TestRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", realIP(r))

	r.Header.Set("X-Real-IP", "192.0.2.7")
	assert.Equal(t, "192.0.2.7:1234", realIP(r))

	r.Header.Set("CF-Connecting-IP", "2001:db8::1")
	assert.Equal(t, "[2001:db8::1]:1234", realIP(r))
}
