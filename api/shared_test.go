package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sweater-ventures/psph/app"
)

// callHandler invokes an appHandler via routeHandler with the given app and request.
func callHandler(t *testing.T, site *app.Application, handler appHandler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	routeHandler(site, handler).ServeHTTP(rec, req)
	return rec
}

// newTestServer serves every registered API route the way main does.
func newTestServer(t *testing.T, site *app.Application) *httptest.Server {
	t.Helper()
	router := http.NewServeMux()
	AddApis(site, router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}
