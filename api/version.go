package api

import (
	"net/http"

	"github.com/sweater-ventures/psph/app"
	"github.com/sweater-ventures/psph/config"
)

func init() {
	registerRoute(func(site *app.Application, router *http.ServeMux) {
		router.Handle("GET /version", routeHandler(site, versionApiHandler))
	})
}

type VersionResponse struct {
	App     string `json:"app"`
	Version string `json:"version"`
}

func versionApiHandler(site *app.Application, w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, VersionResponse{
		App:     "psph",
		Version: config.Version,
	})
}
