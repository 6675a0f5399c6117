package views

import (
	"net/http"

	"github.com/sweater-ventures/psph/app"
)

func init() {
	registerRoute(func(site *app.Application, router *http.ServeMux) {
		router.Handle("/", routeHandler(site, notFound))
	})
}

func notFound(site *app.Application, w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		// forward to the schedule page
		w.Header().Set("Location", "/static/index.html")
		w.WriteHeader(http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := NotFoundPage().Render(r.Context(), w); err != nil {
		log(r.Context()).Error("Error rendering not found page", "err", err)
	}
}
