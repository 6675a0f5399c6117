package views

import (
	"net/http"

	"github.com/sweater-ventures/psph/app"
)

func init() {
	registerRoute(func(site *app.Application, router *http.ServeMux) {
		router.Handle("GET /widgets/{id}/listbox", routeHandler(site, listboxHandler))
	})
}

// listboxHandler renders a widget's current suggestion list as an HTML
// fragment for pages that swap it in after each event.
func listboxHandler(site *app.Application, w http.ResponseWriter, r *http.Request) {
	widget := site.Widgets.Get(r.PathValue("id"))
	if widget == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := ListboxTemplate(widget.Controller.Snapshot()).Render(r.Context(), w); err != nil {
		log(r.Context()).Error("Error rendering listbox", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}
