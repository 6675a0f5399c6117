package views

import (
	"net/http"

	"github.com/sweater-ventures/psph/app"
)

func init() {
	registerRoute(func(site *app.Application, router *http.ServeMux) {
		router.Handle("GET /confirmation", routeHandler(site, confirmationHandler))
	})
}

func confirmationHandler(site *app.Application, w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	err := ConfirmationPage(q.Get("firstName"), q.Get("appointment"), q.Get("topic")).Render(r.Context(), w)
	if err != nil {
		log(r.Context()).Error("Error rendering confirmation page", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}
