package api

import (
	"net/http"
	"strings"

	"github.com/sweater-ventures/psph/app"
)

func init() {
	registerRoute(func(site *app.Application, router *http.ServeMux) {
		// no method in the pattern so other methods get the JSON 405 below
		router.Handle("/send-email", routeHandler(site, sendEmailHandler))
	})
}

type SendEmailResponse struct {
	OK    bool           `json:"ok"`
	Error string         `json:"error,omitempty"`
	Debug map[string]any `json:"debug,omitempty"`
}

const maxFormBytes = 1 << 20

func sendEmailHandler(site *app.Application, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJsonResponse(w, http.StatusMethodNotAllowed, SendEmailResponse{Error: "Method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(maxFormBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		writeJsonResponse(w, http.StatusBadRequest, SendEmailResponse{Error: "Invalid form body"})
		return
	}

	if app.IsHoneypot(r.PostForm) {
		log(r.Context()).Info("Honeypot field filled, dropping submission")
		writeJsonResponse(w, http.StatusOK, SendEmailResponse{OK: true})
		return
	}

	appt := app.ParseAppointment(r.PostForm)
	if err := appt.Validate(); err != nil {
		writeJsonResponse(w, http.StatusBadRequest, SendEmailResponse{
			Error: "Missing or invalid required fields",
			Debug: appt.Debug(),
		})
		return
	}

	if err := site.Mail.Submit(r.Context(), appt); err != nil {
		writeJsonResponse(w, http.StatusInternalServerError, SendEmailResponse{Error: "Mail send failed"})
		return
	}
	log(r.Context()).Info("Appointment request relayed", "district", appt.SchoolDistrict, "school", appt.School)
	writeJsonResponse(w, http.StatusOK, SendEmailResponse{OK: true})
}
