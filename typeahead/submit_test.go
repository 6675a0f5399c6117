package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitCmd_Form(t *testing.T) {
	cmd := &SubmitCmd{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       "ada@example.com",
		School:      "Lincoln High",
		Topics:      []string{"Enrollment", "Other"},
		OtherTopic:  "Transport",
		Appointment: "Mon 10am",
	}
	form := cmd.form()

	assert.Equal(t, "Ada", form.Get("firstName"))
	assert.Equal(t, "Lincoln High", form.Get("school"))
	assert.Equal(t, []string{"Enrollment", "Other"}, form["topic"])
	assert.Equal(t, "Transport", form.Get("otherTopic"))
	_, hasPhone := form["phone"]
	assert.False(t, hasPhone)
}

func TestRunSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/send-email", r.URL.Path)
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("email") == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"ok":false,"error":"Missing or invalid required fields","debug":{"email":"bad"}}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	cmd := &SubmitCmd{
		URL:         srv.URL,
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       "ada@example.com",
		Topics:      []string{"Enrollment"},
		Appointment: "Mon 10am",
	}
	require.NoError(t, runSubmit(cmd, &out))
	assert.Equal(t, "Appointment request sent for Ada Lovelace\n", out.String())

	cmd.Email = "bad"
	err := runSubmit(cmd, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing or invalid required fields (status 400)")
	assert.Contains(t, err.Error(), `"email":"bad"`)
}
