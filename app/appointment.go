package app

import (
	"errors"
	"net/mail"
	"net/url"
	"strings"
)

var ErrMissingFields = errors.New("missing or invalid required fields")

// Appointment is a schedule form submission.
type Appointment struct {
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	SchoolDistrict string
	School         string
	Topic          string
	OtherTopic     string
	Time           string
}

// pick returns the first non-blank value among keys. Older versions of the
// form posted human readable field names, which are still accepted.
func pick(form url.Values, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(form.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

// topics joins every non-blank topic value. The checkbox group posts one
// topic per checked box.
func topics(form url.Values) string {
	var out []string
	for _, t := range form["topic"] {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, ", ")
}

func ParseAppointment(form url.Values) Appointment {
	a := Appointment{
		FirstName:      pick(form, "firstName", "First Name", "First_Name"),
		LastName:       pick(form, "lastName", "Last Name", "Last_Name"),
		Email:          pick(form, "email", "_replyto"),
		Phone:          pick(form, "phone", "Phone Number", "Phone"),
		SchoolDistrict: pick(form, "schoolDistrict", "School District"),
		School:         pick(form, "school", "School"),
		Topic:          topics(form),
		OtherTopic:     pick(form, "otherTopic", "Other Topic Details"),
		Time:           pick(form, "appointment", "Proposed Appointment Time"),
	}
	if a.OtherTopic != "" && strings.Contains(a.Topic, "Other") {
		a.Topic = strings.ReplaceAll(a.Topic, "Other", a.OtherTopic)
	}
	return a
}

// IsHoneypot reports whether the hidden "website" field was filled in,
// which only bots do.
func IsHoneypot(form url.Values) bool {
	return strings.TrimSpace(form.Get("website")) != ""
}

func (a Appointment) FullName() string {
	return a.FirstName + " " + a.LastName
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	// reject display-name forms like "Jo <jo@example.com>"
	return addr.Address == s && strings.Contains(s[strings.LastIndex(s, "@")+1:], ".")
}

func (a Appointment) Validate() error {
	if a.FirstName == "" || a.LastName == "" || a.Time == "" || a.Topic == "" || !validEmail(a.Email) {
		return ErrMissingFields
	}
	return nil
}

// Debug summarizes which required fields were present, for the 400 response.
func (a Appointment) Debug() map[string]any {
	return map[string]any{
		"firstName":   a.FirstName != "",
		"lastName":    a.LastName != "",
		"email":       a.Email,
		"appointment": a.Time != "",
		"topic":       a.Topic != "",
	}
}
