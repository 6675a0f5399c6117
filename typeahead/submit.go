package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
)

type submitResponse struct {
	OK    bool           `json:"ok"`
	Error string         `json:"error"`
	Debug map[string]any `json:"debug"`
}

func (cmd *SubmitCmd) form() url.Values {
	form := url.Values{
		"firstName":   {cmd.FirstName},
		"lastName":    {cmd.LastName},
		"email":       {cmd.Email},
		"appointment": {cmd.Appointment},
	}
	set := func(k, v string) {
		if v != "" {
			form.Set(k, v)
		}
	}
	set("phone", cmd.Phone)
	set("schoolDistrict", cmd.SchoolDistrict)
	set("school", cmd.School)
	set("otherTopic", cmd.OtherTopic)
	for _, t := range cmd.Topics {
		form.Add("topic", t)
	}
	return form
}

func runSubmit(cmd *SubmitCmd, out io.Writer) error {
	client := cleanhttp.DefaultClient()
	endpoint := strings.TrimRight(cmd.URL, "/") + "/api/send-email"

	resp, err := client.PostForm(endpoint, cmd.form())
	if err != nil {
		return fmt.Errorf("posting appointment: %w", err)
	}
	defer resp.Body.Close()

	var body submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("reading response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !body.OK {
		if len(body.Debug) > 0 {
			debug, _ := json.Marshal(body.Debug)
			return fmt.Errorf("%s (status %d): %s", body.Error, resp.StatusCode, debug)
		}
		return fmt.Errorf("%s (status %d)", body.Error, resp.StatusCode)
	}
	fmt.Fprintf(out, "Appointment request sent for %s %s\n", cmd.FirstName, cmd.LastName)
	return nil
}
