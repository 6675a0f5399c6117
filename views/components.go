package views

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
	"github.com/sweater-ventures/psph/app"
)

type attr struct {
	key   string
	value string
	flag  bool // rendered bare, like hidden
}

func boolAttr(key string) attr { return attr{key: key, flag: true} }

// el renders <tag attrs>children</tag>.
func el(tag string, attrs []attr, children ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<"+tag); err != nil {
			return err
		}
		for _, a := range attrs {
			s := " " + a.key
			if !a.flag {
				s += `="` + templ.EscapeString(a.value) + `"`
			}
			if _, err := io.WriteString(w, s); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, ">"); err != nil {
			return err
		}
		if err := templ.Join(children...).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</"+tag+">")
		return err
	})
}

func text(s string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, templ.EscapeString(s))
		return err
	})
}

var loadingRow = templ.Raw(`<div class="suggestion-item is-loading" aria-disabled="true">Loading…</div>`)

func optionRow(opt app.Option) templ.Component {
	return el("div", []attr{
		{key: "id", value: opt.ID},
		{key: "class", value: templ.Classes("suggestion-item", templ.KV("is-active", opt.Active)).String()},
		{key: "role", value: "option"},
		{key: "aria-selected", value: strconv.FormatBool(opt.Active)},
	}, text(opt.Text))
}

// ListboxTemplate renders the suggestion list for a widget snapshot. The
// list is hidden unless the widget is expanded.
func ListboxTemplate(snap app.Snapshot) templ.Component {
	attrs := []attr{
		{key: "id", value: snap.ListboxID},
		{key: "class", value: "suggestions"},
		{key: "role", value: "listbox"},
	}
	if !snap.Expanded {
		attrs = append(attrs, boolAttr("hidden"))
	}
	var rows []templ.Component
	if snap.Loading {
		rows = append(rows, loadingRow)
	}
	for _, opt := range snap.Options {
		rows = append(rows, optionRow(opt))
	}
	return el("div", attrs, rows...)
}

// layout wraps the children passed in the context in the site's page shell.
func layout(title string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		body := templ.GetChildren(ctx)
		ctx = templ.ClearChildren(ctx)
		return templ.Join(
			templ.Raw("<!DOCTYPE html>"),
			el("html", []attr{{key: "lang", value: "en"}},
				el("head", nil,
					templ.Raw(`<meta charset="UTF-8"><meta name="viewport" content="width=device-width, initial-scale=1.0">`),
					el("title", nil, text(title+" | PSPH")),
					templ.Raw(`<link rel="stylesheet" href="/static/style.css">`),
				),
				el("body", nil, el("main", []attr{{key: "class", value: "container"}}, body)),
			),
		).Render(ctx, w)
	})
}

func page(title string, body ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return layout(title).Render(templ.WithChildren(ctx, templ.Join(body...)), w)
	})
}

var backLink = templ.Raw(`<p><a href="/">Back to scheduling</a></p>`)

func detail(label, id, value string) templ.Component {
	if value == "" {
		return templ.NopComponent
	}
	return templ.Join(el("dt", nil, text(label)), el("dd", []attr{{key: "id", value: id}}, text(value)))
}

// ConfirmationPage thanks the visitor after the schedule form was relayed.
func ConfirmationPage(firstName, appointment, topic string) templ.Component {
	heading := "Thank you!"
	if firstName != "" {
		heading = "Thank you, " + firstName + "!"
	}
	return page("Appointment Confirmed",
		el("h1", nil, text(heading)),
		el("p", nil, text("Your appointment request has been received. A confirmation email is on its way.")),
		el("dl", []attr{{key: "class", value: "confirmation-details"}},
			detail("Appointment", "confirm-appointment", appointment),
			detail("Topic", "confirm-topic", topic),
		),
		backLink,
	)
}

func NotFoundPage() templ.Component {
	return page("Not Found", el("h1", nil, text("Page not found")), backLink)
}
