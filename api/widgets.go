package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sweater-ventures/psph/app"
)

func init() {
	registerRoute(func(site *app.Application, router *http.ServeMux) {
		router.Handle("POST /widgets", routeHandler(site, createWidgetHandler))
		router.Handle("GET /widgets/{id}", routeHandler(site, getWidgetHandler))
		router.Handle("DELETE /widgets/{id}", routeHandler(site, deleteWidgetHandler))
		router.Handle("POST /widgets/{id}/events", routeHandler(site, widgetEventHandler))
		router.Handle("GET /widgets/{id}/stream", routeHandler(site, widgetStreamHandler))
	})
}

type CreateWidgetRequest struct {
	Field   string `json:"field"`
	InputID string `json:"input_id"`
}

type WidgetResponse struct {
	ID              string            `json:"id"`
	Field           app.ListID        `json:"field"`
	Snapshot        app.Snapshot      `json:"snapshot"`
	InputAttributes map[string]string `json:"input_attributes"`
}

// WidgetEventRequest is one DOM event forwarded from a page. Type is the
// lower-cased DOM event name, plus "search" to run a lookup immediately.
type WidgetEventRequest struct {
	Type   string `json:"type"`
	Value  string `json:"value"`
	Key    string `json:"key"`
	Index  int    `json:"index"`
	Target string `json:"target"`
}

type WidgetEventResponse struct {
	Consumed        bool              `json:"consumed"`
	Snapshot        app.Snapshot      `json:"snapshot"`
	InputAttributes map[string]string `json:"input_attributes"`
}

func widgetResponse(w *app.Widget) WidgetResponse {
	snap := w.Controller.Snapshot()
	return WidgetResponse{
		ID:              w.ID,
		Field:           w.Field,
		Snapshot:        snap,
		InputAttributes: snap.InputAttributes(),
	}
}

func createWidgetHandler(site *app.Application, w http.ResponseWriter, r *http.Request) {
	var req CreateWidgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJsonError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	field, err := app.ParseListID(req.Field)
	if err != nil {
		writeJsonError(w, http.StatusBadRequest, "field must be district or school")
		return
	}

	widget, err := site.NewWidget(field, req.InputID)
	if err != nil {
		log(r.Context()).Error("Failed to create widget", "error", err)
		writeJsonError(w, http.StatusInternalServerError, "Failed to create widget")
		return
	}
	log(r.Context()).Debug("Widget created", "widget_id", widget.ID, "field", field)
	writeJsonResponse(w, http.StatusCreated, widgetResponse(widget))
}

func lookupWidget(site *app.Application, w http.ResponseWriter, r *http.Request) *app.Widget {
	widget := site.Widgets.Get(r.PathValue("id"))
	if widget == nil {
		writeJsonError(w, http.StatusNotFound, "Widget not found")
	}
	return widget
}

func getWidgetHandler(site *app.Application, w http.ResponseWriter, r *http.Request) {
	widget := lookupWidget(site, w, r)
	if widget == nil {
		return
	}
	writeJsonResponse(w, http.StatusOK, widgetResponse(widget))
}

func deleteWidgetHandler(site *app.Application, w http.ResponseWriter, r *http.Request) {
	widget := lookupWidget(site, w, r)
	if widget == nil {
		return
	}
	site.Widgets.Delete(widget.ID)
	w.WriteHeader(http.StatusNoContent)
}

// dispatchWidgetEvent applies one event to the controller and reports
// whether the page should suppress the event's default action.
func dispatchWidgetEvent(r *http.Request, c *app.Controller, ev WidgetEventRequest) (bool, error) {
	switch strings.ToLower(ev.Type) {
	case "input":
		c.Input(ev.Value)
	case "compositionstart":
		c.CompositionStart()
	case "compositionend":
		c.CompositionEnd(ev.Value)
	case "search":
		c.SearchValue(r.Context(), ev.Value)
	case "keydown":
		return c.KeyDown(ev.Key), nil
	case "pointerenter", "mouseenter":
		c.PointerEnter(ev.Index)
	case "pointerdown", "mousedown":
		return c.PointerDown(), nil
	case "click":
		return c.Click(ev.Index), nil
	case "hover", "mouseover":
		c.HoverInput()
	case "focus":
		target, err := app.ParseTarget(ev.Target)
		if err != nil {
			return false, err
		}
		c.Focus(target)
	case "blur":
		target, err := app.ParseTarget(ev.Target)
		if err != nil {
			return false, err
		}
		c.Blur(target)
	case "clickoutside":
		c.ClickOutside()
	default:
		return false, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return false, nil
}

func widgetEventHandler(site *app.Application, w http.ResponseWriter, r *http.Request) {
	widget := lookupWidget(site, w, r)
	if widget == nil {
		return
	}
	var ev WidgetEventRequest
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJsonError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	consumed, err := dispatchWidgetEvent(r, widget.Controller, ev)
	if err != nil {
		writeJsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := widget.Controller.Snapshot()
	writeJsonResponse(w, http.StatusOK, WidgetEventResponse{
		Consumed:        consumed,
		Snapshot:        snap,
		InputAttributes: snap.InputAttributes(),
	})
}

// widgetStreamHandler streams a widget's renders and committed values as
// server-sent events until the client goes away or the widget is deleted.
func widgetStreamHandler(site *app.Application, w http.ResponseWriter, r *http.Request) {
	widget := lookupWidget(site, w, r)
	if widget == nil {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJsonError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	messages, unsubscribe := site.EventBus.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	snap := widget.Controller.Snapshot()
	if err := writeSSE(w, app.BusMessage{Type: app.BusMessageRender, WidgetID: widget.ID, Snapshot: &snap}); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-messages:
			if msg.WidgetID != widget.ID {
				continue
			}
			if err := writeSSE(w, msg); err != nil {
				log(r.Context()).Debug("Widget stream write failed", "widget_id", widget.ID, "error", err)
				return
			}
			flusher.Flush()
			if msg.Type == app.BusMessageClosed {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, msg app.BusMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if msg.ID != 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", msg.ID); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, data)
	return err
}
