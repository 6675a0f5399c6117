package app

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Widget is an autocomplete controller hosted on the server for a page that
// drives it over the widget API.
type Widget struct {
	ID         string
	Field      ListID
	Controller *Controller
}

type widgetEntry struct {
	widget    *Widget
	expiresAt time.Time
}

// WidgetStore holds live widgets. A widget expires after ttl without being
// looked up; expired widgets are closed and removed when next accessed or by
// the background sweep, whichever comes first.
type WidgetStore struct {
	mu      sync.Mutex
	widgets map[string]*widgetEntry
	ttl     time.Duration
	now     func() time.Time
	metrics *Metrics
	onClose func(id string)
}

func NewWidgetStore(ttl time.Duration, metrics *Metrics) *WidgetStore {
	return &WidgetStore{
		widgets: make(map[string]*widgetEntry),
		ttl:     ttl,
		now:     time.Now,
		metrics: metrics,
	}
}

// OnClose registers fn to run after a widget is closed and removed, whether
// by Delete, expiry or CloseAll.
func (s *WidgetStore) OnClose(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = fn
}

func (s *WidgetStore) closeWidget(w *Widget, onClose func(string)) {
	w.Controller.Close()
	if onClose != nil {
		onClose(w.ID)
	}
}

func (s *WidgetStore) Add(w *Widget) {
	s.mu.Lock()
	s.widgets[w.ID] = &widgetEntry{widget: w, expiresAt: s.now().Add(s.ttl)}
	n := len(s.widgets)
	s.mu.Unlock()
	s.metrics.SetActiveWidgets(n)
}

// Get returns the widget and extends its lifetime, or nil if it is unknown
// or expired.
func (s *WidgetStore) Get(id string) *Widget {
	s.mu.Lock()
	entry, ok := s.widgets[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	now := s.now()
	if now.After(entry.expiresAt) {
		delete(s.widgets, id)
		n, onClose := len(s.widgets), s.onClose
		s.mu.Unlock()
		s.closeWidget(entry.widget, onClose)
		s.metrics.SetActiveWidgets(n)
		return nil
	}
	entry.expiresAt = now.Add(s.ttl)
	s.mu.Unlock()
	return entry.widget
}

// Sweep closes and removes every expired widget and returns how many went.
func (s *WidgetStore) Sweep() int {
	s.mu.Lock()
	now := s.now()
	var expired []*Widget
	for id, entry := range s.widgets {
		if now.After(entry.expiresAt) {
			expired = append(expired, entry.widget)
			delete(s.widgets, id)
		}
	}
	n, onClose := len(s.widgets), s.onClose
	s.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}
	for _, w := range expired {
		s.closeWidget(w, onClose)
	}
	s.metrics.SetActiveWidgets(n)
	slog.Debug("Swept expired widgets", "expired", len(expired), "remaining", n)
	return len(expired)
}

// StartSweeper runs Sweep every interval until the returned stop func is
// called.
func (s *WidgetStore) StartSweeper(interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// sweepInterval checks often enough that a widget outlives its ttl by at most
// half again, within sane bounds.
func sweepInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/2, time.Second), time.Minute)
}

// Delete closes and removes the widget.
func (s *WidgetStore) Delete(id string) {
	s.mu.Lock()
	entry, ok := s.widgets[id]
	delete(s.widgets, id)
	n, onClose := len(s.widgets), s.onClose
	s.mu.Unlock()
	if ok {
		s.closeWidget(entry.widget, onClose)
		s.metrics.SetActiveWidgets(n)
	}
}

func (s *WidgetStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.widgets)
}

// CloseAll closes every widget; used on shutdown.
func (s *WidgetStore) CloseAll() {
	s.mu.Lock()
	entries, onClose := s.widgets, s.onClose
	s.widgets = make(map[string]*widgetEntry)
	s.mu.Unlock()
	for _, entry := range entries {
		s.closeWidget(entry.widget, onClose)
	}
	s.metrics.SetActiveWidgets(0)
}

// DefaultInputID is the form field id each list feeds on the schedule page.
func DefaultInputID(field ListID) string {
	if field == ListDistricts {
		return "school-district"
	}
	return "school"
}

// NewWidget creates and registers a server-hosted controller searching the
// given list. Renders and committed values are published on the EventBus.
func (site *Application) NewWidget(field ListID, inputID string) (*Widget, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownList, field)
	}
	if inputID == "" {
		inputID = DefaultInputID(field)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating widget id: %w", err)
	}
	widgetID := id.String()

	ctrl, err := NewController(ControllerOptions{
		InputID:   inputID,
		Max:       site.MaxFor(field),
		Provider:  site.Provider(field),
		View:      BusView{Bus: site.EventBus, WidgetID: widgetID},
		Debounce:  site.Config.Debounce,
		BlurGrace: site.Config.BlurGrace,
		OnChange: func(value string) {
			site.EventBus.Publish(BusMessage{Type: BusMessageChange, WidgetID: widgetID, Value: value})
		},
		OnIntent: site.RefData.WarmOnce(field),
	})
	if err != nil {
		return nil, err
	}

	w := &Widget{ID: widgetID, Field: field, Controller: ctrl}
	site.Widgets.Add(w)
	return w, nil
}
