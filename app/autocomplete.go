package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultDebounce  = 120 * time.Millisecond
	DefaultBlurGrace = 120 * time.Millisecond
	DefaultMax       = 20

	// DefaultPressGrace is how long a blur that interrupts a press on the
	// list waits for the matching click.
	DefaultPressGrace = 600 * time.Millisecond
)

// Keys understood by Controller.KeyDown, named as browsers report them.
const (
	KeyArrowDown = "ArrowDown"
	KeyArrowUp   = "ArrowUp"
	KeyEnter     = "Enter"
	KeyEscape    = "Escape"
)

// WidgetState is the visible state of an autocomplete widget.
type WidgetState int

const (
	// StateIdle: list closed, no search attempted for the current value.
	StateIdle WidgetState = iota
	// StateLoading: a search is in flight and the loading row is shown.
	StateLoading
	// StateOpen: at least one suggestion is listed.
	StateOpen
	// StateClosedWithQuery: the value is non-empty but nothing matched, or
	// the user dismissed the list.
	StateClosedWithQuery
)

func (s WidgetState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateOpen:
		return "open"
	case StateClosedWithQuery:
		return "closed"
	default:
		return "idle"
	}
}

func (s WidgetState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *WidgetState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StateIdle
	case "loading":
		*s = StateLoading
	case "open":
		*s = StateOpen
	case "closed":
		*s = StateClosedWithQuery
	default:
		return fmt.Errorf("unknown widget state %q", text)
	}
	return nil
}

// Expanded reports whether the listbox is visible in this state.
func (s WidgetState) Expanded() bool {
	return s == StateLoading || s == StateOpen
}

// Target identifies which half of the widget a focus event concerns.
type Target int

const (
	TargetInput Target = iota
	TargetList
)

// ParseTarget maps "input" and "list"/"listbox" to a Target.
func ParseTarget(s string) (Target, error) {
	switch s {
	case "", "input":
		return TargetInput, nil
	case "list", "listbox":
		return TargetList, nil
	}
	return TargetInput, fmt.Errorf("unknown focus target %q", s)
}

type Option struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Active bool   `json:"active"`
}

// Snapshot is everything a view needs to draw the widget.
type Snapshot struct {
	InputID          string      `json:"input_id"`
	ListboxID        string      `json:"listbox_id"`
	Value            string      `json:"value"`
	State            WidgetState `json:"state"`
	Expanded         bool        `json:"expanded"`
	Loading          bool        `json:"loading"`
	ActiveIndex      int         `json:"active_index"`
	ActiveDescendant string      `json:"active_descendant,omitempty"`
	Options          []Option    `json:"options"`
}

// InputAttributes returns the ARIA attributes the input element should carry.
func (s Snapshot) InputAttributes() map[string]string {
	attrs := map[string]string{
		"role":              "combobox",
		"aria-autocomplete": "list",
		"aria-controls":     s.ListboxID,
		"aria-expanded":     strconv.FormatBool(s.Expanded),
	}
	if s.ActiveDescendant != "" {
		attrs["aria-activedescendant"] = s.ActiveDescendant
	}
	return attrs
}

// View draws snapshots. Render is called with the controller's lock held and
// must not call back into the controller.
type View interface {
	Render(Snapshot)
}

type ViewFunc func(Snapshot)

func (f ViewFunc) Render(s Snapshot) { f(s) }

type ControllerOptions struct {
	InputID    string
	Max        int
	Provider   Provider
	View       View
	Debounce   time.Duration
	BlurGrace  time.Duration
	PressGrace time.Duration
	// OnChange is told about every committed suggestion, like a change event
	// dispatched on the input.
	OnChange func(value string)
	// OnIntent fires on focus and hover, before any typing. Used to warm the
	// reference data.
	OnIntent func()
	Logger   *slog.Logger
}

// Controller is the autocomplete state machine for one input and its
// listbox. Hosts feed it input events; it searches through the Provider and
// renders the result to the View.
//
// Every search takes a new generation number and its result is applied only
// if no newer search, commit or dismissal happened in the meantime.
type Controller struct {
	opts      ControllerOptions
	listboxID string
	debouncer *debouncer
	ctx       context.Context
	cancel    context.CancelFunc

	mu           sync.Mutex
	value        string
	items        []string
	active       int
	state        WidgetState
	composing    bool
	gen          uint64
	inputFocused bool
	listFocused  bool
	pressing     bool
	blurSeq      uint64
	blurTimer    *time.Timer
	closed       bool
}

func NewController(opts ControllerOptions) (*Controller, error) {
	if opts.InputID == "" {
		return nil, errors.New("autocomplete: input id is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("autocomplete: provider is required")
	}
	if opts.Max <= 0 {
		opts.Max = DefaultMax
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.BlurGrace <= 0 {
		opts.BlurGrace = DefaultBlurGrace
	}
	if opts.PressGrace <= 0 {
		opts.PressGrace = DefaultPressGrace
	}
	if opts.View == nil {
		opts.View = ViewFunc(func(Snapshot) {})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		opts:      opts,
		listboxID: opts.InputID + "-listbox",
		ctx:       ctx,
		cancel:    cancel,
		active:    -1,
	}
	c.debouncer = newDebouncer(opts.Debounce, c.searchCurrent)
	return c, nil
}

func (c *Controller) ListboxID() string {
	return c.listboxID
}

// OptionID is the element id of the suggestion row at index i.
func (c *Controller) OptionID(i int) string {
	return fmt.Sprintf("%s-opt-%d", c.listboxID, i)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		InputID:     c.opts.InputID,
		ListboxID:   c.listboxID,
		Value:       c.value,
		State:       c.state,
		Expanded:    c.state.Expanded(),
		Loading:     c.state == StateLoading,
		ActiveIndex: c.active,
		Options:     make([]Option, len(c.items)),
	}
	for i, text := range c.items {
		s.Options[i] = Option{ID: c.OptionID(i), Text: text, Active: i == c.active}
	}
	if c.active >= 0 && c.active < len(c.items) {
		s.ActiveDescendant = c.OptionID(c.active)
	}
	return s
}

func (c *Controller) renderLocked() {
	c.opts.View.Render(c.snapshotLocked())
}

// Input records the field's new value and schedules a search once typing
// pauses. While an IME composition is active only the value is recorded.
func (c *Controller) Input(value string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.value = value
	composing := c.composing
	c.mu.Unlock()

	if !composing {
		c.debouncer.call()
	}
}

func (c *Controller) CompositionStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.composing = true
}

// CompositionEnd takes the composed value and schedules a search for it.
func (c *Controller) CompositionEnd(value string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.composing = false
	c.value = value
	c.mu.Unlock()
	c.debouncer.call()
}

// searchCurrent is the debounced action.
func (c *Controller) searchCurrent() {
	c.mu.Lock()
	value, composing := c.value, c.composing
	c.mu.Unlock()
	if composing {
		return
	}
	c.Search(c.ctx, value)
}

// Search looks up suggestions for raw and blocks until they are rendered or
// superseded. An empty query clears the list without calling the provider.
// Provider failures are logged and shown as no suggestions.
func (c *Controller) Search(ctx context.Context, raw string) {
	q := strings.TrimSpace(raw)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.active = -1
	c.items = nil
	if q == "" {
		c.state = StateIdle
		c.renderLocked()
		c.mu.Unlock()
		return
	}
	c.state = StateLoading
	c.renderLocked()
	c.mu.Unlock()

	results, err := c.opts.Provider(ctx, q)
	if err != nil {
		c.opts.Logger.Warn("Autocomplete search failed", "input", c.opts.InputID, "query", q, "error", err)
		results = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.closed {
		c.opts.Logger.Debug("Discarding stale suggestions", "input", c.opts.InputID, "query", q)
		return
	}
	c.items = Dedupe(results, c.opts.Max)
	if len(c.items) > 0 {
		c.state = StateOpen
	} else {
		c.state = StateClosedWithQuery
	}
	c.renderLocked()
}

// SearchValue takes value as the field's content and searches for it right
// away, dropping any debounced search still pending.
func (c *Controller) SearchValue(ctx context.Context, value string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.value = value
	c.mu.Unlock()
	c.debouncer.cancel()
	c.Search(ctx, value)
}

// KeyDown handles navigation keys and reports whether the key was consumed,
// in which case the host must suppress the key's default action (caret
// movement, form submission).
func (c *Controller) KeyDown(key string) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	n := len(c.items)

	switch key {
	case KeyArrowDown:
		if n == 0 {
			value := c.value
			c.mu.Unlock()
			c.debouncer.cancel()
			go c.Search(c.ctx, value)
			return true
		}
		c.activateLocked((c.active + 1) % n)
		c.mu.Unlock()
		return true

	case KeyArrowUp:
		if n == 0 {
			c.mu.Unlock()
			return false
		}
		next := n - 1
		if c.active >= 0 {
			next = (c.active - 1 + n) % n
		}
		c.activateLocked(next)
		c.mu.Unlock()
		return true

	case KeyEnter:
		if c.active >= 0 && c.active < n {
			committed := c.commitLocked(c.active)
			c.mu.Unlock()
			c.notifyChange(committed)
			return true
		}
		// an open list swallows Enter so the form is not submitted mid-search
		consumed := c.state.Expanded()
		c.mu.Unlock()
		return consumed

	case KeyEscape:
		wasOpen := c.state.Expanded()
		c.dismissLocked()
		c.mu.Unlock()
		return wasOpen
	}

	c.mu.Unlock()
	return false
}

// PointerEnter highlights the row under the pointer.
func (c *Controller) PointerEnter(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || i < 0 || i >= len(c.items) {
		return
	}
	c.activateLocked(i)
}

// PointerDown marks the start of a press inside the listbox. It always
// reports the event as consumed: the host must keep focus on the input. The
// next blur waits PressGrace instead of BlurGrace so the click can land.
func (c *Controller) PointerDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pressing = true
	return true
}

// Click commits the row at index i and reports whether anything was chosen.
func (c *Controller) Click(i int) bool {
	c.mu.Lock()
	c.pressing = false
	if c.closed || i < 0 || i >= len(c.items) {
		c.mu.Unlock()
		return false
	}
	committed := c.commitLocked(i)
	c.mu.Unlock()
	c.notifyChange(committed)
	return true
}

// HoverInput signals interest in the field before the user types.
func (c *Controller) HoverInput() {
	c.intent()
}

func (c *Controller) Focus(target Target) {
	c.mu.Lock()
	switch target {
	case TargetInput:
		c.inputFocused = true
		c.pressing = false
	case TargetList:
		c.listFocused = true
	}
	c.mu.Unlock()

	if target == TargetInput {
		c.intent()
	}
}

// Blur records focus leaving target. The list closes after the blur grace
// period unless focus has come back to the input or the list by then.
func (c *Controller) Blur(target Target) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	switch target {
	case TargetInput:
		c.inputFocused = false
	case TargetList:
		c.listFocused = false
	}
	grace := c.opts.BlurGrace
	if c.pressing {
		// a press covers only the blur it caused
		c.pressing = false
		grace = c.opts.PressGrace
	}

	c.blurSeq++
	seq := c.blurSeq
	if c.blurTimer != nil {
		c.blurTimer.Stop()
	}
	c.blurTimer = time.AfterFunc(grace, func() {
		c.maybeHide(seq)
	})
}

func (c *Controller) maybeHide(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || seq != c.blurSeq {
		return
	}
	if !c.inputFocused && !c.listFocused {
		c.dismissLocked()
	}
}

// ClickOutside closes the list at once.
func (c *Controller) ClickOutside() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.dismissLocked()
}

// Close stops timers, abandons in-flight searches and ignores later events.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.gen++
	if c.blurTimer != nil {
		c.blurTimer.Stop()
	}
	c.mu.Unlock()
	c.debouncer.cancel()
	c.cancel()
}

func (c *Controller) activateLocked(i int) {
	c.active = i
	c.renderLocked()
}

// commitLocked copies the suggestion into the value and closes the list.
func (c *Controller) commitLocked(i int) string {
	text := c.items[i]
	c.value = text
	c.gen++
	c.items = nil
	c.active = -1
	c.state = StateIdle
	c.pressing = false
	c.renderLocked()
	return text
}

// dismissLocked closes and clears the list. Searches still in flight are
// invalidated so they cannot reopen it.
func (c *Controller) dismissLocked() {
	c.gen++
	c.pressing = false
	c.items = nil
	c.active = -1
	if strings.TrimSpace(c.value) == "" {
		c.state = StateIdle
	} else {
		c.state = StateClosedWithQuery
	}
	c.renderLocked()
}

func (c *Controller) notifyChange(value string) {
	c.debouncer.cancel()
	if c.opts.OnChange != nil {
		c.opts.OnChange(value)
	}
}

func (c *Controller) intent() {
	if c.opts.OnIntent != nil {
		c.opts.OnIntent()
	}
}
