package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/sweater-ventures/psph/app"
	"golang.org/x/term"
)

var errCanceled = errors.New("canceled")

const (
	keyChar      = "char"
	keyBackspace = "Backspace"
	keyInterrupt = "Interrupt"
	keyOther     = "Other"
)

type keyEvent struct {
	key string
	r   rune
}

// decodeKeys splits raw terminal input into key events. Arrow keys arrive
// as ESC [ A..D; a lone ESC is the Escape key.
func decodeKeys(buf []byte) []keyEvent {
	var out []keyEvent
	for i := 0; i < len(buf); {
		b := buf[i]
		switch {
		case b == 3:
			out = append(out, keyEvent{key: keyInterrupt})
			i++
		case b == '\r' || b == '\n':
			out = append(out, keyEvent{key: app.KeyEnter})
			i++
		case b == 127 || b == 8:
			out = append(out, keyEvent{key: keyBackspace})
			i++
		case b == 27:
			if i+2 < len(buf) && buf[i+1] == '[' {
				switch buf[i+2] {
				case 'A':
					out = append(out, keyEvent{key: app.KeyArrowUp})
				case 'B':
					out = append(out, keyEvent{key: app.KeyArrowDown})
				default:
					out = append(out, keyEvent{key: keyOther})
				}
				i += 3
				continue
			}
			out = append(out, keyEvent{key: app.KeyEscape})
			i++
		case b < 32:
			out = append(out, keyEvent{key: keyOther})
			i++
		default:
			r, size := utf8.DecodeRune(buf[i:])
			out = append(out, keyEvent{key: keyChar, r: r})
			i += size
		}
	}
	return out
}

// formatSnapshot lays out the prompt line and one line per visible row.
func formatSnapshot(label string, s app.Snapshot) []string {
	lines := []string{label + ": " + s.Value}
	if !s.Expanded {
		return lines
	}
	if s.Loading {
		lines = append(lines, "   Loading…")
	}
	for _, opt := range s.Options {
		marker := "   "
		if opt.Active {
			marker = " > "
		}
		lines = append(lines, marker+opt.Text)
	}
	return lines
}

// termView redraws the widget below the cursor, leaving the cursor at the
// end of the prompt line.
type termView struct {
	mu    sync.Mutex
	out   io.Writer
	label string
}

func (v *termView) Render(s app.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	lines := formatSnapshot(v.label, s)
	var b strings.Builder
	b.WriteString("\r\x1b[J")
	b.WriteString(strings.Join(lines, "\r\n"))
	if len(lines) > 1 {
		fmt.Fprintf(&b, "\x1b[%dA", len(lines)-1)
	}
	b.WriteString("\r")
	if n := utf8.RuneCountInString(lines[0]); n > 0 {
		fmt.Fprintf(&b, "\x1b[%dC", n)
	}
	io.WriteString(v.out, b.String())
}

func (v *termView) clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	io.WriteString(v.out, "\r\x1b[J")
}

func newPickController(cmd *PickCmd, field app.ListID, view app.View) (*app.Controller, error) {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = cmd.Timeout
	refData := app.NewRefData(app.NewHTTPSource(strings.TrimRight(cmd.URL, "/")+"/api/data", client), nil)

	return app.NewController(app.ControllerOptions{
		InputID:  app.DefaultInputID(field),
		Max:      cmd.Max,
		Provider: app.ListProvider(refData, field, app.ProviderLimit),
		View:     view,
		Debounce: cmd.Debounce,
		OnIntent: refData.WarmOnce(field),
	})
}

// pickLoop feeds key events to the controller until Enter is pressed with
// the list closed, and returns the field's final value.
func pickLoop(ctrl *app.Controller, view *termView, in io.Reader) (string, error) {
	ctrl.Focus(app.TargetInput)
	view.Render(ctrl.Snapshot())

	value := ""
	buf := make([]byte, 64)
	for {
		n, err := in.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return value, nil
			}
			return "", err
		}
		for _, ev := range decodeKeys(buf[:n]) {
			switch ev.key {
			case keyInterrupt:
				return "", errCanceled
			case keyChar:
				value += string(ev.r)
				ctrl.Input(value)
			case keyBackspace:
				if value != "" {
					_, size := utf8.DecodeLastRuneInString(value)
					value = value[:len(value)-size]
					ctrl.Input(value)
				}
			case app.KeyEnter:
				if !ctrl.KeyDown(app.KeyEnter) {
					return strings.TrimSpace(ctrl.Snapshot().Value), nil
				}
			case keyOther:
			default:
				ctrl.KeyDown(ev.key)
			}
			snap := ctrl.Snapshot()
			value = snap.Value
			view.Render(snap)
		}
	}
}

func runPick(cmd *PickCmd, in *os.File, out io.Writer) (string, error) {
	field, err := app.ParseListID(cmd.Field)
	if err != nil {
		return "", err
	}
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("pick needs an interactive terminal")
	}

	label := "School"
	if field == app.ListDistricts {
		label = "School district"
	}
	view := &termView{out: out, label: label}
	ctrl, err := newPickController(cmd, field, view)
	if err != nil {
		return "", err
	}
	defer ctrl.Close()

	state, err := term.MakeRaw(fd)
	if err != nil {
		return "", fmt.Errorf("entering raw mode: %w", err)
	}
	value, err := pickLoop(ctrl, view, in)
	ctrl.Close()
	view.clear()
	term.Restore(fd, state)
	return value, err
}
