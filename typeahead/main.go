package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/sweater-ventures/psph/config"
)

type PickCmd struct {
	URL      string        `arg:"--url" default:"http://localhost:8005" help:"PSPH base URL serving /api/data"`
	Field    string        `arg:"--field" default:"school" help:"List to search: district or school"`
	Max      int           `arg:"--max" default:"10" help:"Suggestions shown"`
	Debounce time.Duration `arg:"--debounce" default:"120ms" help:"Pause after typing before searching"`
	Timeout  time.Duration `arg:"--timeout" default:"10s" help:"HTTP timeout for loading the list"`
}

type SubmitCmd struct {
	URL            string   `arg:"--url" default:"http://localhost:8005" help:"PSPH base URL"`
	FirstName      string   `arg:"--first-name,required"`
	LastName       string   `arg:"--last-name,required"`
	Email          string   `arg:"--email,required"`
	Phone          string   `arg:"--phone"`
	SchoolDistrict string   `arg:"--district" help:"School district, see the pick subcommand"`
	School         string   `arg:"--school"`
	Topics         []string `arg:"--topic,separate" help:"Topic; repeat for several"`
	OtherTopic     string   `arg:"--other-topic"`
	Appointment    string   `arg:"--appointment,required" help:"Proposed appointment time"`
}

type args struct {
	Pick     *PickCmd   `arg:"subcommand:pick" help:"Interactively pick a district or school name"`
	Submit   *SubmitCmd `arg:"subcommand:submit" help:"Submit an appointment request"`
	LogLevel string     `arg:"--log-level,env:LOG_LEVEL" default:"error" help:"debug, info, warn or error; logs go to stderr"`
}

func (args) Description() string {
	return "typeahead - terminal client for the PSPH appointment form"
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func main() {
	var a args
	p := arg.MustParse(&a)
	config.InitCLILogging(parseLevel(a.LogLevel))

	var err error
	switch {
	case a.Pick != nil:
		var value string
		value, err = runPick(a.Pick, os.Stdin, os.Stdout)
		if err == nil {
			fmt.Println(value)
		}
	case a.Submit != nil:
		err = runSubmit(a.Submit, os.Stdout)
	default:
		p.WriteUsage(os.Stdout)
		fmt.Println()
		p.WriteHelp(os.Stdout)
		os.Exit(1)
	}

	if errors.Is(err, errCanceled) {
		os.Exit(130)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
