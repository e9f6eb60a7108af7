package main

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"

	"github.com/CedricPei/MAS-RAG/internal/progress"
)

// spinnerObserver shows the latest progress event next to a terminal spinner.
type spinnerObserver struct {
	s *spinner.Spinner
}

func newSpinner() *spinnerObserver {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " starting"
	return &spinnerObserver{s: s}
}

func (o *spinnerObserver) Start() { o.s.Start() }

func (o *spinnerObserver) Stop() { o.s.Stop() }

func (o *spinnerObserver) Observe(e progress.Event) {
	suffix := fmt.Sprintf(" %s: %s", e.DBID, e.State)
	if e.Total > 0 {
		suffix += fmt.Sprintf(" %d/%d", e.Index, e.Total)
	}
	if e.Outcome != "" {
		suffix += " (" + e.Outcome + ")"
	}

	o.s.Lock()
	o.s.Suffix = suffix
	o.s.Unlock()
}

// observer returns the spinner as an observer unless output is quiet.
func observer() (progress.Observer, func()) {
	if quiet {
		return progress.Multi{}, func() {}
	}
	sp := newSpinner()
	sp.Start()
	return sp, sp.Stop
}
