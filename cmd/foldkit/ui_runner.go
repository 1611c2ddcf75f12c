package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"foldkit/internal/driver"
	"foldkit/internal/ui"
)

type scanOutcome struct {
	results []driver.ScanResult
	err     error
}

func runScanWithUI(ctx context.Context, sess *driver.Session, title string, files []string, jobs int) ([]driver.ScanResult, error) {
	events := make(chan ui.Event, 256)
	outcomeCh := make(chan scanOutcome, 1)

	go func() {
		res, err := sess.Scan(ctx, files, jobs, ui.ChannelSink{Ch: events})
		outcomeCh <- scanOutcome{results: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
