// internal/platform/ui/presenter.go

// Package ui renders scan progress on the terminal. Presenters are plain
// notifiers, so the engine treats the console like any other event channel.
package ui

import (
	"fmt"
	"time"

	"reconwave/internal/core/domain"
)

// ScanInfo describes the job shown in the header. The plan is not known
// yet when the header renders; wave counts arrive with the planned event.
type ScanInfo struct {
	Target  string
	Modules []string
}

// Presenter renders the scan lifecycle beyond raw events: a header before
// execution and a summary after.
type Presenter interface {
	Start(info ScanInfo)
	Finish(snap domain.JobSnapshot)
}

// NoopPresenter renders nothing (quiet mode, tests).
type NoopPresenter struct{}

func (NoopPresenter) Start(ScanInfo)            {}
func (NoopPresenter) Finish(domain.JobSnapshot) {}

// FormatDuration renders an elapsed time compactly for the summary table.
func FormatDuration(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return "-"
	}
	d := end.Sub(start).Round(time.Millisecond)
	if d < time.Second {
		return d.String()
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
