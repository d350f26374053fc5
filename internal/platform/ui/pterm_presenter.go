// internal/platform/ui/pterm_presenter.go
package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pterm/pterm"

	"reconwave/internal/core/domain"
	"reconwave/internal/core/ports"
)

// PTermPresenter renders scan progress with pterm: a header box, one line
// per module transition and a summary table. It implements both Presenter
// and ports.Notifier so the engine feeds it lifecycle events directly.
type PTermPresenter struct{}

// NewPTermPresenter creates the terminal presenter.
func NewPTermPresenter() *PTermPresenter {
	return &PTermPresenter{}
}

// Start renders the scan header.
func (p *PTermPresenter) Start(info ScanInfo) {
	pterm.DefaultHeader.
		WithBackgroundStyle(pterm.NewStyle(pterm.BgCyan)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Println("ReconWave - Scan Orchestration")

	pterm.Println()

	panel := pterm.DefaultBox.
		WithTitle("Job").
		WithTitleTopCenter().
		WithLeftPadding(2).
		WithRightPadding(2).
		WithBoxStyle(pterm.NewStyle(pterm.FgCyan))

	panel.Println(fmt.Sprintf("Target: %s\nModules: %s",
		pterm.Cyan(info.Target),
		strings.Join(info.Modules, ", "),
	))
	pterm.Println()
}

// Notify implements ports.Notifier, rendering module transitions as they
// happen.
func (p *PTermPresenter) Notify(ctx context.Context, event ports.Event) error {
	switch event.Type {
	case ports.EventTypeJobPlanned:
		pterm.Info.Printfln("plan: %s", event.Message)
	case ports.EventTypeModuleStarted:
		pterm.Info.Printfln("%s started", event.Module)
	case ports.EventTypeModuleStreaming:
		pterm.Debug.Printfln("%s streaming", event.Module)
	case ports.EventTypeModuleCompleted:
		pterm.Success.Printfln("%s completed", event.Module)
	case ports.EventTypeModuleFailed:
		pterm.Error.Printfln("%s failed: %s", event.Module, event.Message)
	case ports.EventTypeJobCanceled:
		pterm.Warning.Printfln("job %s canceled", event.JobID)
	}
	return nil
}

// Close implements ports.Notifier.
func (p *PTermPresenter) Close() error { return nil }

// Finish renders the per-module summary table and the final verdict.
func (p *PTermPresenter) Finish(snap domain.JobSnapshot) {
	pterm.Println()

	names := make([]string, 0, len(snap.Modules))
	for name := range snap.Modules {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := pterm.TableData{{"Module", "State", "Records", "Error"}}
	for _, name := range names {
		status := snap.Modules[name]
		rows = append(rows, []string{
			name,
			stateLabel(status.State),
			fmt.Sprintf("%d", status.Records),
			status.Error,
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

	pterm.Println()
	elapsed := FormatDuration(snap.StartedAt, snap.FinishedAt)
	switch snap.State {
	case domain.JobStateCompleted:
		pterm.Success.Printfln("Job %s completed in %s", snap.ID, elapsed)
	case domain.JobStatePartiallyFailed:
		pterm.Warning.Printfln("Job %s partially failed in %s", snap.ID, elapsed)
	default:
		pterm.Error.Printfln("Job %s %s after %s", snap.ID, snap.State, elapsed)
	}
}

func stateLabel(s domain.ModuleState) string {
	switch s {
	case domain.ModuleStateCompleted:
		return pterm.Green(string(s))
	case domain.ModuleStateFailed:
		return pterm.Red(string(s))
	case domain.ModuleStateStreaming, domain.ModuleStateRunning:
		return pterm.Yellow(string(s))
	default:
		return string(s)
	}
}
