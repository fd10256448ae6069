package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	lipgloss "github.com/charmbracelet/lipgloss"

	"github.com/pepperpark/imapsync/internal/report"
	"github.com/pepperpark/imapsync/internal/syncer"
)

type folderProgress struct {
	total int
	done  int
}

type model struct {
	ctx      context.Context
	cancel   context.CancelFunc
	worker   *syncer.Syncer
	pairs    []syncer.FolderPair
	prog     map[string]folderProgress
	totalAll int
	doneAll  int
	failed   int
	lastFail string
	spinner  spinner.Model
	bar      progress.Model
	sums     []*report.Summary
	errs     []error
	finished bool
	started  time.Time
	// Smoothed ETA
	emaRate  float64 // msgs/sec (EMA)
	lastDone int
	lastAt   time.Time
}

type tickMsg time.Time

type doneMsg struct {
	sums []*report.Summary
	errs []error
}

func newModel(ctx context.Context, worker *syncer.Syncer, pairs []syncer.FolderPair) *model {
	cctx, cancel := context.WithCancel(ctx)
	s := spinner.New()
	s.Spinner = spinner.Line
	bar := progress.New(progress.WithDefaultGradient())
	now := time.Now()
	return &model{ctx: cctx, cancel: cancel, worker: worker, pairs: pairs, prog: map[string]folderProgress{}, spinner: s, bar: bar, started: now, lastAt: now}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick(), m.startSync())
}

func tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *model) startSync() tea.Cmd {
	// Kick off sync in background
	return func() tea.Msg {
		sums, errs := m.worker.Run(m.ctx, m.pairs)
		return doneMsg{sums: sums, errs: errs}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.cancel()
			return m, tea.Quit
		}
	case doneMsg:
		m.sums = msg.sums
		m.errs = msg.errs
		m.finished = true
		// If there were no errors, ensure the overall progress snaps to 100%
		if len(m.errs) == 0 {
			m.doneAll = m.totalAll
		}
		return m, tea.Quit
	case tickMsg:
		// update EMA of throughput on each tick
		m.updateEMARate()
		return m, tea.Batch(m.spinner.Tick, tick())
	}
	// Drain events
	for {
		select {
		case ev, ok := <-m.worker.Events():
			if !ok {
				if m.finished && len(m.errs) == 0 {
					m.doneAll = m.totalAll
				}
				return m, nil
			}
			switch ev.Type {
			case syncer.EventProgress:
				fp := m.prog[ev.Folder]
				fp.total, fp.done = ev.Total, ev.Done
				m.prog[ev.Folder] = fp
				m.recomputeTotals()
			case syncer.EventMessageFailed:
				m.failed++
				m.lastFail = ev.Message
			}
		default:
			return m, nil
		}
	}
}

func (m *model) recomputeTotals() {
	total, done := 0, 0
	for _, p := range m.prog {
		total += p.total
		done += p.done
	}
	m.totalAll, m.doneAll = total, done
}

func (m *model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Render("imapsync")
	s := title + "\n\nPress q to quit\n\n"
	pct := 0.0
	if m.totalAll > 0 {
		pct = float64(m.doneAll) / float64(m.totalAll)
	}
	eta := m.formatETA()
	s += fmt.Sprintf("%s Overall %d/%d   %s\n", m.spinner.View(), m.doneAll, m.totalAll, eta)
	s += m.bar.ViewAs(pct) + "\n\n"
	if m.failed > 0 {
		warn := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
		s += warn.Render(fmt.Sprintf("%d message(s) failed, last: %s", m.failed, m.lastFail)) + "\n"
	}
	if m.finished && len(m.errs) > 0 {
		s += lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("Errors:\n")
		for _, e := range m.errs {
			s += " - " + e.Error() + "\n"
		}
	} else if m.finished && len(m.errs) == 0 && m.totalAll == 0 && m.doneAll == 0 {
		hint := "Nothing to copy. The target already has every source message."
		s += lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render(hint) + "\n"
	}
	return s
}

func (m *model) formatETA() string {
	if m.totalAll == 0 {
		return "ETA --"
	}
	remaining := m.totalAll - m.doneAll
	if remaining <= 0 {
		return "ETA 0s"
	}
	// Prefer smoothed rate if available; fallback to average rate
	rate := m.emaRate
	if rate <= 0.01 {
		elapsed := time.Since(m.started)
		if elapsed <= 0 {
			return "ETA --"
		}
		rate = float64(m.doneAll) / elapsed.Seconds()
	}
	if rate <= 0.01 { // too low/unstable
		return "ETA --"
	}
	secs := float64(remaining) / rate
	if secs < 1 {
		return "ETA <1s"
	}
	d := time.Duration(secs) * time.Second
	// cap very large ETAs to something readable
	if d > 99*time.Hour {
		return "ETA >99h"
	}
	if d >= time.Hour {
		h := int(d / time.Hour)
		rem := d - time.Duration(h)*time.Hour
		mrem := int(rem / time.Minute)
		return fmt.Sprintf("ETA %dh%dm", h, mrem)
	}
	if d >= time.Minute {
		mns := int(d.Minutes())
		sec := int(d.Seconds()) % 60
		return fmt.Sprintf("ETA %dm%ds", mns, sec)
	}
	return fmt.Sprintf("ETA %ds", int(d.Seconds()))
}

// updateEMARate updates the EMA of processing rate based on deltas since last tick.
func (m *model) updateEMARate() {
	now := time.Now()
	dt := now.Sub(m.lastAt).Seconds()
	if dt <= 0 {
		return
	}
	delta := m.doneAll - m.lastDone
	inst := float64(delta) / dt // msgs/sec
	// EMA with half-life ~3s -> alpha depends on dt
	halfLife := 3.0 // seconds
	alpha := 1 - math.Exp(-math.Ln2*dt/halfLife)
	if m.emaRate == 0 {
		m.emaRate = inst
	} else {
		m.emaRate = alpha*inst + (1-alpha)*m.emaRate
	}
	m.lastDone = m.doneAll
	m.lastAt = now
}

// runTUI runs the Bubble Tea UI and returns summaries and errors after completion.
func runTUI(ctx context.Context, worker *syncer.Syncer, pairs []syncer.FolderPair) ([]*report.Summary, []error) {
	m := newModel(ctx, worker, pairs)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		// Fallback to non-TUI execution
		fmt.Println("TUI failed:", err)
		return worker.Run(ctx, pairs)
	}
	return m.sums, m.errs
}
