package ui

import (
	"fmt"
	"strings"
	"time"

	"autoytdlp/internal/state"
	"autoytdlp/internal/util"
	"autoytdlp/internal/util/format"
)

const (
	maxQueueRows = 10
	maxLogRows   = 8
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteString("\n\n")
	b.WriteString(m.viewActive())
	b.WriteString(m.viewQueue())
	b.WriteString(m.viewLogs())
	if m.adding {
		b.WriteString("\n" + m.input.View() + "\n")
	}
	if m.snap.Toast != "" {
		b.WriteString("\n" + m.styles.Toast.Render(m.snap.Toast) + "\n")
	}
	b.WriteString("\n" + m.viewFooter())
	return b.String()
}

func (m Model) viewHeader() string {
	title := m.styles.Title.Render("autoytdlp — batch downloader")

	var status string
	switch {
	case m.snap.ForceQuit:
		status = m.styles.Error.Render("force quitting")
	case m.quitting:
		status = m.styles.Warning.Render("stopping")
	case m.snap.Paused:
		status = m.styles.Paused.Render("paused")
	case m.snap.Started:
		status = m.styles.Success.Render(m.spinner.View() + "downloading")
	case m.snap.Completed:
		status = m.styles.Success.Render("all done")
	default:
		status = m.styles.Faint.Render("idle")
	}

	counts := fmt.Sprintf("%d/%d done", m.snap.CompletedTasks, m.snap.InitialTotalTasks)
	if m.snap.FailedTasks > 0 {
		counts += m.styles.Error.Render(fmt.Sprintf("  %d failed", m.snap.FailedTasks))
	}
	if m.snap.TotalRetries > 0 {
		counts += m.styles.Warning.Render(fmt.Sprintf("  %d retried", m.snap.TotalRetries))
	}

	bar := ""
	if m.snap.InitialTotalTasks > 0 {
		bar = m.overall.ViewAs(m.snap.Progress) + "  "
	}
	sub := m.styles.Subtitle.Render(counts)
	return title + "\n" + bar + sub + "  " + status
}

func (m Model) viewActive() string {
	if len(m.snap.Active) == 0 {
		return ""
	}
	now := time.Now()
	var b strings.Builder
	b.WriteString(m.styles.Header.Render(fmt.Sprintf("Active (%d/%d)", len(m.snap.Active), m.snap.Concurrent)))
	b.WriteString("\n")
	for _, rec := range m.snap.Active {
		b.WriteString(m.viewJob(rec, now))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewJob(rec state.ProgressRecord, now time.Time) string {
	name := m.styles.JobTitle.Render(rec.DisplayName)

	var phase string
	switch rec.Phase {
	case "finished":
		phase = m.styles.Success.Render("finished")
	case "processing":
		phase = m.styles.Warning.Render("processing")
	case "error":
		phase = m.styles.Error.Render("error")
	default:
		phase = m.styles.JobInfo.Render("downloading")
	}
	if rec.IsStale(now) {
		phase += " " + m.styles.Warning.Render("(stalled)")
	}

	bar := ""
	if b, ok := m.bars[rec.URL]; ok {
		bar = b.ViewAs(rec.Percent / 100.0)
	}
	line2 := fmt.Sprintf("%s %5.1f%%", bar, rec.Percent)

	var details []string
	if rec.Speed != "" {
		details = append(details, rec.Speed)
	}
	if rec.ETA != "" {
		details = append(details, "ETA "+rec.ETA)
	}
	if rec.DownloadedBytes != nil && rec.TotalBytes != nil {
		details = append(details, fmt.Sprintf("%s / %s",
			format.HumanizeBytes(*rec.DownloadedBytes), format.HumanizeBytes(*rec.TotalBytes)))
	}
	if rec.FragmentIndex != nil && rec.FragmentCount != nil {
		details = append(details, fmt.Sprintf("frag %d/%d", *rec.FragmentIndex, *rec.FragmentCount))
	}
	line3 := m.styles.Faint.Render(strings.Join(details, "  "))

	return m.styles.Box.Render(name + "  " + phase + "\n" + line2 + "\n" + line3)
}

func (m Model) viewQueue() string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render(fmt.Sprintf("Queue (%d)", len(m.snap.Queue))))
	b.WriteString("\n")
	if len(m.snap.Queue) == 0 {
		b.WriteString(m.styles.Faint.Render("  empty — a: add, c: paste clipboard") + "\n")
		return b.String()
	}
	for i, url := range m.snap.Queue {
		if i >= maxQueueRows {
			b.WriteString(m.styles.Faint.Render(fmt.Sprintf("  … and %d more", len(m.snap.Queue)-maxQueueRows)) + "\n")
			break
		}
		shown := util.TruncateURL(url)
		if i == m.selected {
			b.WriteString(m.styles.Selected.Render("> "+shown) + "\n")
		} else {
			b.WriteString("  " + shown + "\n")
		}
	}
	return b.String()
}

func (m Model) viewLogs() string {
	if len(m.snap.Logs) == 0 {
		return ""
	}
	logs := m.snap.Logs
	if len(logs) > maxLogRows {
		logs = logs[len(logs)-maxLogRows:]
	}
	var b strings.Builder
	b.WriteString("\n" + m.styles.Header.Render("Log") + "\n")
	for _, line := range logs {
		b.WriteString(m.styles.Faint.Render("  "+line) + "\n")
	}
	return b.String()
}

func (m Model) viewFooter() string {
	keys := "s: start  p: pause  a: add  c: clipboard  r: reload  d: remove  J/K: move  t: dismiss stalls  L: clear log  q: quit  Q: force quit"
	return m.styles.Subtitle.Render(keys)
}
