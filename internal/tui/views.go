package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mongohaul/mongohaul/internal/models"
	"github.com/mongohaul/mongohaul/internal/report"
	"github.com/mongohaul/mongohaul/internal/session"
)

func (m model) View() string {
	var body string
	switch m.state {
	case session.StateIdle:
		body = m.viewLoading()
	case session.StateConfiguring:
		body = m.viewConfiguring()
	case session.StateAnalyzing:
		body = m.viewAnalyzing()
	case session.StateReviewing:
		body = m.viewReviewing()
	case session.StateTransferring:
		body = m.viewTransferring()
	case session.StateFailed:
		body = m.viewFailed()
	case session.StateFinished:
		body = m.viewFinished()
	default:
		body = ""
	}

	if m.notice != "" {
		body += "\n" + warnStyle.Render(m.notice)
	}
	return body + "\n"
}

func (m model) viewLoading() string {
	return fmt.Sprintf("\n %s Reading archive %s...\n",
		m.spin.View(), m.archivePath)
}

func (m model) viewConfiguring() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Select what to import"))
	b.WriteByte('\n')
	b.WriteString(subtitleStyle.Render(m.archivePath))
	b.WriteString("\n\n")

	if m.tree != nil {
		b.WriteString(m.tree.render(m.sess))
	}

	dbs, colls := m.sess.SelectionSnapshot().Counts()
	mode := string(m.sess.Mode())
	modeLine := fmt.Sprintf("Mode: %s    Selected: %d databases, %d collections", mode, dbs, colls)
	if m.sess.Mode().Destructive() {
		modeLine = fmt.Sprintf("Mode: %s    Selected: %d databases, %d collections",
			errorStyle.Render(mode), dbs, colls)
	}
	b.WriteString("\n" + modeLine)
	b.WriteString(helpStyle.Render(
		"\n↑/↓ move · space toggle · tab expand · a all · n none · m mode · enter analyze · q quit"))
	return b.String()
}

func (m model) viewAnalyzing() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Analyzing"))
	b.WriteByte('\n')
	fmt.Fprintf(&b, " %s Dry run in progress", m.spin.View())
	if m.latest.Collection != "" {
		fmt.Fprintf(&b, ": %s.%s", m.latest.Database, m.latest.Collection)
	}
	b.WriteByte('\n')
	if m.latest.DocumentsTotal > 0 {
		b.WriteString(m.progressLine())
	}
	b.WriteString(helpStyle.Render("\nesc cancel"))
	return b.String()
}

func (m model) viewReviewing() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Review"))
	b.WriteByte('\n')
	b.WriteString(report.Render(m.sess.DryRunResult(), report.Options{
		ScopeLabel:  m.sess.Scope().String(),
		ArchivePath: m.archivePath,
	}))

	if m.confirmingDrops {
		confirm := errorStyle.Render("This transfer drops existing data.") + "\n\n" +
			report.RenderDrops(m.sess.PendingDrops()) + "\n" +
			"Proceed? (y/n)"
		b.WriteString("\n" + boxStyle.Render(confirm))
		return b.String()
	}

	b.WriteString(helpStyle.Render("\nenter start transfer · esc back to selection · q quit"))
	return b.String()
}

func (m model) viewTransferring() string {
	var b strings.Builder
	if m.paused {
		b.WriteString(titleStyle.Render("Transferring (paused)"))
	} else {
		b.WriteString(titleStyle.Render("Transferring"))
	}
	b.WriteByte('\n')

	p := m.latest
	if p.Collection != "" {
		phase := ""
		if p.Phase == models.PhaseDropping {
			phase = warnStyle.Render(" dropping existing data")
		}
		fmt.Fprintf(&b, "[%d/%d] %s.%s%s\n\n",
			p.CollectionIndex, p.CollectionCount, p.Database, p.Collection, phase)
	} else {
		fmt.Fprintf(&b, " %s Starting...\n\n", m.spin.View())
	}
	b.WriteString(m.progressLine())

	help := "p pause · c cancel"
	if m.paused {
		help = "p resume · c cancel"
	}
	if !m.sess.CanPauseTransfers() {
		help = "c cancel"
	}
	b.WriteString(helpStyle.Render("\n" + help))
	return b.String()
}

// progressLine renders the document bar with counts and the ETA once the
// tracker has enough samples.
func (m model) progressLine() string {
	p := m.latest
	if p.DocumentsTotal <= 0 {
		return ""
	}
	pct := float64(p.DocumentsDone) / float64(p.DocumentsTotal)
	line := m.bar.ViewAs(pct)
	line += fmt.Sprintf("  %d / %d documents", p.DocumentsDone, p.DocumentsTotal)
	if remaining, ok := m.sess.ETA(); ok {
		line += dimStyle.Render(fmt.Sprintf("  ETA %s", remaining.Round(time.Second)))
	}
	return line + "\n"
}

func (m model) viewFailed() string {
	var b strings.Builder
	b.WriteString(errorStyle.Render("Transfer failed"))
	b.WriteString("\n\n")
	b.WriteString(report.RenderFailure(m.sess.Failure()))

	help := "r retry remaining · d dismiss"
	if m.sess.CanSkip() {
		help = "r retry remaining · s skip failed database · d dismiss"
	}
	b.WriteString(helpStyle.Render("\n" + help))
	return b.String()
}

func (m model) viewFinished() string {
	var b strings.Builder
	res := m.sess.Result()
	switch {
	case res != nil && res.Cancelled:
		b.WriteString(warnStyle.Render("Cancelled"))
	case res != nil && (res.Partial || len(res.Errors) > 0):
		b.WriteString(warnStyle.Render("Finished with problems"))
	default:
		b.WriteString(successStyle.Render("Finished"))
	}
	b.WriteString("\n\n")
	b.WriteString(report.Render(res, report.Options{
		ScopeLabel:  m.sess.Scope().String(),
		ArchivePath: m.archivePath,
	}))
	b.WriteString(helpStyle.Render("\nenter or q to exit"))
	return b.String()
}
