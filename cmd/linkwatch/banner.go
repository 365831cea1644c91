package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/netcheck/linkwatch/internal/config"
	"github.com/netcheck/linkwatch/internal/models"
	"github.com/netcheck/linkwatch/internal/report"
	"github.com/netcheck/linkwatch/internal/session"
)

var (
	bannerBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5f87af")).
			Padding(0, 2)
	bannerTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#87afd7"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")).Width(10)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5faf5f")).Bold(true)
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d7af5f"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#d75f5f")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
)

// banner renders the startup summary box.
func banner(cfg *config.AppConfig, configPath string) string {
	rows := [][2]string{
		{"Version", Version},
		{"Build", BuildTime},
		{"Config", configPath},
		{"Log", cfg.GetLogPath()},
		{"Image", cfg.GetImagePath()},
		{"Mode", cfg.Output.Mode},
		{"Zone", cfg.Monitor.Timezone},
	}
	if cfg.Server.Enabled {
		rows = append(rows, [2]string{"Listen", "http://" + cfg.GetServerAddr()})
	}
	if d := cfg.RefreshInterval(); d > 0 {
		rows = append(rows, [2]string{"Refresh", d.String()})
	}

	lines := []string{bannerTitle.Render("linkwatch"), ""}
	for _, r := range rows {
		lines = append(lines, labelStyle.Render(r[0])+r[1])
	}
	return bannerBox.Render(strings.Join(lines, "\n"))
}

// runLine renders the one-line outcome of a run.
func runLine(run models.Run, snap *session.Snapshot) string {
	var status string
	switch run.Status {
	case models.RunStatusComplete:
		status = okStyle.Render("rendered")
	case models.RunStatusEmpty:
		status = emptyStyle.Render("empty")
	default:
		status = failStyle.Render("failed")
	}

	parts := []string{
		mutedStyle.Render(run.FinishedAt.Format(time.TimeOnly)),
		status,
		mutedStyle.Render(string(run.Trigger)),
	}
	if run.Status == models.RunStatusError {
		parts = append(parts, run.Error)
		return strings.Join(parts, " ")
	}

	parts = append(parts, fmt.Sprintf("%s outages over %s days", humanize.Comma(int64(run.IntervalCount)), humanize.Comma(int64(run.DayCount))))
	if n := len(run.Errors); n > 0 {
		parts = append(parts, emptyStyle.Render(fmt.Sprintf("%s bad lines", humanize.Comma(int64(n)))))
	}
	if run.Image != nil {
		parts = append(parts, mutedStyle.Render(humanize.Bytes(uint64(run.Image.Size))))
	}
	if snap != nil && len(snap.Summary) > 0 {
		total := report.Totals(snap.Summary)
		parts = append(parts, fmt.Sprintf("%.2f%% up", total.Availability*100))
	}
	parts = append(parts, mutedStyle.Render(fmt.Sprintf("%dms", run.ProcessingTimeMs)))
	return strings.Join(parts, " ")
}
