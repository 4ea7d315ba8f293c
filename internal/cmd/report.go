package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/depgraph"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/orchestrator"
	"github.com/taihochan/superclaude-code-pm-sub001/internal/task"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// reportWidth returns the terminal width, defaulting when not a tty.
func reportWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		return w
	}
	return 80
}

// renderResult formats an execution result as a styled report.
func renderResult(name string, result *orchestrator.ExecutionResult) string {
	var sb strings.Builder

	header := "Plan"
	if name != "" {
		header = name
	}
	verdict := okStyle.Render("completed")
	switch result.Status {
	case orchestrator.PlanFailed:
		verdict = failStyle.Render("failed")
	case orchestrator.PlanCancelled:
		verdict = skipStyle.Render("cancelled")
	}
	sb.WriteString(titleStyle.Render(header) + " " + verdict + "\n\n")

	ids := make([]string, 0, len(result.Results))
	for id := range result.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		res := result.Results[id]
		mark := okStyle.Render("✓")
		detail := res.Duration().Round(time.Millisecond).String()
		switch res.Status {
		case task.StatusFailed:
			mark = failStyle.Render("✗")
			detail = res.Error
		case task.StatusSkipped:
			mark = skipStyle.Render("-")
			detail = res.Error
		case task.StatusCancelled:
			mark = skipStyle.Render("!")
			detail = "cancelled"
		}
		line := fmt.Sprintf("  %s %-24s %s", mark, id, mutedStyle.Render(detail))
		sb.WriteString(truncate(line, reportWidth()) + "\n")
	}

	p := result.Progress
	sb.WriteString(fmt.Sprintf("\n%d completed, %d failed, %d skipped of %d tasks\n",
		p.Completed, p.Failed, p.Skipped, p.Total))
	sb.WriteString(mutedStyle.Render(fmt.Sprintf(
		"%d phases in %s (%.1f tasks/s)",
		result.Metrics.Phases,
		result.Metrics.Elapsed.Round(time.Millisecond),
		result.Metrics.Throughput)) + "\n")
	return sb.String()
}

// renderAnalysis formats a dependency analysis as a styled report.
func renderAnalysis(name string, analysis *depgraph.Analysis) string {
	var sb strings.Builder

	header := "Plan"
	if name != "" {
		header = name
	}
	sb.WriteString(titleStyle.Render(header) + mutedStyle.Render(
		fmt.Sprintf(" · %d tasks, %d phases", len(analysis.Nodes), len(analysis.Phases))) + "\n\n")

	sb.WriteString(sectionStyle.Render("Phases") + "\n")
	for i, phase := range analysis.Phases {
		sb.WriteString(fmt.Sprintf("  %d: %s\n", i, strings.Join(phase, ", ")))
	}

	if len(analysis.CriticalPath) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Critical path") + "\n")
		sb.WriteString("  " + strings.Join(analysis.CriticalPath, " → ") + "\n")
		sb.WriteString(mutedStyle.Render(fmt.Sprintf(
			"  estimated minimum duration: %s", analysis.TotalDuration)) + "\n")
	}

	slackful := make([]string, 0)
	for _, id := range analysis.Order {
		n := analysis.Nodes[id]
		if !n.OnCriticalPath && n.Slack > 0 {
			slackful = append(slackful, fmt.Sprintf("%s (%s)", id, n.Slack))
		}
	}
	if len(slackful) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Slack") + "\n")
		sb.WriteString("  " + strings.Join(slackful, ", ") + "\n")
	}
	return sb.String()
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

// derefForAnalysis converts task pointers into the value slice the
// resolver consumes.
func derefForAnalysis(tasks []*task.Task) []task.Task {
	out := make([]task.Task, len(tasks))
	for i, t := range tasks {
		out[i] = *t
	}
	return out
}
