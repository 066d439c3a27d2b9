// Package report renders reversal and parity results for the terminal and
// for machine-readable output.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Dryxio/auto-re-agent/internal/core"
	"github.com/Dryxio/auto-re-agent/internal/parity"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	greenStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	yellowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	redStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func statusLabel(success bool) string {
	if success {
		return passStyle.Render("PASS")
	}
	return failStyle.Render("FAIL")
}

func parityLabel(status core.ParityStatus) string {
	switch status {
	case core.ParityGreen:
		return greenStyle.Render(string(status))
	case core.ParityYellow:
		return yellowStyle.Render(string(status))
	case core.ParityRed:
		return redStyle.Render(string(status))
	}
	return string(status)
}

// FormatResult renders one reversal result for terminal display.
func FormatResult(result *core.ReversalResult, includeCode bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", result.Target.Symbol(), result.Target.Address)
	fmt.Fprintf(&b, "  Status: %s | Rounds: %d\n", statusLabel(result.Success), result.RoundsUsed)
	if v := result.CheckerVerdict; v != nil {
		fmt.Fprintf(&b, "  Verdict: %s\n", v.Verdict)
		if v.Summary != "" {
			fmt.Fprintf(&b, "  Summary: %s\n", v.Summary)
		}
		if len(v.Issues) > 0 {
			b.WriteString("  Issues:\n")
			for _, issue := range v.Issues {
				fmt.Fprintf(&b, "    - %s\n", issue)
			}
		}
	}
	if result.ParityStatus != "" {
		fmt.Fprintf(&b, "  Parity: %s\n", parityLabel(result.ParityStatus))
	}
	for _, f := range result.ParityFindings {
		fmt.Fprintf(&b, "    [%s] %s\n", f.Level, f.Reason)
	}
	if includeCode && result.Code != "" {
		b.WriteString("  Code:\n  ```cpp\n")
		for _, line := range strings.Split(result.Code, "\n") {
			fmt.Fprintf(&b, "  %s\n", line)
		}
		b.WriteString("  ```\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

type resultJSON struct {
	Address        string         `json:"address"`
	ClassName      string         `json:"class_name"`
	FunctionName   string         `json:"function_name"`
	Success        bool           `json:"success"`
	RoundsUsed     int            `json:"rounds_used"`
	Code           string         `json:"code,omitempty"`
	Verdict        string         `json:"verdict,omitempty"`
	Summary        string         `json:"summary,omitempty"`
	Issues         []string       `json:"issues,omitempty"`
	ParityStatus   string         `json:"parity_status,omitempty"`
	ParityFindings []core.Finding `json:"parity_findings,omitempty"`
}

// ResultsToJSON serializes results as a JSON document.
func ResultsToJSON(results []*core.ReversalResult) (string, error) {
	out := struct {
		Results []resultJSON `json:"results"`
	}{Results: make([]resultJSON, 0, len(results))}

	for _, r := range results {
		rj := resultJSON{
			Address:        r.Target.Address,
			ClassName:      r.Target.ClassName,
			FunctionName:   r.Target.FunctionName,
			Success:        r.Success,
			RoundsUsed:     r.RoundsUsed,
			Code:           r.Code,
			ParityStatus:   string(r.ParityStatus),
			ParityFindings: r.ParityFindings,
		}
		if v := r.CheckerVerdict; v != nil {
			rj.Verdict = string(v.Verdict)
			rj.Summary = v.Summary
			rj.Issues = v.Issues
		}
		out.Results = append(out.Results, rj)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ResultsToMarkdown formats results as a markdown table.
func ResultsToMarkdown(results []*core.ReversalResult) string {
	var b strings.Builder
	b.WriteString("| Address | Function | Status | Rounds | Parity |\n")
	b.WriteString("|---------|----------|--------|--------|--------|\n")
	for _, r := range results {
		status := "FAIL"
		if r.Success {
			status = "PASS"
		}
		par := string(r.ParityStatus)
		if par == "" {
			par = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %s |\n",
			r.Target.Address, r.Target.Symbol(), status, r.RoundsUsed, par)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatParityResult renders one parity triage line with its findings.
func FormatParityResult(res parity.Result) string {
	var b strings.Builder
	name := res.Hook.Symbol()
	if res.Hook.FnName == "" {
		name = mutedStyle.Render("(address only)")
	}
	fmt.Fprintf(&b, "%-7s %s %s\n", parityLabel(res.Status), res.Hook.Address, name)
	for _, f := range res.Findings {
		fmt.Fprintf(&b, "        [%s] %s\n", f.Level, f.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ParitySummary renders the aggregate green/yellow/red counts.
func ParitySummary(results []parity.Result) string {
	var green, yellow, red int
	for _, r := range results {
		switch r.Status {
		case core.ParityGreen:
			green++
		case core.ParityYellow:
			yellow++
		case core.ParityRed:
			red++
		}
	}
	return fmt.Sprintf("%d checked: %s %d, %s %d, %s %d",
		len(results),
		greenStyle.Render("green"), green,
		yellowStyle.Render("yellow"), yellow,
		redStyle.Render("red"), red)
}

// ParityResultsToJSON serializes parity results.
func ParityResultsToJSON(results []parity.Result) (string, error) {
	type entry struct {
		Address  string         `json:"address"`
		Symbol   string         `json:"symbol"`
		Status   string         `json:"status"`
		Findings []core.Finding `json:"findings,omitempty"`
		Source   string         `json:"source,omitempty"`
		Line     int            `json:"line,omitempty"`
	}
	out := struct {
		Results []entry `json:"results"`
	}{Results: make([]entry, 0, len(results))}
	for _, r := range results {
		e := entry{
			Address:  r.Hook.Address,
			Symbol:   r.Hook.Symbol(),
			Status:   string(r.Status),
			Findings: r.Findings,
		}
		if r.Source != nil {
			e.Source = r.Source.Path
			e.Line = r.Source.Line
		}
		out.Results = append(out.Results, e)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
