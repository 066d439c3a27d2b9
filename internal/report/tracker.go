package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Dryxio/auto-re-agent/internal/store"
)

var headerStyle = lipgloss.NewStyle().Bold(true)

// FormatSummary renders the aggregate progress summary.
func FormatSummary(sum store.Summary) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("reagent Progress Summary"))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", 40))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Total functions: %d\n", sum.TotalFunctions)
	fmt.Fprintf(&b, "Passed:          %s\n", greenStyle.Render(fmt.Sprintf("%d", sum.Passed)))
	fmt.Fprintf(&b, "Failed:          %s\n", redStyle.Render(fmt.Sprintf("%d", sum.Failed)))
	fmt.Fprintf(&b, "Classes touched: %d", sum.ClassesTouched)
	return b.String()
}

// FormatClassSummary renders per-class progress.
func FormatClassSummary(className string, cs store.ClassSummary) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(className))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", 40))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Total:  %d\n", cs.Total)
	fmt.Fprintf(&b, "Passed: %s\n", greenStyle.Render(fmt.Sprintf("%d", cs.Passed)))
	fmt.Fprintf(&b, "Failed: %s", redStyle.Render(fmt.Sprintf("%d", cs.Failed)))
	return b.String()
}

// FormatFunctionTable renders recorded functions as an aligned text table.
func FormatFunctionTable(records []store.FunctionRecord) string {
	if len(records) == 0 {
		return "No functions recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-36s %-6s %-6s %-7s %s\n",
		"ADDRESS", "FUNCTION", "STATUS", "ROUNDS", "PARITY", "UPDATED")
	for _, r := range records {
		name := r.FunctionName
		if r.ClassName != "" {
			name = r.ClassName + "::" + r.FunctionName
		}
		status := "FAIL"
		if r.Success {
			status = "PASS"
		}
		par := r.ParityStatus
		if par == "" {
			par = "-"
		}
		fmt.Fprintf(&b, "%-12s %-36s %-6s %-6d %-7s %s\n",
			r.Address, name, status, r.RoundsUsed, par, r.UpdatedAt)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FunctionTableJSON serializes recorded functions.
func FunctionTableJSON(records []store.FunctionRecord) (string, error) {
	out := struct {
		Functions []store.FunctionRecord `json:"functions"`
	}{Functions: records}
	if out.Functions == nil {
		out.Functions = []store.FunctionRecord{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
