package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dryxio/auto-re-agent/internal/report"
	"github.com/Dryxio/auto-re-agent/internal/store"
)

var (
	statusClass  string
	statusFormat string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show reversal progress",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusClass, "class", "", "Filter by class")
	statusCmd.Flags().StringVar(&statusFormat, "format", "text", "Output format: text, json, markdown")
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := store.Open(cfg.Output.ProgressDB)
	if err != nil {
		return fmt.Errorf("open progress db: %w", err)
	}
	defer st.Close()

	records, err := st.AllFunctions()
	if err != nil {
		return err
	}
	if statusClass != "" {
		var filtered []store.FunctionRecord
		for _, r := range records {
			if r.ClassName == statusClass {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	switch statusFormat {
	case "json":
		doc, err := report.FunctionTableJSON(records)
		if err != nil {
			return err
		}
		fmt.Println(doc)
	case "markdown":
		if len(records) == 0 {
			fmt.Println("No functions recorded yet.")
			return nil
		}
		fmt.Println("| Address | Class | Function | Status | Rounds | Time |")
		fmt.Println("|---------|-------|----------|--------|--------|------|")
		for _, r := range records {
			status := "FAIL"
			if r.Success {
				status = "PASS"
			}
			fmt.Printf("| %s | %s | %s | %s | %d | %s |\n",
				r.Address, r.ClassName, r.FunctionName, status, r.RoundsUsed, r.UpdatedAt)
		}
	case "text":
		if statusClass != "" {
			cs, err := st.ClassSummary(statusClass)
			if err != nil {
				return err
			}
			fmt.Println(report.FormatClassSummary(statusClass, cs))
			fmt.Println()
			fmt.Println(report.FormatFunctionTable(records))
			return nil
		}
		sum, err := st.Summary()
		if err != nil {
			return err
		}
		fmt.Println(report.FormatSummary(sum))
	default:
		return fmt.Errorf("unknown format: %s", statusFormat)
	}
	return nil
}
