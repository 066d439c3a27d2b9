package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Dryxio/auto-re-agent/internal/config"
)

var initProfile string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a config file in the current directory",
	Long: `Writes a commented default config. Pass --profile to overlay a
built-in project profile (hook macros, stub markers, source layout)
for a known reimplementation codebase.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initProfile, "profile", "", "Built-in project profile template")
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists: %s\n", cfgPath)
		fmt.Println("Delete it first if you want to regenerate.")
		return fmt.Errorf("config exists")
	}

	c := config.DefaultConfig()
	if initProfile != "" {
		profile, ok := config.ProfileTemplates[initProfile]
		if !ok {
			names := make([]string, 0, len(config.ProfileTemplates))
			for name := range config.ProfileTemplates {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Printf("Unknown profile: %s\n", initProfile)
			fmt.Printf("Available profiles: %s\n", strings.Join(names, ", "))
			return fmt.Errorf("unknown profile")
		}
		fmt.Printf("Using profile template: %s\n", initProfile)
		c.Profile = profile
	}

	if err := c.Save(cfgPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("Created %s\n", cfgPath)
	fmt.Println("Edit it to configure your LLM provider, backend, and project profile.")
	return nil
}
