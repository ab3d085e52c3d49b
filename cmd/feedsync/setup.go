// ABOUTME: Cobra command for interactive feedsync configuration.
// ABOUTME: Launches a bubbletea TUI wizard to select backend, data directory, and feed source.
package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/config"
	"github.com/harper/feedsync/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure feedsync",
	Long:  "Interactive wizard to configure the storage backend, data directory, and feed source.",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	model := tui.NewSetupModel(cfg)

	p := tea.NewProgram(model)
	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	final := result.(tui.SetupModel)
	if !final.ShouldSave() {
		fmt.Println("Setup canceled.")
		return nil
	}

	if err := saveConfig(final.Result()); err != nil {
		return err
	}
	return nil
}

// saveConfig writes c to --config when given, otherwise the default path.
func saveConfig(c *config.Config) error {
	path := config.GetConfigPath()
	if configPath != "" {
		path = config.ExpandPath(configPath)
	}
	if err := c.SaveTo(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Printf("Config saved to %s\n", path)
	return nil
}
