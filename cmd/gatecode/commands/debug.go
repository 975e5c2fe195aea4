package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gatecode-ai/gatecode/internal/config"
	"github.com/gatecode-ai/gatecode/internal/mode"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debug utilities",
	Long:  `Debug utilities for troubleshooting gatecode configuration and setup.`,
}

var debugConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show resolved configuration",
	RunE:  runDebugConfig,
}

var debugToolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Show the tool table per mode",
	RunE:  runDebugTools,
}

var debugPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show system paths",
	RunE:  runDebugPaths,
}

func init() {
	debugCmd.AddCommand(debugConfigCmd)
	debugCmd.AddCommand(debugToolsCmd)
	debugCmd.AddCommand(debugPathsCmd)
}

func runDebugConfig(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(data))
	return nil
}

func runDebugTools(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}

	_, _, registry, err := buildCore(workDir, cfg, config.GetPaths())
	if err != nil {
		return err
	}

	allModes := []mode.Mode{
		mode.ModeAuto, mode.ModeWrite, mode.ModeReadOnly,
		mode.ModeDocs, mode.ModeScratch, mode.ModeDebug,
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprint(w, "TOOL\tVISIBILITY")
	for _, m := range allModes {
		fmt.Fprintf(w, "\t%s", m)
	}
	fmt.Fprintln(w)

	for _, id := range registry.IDs() {
		vis, _ := registry.VisibilityOf(id)
		label := string(vis)
		if label == "" {
			label = "unclassified"
		}
		fmt.Fprintf(w, "%s\t%s", id, label)
		for _, m := range allModes {
			mark := "-"
			for _, t := range registry.Visible(m) {
				if t.ID() == id {
					mark = "x"
					break
				}
			}
			fmt.Fprintf(w, "\t%s", mark)
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func runDebugPaths(cmd *cobra.Command, args []string) error {
	paths := config.GetPaths()

	fmt.Println("gatecode system paths:")
	fmt.Println()
	fmt.Printf("  Config:   %s\n", paths.Config)
	fmt.Printf("  Data:     %s\n", paths.Data)
	fmt.Printf("  Storage:  %s\n", paths.StoragePath())
	fmt.Printf("  Agents:   %s\n", paths.AgentPath())

	return nil
}
