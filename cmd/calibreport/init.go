package main

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/calibreport/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

//go:embed templates/calibreport.yaml
var configTemplate embed.FS

// configFileName is the default configuration file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new calibreport configuration file",
		Long: `Initialize creates a new .calibreport configuration file in the current directory.

The generated file documents every setting with its default value commented
out. Settings can also be given as CALIBREPORT_* environment variables, and
command-line flags override both.

Examples:
  # Create .calibreport in current directory
  calibreport init

  # Create config file at a specific path
  calibreport init -o myconfig.yaml

  # Force overwrite existing file
  calibreport init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := templateContent()
	if err != nil {
		return err
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to change defaults such as:")
	fmt.Fprintln(out, "  - Bin count and binning strategy")
	fmt.Fprintln(out, "  - Output format")
	fmt.Fprintln(out, "  - Archive and metrics locations")

	return nil
}

// templateContent returns the embedded template after checking that it
// parses with the same strict schema the loader uses.
func templateContent() ([]byte, error) {
	content, err := configTemplate.ReadFile("templates/calibreport.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read config template: %w", err)
	}

	var f config.File
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("invalid config template: %w", err)
	}
	return content, nil
}
