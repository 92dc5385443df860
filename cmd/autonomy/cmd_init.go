package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"autonomy/internal/config"

	"github.com/spf13/cobra"
)

const backlogTemplate = `# Backlog

Tasks use "- [ ]" (pending), "- [/]" (in progress) and "- [x]" (done).

`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .autonomy/ with a default config and an empty backlog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd.OutOrStdout())
	},
}

func runInit(out io.Writer) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	path, err := config.Init(ws)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Config: %s\n", path)

	// Keep state out of git checkpoints.
	ignore := filepath.Join(ws, config.Dir, ".gitignore")
	if err := writeIfAbsent(ignore, []byte("*\n")); err != nil {
		return err
	}

	cfg, err := loadConfig(ws)
	if err != nil {
		return err
	}
	backlogPath := config.Resolve(ws, cfg.Backlog.Path)
	if err := writeIfAbsent(backlogPath, []byte(backlogTemplate)); err != nil {
		return err
	}
	fmt.Fprintf(out, "Backlog: %s\n", backlogPath)
	return nil
}

func writeIfAbsent(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func configPathFor(ws string) string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath(ws)
}
