package main

import (
	"fmt"
	"os"
	"path/filepath"

	"autonomy/internal/config"
	"autonomy/internal/logging"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	// Logger is built once per invocation and handed to every component.
	logger *logging.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "autonomy",
	Short: "Autonomous backlog and tuning loops with git checkpoints",
	Long: `autonomy drives a markdown task backlog and a tunable artifact parameter
through cooperating roles:

  producer   claims the first pending task, produces it and checkpoints
  validator  checks the task in progress; pass completes it, fail reverts
  tuner      nudges the artifact parameter within its bounds and checkpoints
  quality    checks the workspace; fail reverts the last checkpoint

Run a single role once, or drive the task and tune loops until interrupted.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(ws)
		if err != nil {
			return err
		}

		logCfg := logging.Config{
			Level:      cfg.Logging.Level,
			Format:     cfg.Logging.Format,
			File:       config.Resolve(ws, cfg.Logging.File),
			Categories: cfg.Logging.Categories,
		}
		if verbose {
			logCfg.Level = "debug"
		}
		logger, err = logging.New(logCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/.autonomy/config.yaml)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(produceCmd, validateCmd, tuneCmd, qualityCmd)
	rootCmd.AddCommand(loopCmd)
	rootCmd.AddCommand(backlogCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(dashboardCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveWorkspace returns the absolute workspace directory.
func resolveWorkspace() (string, error) {
	ws := workspace
	if ws == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		ws = cwd
	}
	abs, err := filepath.Abs(ws)
	if err != nil {
		return "", fmt.Errorf("invalid workspace %q: %w", ws, err)
	}
	return abs, nil
}

// loadConfig reads and validates the workspace config.
func loadConfig(ws string) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath(ws)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
