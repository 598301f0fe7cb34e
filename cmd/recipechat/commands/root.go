// Package commands provides the CLI commands for recipechat.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/recipechat/internal/config"
	"github.com/opencode-ai/recipechat/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs bool
	logLevel  string
	workDir   string
	envFile   string
)

var rootCmd = &cobra.Command{
	Use:   "recipechat",
	Short: "recipechat - recipe-driven coding assistant chat",
	Long: `recipechat runs chat recipes (questions, code explanations, codebase
searches) against a language model with codebase context.

Run 'recipechat serve' to expose chat views over HTTP, or 'recipechat ask'
for a one-shot question.`,
	Version:           Version,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Close()
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().StringVar(&workDir, "directory", "", "Workspace directory")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before the configuration")

	rootCmd.SetVersionTemplate(fmt.Sprintf("recipechat %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(historyCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads the environment file and initializes logging.
func setup(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(logLevel)
	logCfg.Pretty = true
	if !printLogs {
		logCfg.Output = io.Discard
		logCfg.LogToFile = true
		logCfg.LogDir = paths.LogPath()
	}
	logging.Init(logCfg)
	return nil
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
