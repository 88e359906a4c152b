package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fentz26/taskman/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskman",
	Short: "taskman - task tracker with a terminal UI",
	Long:  `taskman keeps a list of tasks on a small HTTP service and lets you manage them from a terminal UI or one-shot commands.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd, cmd.ErrOrStderr())
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr    string
	configPath string
	logLevel   string

	// Populated by loadConfig before any subcommand runs.
	cfg     *config.Config
	cfgFile string
	logger  *slog.Logger
)

// logLevelVar lets the server change its log level when the config file changes.
var logLevelVar = new(slog.LevelVar)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "", "API server address (default from config, http://127.0.0.1:8000)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.taskman/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command, logOut io.Writer) error {
	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	c, err := config.Load(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("api") {
		c.APIURL = apiAddr
	}
	if flags.Changed("log-level") {
		c.LogLevel = logLevel
	}
	if err := c.Validate(); err != nil {
		return err
	}

	level, _ := config.ParseLevel(c.LogLevel)
	logLevelVar.Set(level)
	cfg = c
	cfgFile = path
	logger = slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: logLevelVar}))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
