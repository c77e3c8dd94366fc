package main

import (
	"os"

	"github.com/spf13/cobra"

	"jarvis/internal/config"
)

var (
	cfgFile  string
	envFile  string
	socket   string
	logLevel string
	jsonOut  bool
)

var rootCmd = &cobra.Command{
	Use:   "jarvis-ctl",
	Short: "Control the jarvis assistant",
	Long: `Control the jarvis assistant.

Daemon commands talk to jarvis-daemon over its control socket. Task
commands edit the shared task list directly.

Examples:
  jarvis-ctl status
  jarvis-ctl journal -n 5
  jarvis-ctl tasks add "Buy milk"
  jarvis-ctl follow`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.InitLogger(os.Stderr, logLevel)
		_ = config.LoadEnv(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "jarvis.toml", "config file path")
	rootCmd.PersistentFlags().StringVarP(&envFile, "env", "e", ".env", "env file path")
	rootCmd.PersistentFlags().StringVar(&socket, "socket", "", "control socket (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log", "l", "warn", "log level")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	res := config.Load(cfgFile)
	if res.ParseError != nil {
		return res.Config, res.ParseError
	}
	if socket != "" {
		res.Config.IPC.Socket = socket
	}
	return res.Config, nil
}
