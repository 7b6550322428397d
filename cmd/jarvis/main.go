package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"go-jarvis/internal/config"
	"go-jarvis/internal/logging"
)

var (
	// Global flags
	configPath string
	envPath    string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "jarvis",
	Short: "JARVIS - a voice and text assistant that knows when to search",
	Long: `jarvis answers spoken or typed questions.

Each utterance is routed: time questions are answered from the local clock,
casual remarks go straight to the language model, and questions that need
fresh facts are turned into search keywords, looked up on the web and
summarised into a short spoken answer.

Run without arguments to start an interactive text conversation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(envPath); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
		c, err := config.LoadOrDefault(configPath)
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			c.Logging.Level = logLevel
		}
		cfg = c
		logger = logging.Setup(cfg.Logging.Level)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

func init() {
	addGlobalFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(chatCmd, askCmd, serveCmd, voiceCmd, triggerCmd, timeCmd)
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&configPath, "config", "c", "config.json", "path to the JSON config file")
	fs.StringVar(&envPath, "env", ".env", "path to an optional .env file")
	fs.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
