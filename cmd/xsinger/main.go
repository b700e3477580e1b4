// Command xsinger inspects and forwards singer protocol streams.
//
//	tap-postgres | xsinger normalize --sink redis --config xsinger.toml
//	xsinger validate < out.jsonl
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xlog/adapter/zerolog"
)

// cli holds the resolved global settings of one invocation.
type cli struct {
	configPath string
	logLevel   string
	console    bool

	cfg    fileConfig
	logger *xlog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "xsinger <command>",
		Short:         "Validate and forward singer tap output",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("XSINGER_CONFIG"), "TOML config file (env XSINGER_CONFIG)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	root.PersistentFlags().BoolVar(&c.console, "console", false, "human-readable logs on stderr")

	root.AddCommand(newNormalizeCmd(c))
	root.AddCommand(newValidateCmd(c))
	return root
}

// setup loads the config file, applies flag overrides and installs the logger.
// Logs always go to stderr so stdout stays a clean protocol stream.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = c.logLevel
	}
	if cmd.Flags().Changed("console") {
		cfg.Console = c.console
	}
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = zerolog.Use(zerolog.Config{
		MinLevel:          level,
		Console:           cfg.Console,
		ConsoleTimeFormat: time.RFC3339,
		Writer:            cmd.ErrOrStderr(),
	}).With(xlog.Str("app", "xsinger"), xlog.Str("command", cmd.Name()))
	return nil
}

func parseLevel(s string) (xlog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return xlog.LevelDebug, nil
	case "", "info":
		return xlog.LevelInfo, nil
	case "warn", "warning":
		return xlog.LevelWarn, nil
	case "error":
		return xlog.LevelError, nil
	}
	return xlog.LevelInfo, fmt.Errorf("config: unknown log level %q", s)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "xsinger:", err)
		os.Exit(1)
	}
}
