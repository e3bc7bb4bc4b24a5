package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/momentics/hioload-mq/control"
	"github.com/momentics/hioload-mq/facade"
	"github.com/momentics/hioload-mq/logger"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
	timeout  time.Duration

	// Shared state set during PersistentPreRun
	cfg   *control.Config
	log   *zap.Logger
	level zap.AtomicLevel
)

var rootCmd = &cobra.Command{
	Use:   "hioload-mq",
	Short: "Reactive request/reply, push/pull and router/dealer channels over tcp and inproc",
	Long: `hioload-mq binds or connects a single channel and either serves inbound
messages or sends the given ones. Values travel as UTF-8 strings.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = control.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		log, level, err = logger.NewWithLevel(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func newFacade() (*facade.HioloadMQ, error) {
	return facade.New(cfg, facade.WithLogger(log))
}

// watchConfig applies log level changes from --config while serving. A level
// forced with --log-level wins over the file.
func watchConfig() (func(), error) {
	if cfgFile == "" || logLevel != "" {
		return func() {}, nil
	}
	r, err := control.NewReloader(cfgFile, log)
	if err != nil {
		return nil, err
	}
	r.OnReload(func(c *control.Config) {
		l, err := logger.ParseLevel(c.Log.Level)
		if err != nil {
			return
		}
		level.SetLevel(l.Level())
	})
	return func() { _ = r.Close() }, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./hioload-mq.yaml, ./config, /etc/hioload-mq)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait for connects and replies")
	rootCmd.AddCommand(serveCmd, sendCmd)
}
