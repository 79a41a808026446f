package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/atinylittleshell/yarnspec/internal/bash"
	"github.com/atinylittleshell/yarnspec/internal/completion"
	"github.com/atinylittleshell/yarnspec/internal/config"
	"github.com/atinylittleshell/yarnspec/internal/core"
	"github.com/atinylittleshell/yarnspec/internal/session"
	"github.com/atinylittleshell/yarnspec/internal/styles"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var BUILD_VERSION = "dev"

var (
	configPath string
	logLevel   string

	// Loaded in PersistentPreRunE and shared by every command.
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "yarnspec",
	Short: "Yarn workspace script completions for shell autocompletion engines",
	Long: `yarnspec discovers the namespaced scripts ("build:web", "test:unit") of every
workspace in a Yarn monorepo and serves them as completion suggestions.

Run "yarnspec serve" from a completion host to answer newline-delimited JSON
requests over stdin/stdout, or "yarnspec resolve" for a one-off lookup.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded

		logger, err = initializeLogger(cfg)
		if err != nil {
			return err
		}
		logger.Info("-------- new yarnspec session --------", zap.Any("args", os.Args))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.yarnspec/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(newResolveCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, styles.ERROR("yarnspec: "+err.Error()))
		if logger != nil {
			logger.Error("unhandled error", zap.Error(err))
			_ = logger.Sync()
		}
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = core.ConfigFile()
	}

	loaded, err := config.NewLoader(nil).LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		loaded.LogLevel = logLevel
		if err := loaded.Validate(); err != nil {
			return nil, err
		}
	}
	return loaded, nil
}

func initializeLogger(c *config.Config) (*zap.Logger, error) {
	level, err := c.Level()
	if err != nil {
		return nil, err
	}
	if BUILD_VERSION == "dev" && logLevel == "" {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logFile := c.LogFile
	if logFile == "" {
		logFile = core.LogFile()
	}

	// Logs only go to file: stdout carries the completion protocol.
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = level
	loggerConfig.OutputPaths = []string{logFile}
	loggerConfig.ErrorOutputPaths = []string{logFile}

	return loggerConfig.Build()
}

// newSession wires a shell rooted at dir to a fresh resolver cache.
func newSession(dir string) (*session.Session, error) {
	shell, err := bash.NewShell(bash.Options{
		Dir:         dir,
		KillTimeout: cfg.KillTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	resolver := completion.NewResolver(completion.NewCache(), completion.Options{
		Binary:           cfg.YarnBinary,
		Icon:             cfg.Icon,
		MaxParallelReads: cfg.MaxParallelReads,
		Logger:           logger,
	})

	return session.New(shell, resolver, session.Options{
		Timeout: cfg.Timeout,
		Logger:  logger,
	}), nil
}
