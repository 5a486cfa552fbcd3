// Package cmd implements the daemon's CLI entrypoint: configuration
// loading and logging setup (the "ambient" concerns explicitly named as
// outside the core's scope), built around a single wired daemon.Daemon.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/projecteru2/cocoon/config"
)

var (
	cfgFile string
	conf    *config.Config
)

var rootCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "buildopd",
		Short:        "buildopd - build automation operation daemon",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.PersistentFlags().String("root-dir", "", "project root directory")
	cmd.PersistentFlags().String("store-backend", "", `operation store backend: "bolt" or "json"`)
	cmd.PersistentFlags().String("store-path", "", "operation store file path")
	cmd.PersistentFlags().String("audit-log-path", "", "audit log file path")
	cmd.PersistentFlags().Int("git-clone-timeout-secs", 0, "git clone/checkout timeout, seconds")
	cmd.PersistentFlags().StringSlice("git-allowed-domains", nil, "allowed git source hosts (empty = unrestricted)")
	cmd.PersistentFlags().Int("verb-timeout-secs", 0, "verb execution timeout, seconds")
	cmd.PersistentFlags().Bool("mock-execution", false, "synthesize local mock tool commands instead of container runner commands")
	cmd.PersistentFlags().String("image-tag", "", "container image tag for verb execution")
	cmd.PersistentFlags().String("actor", "", "default actor identifier for audit events")
	cmd.PersistentFlags().String("session-id", "", "default session identifier for audit events")

	for flag, key := range map[string]string{
		"root-dir":               "root_dir",
		"store-backend":          "store_backend",
		"store-path":             "store_path",
		"audit-log-path":         "audit_log_path",
		"git-clone-timeout-secs": "git_clone_timeout_secs",
		"git-allowed-domains":    "git_allowed_domains",
		"verb-timeout-secs":      "verb_timeout_secs",
		"mock-execution":         "mock_execution",
		"image-tag":              "image_tag",
		"actor":                  "default_actor",
		"session-id":             "default_session",
	} {
		_ = viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag))
	}

	viper.SetEnvPrefix("BUILDOPD")
	viper.AutomaticEnv()

	cmd.AddCommand(runCmd(), cancelCmd(), housekeepCmd())
	return cmd
}()

// Execute is the entrypoint called from main.go.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}

func initConfig(ctx context.Context) error {
	conf = config.DefaultConfig()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	if err := viper.Unmarshal(conf); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	// Bound flags report their own zero value when unset, which would
	// otherwise clobber DefaultConfig()'s values above. Re-apply defaults
	// for every field whose zero value isn't a meaningful setting.
	defaults := config.DefaultConfig()
	if conf.RootDir == "" {
		conf.RootDir = defaults.RootDir
	}
	if conf.PoolSize <= 0 {
		conf.PoolSize = runtime.NumCPU()
	}
	if conf.StoreBackend == "" {
		conf.StoreBackend = defaults.StoreBackend
	}
	if conf.GitCloneTimeoutSec <= 0 {
		conf.GitCloneTimeoutSec = defaults.GitCloneTimeoutSec
	}
	if conf.VerbTimeoutSec <= 0 {
		conf.VerbTimeoutSec = defaults.VerbTimeoutSec
	}
	if conf.ImageTag == "" {
		conf.ImageTag = defaults.ImageTag
	}
	if conf.DefaultActor == "" {
		conf.DefaultActor = defaults.DefaultActor
	}
	if conf.Log.Level == "" {
		conf.Log = defaults.Log
	}

	return log.SetupLog(ctx, conf.Log, "")
}
