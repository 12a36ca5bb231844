package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rmaia-dev/lotobot/internal/config"
	"github.com/rmaia-dev/lotobot/internal/flow"
	"github.com/rmaia-dev/lotobot/internal/observability"
)

var cfgFile string

// Exit codes. Wrapper scripts branch on these, so the mapping is part of
// the CLI contract.
const (
	exitOK         = 0
	exitFlowFailed = 1
	exitBadConfig  = 2
	exitUnexpected = 3
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "lotobot",
	Short:   "lotobot automates a lottery purchase from a saved favorite cart.",
	Version: Version,
	// Exit codes carry the failure class, so cobra's own error output is
	// suppressed in favor of Execute's handling.
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(); err != nil {
			return err
		}

		// Logging comes up before the config is fully validated so that
		// validation failures are themselves logged.
		var cfg config.Config
		if err := viper.Unmarshal(&cfg); err != nil {
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console"})
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}
		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Info("Starting lotobot", zap.String("version", Version))
		return nil
	},
}

// Execute runs the root command and maps the error class to an exit code:
// 0 success, 1 automation failure, 2 configuration error, 3 unexpected.
func Execute(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	observability.Sync()
	if err == nil {
		os.Exit(exitOK)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	var vErr *config.ValidationError
	if errors.As(err, &vErr) {
		return exitBadConfig
	}
	var fErr *flow.Error
	if errors.As(err, &fErr) {
		return exitFlowFailed
	}
	return exitUnexpected
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// initializeConfig reads in the config file and ENV variables if set.
func initializeConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars.
	}
	return nil
}
