// Package main provides the mapviewload command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/mapviewload/internal/config"
	"github.com/inodb/mapviewload/internal/logger"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(viper.New()).ExecuteContext(ctx); err != nil {
		reportError(err)
		return ExitError
	}
	return ExitSuccess
}

// reportError logs a command failure on stderr.
func reportError(err error) {
	l, logErr := logger.New(&logger.Config{Level: "debug", Format: "console"})
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	defer l.Sync()

	var missing *config.MissingError
	if errors.As(err, &missing) {
		for _, name := range missing.Fields {
			l.Error("environment variable not set", zap.String("variable", name))
		}
	}
	l.Error("command failed", zap.Error(err))
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var (
		cfgFile string
		envFile string
	)

	root := &cobra.Command{
		Use:   "mapviewload",
		Short: "Load human gene coordinates from NCBI MapView",
		Long: `mapviewload cross-references NCBI MapView seq_gene features against the
reference human gene table and writes a coordinate file for loading, plus
chromosome, nomenclature and multiple-coordinate discrepancy reports.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile, envFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default: ./.mapviewload.yaml or ~/.mapviewload.yaml)")
	flags.StringVar(&envFile, "env-file", ".env", "Environment file loaded before reading the environment")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "console", "Log format: console, json")
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))

	root.AddCommand(newRunCmd(v))
	root.AddCommand(newReferenceCmd(v))
	root.AddCommand(newDownloadCmd(v))
	root.AddCommand(newConfigCmd(v))

	return root
}

// initConfig wires defaults, environment and the optional config file into v.
func initConfig(v *viper.Viper, cfgFile, envFile string) error {
	if err := config.Setup(v, envFile); err != nil {
		return err
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}

	v.SetConfigName(".mapviewload")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// bindFlags binds the named flags of cmd to config keys. Binding happens
// once the command is selected, since viper keeps one flag per key.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) error {
	for key, name := range keys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// defaultConfigFile returns the config file written by "config set".
func defaultConfigFile(v *viper.Viper) (string, error) {
	if f := v.ConfigFileUsed(); f != "" {
		return f, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".mapviewload.yaml"), nil
}
