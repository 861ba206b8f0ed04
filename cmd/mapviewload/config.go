package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// secretKeys are masked by "config" and "config get".
var secretKeys = map[string]bool{
	"database.password":  true,
	"storage.secret_key": true,
}

const masked = "********"

func newConfigCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage mapviewload configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.mapviewload.yaml unless --config is given.",
		Example: `  mapviewload config                                  # show resolved config
  mapviewload config set reference.path genes.duckdb  # set a value
  mapviewload config get duplicates.mode              # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(v, cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(newConfigSetCmd(v))
	cmd.AddCommand(newConfigGetCmd(v))

	return cmd
}

func newConfigSetCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(v, cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func newConfigGetCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(v, cmd.OutOrStdout(), args[0])
		},
	}
}

func runConfigShow(v *viper.Viper, w io.Writer) error {
	settings := v.AllSettings()
	maskSecrets(settings, "")

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if f := v.ConfigFileUsed(); f != "" {
		fmt.Fprintf(w, "# Config file: %s\n", f)
	}
	fmt.Fprint(w, string(out))
	return nil
}

// runConfigSet writes key into the config file only, so values that came
// from the environment or defaults are not persisted.
func runConfigSet(v *viper.Viper, w io.Writer, key, value string) error {
	key = strings.ToLower(key)
	if !isKnownKey(v, key) {
		return fmt.Errorf("unknown config key %q", key)
	}

	cfgFile, err := defaultConfigFile(v)
	if err != nil {
		return err
	}

	file := viper.New()
	file.SetConfigFile(cfgFile)
	file.SetConfigType("yaml")
	if err := file.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading config: %w", err)
	}

	switch value {
	case "true", "yes", "on":
		file.Set(key, true)
	case "false", "no", "off":
		file.Set(key, false)
	default:
		file.Set(key, value)
	}

	if err := file.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if secretKeys[key] {
		value = masked
	}
	fmt.Fprintf(w, "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(v *viper.Viper, w io.Writer, key string) error {
	key = strings.ToLower(key)
	if !v.IsSet(key) {
		return fmt.Errorf("key %q is not set", key)
	}
	if secretKeys[key] && v.GetString(key) != "" {
		fmt.Fprintln(w, masked)
		return nil
	}
	fmt.Fprintln(w, v.Get(key))
	return nil
}

func isKnownKey(v *viper.Viper, key string) bool {
	for _, k := range v.AllKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// maskSecrets replaces non-empty secret values in a nested settings map.
func maskSecrets(settings map[string]any, prefix string) {
	for k, val := range settings {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			maskSecrets(nested, key)
			continue
		}
		if secretKeys[key] && fmt.Sprint(val) != "" {
			settings[k] = masked
		}
	}
}
