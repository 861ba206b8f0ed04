// Package config loads and validates mapviewload configuration.
//
// Values are resolved by viper in this order: flags, environment, the YAML
// config file, a .env file, then the defaults declared in struct tags. The
// environment names used by the original load scripts (MAPVIEW_FILE,
// INPUT_COORD_FILE, MAPVIEWQC_ChrMisMatch, ...) are bound explicitly.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/inodb/mapviewload/internal/database"
	"github.com/inodb/mapviewload/internal/logger"
	"github.com/inodb/mapviewload/internal/reconcile"
	"github.com/inodb/mapviewload/internal/storage"
)

// Config holds all configuration for a load.
type Config struct {
	// Paths holds the input and output file locations.
	Paths Paths `mapstructure:"paths"`
	// Reference selects where reference genes come from.
	Reference Reference `mapstructure:"reference"`
	// Duplicates controls multiple-coordinate detection.
	Duplicates Duplicates `mapstructure:"duplicates"`
	// Database holds the MGI database connection (reference.source=mgi).
	Database database.Config `mapstructure:"database"`
	// Storage holds the optional object storage publishing target.
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
}

// Paths holds the input file and the five output files.
type Paths struct {
	Mapview        string `mapstructure:"mapview"`
	Coordinates    string `mapstructure:"coordinates"`
	Staging        string `mapstructure:"staging"`
	ChrMismatch    string `mapstructure:"chr_mismatch"`
	NomenMismatch  string `mapstructure:"nomen_mismatch"`
	MultipleCoords string `mapstructure:"multiple_coords"`
}

// Reference source names.
const (
	SourceTSV    = "tsv"
	SourceDuckDB = "duckdb"
	SourceMGI    = "mgi"
)

// Reference selects the reference gene backend.
type Reference struct {
	// Source is one of tsv, duckdb, mgi.
	Source string `mapstructure:"source" default:"duckdb"`
	// Path is the TSV file or DuckDB database for the tsv and duckdb sources.
	Path string `mapstructure:"path" default:""`
}

// Duplicates controls how repeated gene identifiers are classified.
type Duplicates struct {
	// Mode is count (more than one occurrence) or parity (legacy toggle behaviour).
	Mode string `mapstructure:"mode" default:"count"`
}

// legacyEnv maps config keys to the environment variables of the original scripts.
var legacyEnv = map[string]string{
	"paths.mapview":         "MAPVIEW_FILE",
	"paths.coordinates":     "INPUT_COORD_FILE",
	"paths.staging":         "INPUT_COORD_STAGING_FILE",
	"paths.chr_mismatch":    "MAPVIEWQC_ChrMisMatch",
	"paths.nomen_mismatch":  "MAPVIEWQC_NomenMisMatch",
	"paths.multiple_coords": "MAPVIEWQC_MultipleCoord",
	"reference.path":        "MAPVIEW_REFERENCE",
}

// EnvName returns the environment variable bound to a config key.
func EnvName(key string) string {
	if name, ok := legacyEnv[key]; ok {
		return name
	}
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Setup registers defaults, environment bindings and the optional .env file
// on v. envFile may be empty.
func Setup(v *viper.Viper, envFile string) error {
	if envFile != "" {
		// A missing .env is not an error.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	bindValues(v, Config{}, "")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return nil
}

// Load unmarshals the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// MissingError lists required settings that are unset, by environment name.
type MissingError struct {
	Fields []string
}

func (e *MissingError) Error() string {
	return "environment variable not set: " + strings.Join(e.Fields, ", ")
}

// Validate checks that every required setting is present and valid. All
// missing settings are reported together in a *MissingError.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"paths.mapview", c.Paths.Mapview},
		{"paths.coordinates", c.Paths.Coordinates},
		{"paths.staging", c.Paths.Staging},
		{"paths.chr_mismatch", c.Paths.ChrMismatch},
		{"paths.nomen_mismatch", c.Paths.NomenMismatch},
		{"paths.multiple_coords", c.Paths.MultipleCoords},
	}
	if c.Reference.Source != SourceMGI {
		required = append(required, struct {
			key   string
			value string
		}{"reference.path", c.Reference.Path})
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, EnvName(r.key))
		}
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, &MissingError{Fields: missing})
	}

	switch c.Reference.Source {
	case SourceTSV, SourceDuckDB, SourceMGI:
	default:
		errs = append(errs, fmt.Errorf("unknown reference source %q (want %s, %s or %s)",
			c.Reference.Source, SourceTSV, SourceDuckDB, SourceMGI))
	}

	if _, err := reconcile.ParseMode(c.Duplicates.Mode); err != nil {
		errs = append(errs, err)
	}

	if c.Storage.Enabled && c.Storage.Bucket == "" {
		errs = append(errs, errors.New("storage.bucket is required when storage is enabled"))
	}

	return errors.Join(errs...)
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
