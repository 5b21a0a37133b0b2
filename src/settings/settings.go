package settings

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

const envPrefix = "LUCIDODM"

type Arguments struct {
	// The store driver backing the models
	// memory, file, sqlite, mongo
	Driver string `mapstructure:"driver"`

	// The file path to the bundle datafiles (file driver)
	DataDir string `mapstructure:"data_dir"`

	// Database file for the sqlite driver. ":memory:" keeps it in process.
	SQLitePath string `mapstructure:"sqlite_path"`

	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`

	// How new document ids are generated
	// objectid, uuid
	IDStrategy string `mapstructure:"id_strategy"`

	ConfigFile string `mapstructure:"-"`

	LogLevel string `mapstructure:"log_level"`

	// Development logger and extra diagnostics
	Debug bool `mapstructure:"debug"`

	// Strongly verbose logging
	Verbose bool `mapstructure:"verbose"`

	MetricsEnabled bool `mapstructure:"metrics_enabled"` // Count store operations with prometheus
}

var (
	instance *Arguments
	once     sync.Once
)

// GetSettings returns the process wide settings, loaded from the environment on first use.
func GetSettings() *Arguments {
	once.Do(func() {
		args, err := Load("")
		if err != nil {
			args = Defaults()
		}
		instance = args
	})
	return instance
}

// Defaults returns the settings used when nothing is configured.
func Defaults() *Arguments {
	return &Arguments{
		Driver:        "memory",
		DataDir:       "./datafiles",
		SQLitePath:    ":memory:",
		MongoURI:      "mongodb://127.0.0.1:27017",
		MongoDatabase: "lucidodm",
		IDStrategy:    "objectid",
		LogLevel:      "info",
	}
}

// Load reads settings from defaults, an optional config file and LUCIDODM_* environment variables.
func Load(configFile string) (*Arguments, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	args := &Arguments{}
	if err := v.Unmarshal(args); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	args.ConfigFile = configFile

	if err := args.Validate(); err != nil {
		return nil, err
	}
	return args, nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("driver", d.Driver)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("sqlite_path", d.SQLitePath)
	v.SetDefault("mongo_uri", d.MongoURI)
	v.SetDefault("mongo_database", d.MongoDatabase)
	v.SetDefault("id_strategy", d.IDStrategy)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
	v.SetDefault("metrics_enabled", false)
}

// Validate checks the enumerated settings.
func (a *Arguments) Validate() error {
	switch a.Driver {
	case "memory", "file", "sqlite", "mongo":
	default:
		return fmt.Errorf("unknown driver %q (expected memory, file, sqlite or mongo)", a.Driver)
	}
	switch a.IDStrategy {
	case "objectid", "uuid":
	default:
		return fmt.Errorf("unknown id strategy %q (expected objectid or uuid)", a.IDStrategy)
	}
	if a.Driver == "file" && a.DataDir == "" {
		return fmt.Errorf("data directory is required for the file driver")
	}
	return nil
}
