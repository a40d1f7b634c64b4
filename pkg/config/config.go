// Package config loads forest settings from a file and OOBFOREST_* environment
// variables, validates them and turns them into estimator options.
package config

import (
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/oobforest/pkg/errors"
	"github.com/YuminosukeSato/oobforest/pkg/log"
	"github.com/YuminosukeSato/oobforest/sklearn/ensemble"
	"github.com/YuminosukeSato/oobforest/sklearn/tree"
)

// EnvPrefix is the prefix of environment overrides, e.g. OOBFOREST_N_ESTIMATORS.
const EnvPrefix = "OOBFOREST"

// ForestConfig holds the settings of a RandomForestClassifier.
type ForestConfig struct {
	NEstimators    int    `mapstructure:"n_estimators"    validate:"min=1"`
	NJobs          int    `mapstructure:"n_jobs"          validate:"min=1"`
	RandomState    int64  `mapstructure:"random_state"    validate:"min=-1"` // -1 seeds from the clock
	MajorityPolicy string `mapstructure:"majority_policy" validate:"oneof=reference majority"`
	LogLevel       string `mapstructure:"log_level"       validate:"oneof=debug info warn error"`
	LogFile        string `mapstructure:"log_file"` // empty keeps stderr
}

// FlagKeys maps command-line flag names onto configuration keys.
var FlagKeys = map[string]string{
	"trees":           "n_estimators",
	"jobs":            "n_jobs",
	"seed":            "random_state",
	"majority-policy": "majority_policy",
	"log-level":       "log_level",
	"log-file":        "log_file",
}

// Default returns the settings used when nothing is configured.
func Default() ForestConfig {
	return ForestConfig{
		NEstimators:    10,
		NJobs:          4,
		RandomState:    -1,
		MajorityPolicy: "reference",
		LogLevel:       "info",
	}
}

// Options converts the settings into ensemble options.
func (c ForestConfig) Options() ([]ensemble.Option, error) {
	policy, err := tree.ParseMajorityPolicy(c.MajorityPolicy)
	if err != nil {
		return nil, err
	}
	return []ensemble.Option{
		ensemble.WithNEstimators(c.NEstimators),
		ensemble.WithNJobs(c.NJobs),
		ensemble.WithRandomState(c.RandomState),
		ensemble.WithTreeOptions(tree.WithMajorityPolicy(policy)),
	}, nil
}

// ApplyLogLevel sets the package-wide log level.
func (c ForestConfig) ApplyLogLevel() {
	if lv, ok := log.ParseLevel(c.LogLevel); ok {
		log.SetLevel(lv)
	}
}

// OpenLogFile redirects logging to LogFile with rotation. It returns nil when
// no file is configured.
func (c ForestConfig) OpenLogFile() io.Closer {
	if c.LogFile == "" {
		return nil
	}
	return log.SetFileOutput(log.FileConfig{Path: c.LogFile, MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28})
}

// Loader reads ForestConfig with viper. A Loader is bound to the file of its
// last Load.
type Loader struct {
	v        *viper.Viper
	validate *validator.Validate

	mu      sync.Mutex
	current ForestConfig
}

// NewLoader creates a Loader with the defaults and environment binding set up.
func NewLoader() *Loader {
	v := viper.New()
	d := Default()
	v.SetDefault("n_estimators", d.NEstimators)
	v.SetDefault("n_jobs", d.NJobs)
	v.SetDefault("random_state", d.RandomState)
	v.SetDefault("majority_policy", d.MajorityPolicy)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
	})

	return &Loader{v: v, validate: validate}
}

// BindFlags binds the flags of fs named in FlagKeys. A flag set on the command
// line takes precedence over environment and file values. Flags missing from
// fs are skipped.
func (l *Loader) BindFlags(fs *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := l.v.BindPFlag(key, flag); err != nil {
			return errors.Wrapf(err, "bind flag --%s", name)
		}
	}
	return nil
}

// Load reads path (TOML, YAML or JSON by extension) on top of the defaults and
// applies environment overrides. An empty path uses defaults and environment
// only.
func (l *Loader) Load(path string) (ForestConfig, error) {
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return ForestConfig{}, errors.Wrapf(err, "read config %s", path)
		}
	}
	cfg, err := l.decode()
	if err != nil {
		return ForestConfig{}, err
	}

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

func (l *Loader) decode() (ForestConfig, error) {
	var cfg ForestConfig
	if err := l.v.Unmarshal(&cfg); err != nil {
		return ForestConfig{}, errors.Wrap(err, "unmarshal config")
	}
	if err := l.check(cfg); err != nil {
		return ForestConfig{}, err
	}
	return cfg, nil
}

// check runs the struct validation and reports the first failing field.
func (l *Loader) check(cfg ForestConfig) error {
	err := l.validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return errors.NewValidationError(fe.Field(), "must satisfy "+reason, fe.Value())
	}
	return errors.Wrap(err, "config validation failed")
}

// Current returns the configuration of the last successful Load or reload.
func (l *Loader) Current() ForestConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Watch reloads the file passed to Load whenever it changes and calls hook
// with the result. Invalid contents leave Current unchanged.
func (l *Loader) Watch(hook func(ForestConfig, error)) {
	logger := log.GetLoggerWithName("config")
	l.v.OnConfigChange(func(event fsnotify.Event) {
		logger.Info("config file changed", "file", event.Name)
		cfg, err := l.decode()
		if err != nil {
			logger.Error("config reload failed", err)
		} else {
			l.mu.Lock()
			l.current = cfg
			l.mu.Unlock()
			cfg.ApplyLogLevel()
		}
		if hook != nil {
			hook(cfg, err)
		}
	})
	l.v.WatchConfig()
}

// Load reads a configuration with a new Loader.
func Load(path string) (ForestConfig, error) {
	return NewLoader().Load(path)
}
