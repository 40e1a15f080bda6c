package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/edgard/quizbot/internal/errs"
)

const envPrefix = "QUIZBOT"

// cronParser accepts the same expressions as gocron.CronJob with seconds enabled:
// five or six fields, or a descriptor such as @hourly.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Load reads configuration from the working directory:
//  1. Default values
//  2. config.yaml (optional)
//  3. .env (optional, never overrides variables already set)
//  4. QUIZBOT_* and legacy environment variables
//
// Any failure, including a missing bot token, API key or channel id,
// is returned as an *errs.ConfigError.
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom is Load with an explicit directory for config.yaml and .env.
func LoadFrom(dir string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(dir, ".env")); err != nil {
		return nil, errs.NewConfigError("failed to read .env file", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return nil, errs.NewConfigError("failed to bind environment for "+key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errs.NewConfigError("failed to read config file", err)
		}
		slog.Debug("configuration file not found, using defaults and environment", "dir", dir)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.NewConfigError("failed to parse configuration", err)
	}
	cfg.applyProviderDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks struct tags and cross-field scheduling rules.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return errs.NewConfigError(describe(verrs), err)
		}
		return errs.NewConfigError("invalid configuration", err)
	}

	names := make([]string, 0, len(c.Scheduler.Tasks))
	for name := range c.Scheduler.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tc := c.Scheduler.Tasks[name]
		if !tc.Enabled {
			continue
		}
		if tc.Interval <= 0 && tc.Schedule == "" {
			return errs.NewConfigError(fmt.Sprintf("task %q is enabled but has neither interval nor schedule", name), nil)
		}
		if tc.Schedule != "" {
			if _, err := cronParser.Parse(tc.Schedule); err != nil {
				return errs.NewConfigError(fmt.Sprintf("task %q has an invalid schedule %q", name, tc.Schedule), err)
			}
		}
	}

	return nil
}

// describe turns validator errors into dotted config keys, e.g.
// "missing required configuration: telegram.token, ai.api_key".
func describe(verrs validator.ValidationErrors) string {
	var missing, invalid []string
	for _, fe := range verrs {
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Tag() == "required" || fe.Tag() == "required_if" {
			missing = append(missing, key)
			continue
		}
		invalid = append(invalid, fmt.Sprintf("%s (%s)", key, fe.Tag()))
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required configuration: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid configuration: "+strings.Join(invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

func loadDotEnv(path string) error {
	err := gotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
