// Package config loads acttest settings from a config file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	acterrors "github.com/stevehiehn/acttest/internal/errors"
)

// EnvPrefix is the prefix of every environment override, e.g.
// ACTTEST_LOG_LEVEL.
const EnvPrefix = "ACTTEST"

// Config holds all acttest configuration
type Config struct {
	ActBinary        string          `mapstructure:"act_binary" validate:"required"`
	DefaultImageSize string          `mapstructure:"default_image_size" validate:"oneof=micro medium large"`
	Verbose          bool            `mapstructure:"verbose"`
	Log              LogConfig       `mapstructure:"log"`
	Artifacts        ArtifactsConfig `mapstructure:"artifacts"`
	Proxy            ProxyConfig     `mapstructure:"proxy"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
	Output string `mapstructure:"output"`
}

// ArtifactsConfig controls per-run artifact storage.
type ArtifactsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// ProxyConfig controls the mock proxy.
type ProxyConfig struct {
	ListenHost  string `mapstructure:"listen_host"`
	AdvertiseIP string `mapstructure:"advertise_ip" validate:"omitempty,ip"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("act_binary", "act")
	v.SetDefault("default_image_size", "medium")
	v.SetDefault("verbose", false)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")

	v.SetDefault("artifacts.enabled", false)
	v.SetDefault("artifacts.dir", ".")

	v.SetDefault("proxy.listen_host", "")
	v.SetDefault("proxy.advertise_ip", "")
}

// Load reads configuration. An empty path searches for acttest.yaml in the
// working directory and in $HOME/.acttest; a missing file is not an error in
// that case. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("acttest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".acttest"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// ACT_BINARY is the variable act users already set.
	if err := v.BindEnv("act_binary", EnvPrefix+"_ACT_BINARY", "ACT_BINARY"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

// newValidator reports fields by their config key.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("mapstructure")
	})
	return v
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	// Report the first violation; the rest usually follow from it.
	fe := verrs[0]
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	msg := fmt.Sprintf("%s %q is not supported", key, fe.Value())
	hint := ""
	switch fe.Tag() {
	case "oneof":
		hint = "use one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "required":
		msg = key + " is required"
	case "ip":
		hint = "use an IP address"
	}
	return acterrors.NewValidationError(msg, hint)
}
