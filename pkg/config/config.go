// Package config loads and validates the simulator configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (HLSIM_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/liangcheng-yu/hyperlight/internal/bytesize"
	"github.com/liangcheng-yu/hyperlight/internal/wire"
)

// Config is the simulator configuration.
type Config struct {
	// Logging controls the host-side logger.
	Logging LoggingConfig `mapstructure:"logging"`

	// Sandbox sizes the shared memory regions of every sandbox the
	// simulator creates.
	Sandbox SandboxConfig `mapstructure:"sandbox"`

	// Metrics controls the Prometheus endpoint.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls host log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
	Output string `mapstructure:"output"`
}

// SandboxConfig sizes the sandbox regions. Sizes accept human-readable
// values like "64Ki".
type SandboxConfig struct {
	InputSize         bytesize.ByteSize `mapstructure:"input_size"         validate:"required"`
	OutputSize        bytesize.ByteSize `mapstructure:"output_size"        validate:"required"`
	HeapSize          bytesize.ByteSize `mapstructure:"heap_size"          validate:"required"`
	GuestErrorSize    bytesize.ByteSize `mapstructure:"guest_error_size"   validate:"required"`
	PanicContextSize  bytesize.ByteSize `mapstructure:"panic_context_size" validate:"required"`
	HostFunctionsSize bytesize.ByteSize `mapstructure:"host_functions_size" validate:"required"`
	HostExceptionSize bytesize.ByteSize `mapstructure:"host_exception_size" validate:"required"`

	// MaxLogLevel is the most verbose guest log level forwarded to the
	// host logger.
	MaxLogLevel string `mapstructure:"max_log_level" validate:"required,oneof=TRACE DEBUG INFO WARN ERROR CRITICAL NONE"`
}

// MetricsConfig controls the Prometheus metrics listener.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" validate:"required_if=Enabled true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("sandbox.input_size", "64Ki")
	v.SetDefault("sandbox.output_size", "64Ki")
	v.SetDefault("sandbox.heap_size", "1Mi")
	v.SetDefault("sandbox.guest_error_size", "4Ki")
	v.SetDefault("sandbox.panic_context_size", "4Ki")
	v.SetDefault("sandbox.host_functions_size", "16Ki")
	v.SetDefault("sandbox.host_exception_size", "4Ki")
	v.SetDefault("sandbox.max_log_level", "INFO")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", "127.0.0.1:9464")
}

// Load reads the configuration. An empty path means defaults plus
// environment only. The viper instance is returned so callers can watch
// the file for changes.
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HLSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// Reload re-decodes a viper instance after a config file change.
func Reload(v *viper.Viper) (*Config, error) {
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct-level constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// GuestLogLevel maps the configured level name to the wire enum.
func (c *Config) GuestLogLevel() wire.LogLevel {
	switch strings.ToUpper(c.Sandbox.MaxLogLevel) {
	case "TRACE":
		return wire.LogTrace
	case "DEBUG":
		return wire.LogDebug
	case "WARN":
		return wire.LogWarning
	case "ERROR":
		return wire.LogError
	case "CRITICAL":
		return wire.LogCritical
	case "NONE":
		return wire.LogNone
	default:
		return wire.LogInformation
	}
}
