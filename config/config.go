// Package config loads the wasmbridge command configuration.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/runtime"
)

var validate = validator.New()

// Config is the file format read by the wasmbridge command.
type Config struct {
	Guest   string  `yaml:"guest"`
	Runtime Runtime `yaml:"runtime"`
	Log     Log     `yaml:"log"`
}

// Runtime configures the embedded wasm runtime.
type Runtime struct {
	MemoryLimitPages   uint32 `yaml:"memory_limit_pages" validate:"lte=65536"`
	StartFunction      string `yaml:"start_function"`
	WASI               bool   `yaml:"wasi"`
	CloseOnContextDone bool   `yaml:"close_on_context_done"`
	Interpreter        bool   `yaml:"interpreter"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Runtime: Runtime{StartFunction: runtime.DefaultStartFunction, WASI: true},
		Log:     Log{Level: "info", Format: "console"},
	}
}

// Load reads and validates a YAML file. Fields missing from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read config "+path, err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML config bytes.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Load("parse config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Load("config validation failed", err)
	}
	return nil
}

// Options converts the runtime section to runtime options. stdout and
// stderr are used when WASI is enabled.
func (c *Config) Options(logger *zap.Logger, stdout, stderr io.Writer) []runtime.Option {
	opts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithStartFunction(c.Runtime.StartFunction),
		runtime.WithCloseOnContextDone(c.Runtime.CloseOnContextDone),
	}
	if c.Runtime.MemoryLimitPages > 0 {
		opts = append(opts, runtime.WithMemoryLimitPages(c.Runtime.MemoryLimitPages))
	}
	if c.Runtime.WASI {
		opts = append(opts, runtime.WithWASI(stdout, stderr))
	}
	if c.Runtime.Interpreter {
		opts = append(opts, runtime.WithInterpreter())
	}
	return opts
}

// Logger builds a zap logger: production JSON or development console.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.levelOrDefault())
	if err != nil {
		return nil, errors.Load(fmt.Sprintf("log level %q", c.Log.Level), err)
	}

	var zc zap.Config
	if c.Log.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func (c *Config) levelOrDefault() string {
	if c.Log.Level == "" {
		return "info"
	}
	return c.Log.Level
}
