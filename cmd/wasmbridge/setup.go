package main

import (
	"context"
	"io"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/config"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/hostenv"
	"github.com/wippyai/wasm-bridge/runtime"
)

// session is a runtime with the env imports registered and the guest
// module compiled.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
	rt     *runtime.Runtime
	mod    *runtime.Module
	guest  string
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.Path("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet("loglvl") {
		cfg.Log.Level = c.String("loglvl")
	}
	if c.IsSet("logfmt") {
		cfg.Log.Format = c.String("logfmt")
	}
	if c.IsSet("memory-limit") {
		cfg.Runtime.MemoryLimitPages = uint32(c.Uint("memory-limit"))
	}
	if c.IsSet("start") {
		cfg.Runtime.StartFunction = c.String("start")
	}
	if c.IsSet("wasi") {
		cfg.Runtime.WASI = c.Bool("wasi")
	}
	if c.IsSet("interpreter") {
		cfg.Runtime.Interpreter = c.Bool("interpreter")
	}
	if c.Args().Present() {
		cfg.Guest = c.Args().First()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Guest == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "no guest module given")
	}
	return cfg, nil
}

// openSession compiles the configured guest into a fresh runtime. Guest
// output goes to the app's writers.
func openSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return newSession(c.Context, cfg, c.App.Writer, c.App.ErrWriter)
}

func newSession(ctx context.Context, cfg *config.Config, out, errOut io.Writer) (*session, error) {
	logger, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	engine.SetLogger(logger)

	rt, err := runtime.New(ctx, cfg.Options(logger, out, errOut)...)
	if err != nil {
		return nil, err
	}

	env := hostenv.New(hostenv.WithOutput(out), hostenv.WithLogger(logger))
	if err := env.Register(rt); err != nil {
		rt.Close(ctx)
		return nil, err
	}

	mod, err := rt.CompileFile(ctx, cfg.Guest)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}

	logger.Debug("guest compiled", zap.String("path", cfg.Guest))
	return &session{cfg: cfg, logger: logger, rt: rt, mod: mod, guest: cfg.Guest}, nil
}

func (s *session) close(ctx context.Context) {
	s.rt.Close(ctx)
	_ = s.logger.Sync()
}
