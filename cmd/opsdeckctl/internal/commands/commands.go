package commands

import (
	"context"
	"io"

	"github.com/opsdeck/opsdeck/internal/bootstrap"
	"github.com/opsdeck/opsdeck/internal/config"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
)

type Globals struct {
	Debug   bool
	Version string
	Out     io.Writer
}

func (g *Globals) logger(cfg *config.Config) logger.Logger {
	lc := cfg.ToLoggerConfig("opsdeckctl")
	lc.Format = "text"
	if g.Debug {
		lc.Level = "debug"
	}
	return logger.New(lc)
}

// loadApp reads configuration from the environment and wires the application
func loadApp(ctx context.Context, globals *Globals) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg, globals.logger(cfg))
}
