package main

import (
	"fmt"

	"github.com/nerrad567/depthcore/internal/capture"
	"github.com/nerrad567/depthcore/internal/capture/sim"
	"github.com/nerrad567/depthcore/internal/infrastructure/config"
)

// openLayer constructs the capture layer named by cfg.Driver.
func openLayer(cfg config.CaptureConfig) (capture.Layer, error) {
	switch cfg.Driver {
	case "sim":
		return sim.New(sim.Config{
			Serials:     cfg.Sim.Serials,
			BootDelay:   cfg.Sim.BootDelay,
			SettleDelay: cfg.Sim.SettleDelay,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", capture.ErrUnknownDriver, cfg.Driver)
	}
}
