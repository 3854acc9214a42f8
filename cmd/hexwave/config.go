package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/hexwave/hexwave/sim"
)

type fileConfig struct {
	Ranks      int       `toml:"ranks"`
	Cells      []int     `toml:"cells"`
	Length     []float64 `toml:"length"`
	QuadOrder  int       `toml:"quad_order"`
	Coeff      float64   `toml:"coeff"`
	CheckDense bool      `toml:"check_dense"`
}

// loadConfig overlays a TOML file onto the default driver config. Keys
// absent from the file keep their defaults.
func loadConfig(path string) (sim.Config, error) {
	cfg := sim.Defaults()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return sim.Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("ranks") {
		cfg.Ranks = raw.Ranks
	}
	if meta.IsDefined("cells") {
		if len(raw.Cells) != 3 {
			return sim.Config{}, fmt.Errorf("config %s: cells needs 3 entries, got %d", path, len(raw.Cells))
		}
		cfg.Nx, cfg.Ny, cfg.Nz = raw.Cells[0], raw.Cells[1], raw.Cells[2]
	}
	if meta.IsDefined("length") {
		if len(raw.Length) != 3 {
			return sim.Config{}, fmt.Errorf("config %s: length needs 3 entries, got %d", path, len(raw.Length))
		}
		copy(cfg.Length[:], raw.Length)
	}
	if meta.IsDefined("quad_order") {
		cfg.QuadOrder = raw.QuadOrder
	}
	if meta.IsDefined("coeff") {
		cfg.Coeff = raw.Coeff
	}
	if meta.IsDefined("check_dense") {
		cfg.CheckDense = raw.CheckDense
	}
	return cfg, nil
}
