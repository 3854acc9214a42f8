// Package sim drives a multi-rank assembly check end to end: it builds
// the distributed box mesh, wires every rank's exchanger over an
// in-process world, applies the mass and stiffness operators and
// assembles the shared-node contributions through the exchange layer.
package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hexwave/hexwave/comm"
	"github.com/hexwave/hexwave/device"
	"github.com/hexwave/hexwave/exchange"
	"github.com/hexwave/hexwave/mesh"
	"github.com/hexwave/hexwave/operators"
)

// Config selects the problem the driver runs.
type Config struct {
	Ranks      int
	Nx, Ny, Nz int
	Length     [3]float64

	// QuadOrder is the per-direction point count of the stiffness rule.
	QuadOrder int

	// Coeff scales the mass operator uniformly.
	Coeff float64

	// CheckDense additionally assembles the dense operators per rank and
	// compares the matrix-free results against them.
	CheckDense bool
}

// Defaults returns a config for a small smoke problem.
func Defaults() Config {
	return Config{
		Ranks:     2,
		Nx:        4,
		Ny:        4,
		Nz:        4,
		Length:    [3]float64{1, 1, 1},
		QuadOrder: 2,
		Coeff:     1,
	}
}

func (c Config) validate() error {
	if c.Ranks < 1 {
		return fmt.Errorf("sim: ranks %d must be positive", c.Ranks)
	}
	if c.QuadOrder < 2 {
		return fmt.Errorf("sim: quadrature order %d must be at least 2", c.QuadOrder)
	}
	if c.Coeff == 0 {
		return fmt.Errorf("sim: zero coefficient")
	}
	return nil
}

// RankResult reports one rank's share of the run.
type RankResult struct {
	Rank      int
	OwnedDofs int
	GhostDofs int
	Cells     int

	// MassSum is the rank's owned share of integrating coeff over the
	// box; Energy its owned share of the Dirichlet energy of u = x.
	MassSum float64
	Energy  float64

	Elapsed time.Duration
}

// Result aggregates all ranks.
type Result struct {
	Ranks []RankResult

	// TotalMass sums the owned mass shares; for an exact run it equals
	// coeff times the box volume. TotalEnergy likewise equals the
	// volume for u = x.
	TotalMass   float64
	TotalEnergy float64
	Volume      float64
}

// Run executes the driver. Every rank runs on its own goroutine against
// a shared in-process world; the first rank error aborts the result.
func Run(cfg Config, logger zerolog.Logger) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	w := comm.NewWorld(cfg.Ranks)

	res := &Result{Ranks: make([]RankResult, cfg.Ranks)}
	errs := make([]error, cfg.Ranks)
	var wg sync.WaitGroup
	for r := 0; r < cfg.Ranks; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			rr, err := runRank(cfg, r, w.Transport(r), logger.With().Int("rank", r).Logger())
			if err != nil {
				errs[r] = err
				return
			}
			res.Ranks[r] = *rr
		}(r)
	}
	wg.Wait()
	for r, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("sim: rank %d: %w", r, err)
		}
	}

	for _, rr := range res.Ranks {
		res.TotalMass += rr.MassSum
		res.TotalEnergy += rr.Energy
	}
	res.Volume = cfg.Length[0] * cfg.Length[1] * cfg.Length[2]
	logger.Info().
		Float64("total_mass", res.TotalMass).
		Float64("total_energy", res.TotalEnergy).
		Float64("volume", res.Volume).
		Msg("assembly complete")
	return res, nil
}

func runRank(cfg Config, rank int, tr comm.Transport, logger zerolog.Logger) (*RankResult, error) {
	start := time.Now()

	box, err := mesh.NewBox(rank, cfg.Ranks, cfg.Nx, cfg.Ny, cfg.Nz, cfg.Length)
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Int("owned", box.IndexMap.LocalSize).
		Int("ghosts", box.IndexMap.GhostCount()).
		Int("cells", box.NumCells()).
		Msg("mesh built")

	plan, err := exchange.BuildPlan(box.IndexMap, tr)
	if err != nil {
		return nil, err
	}
	ex := exchange.NewExchanger[float64](plan, tr)
	defer ex.Free()

	n := box.IndexMap.Size()
	nloc := box.IndexMap.LocalSize

	coeff := make([]float64, box.NumCells())
	for i := range coeff {
		coeff[i] = cfg.Coeff
	}
	massOp, err := operators.NewMass(box.Coords, box.CellNodes, coeff, n)
	if err != nil {
		return nil, err
	}
	stiffOp, err := operators.NewStiffness(box.Coords, box.CellNodes, nil, cfg.QuadOrder, n)
	if err != nil {
		return nil, err
	}

	// Mass applied to the ones vector integrates coeff over the box.
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	mb := make([]float64, n)
	if err := massOp.Apply(ones, mb); err != nil {
		return nil, err
	}
	if err := assemble(ex, mb); err != nil {
		return nil, err
	}

	// Stiffness applied to u = x; the assembled energy over owned slots
	// integrates |grad u|^2 = 1.
	u := make([]float64, n)
	for i := range u {
		u[i] = box.Coords[i][0]
	}
	uv := device.NewVector(u)
	if err := ex.ScatterForward(uv); err != nil {
		return nil, err
	}
	kb := make([]float64, n)
	if err := stiffOp.Apply(u, kb); err != nil {
		return nil, err
	}
	if err := assemble(ex, kb); err != nil {
		return nil, err
	}

	if cfg.CheckDense {
		if err := checkDense(massOp, stiffOp, ones, u, n); err != nil {
			return nil, err
		}
	}

	rr := &RankResult{
		Rank:      rank,
		OwnedDofs: nloc,
		GhostDofs: box.IndexMap.GhostCount(),
		Cells:     box.NumCells(),
		Elapsed:   time.Since(start),
	}
	for i := 0; i < nloc; i++ {
		rr.MassSum += mb[i]
		rr.Energy += u[i] * kb[i]
	}
	logger.Info().
		Float64("mass_share", rr.MassSum).
		Float64("energy_share", rr.Energy).
		Dur("elapsed", rr.Elapsed).
		Msg("rank done")
	return rr, nil
}

// assemble runs the reverse-add then forward exchange so every slot,
// owned and ghost, holds the fully summed value.
func assemble(ex *exchange.Exchanger[float64], b []float64) error {
	v := device.NewVector(b)
	if err := ex.ScatterReverse(v, exchange.Add); err != nil {
		return err
	}
	return ex.ScatterForward(v)
}

// checkDense verifies the matrix-free operators against their dense
// assemblies on the unassembled local results.
func checkDense(massOp *operators.Mass, stiffOp *operators.Stiffness, ones, u []float64, n int) error {
	mb := make([]float64, n)
	if err := massOp.Apply(ones, mb); err != nil {
		return err
	}
	if err := compare(mb, operators.ApplyDense(operators.AssembleMass(massOp, n), ones)); err != nil {
		return fmt.Errorf("mass vs dense: %w", err)
	}
	kb := make([]float64, n)
	if err := stiffOp.Apply(u, kb); err != nil {
		return err
	}
	if err := compare(kb, operators.ApplyDense(operators.AssembleStiffness(stiffOp, n), u)); err != nil {
		return fmt.Errorf("stiffness vs dense: %w", err)
	}
	return nil
}

func compare(got, want []float64) error {
	const tol = 1e-10
	for i := range got {
		d := got[i] - want[i]
		if d < -tol || d > tol {
			return fmt.Errorf("slot %d: got %g want %g", i, got[i], want[i])
		}
	}
	return nil
}
