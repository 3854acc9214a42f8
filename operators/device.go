package operators

import (
	"fmt"

	"github.com/notargets/gocca"

	"github.com/hexwave/hexwave/device"
)

// Once the per-cell contributions of shared corners are summed, the
// collocated mass operator is a plain diagonal. DeviceMass assembles
// that diagonal on the host, uploads it once, and applies it with a
// single kernel launch.
type DeviceMass struct {
	ctx  *device.Context
	n    int
	diag *device.Vector[float64]
	kern *gocca.OCCAKernel
}

var massApplyKernelSource = `
@kernel void massApply(const int n,
                       @restrict const double *diag,
                       @restrict const double *u,
                       @restrict double *b) {
	for (int blk = 0; blk < (n + 255) / 256; ++blk; @outer) {
		for (int t = 0; t < 256; ++t; @inner) {
			const int i = blk * 256 + t;
			if (i < n) {
				b[i] = diag[i] * u[i];
			}
		}
	}
}
`

// NewDeviceMass uploads the assembled diagonal of m and compiles the
// apply kernel.
func NewDeviceMass(ctx *device.Context, m *Mass) (*DeviceMass, error) {
	d := make([]float64, m.nloc)
	if err := m.Diagonal(d); err != nil {
		return nil, err
	}
	diag, err := device.NewDeviceVector(ctx, d)
	if err != nil {
		return nil, err
	}
	kern, err := ctx.BuildKernel(massApplyKernelSource, "massApply")
	if err != nil {
		diag.Free()
		return nil, err
	}
	return &DeviceMass{ctx: ctx, n: m.nloc, diag: diag, kern: kern}, nil
}

// Apply computes b = M u on the device. Both vectors must be device
// resident and of the operator's local size.
func (dm *DeviceMass) Apply(u, b *device.Vector[float64]) error {
	if u.Space() != device.Device || b.Space() != device.Device {
		return fmt.Errorf("operators: device mass needs device-resident vectors")
	}
	if u.Len() != dm.n || b.Len() != dm.n {
		return fmt.Errorf("operators: vector lengths %d,%d != local size %d", u.Len(), b.Len(), dm.n)
	}
	if err := dm.kern.RunWithArgs(int32(dm.n), dm.diag.Mem(), u.Mem(), b.Mem()); err != nil {
		return fmt.Errorf("operators: massApply launch: %w", err)
	}
	dm.ctx.Device.Finish()
	return nil
}

// Free releases the uploaded diagonal and the compiled kernel.
func (dm *DeviceMass) Free() {
	if dm.diag != nil {
		dm.diag.Free()
		dm.diag = nil
	}
	if dm.kern != nil {
		dm.kern.Free()
		dm.kern = nil
	}
}
