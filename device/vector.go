package device

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
)

// Float is the scalar type parameter of value buffers: real scalars in
// single or double precision.
type Float interface {
	~float32 | ~float64
}

// Space tags the memory space a Vector resides in.
type Space int

const (
	Host Space = iota
	Device
)

func (s Space) String() string {
	if s == Device {
		return "device"
	}
	return "host"
}

// dtypeName returns the OCCA scalar type name for T.
func dtypeName[T Float]() string {
	var z T
	if unsafe.Sizeof(z) == 4 {
		return "float"
	}
	return "double"
}

// Vector is a flat array of scalars tagged with the memory space it
// lives in. Host vectors wrap a caller-owned slice. Device vectors own
// an OCCA allocation and must be released with Free.
type Vector[T Float] struct {
	space Space
	n     int
	host  []T
	ctx   *Context
	mem   *gocca.OCCAMemory
}

// NewVector wraps a host slice. The slice is shared, not copied.
func NewVector[T Float](data []T) *Vector[T] {
	return &Vector[T]{space: Host, n: len(data), host: data}
}

// NewDeviceVector allocates a device vector and uploads data into it.
func NewDeviceVector[T Float](ctx *Context, data []T) (*Vector[T], error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("device: empty vector")
	}
	var z T
	bytes := int64(len(data)) * int64(unsafe.Sizeof(z))
	mem := ctx.Device.Malloc(bytes, unsafe.Pointer(&data[0]), nil)
	if mem == nil {
		return nil, fmt.Errorf("device: allocation of %d bytes failed", bytes)
	}
	return &Vector[T]{space: Device, n: len(data), ctx: ctx, mem: mem}, nil
}

// Len returns the number of scalars in the vector.
func (v *Vector[T]) Len() int { return v.n }

// Space returns the memory space tag.
func (v *Vector[T]) Space() Space { return v.space }

// HostData returns the underlying host slice. It panics for device
// vectors; use CopyToHost instead.
func (v *Vector[T]) HostData() []T {
	if v.space != Host {
		panic("device: HostData on device-resident vector")
	}
	return v.host
}

// CopyToHost downloads the vector into dst, which must have exactly
// Len() elements.
func (v *Vector[T]) CopyToHost(dst []T) error {
	if len(dst) != v.n {
		return fmt.Errorf("device: destination length %d != vector length %d", len(dst), v.n)
	}
	if v.space == Host {
		copy(dst, v.host)
		return nil
	}
	var z T
	v.mem.CopyTo(unsafe.Pointer(&dst[0]), int64(v.n)*int64(unsafe.Sizeof(z)))
	return nil
}

// Mem returns the device allocation backing the vector, nil for host
// vectors. The vector retains ownership.
func (v *Vector[T]) Mem() *gocca.OCCAMemory { return v.mem }

// Free releases device memory. It is a no-op for host vectors.
func (v *Vector[T]) Free() {
	if v.mem != nil {
		v.mem.Free()
		v.mem = nil
	}
}

// Gather copies values[slots[i]] into out[i] for each slot. The output
// buffer length must match the index set exactly.
func (v *Vector[T]) Gather(ix *IndexSet, out []T) error {
	if len(out) != ix.Len() {
		return fmt.Errorf("device: gather buffer length %d != index count %d", len(out), ix.Len())
	}
	if ix.Len() == 0 {
		return nil
	}
	if v.space == Host {
		for i, s := range ix.slots {
			out[i] = v.host[s]
		}
		return nil
	}
	return v.runPack("gatherValues", gatherKernelSource, ix, out, true)
}

// ScatterInsert writes in[i] into values[slots[i]] for each slot.
func (v *Vector[T]) ScatterInsert(ix *IndexSet, in []T) error {
	if len(in) != ix.Len() {
		return fmt.Errorf("device: scatter buffer length %d != index count %d", len(in), ix.Len())
	}
	if ix.Len() == 0 {
		return nil
	}
	if v.space == Host {
		for i, s := range ix.slots {
			v.host[s] = in[i]
		}
		return nil
	}
	return v.runPack("scatterInsert", scatterInsertKernelSource, ix, in, false)
}

// ScatterAdd accumulates in[i] into values[slots[i]] for each slot.
func (v *Vector[T]) ScatterAdd(ix *IndexSet, in []T) error {
	if len(in) != ix.Len() {
		return fmt.Errorf("device: scatter buffer length %d != index count %d", len(in), ix.Len())
	}
	if ix.Len() == 0 {
		return nil
	}
	if v.space == Host {
		for i, s := range ix.slots {
			v.host[s] += in[i]
		}
		return nil
	}
	return v.runPack("scatterAdd", scatterAddKernelSource, ix, in, false)
}

// runPack executes a gather or scatter kernel with a single staging
// buffer on the device. For gathers the staging buffer is downloaded
// into buf afterwards; for scatters buf is uploaded into it first.
func (v *Vector[T]) runPack(name, source string, ix *IndexSet, buf []T, download bool) error {
	slots, err := ix.deviceSlots(v.ctx)
	if err != nil {
		return err
	}
	kernel, err := v.ctx.kernelFor(name, source, dtypeName[T]())
	if err != nil {
		return err
	}

	var z T
	bytes := int64(len(buf)) * int64(unsafe.Sizeof(z))
	var staging *gocca.OCCAMemory
	if download {
		staging = v.ctx.Device.Malloc(bytes, nil, nil)
	} else {
		staging = v.ctx.Device.Malloc(bytes, unsafe.Pointer(&buf[0]), nil)
	}
	if staging == nil {
		return fmt.Errorf("device: staging allocation of %d bytes failed", bytes)
	}
	defer staging.Free()

	n := int32(ix.Len())
	if download {
		err = kernel.RunWithArgs(n, slots, v.mem, staging)
	} else {
		err = kernel.RunWithArgs(n, slots, staging, v.mem)
	}
	if err != nil {
		return fmt.Errorf("device: %s kernel failed: %w", name, err)
	}
	v.ctx.Device.Finish()

	if download {
		staging.CopyTo(unsafe.Pointer(&buf[0]), bytes)
	}
	return nil
}

// IndexSet is an immutable set of local slot indices used for gather and
// scatter. The device copy is created lazily on first device use and
// cached, so repeated exchanges reuse it.
type IndexSet struct {
	slots []int32
	mem   *gocca.OCCAMemory
}

// NewIndexSet wraps a slot permutation. The slice is captured by
// reference and must not be mutated afterwards.
func NewIndexSet(slots []int32) *IndexSet {
	return &IndexSet{slots: slots}
}

// Len returns the number of indices in the set.
func (ix *IndexSet) Len() int { return len(ix.slots) }

// Slots returns the slot permutation. The returned slice is shared.
func (ix *IndexSet) Slots() []int32 { return ix.slots }

func (ix *IndexSet) deviceSlots(ctx *Context) (*gocca.OCCAMemory, error) {
	if ix.mem != nil {
		return ix.mem, nil
	}
	bytes := int64(len(ix.slots)) * 4
	mem := ctx.Device.Malloc(bytes, unsafe.Pointer(&ix.slots[0]), nil)
	if mem == nil {
		return nil, fmt.Errorf("device: index set allocation of %d bytes failed", bytes)
	}
	ix.mem = mem
	return mem, nil
}

// Free releases the cached device copy, if any.
func (ix *IndexSet) Free() {
	if ix.mem != nil {
		ix.mem.Free()
		ix.mem = nil
	}
}
