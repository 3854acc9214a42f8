// Package device provides memory-space tagged value buffers for the
// exchange and operator layers. A Vector lives either in host memory or
// on an OCCA device; gather/scatter operations dispatch on that tag, so
// callers never branch on residency themselves.
package device

import (
	"fmt"
	"strings"
	"sync"

	"github.com/notargets/gocca"
)

// Context owns an OCCA device and a cache of compiled kernels. One
// Context is shared by all device-resident vectors on the same device.
type Context struct {
	Device *gocca.OCCADevice

	mu      sync.Mutex
	kernels map[string]*gocca.OCCAKernel
}

// NewContext wraps an OCCA device. The caller retains ownership of the
// device; Free releases the kernels but not the device itself.
func NewContext(dev *gocca.OCCADevice) *Context {
	return &Context{
		Device:  dev,
		kernels: make(map[string]*gocca.OCCAKernel),
	}
}

// BuildKernel compiles kernel source on the context's device.
func (c *Context) BuildKernel(source, name string) (*gocca.OCCAKernel, error) {
	var kernel *gocca.OCCAKernel
	var err error

	if c.Device.Mode() == "OpenMP" {
		// Workaround for OCCA bug: OpenMP doesn't get default -O3 flag
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = c.Device.BuildKernelFromString(source, name, props)
	} else {
		kernel, err = c.Device.BuildKernelFromString(source, name, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel %s: %w", name, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("kernel build returned nil for %s", name)
	}
	return kernel, nil
}

// kernelFor returns the cached kernel instantiated for the given scalar
// type, compiling it on first use.
func (c *Context) kernelFor(name, source, dtype string) (*gocca.OCCAKernel, error) {
	key := name + "_" + dtype
	c.mu.Lock()
	defer c.mu.Unlock()
	if k, ok := c.kernels[key]; ok {
		return k, nil
	}
	k, err := c.BuildKernel(strings.Replace(source, "DTYPE", dtype, -1), name)
	if err != nil {
		return nil, err
	}
	c.kernels[key] = k
	return k, nil
}

// Free releases all compiled kernels.
func (c *Context) Free() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.kernels {
		k.Free()
	}
	c.kernels = make(map[string]*gocca.OCCAKernel)
}
