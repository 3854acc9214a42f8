package device

import (
	"github.com/notargets/gocca"
)

// CreateTestDevice creates a device for testing, preferring parallel backends
func CreateTestDevice() *gocca.OCCADevice {
	backends := []string{
		`{"mode": "OpenMP"}`,
		`{"mode": "CUDA", "device_id": 0}`,
		`{"mode": "Serial"}`,
	}

	for _, props := range backends {
		dev, err := gocca.NewDevice(props)
		if err == nil {
			return dev
		}
	}

	// Should not reach here
	panic("Failed to create any Device")
}
