package device

// Gather/scatter kernels for pack and unpack on device-resident vectors.
// One work-item per packed element; indices beyond n are no-ops. DTYPE is
// substituted with the vector's scalar type at build time.

const kernelBlock = 256

var gatherKernelSource = `
@kernel void gatherValues(const int n,
                          @restrict const int *slots,
                          @restrict const DTYPE *values,
                          @restrict DTYPE *out) {
	for (int b = 0; b < (n + 255) / 256; ++b; @outer) {
		for (int t = 0; t < 256; ++t; @inner) {
			const int i = b * 256 + t;
			if (i < n) {
				out[i] = values[slots[i]];
			}
		}
	}
}
`

var scatterInsertKernelSource = `
@kernel void scatterInsert(const int n,
                           @restrict const int *slots,
                           @restrict const DTYPE *in,
                           @restrict DTYPE *values) {
	for (int b = 0; b < (n + 255) / 256; ++b; @outer) {
		for (int t = 0; t < 256; ++t; @inner) {
			const int i = b * 256 + t;
			if (i < n) {
				values[slots[i]] = in[i];
			}
		}
	}
}
`

// Scatter slots within one exchange are distinct, so the unguarded
// accumulate is race free.
var scatterAddKernelSource = `
@kernel void scatterAdd(const int n,
                        @restrict const int *slots,
                        @restrict const DTYPE *in,
                        @restrict DTYPE *values) {
	for (int b = 0; b < (n + 255) / 256; ++b; @outer) {
		for (int t = 0; t < 256; ++t; @inner) {
			const int i = b * 256 + t;
			if (i < n) {
				values[slots[i]] += in[i];
			}
		}
	}
}
`
