// Package mesh builds distributed structured hexahedral box meshes. The
// global cell grid is block-partitioned into z-slabs, one per rank, and
// each rank's shared interface nodes are recorded in a dofmap.IndexMap:
// a node on the plane between two slabs is owned by the lower rank and
// ghosted on the higher one.
package mesh

import (
	"fmt"

	"github.com/hexwave/hexwave/dofmap"
	"github.com/hexwave/hexwave/geometry"
)

// Box is the local portion of a distributed box mesh of hexahedra.
// Local node numbering is owned-first, matching the IndexMap: owned
// nodes ordered by (z,y,x), then ghost nodes appended.
type Box struct {
	// Global cell counts per axis and physical extent.
	Nx, Ny, Nz int
	Length     [3]float64

	Rank, Size int

	// CellNodes maps each local cell to its 8 corner nodes in local
	// numbering, corner v = i + 2*(j + 2*k).
	CellNodes [][8]int32

	// Coords holds the coordinates of every local node, owned and ghost.
	Coords [][3]float64

	// IndexMap records node ownership for the exchange layer.
	IndexMap *dofmap.IndexMap

	// BoundaryFacets lists the local cell faces on the global box
	// boundary.
	BoundaryFacets []geometry.BoundaryFacet

	zs, ze int // cell layers [zs, ze) of this rank's slab
}

// slabRange returns the cell layers [zs, ze) assigned to a rank by
// block partitioning nz layers over size ranks.
func slabRange(rank, size, nz int) (zs, ze int) {
	base := nz / size
	rem := nz % size
	zs = rank*base + min(rank, rem)
	ze = zs + base
	if rank < rem {
		ze++
	}
	return zs, ze
}

// planeOwner returns the rank owning node plane p: the rank holding the
// cell layer below it (plane 0 goes with layer 0).
func planeOwner(p, size, nz int) int {
	layer := p - 1
	if layer < 0 {
		layer = 0
	}
	for r := 0; r < size; r++ {
		zs, ze := slabRange(r, size, nz)
		if layer >= zs && layer < ze {
			return r
		}
	}
	return size - 1
}

// ownedPlanes returns the inclusive node plane range owned by a rank.
func ownedPlanes(rank, size, nz int) (lo, hi int) {
	zs, ze := slabRange(rank, size, nz)
	lo = zs + 1
	if rank == 0 {
		lo = 0
	}
	return lo, ze
}

// NewBox builds the local mesh for one rank of a size-rank world.
// The global mesh has nx*ny*nz cells on [0,length0]x[0,length1]x[0,length2];
// nz must be at least size so every rank gets a nonempty slab.
func NewBox(rank, size, nx, ny, nz int, length [3]float64) (*Box, error) {
	if size < 1 || rank < 0 || rank >= size {
		return nil, fmt.Errorf("mesh: rank %d outside world of size %d", rank, size)
	}
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("mesh: cell counts %dx%dx%d must be positive", nx, ny, nz)
	}
	if nz < size {
		return nil, fmt.Errorf("mesh: %d z-layers cannot be split over %d ranks", nz, size)
	}

	b := &Box{Nx: nx, Ny: ny, Nz: nz, Length: length, Rank: rank, Size: size}
	b.zs, b.ze = slabRange(rank, size, nz)

	npx, npy := nx+1, ny+1
	planeNodes := npx * npy

	// Global offsets follow from each rank's owned plane count.
	offset := int64(0)
	for r := 0; r < rank; r++ {
		lo, hi := ownedPlanes(r, size, nz)
		offset += int64((hi - lo + 1) * planeNodes)
	}
	lo, hi := ownedPlanes(rank, size, nz)
	localSize := (hi - lo + 1) * planeNodes

	ghostCount := 0
	if rank > 0 {
		ghostCount = planeNodes // the plane below the slab
	}

	im := &dofmap.IndexMap{
		LocalSize:    localSize,
		GlobalOffset: offset,
		Dest:         make([][]int, localSize),
	}
	if ghostCount > 0 {
		im.Ghosts = make([]int64, ghostCount)
		im.Owners = make([]int, ghostCount)
		for gy := 0; gy < npy; gy++ {
			for gx := 0; gx < npx; gx++ {
				s := gy*npx + gx
				im.Ghosts[s] = b.globalNodeID(gx, gy, b.zs)
				im.Owners[s] = rank - 1
			}
		}
	}
	// The top owned plane is ghosted on the next rank.
	if rank < size-1 {
		for gy := 0; gy < npy; gy++ {
			for gx := 0; gx < npx; gx++ {
				local := ((hi-lo)*npy+gy)*npx + gx
				im.Dest[local] = []int{rank + 1}
			}
		}
	}
	b.IndexMap = im

	// Node coordinates, owned planes first, ghost plane appended.
	hx := length[0] / float64(nx)
	hy := length[1] / float64(ny)
	hz := length[2] / float64(nz)
	b.Coords = make([][3]float64, localSize+ghostCount)
	for p := lo; p <= hi; p++ {
		for gy := 0; gy < npy; gy++ {
			for gx := 0; gx < npx; gx++ {
				local := ((p-lo)*npy+gy)*npx + gx
				b.Coords[local] = [3]float64{float64(gx) * hx, float64(gy) * hy, float64(p) * hz}
			}
		}
	}
	if ghostCount > 0 {
		for gy := 0; gy < npy; gy++ {
			for gx := 0; gx < npx; gx++ {
				b.Coords[localSize+gy*npx+gx] =
					[3]float64{float64(gx) * hx, float64(gy) * hy, float64(b.zs) * hz}
			}
		}
	}

	// Cell connectivity and boundary facets.
	b.CellNodes = make([][8]int32, 0, (b.ze-b.zs)*ny*nx)
	for gz := b.zs; gz < b.ze; gz++ {
		for gy := 0; gy < ny; gy++ {
			for gx := 0; gx < nx; gx++ {
				var cell [8]int32
				for k := 0; k < 2; k++ {
					for j := 0; j < 2; j++ {
						for i := 0; i < 2; i++ {
							cell[i+2*(j+2*k)] = b.localNodeID(gx+i, gy+j, gz+k)
						}
					}
				}
				c := len(b.CellNodes)
				b.CellNodes = append(b.CellNodes, cell)

				if gz == 0 {
					b.BoundaryFacets = append(b.BoundaryFacets, geometry.BoundaryFacet{Cell: c, Facet: 0})
				}
				if gy == 0 {
					b.BoundaryFacets = append(b.BoundaryFacets, geometry.BoundaryFacet{Cell: c, Facet: 1})
				}
				if gx == 0 {
					b.BoundaryFacets = append(b.BoundaryFacets, geometry.BoundaryFacet{Cell: c, Facet: 2})
				}
				if gx == nx-1 {
					b.BoundaryFacets = append(b.BoundaryFacets, geometry.BoundaryFacet{Cell: c, Facet: 3})
				}
				if gy == ny-1 {
					b.BoundaryFacets = append(b.BoundaryFacets, geometry.BoundaryFacet{Cell: c, Facet: 4})
				}
				if gz == nz-1 {
					b.BoundaryFacets = append(b.BoundaryFacets, geometry.BoundaryFacet{Cell: c, Facet: 5})
				}
			}
		}
	}

	return b, nil
}

// globalNodeID computes the global ID of node (gx,gy,gz): the owning
// rank's offset plus the node's position within the owner's plane range.
func (b *Box) globalNodeID(gx, gy, gz int) int64 {
	owner := planeOwner(gz, b.Size, b.Nz)
	offset := int64(0)
	planeNodes := (b.Nx + 1) * (b.Ny + 1)
	for r := 0; r < owner; r++ {
		lo, hi := ownedPlanes(r, b.Size, b.Nz)
		offset += int64((hi - lo + 1) * planeNodes)
	}
	lo, _ := ownedPlanes(owner, b.Size, b.Nz)
	return offset + int64(((gz-lo)*(b.Ny+1)+gy)*(b.Nx+1)+gx)
}

// localNodeID maps a global grid node within this rank's slab to its
// local index: owned nodes by plane order, the ghost plane appended.
func (b *Box) localNodeID(gx, gy, gz int) int32 {
	npx, npy := b.Nx+1, b.Ny+1
	lo, _ := ownedPlanes(b.Rank, b.Size, b.Nz)
	if gz < lo {
		// The single ghost plane below the slab.
		return int32(b.IndexMap.LocalSize + gy*npx + gx)
	}
	return int32(((gz-lo)*npy+gy)*npx + gx)
}

// NumCells returns the number of local cells.
func (b *Box) NumCells() int { return len(b.CellNodes) }
