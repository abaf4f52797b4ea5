package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownUnit is returned by ParseUnit for unrecognised unit names.
var ErrUnknownUnit = errors.New("unknown tract unit")

// Unit is the coordinate unit a tract is expressed in.
type Unit int

const (
	// Voxel coordinates index the diffusion image matrix.
	Voxel Unit = iota
	// Physical coordinates are in millimetres.
	Physical
)

func (u Unit) String() string {
	switch u {
	case Voxel:
		return "voxel"
	case Physical:
		return "mm"
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}

// ParseUnit maps a configuration string onto a Unit.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "voxel", "vox":
		return Voxel, nil
	case "mm", "physical":
		return Physical, nil
	default:
		return 0, fmt.Errorf("%w: %q (want voxel or mm)", ErrUnknownUnit, s)
	}
}

// Resolution describes the diffusion image geometry used to move between
// voxel and physical coordinates.
type Resolution struct {
	// FieldOfView is the in-plane field of view in mm.
	FieldOfView float64 `json:"field_of_view" yaml:"fieldOfView"`

	// MatrixSize is the in-plane matrix size in voxels.
	MatrixSize float64 `json:"matrix_size" yaml:"matrixSize"`

	// SliceThickness is the slice spacing in mm.
	SliceThickness float64 `json:"slice_thickness" yaml:"sliceThickness"`
}

// Valid reports whether every component is strictly positive.
func (r Resolution) Valid() bool {
	return r.FieldOfView > 0 && r.MatrixSize > 0 && r.SliceThickness > 0
}

// Scale returns the mm-per-voxel factor along each axis.
func (r Resolution) Scale() Point3 {
	inPlane := r.FieldOfView / r.MatrixSize
	return Point3{Row: inPlane, Col: inPlane, Slice: r.SliceThickness}
}

// ToPhysical converts a voxel coordinate to mm.
func (r Resolution) ToPhysical(p Point3) Point3 {
	s := r.Scale()
	return Point3{Row: p.Row * s.Row, Col: p.Col * s.Col, Slice: p.Slice * s.Slice}
}

// ToVoxel converts a mm coordinate to voxels.
func (r Resolution) ToVoxel(p Point3) Point3 {
	s := r.Scale()
	return Point3{Row: p.Row / s.Row, Col: p.Col / s.Col, Slice: p.Slice / s.Slice}
}

// TractToPhysical returns a copy of t converted from voxels to mm.
func (r Resolution) TractToPhysical(t *Tract) *Tract {
	if t == nil {
		return nil
	}
	out := &Tract{Points: make([]Point3, len(t.Points))}
	for i, p := range t.Points {
		out.Points[i] = r.ToPhysical(p)
	}
	return out
}

// TractToVoxel returns a copy of t converted from mm to voxels.
func (r Resolution) TractToVoxel(t *Tract) *Tract {
	if t == nil {
		return nil
	}
	out := &Tract{Points: make([]Point3, len(t.Points))}
	for i, p := range t.Points {
		out.Points[i] = r.ToVoxel(p)
	}
	return out
}
