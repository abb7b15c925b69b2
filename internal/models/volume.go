package models

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when two volumes differ in dimensions or voxel size
var ErrShapeMismatch = errors.New("volume shape mismatch")

// VoxelSize is the physical size of a voxel in mm
type VoxelSize struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Volume represents a 3D image on disk or in memory
type Volume struct {
	// Data is the 3D volume data as a 1D array in row-major order
	Data []float64

	// Width is the width of the volume in voxels
	Width int

	// Height is the height of the volume in voxels
	Height int

	// Depth is the depth of the volume in voxels
	Depth int

	// VoxelSize is the physical size of each voxel in mm
	VoxelSize VoxelSize
}

// NewVolume allocates a zero-filled volume
func NewVolume(width, height, depth int, voxel VoxelSize) *Volume {
	return &Volume{
		Data:      make([]float64, width*height*depth),
		Width:     width,
		Height:    height,
		Depth:     depth,
		VoxelSize: voxel,
	}
}

// Index returns the offset of voxel (x, y, z) in Data
func (v *Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// NumVoxels returns Width*Height*Depth
func (v *Volume) NumVoxels() int {
	return v.Width * v.Height * v.Depth
}

// SameShape reports whether o has the dimensions and voxel size of v
func (v *Volume) SameShape(o *Volume) bool {
	return v.Width == o.Width && v.Height == o.Height && v.Depth == o.Depth && v.VoxelSize == o.VoxelSize
}

// Add adds o voxel by voxel into v
func (v *Volume) Add(o *Volume) error {
	if !v.SameShape(o) {
		return fmt.Errorf("%w: %dx%dx%d %v and %dx%dx%d %v", ErrShapeMismatch,
			v.Width, v.Height, v.Depth, v.VoxelSize, o.Width, o.Height, o.Depth, o.VoxelSize)
	}
	for i, x := range o.Data {
		v.Data[i] += x
	}
	return nil
}
