package models

import "fmt"

// InvalidBinValue marks a bin that does not correspond to any valid
// sinogram address. It is an out-of-band signal, not a measurement.
const InvalidBinValue = -1.0

// Bin is a sinogram address with an associated value
type Bin struct {
	// Segment identifies the ring difference the bin's LOR spans
	Segment int

	// AxialPos is the axial position within the segment
	AxialPos int

	// View is the projection angle index, in [0, NumViews)
	View int

	// TangentialPos is the signed offset of the LOR from the ring centre
	TangentialPos int

	// Value is the bin content. InvalidBinValue marks an invalid bin.
	Value float64
}

// NewBin creates a bin with a zero value
func NewBin(segment, axialPos, view, tangentialPos int) Bin {
	return Bin{
		Segment:       segment,
		AxialPos:      axialPos,
		View:          view,
		TangentialPos: tangentialPos,
	}
}

// InvalidBin returns a bin flagged as invalid
func InvalidBin() Bin {
	return Bin{Value: InvalidBinValue}
}

// IsValid reports whether the bin carries the invalid sentinel
func (b Bin) IsValid() bool {
	return b.Value != InvalidBinValue
}

func (b Bin) String() string {
	return fmt.Sprintf("bin(seg=%d, ax=%d, view=%d, tang=%d, value=%g)",
		b.Segment, b.AxialPos, b.View, b.TangentialPos, b.Value)
}

// DetectorPair addresses the two detectors of a line of response
type DetectorPair struct {
	Det1  int
	Ring1 int
	Det2  int
	Ring2 int
}

// Swapped returns the same LOR with the two ends exchanged
func (p DetectorPair) Swapped() DetectorPair {
	return DetectorPair{Det1: p.Det2, Ring1: p.Ring2, Det2: p.Det1, Ring2: p.Ring1}
}

func (p DetectorPair) String() string {
	return fmt.Sprintf("pair(det1=%d, ring1=%d, det2=%d, ring2=%d)", p.Det1, p.Ring1, p.Det2, p.Ring2)
}

// ForwardEntry is one cell of the (view, tangential position) -> detectors table
type ForwardEntry struct {
	Det1 int
	Det2 int
}

// InverseEntry is one cell of the (det1, det2) -> (view, tangential position) table
type InverseEntry struct {
	View          int
	TangentialPos int

	// SwapDetectors is true when the canonical orientation of the LOR
	// reverses det1/det2 (and therefore ring1/ring2) relative to the lookup order.
	SwapDetectors bool
}
