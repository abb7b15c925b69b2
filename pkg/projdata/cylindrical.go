package projdata

import (
	"fmt"
	"math"

	"petgeom/internal/models"
	"petgeom/pkg/scanner"
)

// Cylindrical holds the sinogram bookkeeping shared by every projection data
// layout of a cylindrical scanner: segments, axial positions, views and
// tangential positions.
//
// Segments have span 1: segment s holds the LORs whose ring difference
// ring2-ring1 equals s, and axial position min(ring1, ring2).
type Cylindrical struct {
	scanner       *scanner.Scanner
	maxRingDiff   int
	numViews      int
	numTangential int
	minTangential int
}

// NewCylindrical validates and creates the bookkeeping for a scanner.
// Tangential positions run from -((n-1)/2) to that plus n-1.
func NewCylindrical(s *scanner.Scanner, maxRingDiff, numViews, numTangentialPositions int) (*Cylindrical, error) {
	if s == nil {
		return nil, NewPreconditionError("scanner", "no scanner given")
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("projdata: %w", err)
	}
	if maxRingDiff < 0 || maxRingDiff >= s.NumRings {
		return nil, NewPreconditionError("max ring difference",
			"%d is outside [0, %d]", maxRingDiff, s.NumRings-1)
	}
	if numViews < 1 {
		return nil, NewPreconditionError("views", "need at least one view, got %d", numViews)
	}
	if numTangentialPositions < 1 || numTangentialPositions > s.NumDetectorsPerRing {
		return nil, NewPreconditionError("tangential positions",
			"%d is outside [1, %d]", numTangentialPositions, s.NumDetectorsPerRing)
	}

	return &Cylindrical{
		scanner:       s,
		maxRingDiff:   maxRingDiff,
		numViews:      numViews,
		numTangential: numTangentialPositions,
		minTangential: -((numTangentialPositions - 1) / 2),
	}, nil
}

// Scanner returns the scanner descriptor
func (c *Cylindrical) Scanner() *scanner.Scanner { return c.scanner }

// MinSegment returns the most negative ring difference
func (c *Cylindrical) MinSegment() int { return -c.maxRingDiff }

// MaxSegment returns the largest ring difference
func (c *Cylindrical) MaxSegment() int { return c.maxRingDiff }

// NumSegments returns 2*maxRingDiff+1
func (c *Cylindrical) NumSegments() int { return 2*c.maxRingDiff + 1 }

// MinView is always 0
func (c *Cylindrical) MinView() int { return 0 }

// MaxView returns NumViews-1
func (c *Cylindrical) MaxView() int { return c.numViews - 1 }

// NumViews returns the number of azimuthal samples over [0, pi)
func (c *Cylindrical) NumViews() int { return c.numViews }

// MinTangentialPos returns -((n-1)/2) for n tangential positions
func (c *Cylindrical) MinTangentialPos() int { return c.minTangential }

// MaxTangentialPos returns MinTangentialPos+n-1
func (c *Cylindrical) MaxTangentialPos() int { return c.minTangential + c.numTangential - 1 }

// NumTangentialPositions returns the number of sinogram columns
func (c *Cylindrical) NumTangentialPositions() int { return c.numTangential }

// MinAxialPos is always 0
func (c *Cylindrical) MinAxialPos(segment int) int { return 0 }

// MaxAxialPos returns the last axial position of a segment
func (c *Cylindrical) MaxAxialPos(segment int) int {
	return c.scanner.NumRings - absInt(segment) - 1
}

// NumAxialPositions returns the number of axial positions in a segment
func (c *Cylindrical) NumAxialPositions(segment int) int {
	return c.MaxAxialPos(segment) + 1
}

// AzimuthalAngleSampling is the angle between consecutive views
func (c *Cylindrical) AzimuthalAngleSampling() float64 {
	return math.Pi / float64(c.numViews)
}

// Phi returns the azimuthal angle of a bin's view
func (c *Cylindrical) Phi(bin models.Bin) float64 {
	return float64(bin.View) * c.AzimuthalAngleSampling()
}

// RingPairForSegmentAxialPos returns the rings of the first and second
// detector for a (segment, axial position).
func (c *Cylindrical) RingPairForSegmentAxialPos(segment, axialPos int) (ring1, ring2 int, err error) {
	if segment < c.MinSegment() || segment > c.MaxSegment() ||
		axialPos < c.MinAxialPos(segment) || axialPos > c.MaxAxialPos(segment) {
		return 0, 0, fmt.Errorf("%w: segment %d, axial position %d", ErrBinOutOfRange, segment, axialPos)
	}
	if segment >= 0 {
		return axialPos, axialPos + segment, nil
	}
	return axialPos - segment, axialPos, nil
}

// SegmentAxialPosForRingPair is the inverse of RingPairForSegmentAxialPos
func (c *Cylindrical) SegmentAxialPosForRingPair(ring1, ring2 int) (segment, axialPos int, err error) {
	n := c.scanner.NumRings
	if ring1 < 0 || ring1 >= n || ring2 < 0 || ring2 >= n {
		return 0, 0, fmt.Errorf("%w: rings %d and %d on a %d-ring scanner", ErrDetectorOutOfRange, ring1, ring2, n)
	}
	segment = ring2 - ring1
	if segment < c.MinSegment() || segment > c.MaxSegment() {
		return 0, 0, fmt.Errorf("%w: ring difference %d exceeds %d", ErrBinOutOfRange, segment, c.maxRingDiff)
	}
	return segment, min(ring1, ring2), nil
}

// CheckBin returns ErrBinOutOfRange if any index of the bin is outside the
// configured ranges
func (c *Cylindrical) CheckBin(bin models.Bin) error {
	switch {
	case bin.Segment < c.MinSegment() || bin.Segment > c.MaxSegment():
		return fmt.Errorf("%w: segment %d", ErrBinOutOfRange, bin.Segment)
	case bin.AxialPos < c.MinAxialPos(bin.Segment) || bin.AxialPos > c.MaxAxialPos(bin.Segment):
		return fmt.Errorf("%w: axial position %d in segment %d", ErrBinOutOfRange, bin.AxialPos, bin.Segment)
	case bin.View < c.MinView() || bin.View > c.MaxView():
		return fmt.Errorf("%w: view %d", ErrBinOutOfRange, bin.View)
	case bin.TangentialPos < c.MinTangentialPos() || bin.TangentialPos > c.MaxTangentialPos():
		return fmt.Errorf("%w: tangential position %d", ErrBinOutOfRange, bin.TangentialPos)
	}
	return nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
