package projdata

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"petgeom/internal/models"
	"petgeom/pkg/geometry"
)

// DetectorMapping is what reconstruction and simulation code needs from a
// projection data description: the scanner geometry and a mapping between
// sinogram bins and detector pairs. Each correction scheme provides its own
// implementation, chosen when the projection data is set up.
type DetectorMapping interface {
	Geometry() *geometry.Geometry
	DetectorPairForBin(bin models.Bin) (models.DetectorPair, error)
	BinForDetectorPair(pair models.DetectorPair) (models.Bin, error)
	DetectionPointsForBin(bin models.Bin) (r3.Vec, r3.Vec, error)
	BinForDetectionPoints(p1, p2 r3.Vec) models.Bin
	ParameterInfo() string
}

var _ DetectorMapping = (*NoArcCorr)(nil)

// tolerance on the view angle sanity checks
const phiTolerance = 1e-4

// NoArcCorr describes sinograms that have not been arc-corrected: every
// tangential position is a detector pair, so bins map exactly onto detectors.
type NoArcCorr struct {
	*Cylindrical

	geom   *geometry.Geometry
	tables *IndexTables
}

// NewNoArcCorr checks that the views of c span [0, π) with one view per
// detector pair and returns the mapping. The lookup tables are built on
// first use.
func NewNoArcCorr(c *Cylindrical) (*NoArcCorr, error) {
	if c == nil {
		return nil, NewPreconditionError("projection data", "no cylindrical description given")
	}
	numDetectors := c.Scanner().NumDetectorsPerRing

	tables, err := NewIndexTables(numDetectors)
	if err != nil {
		return nil, err
	}
	if c.MinView() != 0 || c.MaxView() != numDetectors/2-1 {
		return nil, NewPreconditionError("view range",
			"views [%d, %d] must be [0, %d]", c.MinView(), c.MaxView(), numDetectors/2-1)
	}
	if phi := c.Phi(models.NewBin(0, 0, 0, 0)); math.Abs(phi) > phiTolerance {
		return nil, NewPreconditionError("view angles", "view 0 is at %g rad, expected 0", phi)
	}
	if phi := c.Phi(models.NewBin(0, 0, numDetectors/2, 0)); math.Abs(phi-math.Pi) > phiTolerance {
		return nil, NewPreconditionError("view angles", "view %d is at %g rad, expected π", numDetectors/2, phi)
	}
	if c.MinTangentialPos() < tables.MinTangentialPos() || c.MaxTangentialPos() > tables.MaxTangentialPos() {
		return nil, NewPreconditionError("tangential range",
			"[%d, %d] exceeds [%d, %d]", c.MinTangentialPos(), c.MaxTangentialPos(),
			tables.MinTangentialPos(), tables.MaxTangentialPos())
	}

	geom, err := geometry.New(c.Scanner())
	if err != nil {
		return nil, err
	}

	return &NoArcCorr{
		Cylindrical: c,
		geom:        geom,
		tables:      tables,
	}, nil
}

// Geometry returns the coordinate conversions for the scanner
func (p *NoArcCorr) Geometry() *geometry.Geometry { return p.geom }

// Tables returns the shared index tables
func (p *NoArcCorr) Tables() *IndexTables { return p.tables }

// RingRadius returns the radius used for the tangential coordinate
func (p *NoArcCorr) RingRadius() float64 { return p.Scanner().RingRadius }

// AngularIncrement is the angle between neighbouring tangential positions, π/D
func (p *NoArcCorr) AngularIncrement() float64 {
	return math.Pi / float64(p.Scanner().NumDetectorsPerRing)
}

// S returns the signed distance of a bin's LOR from the scanner axis
func (p *NoArcCorr) S(bin models.Bin) float64 {
	return p.RingRadius() * math.Sin(float64(bin.TangentialPos)*p.AngularIncrement())
}

// DetectorPairForBin returns the detectors and rings of a bin
func (p *NoArcCorr) DetectorPairForBin(bin models.Bin) (models.DetectorPair, error) {
	if err := p.CheckBin(bin); err != nil {
		return models.DetectorPair{}, err
	}
	entry, err := p.tables.Forward(bin.View, bin.TangentialPos)
	if err != nil {
		return models.DetectorPair{}, err
	}
	ring1, ring2, err := p.RingPairForSegmentAxialPos(bin.Segment, bin.AxialPos)
	if err != nil {
		return models.DetectorPair{}, err
	}
	return models.DetectorPair{Det1: entry.Det1, Ring1: ring1, Det2: entry.Det2, Ring2: ring2}, nil
}

// BinForDetectorPair returns the bin that contains the LOR of a detector pair.
// The order of the two ends does not matter.
func (p *NoArcCorr) BinForDetectorPair(pair models.DetectorPair) (models.Bin, error) {
	entry, err := p.tables.Inverse(pair.Det1, pair.Det2)
	if err != nil {
		return models.InvalidBin(), err
	}

	ring1, ring2 := pair.Ring1, pair.Ring2
	if entry.SwapDetectors {
		ring1, ring2 = ring2, ring1
	}
	segment, axialPos, err := p.SegmentAxialPosForRingPair(ring1, ring2)
	if err != nil {
		return models.InvalidBin(), err
	}

	bin := models.NewBin(segment, axialPos, entry.View, entry.TangentialPos)
	if err := p.CheckBin(bin); err != nil {
		return models.InvalidBin(), err
	}
	return bin, nil
}

// DetectorPairToCartesian returns the positions of both detectors of a pair
func (p *NoArcCorr) DetectorPairToCartesian(pair models.DetectorPair) (r3.Vec, r3.Vec) {
	return p.geom.DetectorPairToCartesian(pair)
}

// CartesianToDetectorPair finds the detectors hit by the line through two points
func (p *NoArcCorr) CartesianToDetectorPair(c1, c2 r3.Vec) (models.DetectorPair, error) {
	return p.geom.CartesianToDetectorPair(c1, c2)
}

// DetectionPointsForBin returns the positions of the two detectors of a bin
func (p *NoArcCorr) DetectionPointsForBin(bin models.Bin) (r3.Vec, r3.Vec, error) {
	pair, err := p.DetectorPairForBin(bin)
	if err != nil {
		return r3.Vec{}, r3.Vec{}, err
	}
	c1, c2 := p.geom.DetectorPairToCartesian(pair)
	return c1, c2, nil
}

// BinForDetectionPoints returns the bin of the LOR through two points. If the
// line misses the scanner or lands outside the configured sinogram, the
// returned bin has Value == models.InvalidBinValue.
func (p *NoArcCorr) BinForDetectionPoints(p1, p2 r3.Vec) models.Bin {
	bin, err := p.FindBinForDetectionPoints(p1, p2)
	if err != nil {
		return models.InvalidBin()
	}
	return bin
}

// FindBinForDetectionPoints is BinForDetectionPoints with the reason for an
// invalid bin attached
func (p *NoArcCorr) FindBinForDetectionPoints(p1, p2 r3.Vec) (models.Bin, error) {
	pair, err := p.geom.CartesianToDetectorPair(p1, p2)
	if err != nil {
		return models.InvalidBin(), err
	}
	bin, err := p.BinForDetectorPair(pair)
	if err != nil {
		return models.InvalidBin(), fmt.Errorf("%v: %w", pair, err)
	}
	return bin, nil
}

// IsGeometricMiss reports whether err means the LOR never reached the detectors
func IsGeometricMiss(err error) bool {
	return errors.Is(err, geometry.ErrNoIntersection) || errors.Is(err, geometry.ErrOutsideRings)
}
