// Package geometry converts between (ring, detector) indices of a cylindrical
// scanner and Cartesian positions on the detector cylinder.
//
// Coordinates follow the scanner convention: z runs along the scanner axis
// starting at ring 0, detector 0 sits at the top of the ring (positive y) and
// detector numbers increase towards negative x.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"petgeom/internal/models"
	"petgeom/pkg/scanner"
)

var (
	// ErrNoIntersection is returned when the line through two points misses
	// the detector cylinder or only touches it.
	ErrNoIntersection = errors.New("geometry: LOR does not intersect the detector cylinder")

	// ErrOutsideRings is returned when the LOR meets the cylinder outside the
	// axial extent of the scanner.
	ErrOutsideRings = errors.New("geometry: LOR intersects the cylinder outside the ring range")
)

// Geometry holds the scanner parameters the conversions depend on.
// It is stateless beyond the descriptor and safe for concurrent use.
type Geometry struct {
	numDetectors int
	numRings     int
	radius       float64
	spacing      float64
}

// New creates a Geometry for a validated scanner
func New(s *scanner.Scanner) (*Geometry, error) {
	if s == nil {
		return nil, fmt.Errorf("geometry: nil scanner")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Geometry{
		numDetectors: s.NumDetectorsPerRing,
		numRings:     s.NumRings,
		radius:       s.RingRadius,
		spacing:      s.RingSpacing,
	}, nil
}

// NumDetectors returns the number of detectors per ring
func (g *Geometry) NumDetectors() int { return g.numDetectors }

// NumRings returns the number of rings
func (g *Geometry) NumRings() int { return g.numRings }

// RingRadius returns the radius of the detector cylinder
func (g *Geometry) RingRadius() float64 { return g.radius }

// RingSpacing returns the axial distance between ring centres
func (g *Geometry) RingSpacing() float64 { return g.spacing }

// DetectorToCartesian places a detector on the cylinder. Out-of-range indices
// still produce a point; callers are responsible for range checks.
func (g *Geometry) DetectorToCartesian(ring, det int) r3.Vec {
	theta := 2 * math.Pi / float64(g.numDetectors) * float64(det)
	sin, cos := math.Sincos(theta)
	return r3.Vec{
		X: -g.radius * sin,
		Y: g.radius * cos,
		Z: float64(ring) * g.spacing,
	}
}

// DetectorPairToCartesian returns the positions of both ends of an LOR
func (g *Geometry) DetectorPairToCartesian(pair models.DetectorPair) (r3.Vec, r3.Vec) {
	return g.DetectorToCartesian(pair.Ring1, pair.Det1), g.DetectorToCartesian(pair.Ring2, pair.Det2)
}

// CartesianToDetectorPair finds the detectors hit by the infinite line through
// c1 and c2. Det1/Ring1 belong to the intersection on c1's side of the line.
//
// ErrNoIntersection is returned when the line misses the cylinder. When either
// ring lies outside the scanner ErrOutsideRings is returned together with the
// computed pair.
func (g *Geometry) CartesianToDetectorPair(c1, c2 r3.Vec) (models.DetectorPair, error) {
	p1, p2, err := g.Intersect(c1, c2)
	if err != nil {
		return models.DetectorPair{}, err
	}

	det1, ring1 := g.nearestDetector(p1)
	det2, ring2 := g.nearestDetector(p2)
	pair := models.DetectorPair{Det1: det1, Ring1: ring1, Det2: det2, Ring2: ring2}

	if debugChecks {
		g.checkConsistency(pair, p1, p2)
	}

	if !g.ringInRange(ring1) || !g.ringInRange(ring2) {
		return pair, ErrOutsideRings
	}
	return pair, nil
}

// Intersect solves for the two points where the line through c1 and c2 meets
// the cylinder x²+y²=R². The first point is the one on c1's side.
//
// With c = c1 + l·d and d = c2 - c1 the condition is a·l² + 2b·l + e = 0 where
// a = dx²+dy², b = dx·c1.x + dy·c1.y, e = c1.x²+c1.y²-R². The discriminant
// b²-a·e reduces to R²·a - (dx·c1.y - dy·c1.x)².
func (g *Geometry) Intersect(c1, c2 r3.Vec) (r3.Vec, r3.Vec, error) {
	d := r3.Sub(c2, c1)
	a := d.X*d.X + d.Y*d.Y
	cross := d.X*c1.Y - d.Y*c1.X
	disc := g.radius*g.radius*a - cross*cross
	// a == 0 (a line parallel to the axis) also lands here, as do inputs
	// large enough to overflow
	if !(disc > 0) || !isFinite(a) || !isFinite(disc) {
		return r3.Vec{}, r3.Vec{}, ErrNoIntersection
	}

	root := math.Sqrt(disc)
	b := d.X*c1.X + d.Y*c1.Y
	lPlus := (-b + root) / a
	lMinus := (-b - root) / a

	near := r3.Add(c1, r3.Scale(lMinus, d))
	far := r3.Add(c1, r3.Scale(lPlus, d))
	if !finiteVec(near) || !finiteVec(far) {
		return r3.Vec{}, r3.Vec{}, ErrNoIntersection
	}
	return near, far, nil
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func finiteVec(v r3.Vec) bool { return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z) }

// nearestDetector rounds a point on the cylinder to its detector and ring
func (g *Geometry) nearestDetector(p r3.Vec) (det, ring int) {
	step := 2 * math.Pi / float64(g.numDetectors)
	det = int(math.Round((2*math.Pi+math.Atan2(-p.X, p.Y))/step)) % g.numDetectors
	ring = int(math.Round(p.Z / g.spacing))
	return det, ring
}

func (g *Geometry) ringInRange(ring int) bool {
	return ring >= 0 && ring < g.numRings
}

// ConsistencyError measures how far the re-projected detector positions lie
// from the intersection points, in mm. It is below RingSpacing for any
// correct solve.
func (g *Geometry) ConsistencyError(pair models.DetectorPair, p1, p2 r3.Vec) float64 {
	q1, q2 := g.DetectorPairToCartesian(pair)
	return math.Max(r3.Norm(r3.Sub(p1, q1)), r3.Norm(r3.Sub(p2, q2)))
}

func (g *Geometry) checkConsistency(pair models.DetectorPair, p1, p2 r3.Vec) {
	if e := g.ConsistencyError(pair, p1, p2); !(e < g.spacing) {
		panic(fmt.Sprintf("geometry: %v re-projects %.4g mm from its intersection points", pair, e))
	}
}
