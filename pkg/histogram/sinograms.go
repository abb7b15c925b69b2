package histogram

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"petgeom/internal/models"
	"petgeom/pkg/projdata"
)

// Sinograms holds one views x tangential positions matrix per segment and
// axial position. A plane is allocated on its first Add, so memory follows
// the planes that received counts rather than the whole layout.
type Sinograms struct {
	proj *projdata.NoArcCorr

	// segments maps a segment to its planes; a nil plane is all zeros
	segments map[int][]*mat.Dense
}

// NewSinograms creates empty sinograms for every segment of proj
func NewSinograms(proj *projdata.NoArcCorr) *Sinograms {
	s := &Sinograms{
		proj:     proj,
		segments: make(map[int][]*mat.Dense, proj.NumSegments()),
	}
	for seg := proj.MinSegment(); seg <= proj.MaxSegment(); seg++ {
		s.segments[seg] = make([]*mat.Dense, proj.NumAxialPositions(seg))
	}
	return s
}

func (s *Sinograms) newPlane() *mat.Dense {
	return mat.NewDense(s.proj.NumViews(), s.proj.NumTangentialPositions(), nil)
}

// plane returns the matrix of a checked segment and axial position,
// allocating it if needed
func (s *Sinograms) plane(segment, axialPos int) *mat.Dense {
	m := s.segments[segment][axialPos]
	if m == nil {
		m = s.newPlane()
		s.segments[segment][axialPos] = m
	}
	return m
}

// Projection returns the layout the sinograms were allocated for
func (s *Sinograms) Projection() *projdata.NoArcCorr { return s.proj }

// Segments lists the segment numbers in increasing order
func (s *Sinograms) Segments() []int {
	segs := make([]int, 0, len(s.segments))
	for seg := range s.segments {
		segs = append(segs, seg)
	}
	sort.Ints(segs)
	return segs
}

// Sinogram returns the matrix of one segment and axial position. Rows are
// views, columns are tangential positions starting at MinTangentialPos.
// A plane without counts comes back as a fresh zero matrix that is not kept.
func (s *Sinograms) Sinogram(segment, axialPos int) (*mat.Dense, error) {
	planes, ok := s.segments[segment]
	if !ok || axialPos < 0 || axialPos >= len(planes) {
		return nil, fmt.Errorf("%w: segment %d axial %d", projdata.ErrBinOutOfRange, segment, axialPos)
	}
	if planes[axialPos] == nil {
		return s.newPlane(), nil
	}
	return planes[axialPos], nil
}

// Add increments a bin by v
func (s *Sinograms) Add(bin models.Bin, v float64) error {
	if err := s.proj.CheckBin(bin); err != nil {
		return err
	}
	m := s.plane(bin.Segment, bin.AxialPos)
	col := bin.TangentialPos - s.proj.MinTangentialPos()
	m.Set(bin.View, col, m.At(bin.View, col)+v)
	return nil
}

// Value returns the content of a bin as a models.Bin
func (s *Sinograms) Value(bin models.Bin) (models.Bin, error) {
	if err := s.proj.CheckBin(bin); err != nil {
		return models.InvalidBin(), err
	}
	m := s.segments[bin.Segment][bin.AxialPos]
	if m == nil {
		bin.Value = 0
		return bin, nil
	}
	bin.Value = m.At(bin.View, bin.TangentialPos-s.proj.MinTangentialPos())
	return bin, nil
}

// Merge adds other into s. Both must come from the same projection layout.
func (s *Sinograms) Merge(other *Sinograms) {
	for seg, planes := range other.segments {
		for ax, m := range planes {
			if m == nil {
				continue
			}
			if s.segments[seg][ax] == nil {
				s.segments[seg][ax] = mat.DenseCopyOf(m)
				continue
			}
			s.segments[seg][ax].Add(s.segments[seg][ax], m)
		}
	}
}

// NumBins is the number of bins of the layout, allocated or not
func (s *Sinograms) NumBins() int {
	n := 0
	for _, planes := range s.segments {
		n += len(planes)
	}
	return n * s.proj.NumViews() * s.proj.NumTangentialPositions()
}

// AllocatedPlanes counts the planes that received counts
func (s *Sinograms) AllocatedPlanes() int {
	n := 0
	for _, planes := range s.segments {
		for _, m := range planes {
			if m != nil {
				n++
			}
		}
	}
	return n
}

// eachPlane calls fn for every allocated plane, segment by segment
func (s *Sinograms) eachPlane(fn func(m *mat.Dense)) {
	for _, seg := range s.Segments() {
		for _, m := range s.segments[seg] {
			if m != nil {
				fn(m)
			}
		}
	}
}

// Total is the sum over every bin
func (s *Sinograms) Total() float64 {
	var total float64
	s.eachPlane(func(m *mat.Dense) {
		total += floats.Sum(m.RawMatrix().Data)
	})
	return total
}

// Max is the largest bin content, zero when nothing was added
func (s *Sinograms) Max() float64 {
	maxValue := 0.0
	s.eachPlane(func(m *mat.Dense) {
		maxValue = math.Max(maxValue, floats.Max(m.RawMatrix().Data))
	})
	return maxValue
}

// NonZero returns the bin contents that differ from zero, segment by
// segment, with the number of zero bins
func (s *Sinograms) NonZero() (values []float64, zeros int) {
	s.eachPlane(func(m *mat.Dense) {
		for _, v := range m.RawMatrix().Data {
			if v != 0 {
				values = append(values, v)
			}
		}
	})
	return values, s.NumBins() - len(values)
}

// Values returns every bin content, segment by segment. It copies the whole
// layout and is meant for small scanners.
func (s *Sinograms) Values() []float64 {
	out := make([]float64, 0, s.NumBins())
	for _, seg := range s.Segments() {
		for _, m := range s.segments[seg] {
			if m == nil {
				m = s.newPlane()
			}
			out = append(out, m.RawMatrix().Data...)
		}
	}
	return out
}
