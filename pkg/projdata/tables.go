package projdata

import (
	"fmt"
	"sync"

	"petgeom/internal/models"
)

// IndexTables translates between sinogram coordinates (view, tangential
// position) and detector pairs (det1, det2) within one ring, for data that
// is not arc-corrected.
//
// Because the sinogram is not arc-corrected the tangential position is an
// angle too. At view 0, ignoring interleaving, det1 sits at angle
// tangential/2 and det2 at π - tangential/2; other views follow by rotation.
//
// Each table is built on first use and cached; both builds are guarded by
// sync.Once so an IndexTables can be shared between goroutines.
type IndexTables struct {
	numDetectors int

	forwardOnce sync.Once
	forward     []models.ForwardEntry

	inverseOnce sync.Once
	inverse     []models.InverseEntry
}

// NewIndexTables creates the (not yet built) tables for a ring of
// numDetectors detectors. The count must be even and at least 2.
func NewIndexTables(numDetectors int) (*IndexTables, error) {
	if numDetectors < 2 || numDetectors%2 != 0 {
		return nil, NewPreconditionError("even detector count",
			"%d detectors per ring", numDetectors)
	}
	return &IndexTables{numDetectors: numDetectors}, nil
}

// NumDetectors returns the ring size the tables were built for
func (t *IndexTables) NumDetectors() int { return t.numDetectors }

// NumViews is half the number of detectors: views span [0, π)
func (t *IndexTables) NumViews() int { return t.numDetectors / 2 }

// MinTangentialPos is the first tangential position of the forward table
func (t *IndexTables) MinTangentialPos() int { return -t.numDetectors/2 + 1 }

// MaxTangentialPos is the last tangential position of the forward table.
// It maps every view onto a detector paired with itself.
func (t *IndexTables) MaxTangentialPos() int { return t.numDetectors / 2 }

func (t *IndexTables) numTangential() int {
	return t.MaxTangentialPos() - t.MinTangentialPos() + 1
}

// Forward returns the detectors of (view, tangential position)
func (t *IndexTables) Forward(view, tangentialPos int) (models.ForwardEntry, error) {
	if view < 0 || view >= t.NumViews() ||
		tangentialPos < t.MinTangentialPos() || tangentialPos > t.MaxTangentialPos() {
		return models.ForwardEntry{}, fmt.Errorf("%w: view %d, tangential position %d",
			ErrBinOutOfRange, view, tangentialPos)
	}
	t.forwardOnce.Do(t.buildForward)
	return t.forward[view*t.numTangential()+tangentialPos-t.MinTangentialPos()], nil
}

// Inverse returns the canonical (view, tangential position) of a detector pair
func (t *IndexTables) Inverse(det1, det2 int) (models.InverseEntry, error) {
	if det1 < 0 || det1 >= t.numDetectors || det2 < 0 || det2 >= t.numDetectors {
		return models.InverseEntry{}, fmt.Errorf("%w: detectors %d and %d on a %d-detector ring",
			ErrDetectorOutOfRange, det1, det2, t.numDetectors)
	}
	if det1 == det2 {
		return models.InverseEntry{}, fmt.Errorf("%w: detector %d", ErrDegeneratePair, det1)
	}
	t.inverseOnce.Do(t.buildInverse)
	return t.inverse[det1*t.numDetectors+det2], nil
}

func (t *IndexTables) buildForward() {
	numViews := t.NumViews()
	table := make([]models.ForwardEntry, 0, numViews*t.numTangential())
	for view := 0; view < numViews; view++ {
		for tang := t.MinTangentialPos(); tang <= t.MaxTangentialPos(); tang++ {
			table = append(table, ForwardEntryFor(t.numDetectors, view, tang))
		}
	}
	t.forward = table
}

func (t *IndexTables) buildInverse() {
	n := t.numDetectors
	table := make([]models.InverseEntry, n*n)
	for det1 := 0; det1 < n; det1++ {
		for det2 := 0; det2 < n; det2++ {
			if det1 == det2 {
				continue
			}
			table[det1*n+det2] = InverseEntryFor(n, det1, det2)
		}
	}
	t.inverse = table
}

// ForwardEntryFor computes one forward table entry directly
func ForwardEntryFor(numDetectors, view, tangentialPos int) models.ForwardEntry {
	return models.ForwardEntry{
		Det1: mod(view+floorDiv(tangentialPos, 2), numDetectors),
		Det2: mod(view-floorDiv(tangentialPos+1, 2)+numDetectors/2, numDetectors),
	}
}

// InverseEntryFor computes one inverse table entry directly.
// The result is meaningless for det1 == det2.
//
// The raw (view, tangential) pair is folded into view ∈ [0, D/2) using
//
//	(tang, view) ≡ (tang + D, view + D/2) ≡ (-tang, view + D/2)
//
// where the second form exchanges the two detectors. In 2D that is the same
// LOR, in 3D it also exchanges the rings, hence SwapDetectors.
func InverseEntryFor(numDetectors, det1, det2 int) models.InverseEntry {
	maxViews := numDetectors / 2
	tang := mod(det1-det2+3*numDetectors/2, numDetectors)
	view := mod(det1-floorDiv(tang, 2), numDetectors)

	var swap bool
	if view < maxViews {
		if tang >= maxViews {
			tang = numDetectors - tang
			swap = true
		}
	} else {
		view -= maxViews
		if tang >= maxViews {
			tang -= numDetectors
		} else {
			tang = -tang
			swap = true
		}
	}

	return models.InverseEntry{View: view, TangentialPos: tang, SwapDetectors: swap}
}

// floorDiv divides rounding towards negative infinity
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// mod returns a non-negative remainder for b > 0
func mod(a, b int) int {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}
