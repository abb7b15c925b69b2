package histogram

import (
	"errors"
	"io"
	"math"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petgeom/internal/models"
	"petgeom/pkg/listmode"
	"petgeom/pkg/projdata"
	"petgeom/pkg/scanner"
)

// 4 rsectors of 2x2 crystals: 8 detectors, 2 rings
func testLayout() listmode.Layout {
	return listmode.Layout{
		Crystal:   listmode.Repeater{X: 1, Y: 2, Z: 2},
		Submodule: listmode.Repeater{X: 1, Y: 1, Z: 1},
		Module:    listmode.Repeater{X: 1, Y: 1, Z: 1},
		RSectors:  4,
	}
}

func testProjection(t *testing.T) *projdata.NoArcCorr {
	t.Helper()
	s, err := scanner.New("test", 8, 2, 100, 5)
	require.NoError(t, err)
	c, err := projdata.NewCylindrical(s, 1, 4, 5)
	require.NoError(t, err)
	p, err := projdata.NewNoArcCorr(c)
	require.NoError(t, err)
	return p
}

func coincidence(rs1, cr1, rs2, cr2 int, energy float64) listmode.Record {
	return listmode.Record{
		First:  listmode.Single{EventID: 1, RSectorID: rs1, CrystalID: cr1, Energy: energy},
		Second: listmode.Single{EventID: 1, RSectorID: rs2, CrystalID: cr2, Energy: 0.511},
	}
}

func testRecords() []listmode.Record {
	return []listmode.Record{
		coincidence(0, 0, 1, 1, 0.511), // detectors 0 and 3, ring 0
		coincidence(0, 0, 1, 1, 0.5),
		coincidence(0, 0, 1, 1, 0.3),   // outside the energy window
		coincidence(0, 0, 0, 0, 0.511), // same crystal
		coincidence(0, 0, 0, 1, 0.511), // neighbours, beyond the tangential range
		coincidence(0, 2, 1, 1, 0.511), // ring 1 to ring 0
	}
}

func newTestHistogrammer(t *testing.T, cores int) *Histogrammer {
	t.Helper()
	h, err := NewHistogrammer(testProjection(t), &Params{
		NumCores: cores,
		Layout:   testLayout(),
		Filter:   listmode.DefaultFilter(),
	})
	require.NoError(t, err)
	return h
}

func TestProcess(t *testing.T) {
	h := newTestHistogrammer(t, 1)

	sinos, err := h.Process(listmode.NewStream(testRecords()))
	require.NoError(t, err)

	stats := h.Stats()
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 3, stats.Accepted)
	assert.Equal(t, 1, stats.Rejected[listmode.RejectEnergy])
	assert.Equal(t, 1, stats.Rejected[RejectDegenerate])
	assert.Equal(t, 1, stats.Rejected[RejectOutOfSinogram])
	assert.Equal(t, []listmode.RejectReason{RejectDegenerate, listmode.RejectEnergy, RejectOutOfSinogram}, stats.Reasons())

	assert.Equal(t, 3.0, stats.Counts)
	assert.Equal(t, 3.0, sinos.Total())
	assert.Equal(t, 2, stats.NonZeroBins)
	assert.InDelta(t, 3.0/80, stats.Mean, 1e-12)
	want := -(2.0/3*math.Log(2.0/3) + 1.0/3*math.Log(1.0/3))
	assert.InDelta(t, want, stats.Entropy, 1e-12)

	bin, err := sinos.Value(models.NewBin(0, 0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2.0, bin.Value)

	bin, err = sinos.Value(models.NewBin(-1, 0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1.0, bin.Value)
}

func TestProcessConcurrentMatchesSerial(t *testing.T) {
	var records []listmode.Record
	for i := 0; i < 50; i++ {
		records = append(records, testRecords()...)
	}

	serial := newTestHistogrammer(t, 1)
	want, err := serial.Process(listmode.NewStream(records))
	require.NoError(t, err)

	parallel := newTestHistogrammer(t, 7)
	got, err := parallel.Process(listmode.NewStream(records))
	require.NoError(t, err)

	assert.Equal(t, want.Values(), got.Values())
	assert.Equal(t, serial.Stats(), parallel.Stats())
	assert.Equal(t, 150, parallel.Stats().Accepted)
}

func TestProcessEmptyStream(t *testing.T) {
	h := newTestHistogrammer(t, 4)
	sinos, err := h.Process(listmode.NewStream(nil))
	require.NoError(t, err)
	assert.Zero(t, sinos.Total())
	assert.Zero(t, h.Stats().Entropy)
}

func TestLayoutMismatch(t *testing.T) {
	l := testLayout()
	l.RSectors = 5
	_, err := NewHistogrammer(testProjection(t), &Params{NumCores: 1, Layout: l, Filter: listmode.DefaultFilter()})
	assert.ErrorIs(t, err, ErrLayoutMismatch)
}

func TestSinograms(t *testing.T) {
	p := testProjection(t)
	s := NewSinograms(p)

	assert.Equal(t, []int{-1, 0, 1}, s.Segments())
	assert.Equal(t, 80, s.NumBins())
	assert.Zero(t, s.AllocatedPlanes())
	assert.Zero(t, s.Max())

	m, err := s.Sinogram(0, 1)
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 5, c)
	assert.Zero(t, s.AllocatedPlanes(), "reading an empty plane does not keep it")

	empty, err := s.Value(models.NewBin(0, 1, 2, 0))
	require.NoError(t, err)
	assert.Zero(t, empty.Value)

	_, err = s.Sinogram(1, 1)
	assert.ErrorIs(t, err, projdata.ErrBinOutOfRange)

	require.NoError(t, s.Add(models.NewBin(1, 0, 3, -2), 2.5))
	assert.Equal(t, 2.5, s.segments[1][0].At(3, 0))
	assert.ErrorIs(t, s.Add(models.NewBin(0, 0, 0, 3), 1), projdata.ErrBinOutOfRange)

	assert.Equal(t, 1, s.AllocatedPlanes())

	other := NewSinograms(p)
	require.NoError(t, other.Add(models.NewBin(1, 0, 3, -2), 1))
	require.NoError(t, other.Add(models.NewBin(-1, 0, 0, 0), 4))
	s.Merge(other)
	assert.Equal(t, 7.5, s.Total())
	assert.Equal(t, 4.0, s.Max())
	assert.Equal(t, 2, s.AllocatedPlanes())
	assert.Len(t, s.Values(), 80)

	// merged planes are copies
	require.NoError(t, other.Add(models.NewBin(-1, 0, 0, 0), 1))
	assert.Equal(t, 7.5, s.Total())

	values, zeros := s.NonZero()
	assert.Equal(t, []float64{4, 3.5}, values)
	assert.Equal(t, 78, zeros)
}

// ecat962 builds the full ECAT 962 layout, every ring difference included
func ecat962(t *testing.T) *projdata.NoArcCorr {
	t.Helper()
	s, err := scanner.Lookup("ECAT 962")
	require.NoError(t, err)
	c, err := projdata.NewCylindrical(s, s.NumRings-1, s.NumDetectorsPerRing/2, s.NumDetectorsPerRing-1)
	require.NoError(t, err)
	p, err := projdata.NewNoArcCorr(c)
	require.NoError(t, err)
	return p
}

func TestProcessAllocatesTouchedPlanesOnly(t *testing.T) {
	proj := ecat962(t)
	h, err := NewHistogrammer(proj, &Params{
		NumCores: 4,
		Layout:   listmode.DefaultLayout(),
		Filter:   listmode.DefaultFilter(),
	})
	require.NoError(t, err)

	// opposite rsectors, one ring per module: segment 0, axial 0, 8, 16, 24
	var records []listmode.Record
	for module := 0; module < 4; module++ {
		records = append(records, listmode.Record{
			First:  listmode.Single{EventID: 1, ModuleID: module, Energy: 0.511},
			Second: listmode.Single{EventID: 1, RSectorID: 36, ModuleID: module, Energy: 0.511},
		})
	}

	// build the lookup tables before measuring
	_, err = proj.BinForDetectorPair(models.DetectorPair{Det1: 0, Det2: 288})
	require.NoError(t, err)

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	sinos, err := h.Process(listmode.NewStream(records))
	require.NoError(t, err)
	runtime.ReadMemStats(&after)

	assert.Equal(t, 4, h.Stats().Accepted)
	assert.Equal(t, 4, sinos.AllocatedPlanes())
	assert.Equal(t, 4, h.Stats().NonZeroBins)
	assert.InDelta(t, 4.0/float64(sinos.NumBins()), h.Stats().Mean, 1e-15)

	// one dense copy of this layout is about 1.26 GiB
	allocated := after.TotalAlloc - before.TotalAlloc
	assert.Less(t, allocated, uint64(64<<20), "allocated %d bytes", allocated)
}

func TestNewHistogrammerCopiesParams(t *testing.T) {
	params := &Params{NumCores: 0, Layout: testLayout(), Filter: listmode.DefaultFilter()}
	h, err := NewHistogrammer(testProjection(t), params)
	require.NoError(t, err)
	assert.Equal(t, 0, params.NumCores)
	assert.Equal(t, 1, h.params.NumCores)
}

type failingSource struct {
	records []listmode.Record
	err     error
}

func (f *failingSource) Next() (listmode.Record, error) {
	if len(f.records) == 0 {
		return listmode.Record{}, f.err
	}
	r := f.records[0]
	f.records = f.records[1:]
	return r, nil
}

func TestProcessReturnsReadErrors(t *testing.T) {
	h := newTestHistogrammer(t, 2)
	readErr := errors.New("truncated record")

	_, err := h.Process(&failingSource{records: testRecords(), err: readErr})
	assert.ErrorIs(t, err, readErr)

	sinos, err := h.Process(&failingSource{records: testRecords(), err: io.EOF})
	require.NoError(t, err)
	assert.Equal(t, 3.0, sinos.Total())
}
