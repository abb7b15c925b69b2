// Package histogram bins list-mode coincidences into sinograms using a
// no-arc-correction projection layout.
package histogram

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"petgeom/internal/logger"
	"petgeom/internal/models"
	"petgeom/pkg/listmode"
	"petgeom/pkg/projdata"
)

// ErrLayoutMismatch is returned when the crystal layout does not describe
// the scanner of the projection data
var ErrLayoutMismatch = errors.New("histogram: crystal layout does not match scanner")

// Reasons for dropping a coincidence after the list-mode filter passed it
const (
	RejectDegenerate    listmode.RejectReason = "degenerate"
	RejectDetector      listmode.RejectReason = "detector"
	RejectOutOfSinogram listmode.RejectReason = "out of sinogram"
)

// Params controls histogramming
type Params struct {
	// NumCores is the number of goroutines sharing the records
	NumCores int

	// Verbose logs progress per finished chunk
	Verbose bool

	Layout listmode.Layout
	Filter listmode.Filter
}

// Stats summarises a histogramming run
type Stats struct {
	Total    int
	Accepted int
	Rejected map[listmode.RejectReason]int

	// Counts is the sum of all bins
	Counts float64

	// Mean and StdDev of the bin contents
	Mean   float64
	StdDev float64

	// Entropy of the normalised bin contents, in nats
	Entropy float64

	// NonZeroBins is the number of bins with at least one count
	NonZeroBins int
}

// Histogrammer turns coincidences into sinograms
type Histogrammer struct {
	params Params
	proj   *projdata.NoArcCorr
	log    *slog.Logger
	stats  Stats
}

// NewHistogrammer checks that the layout fits the projection's scanner
func NewHistogrammer(proj *projdata.NoArcCorr, params *Params) (*Histogrammer, error) {
	s := proj.Scanner()
	if params.Layout.NumDetectorsPerRing() != s.NumDetectorsPerRing || params.Layout.NumRings() != s.NumRings {
		return nil, fmt.Errorf("%w: layout has %d detectors x %d rings, scanner %d x %d",
			ErrLayoutMismatch, params.Layout.NumDetectorsPerRing(), params.Layout.NumRings(),
			s.NumDetectorsPerRing, s.NumRings)
	}
	p := *params
	if p.NumCores < 1 {
		p.NumCores = 1
	}
	return &Histogrammer{
		params: p,
		proj:   proj,
		log:    logger.Component("histogram"),
	}, nil
}

// Stats returns the summary of the last Process call
func (h *Histogrammer) Stats() Stats { return h.stats }

// chunkResult carries the counts of one chunk keyed by bin with a zero Value,
// so a chunk costs memory in proportion to the bins it hit
type chunkResult struct {
	chunk    int
	counts   map[models.Bin]float64
	accepted int
	rejected map[listmode.RejectReason]int
}

// RecordSource yields coincidences until io.EOF; *listmode.Stream is one
type RecordSource interface {
	Next() (listmode.Record, error)
}

// Process bins every record of the stream from its current position to the
// end. Records are split into NumCores chunks processed concurrently.
func (h *Histogrammer) Process(stream RecordSource) (*Sinograms, error) {
	var records []listmode.Record
	for {
		r, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading coincidences: %w", err)
		}
		records = append(records, r)
	}

	numChunks := min(h.params.NumCores, max(len(records), 1))
	perChunk := (len(records) + numChunks - 1) / numChunks
	h.log.Info("histogramming", "records", len(records), "chunks", numChunks)

	resultChan := make(chan chunkResult, numChunks)
	for c := 0; c < numChunks; c++ {
		start := min(c*perChunk, len(records))
		end := min(start+perChunk, len(records))
		go func(chunk int, recs []listmode.Record) {
			resultChan <- h.processChunk(chunk, recs)
		}(c, records[start:end])
	}

	result := NewSinograms(h.proj)
	stats := Stats{Total: len(records), Rejected: make(map[listmode.RejectReason]int)}
	for completed := 0; completed < numChunks; completed++ {
		res := <-resultChan
		for bin, n := range res.counts {
			if err := result.Add(bin, n); err != nil {
				return nil, err
			}
		}
		stats.Accepted += res.accepted
		for reason, n := range res.rejected {
			stats.Rejected[reason] += n
		}
		if h.params.Verbose {
			h.log.Info("chunk done", "chunk", res.chunk, "progress",
				fmt.Sprintf("%.1f%%", float64(completed+1)/float64(numChunks)*100))
		}
	}

	summarise(result, &stats)
	h.stats = stats
	h.log.Info("histogram complete", "accepted", stats.Accepted, "total", stats.Total, "counts", stats.Counts)
	return result, nil
}

func (h *Histogrammer) processChunk(chunk int, records []listmode.Record) chunkResult {
	res := chunkResult{
		chunk:    chunk,
		counts:   make(map[models.Bin]float64),
		rejected: make(map[listmode.RejectReason]int),
	}
	for _, r := range records {
		if reason := h.params.Filter.Check(r); reason != listmode.Accepted {
			res.rejected[reason]++
			continue
		}
		bin, reason := h.binRecord(r)
		if reason != listmode.Accepted {
			res.rejected[reason]++
			continue
		}
		res.counts[bin]++
		res.accepted++
	}
	return res
}

func (h *Histogrammer) binRecord(r listmode.Record) (models.Bin, listmode.RejectReason) {
	det1, ring1 := h.params.Layout.Detection(r.First)
	det2, ring2 := h.params.Layout.Detection(r.Second)

	bin, err := h.proj.BinForDetectorPair(models.DetectorPair{Det1: det1, Ring1: ring1, Det2: det2, Ring2: ring2})
	switch {
	case errors.Is(err, projdata.ErrDegeneratePair):
		return bin, RejectDegenerate
	case errors.Is(err, projdata.ErrDetectorOutOfRange):
		return bin, RejectDetector
	case err != nil:
		return bin, RejectOutOfSinogram
	}
	if err := h.proj.CheckBin(bin); err != nil {
		return bin, RejectOutOfSinogram
	}
	bin.Value = 0
	return bin, listmode.Accepted
}

// summarise walks the allocated planes only. Empty bins enter the mean and
// standard deviation as a single value weighted by their number.
func summarise(s *Sinograms, stats *Stats) {
	values, zeros := s.NonZero()
	stats.Counts = s.Total()

	weights := make([]float64, len(values), len(values)+1)
	for i := range weights {
		weights[i] = 1
	}
	if zeros > 0 {
		values = append(values, 0)
		weights = append(weights, float64(zeros))
	}
	if len(values) > 0 {
		stats.Mean, stats.StdDev = stat.MeanStdDev(values, weights)
	}
	if math.IsNaN(stats.StdDev) {
		stats.StdDev = 0
	}

	if stats.Counts <= 0 {
		return
	}
	p := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			p = append(p, v/stats.Counts)
		}
	}
	stats.NonZeroBins = len(p)
	stats.Entropy = stat.Entropy(p)
}

// Reasons returns the rejection reasons in a stable order for reporting
func (s Stats) Reasons() []listmode.RejectReason {
	reasons := make([]listmode.RejectReason, 0, len(s.Rejected))
	for r := range s.Rejected {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	return reasons
}
