// Package listmode reads coincidence events of a simulated block scanner and
// maps their crystal identifiers onto the detector and ring indices of a
// cylindrical scanner.
package listmode

import (
	"fmt"
)

// Single is one photon of a coincidence
type Single struct {
	EventID     int
	CrystalID   int
	SubmoduleID int
	ModuleID    int
	RSectorID   int

	// Time in s, energy in MeV
	Time   float64
	Energy float64

	// ComptonPhantom counts Compton interactions inside the phantom
	ComptonPhantom int
}

// Record is a coincidence of two singles
type Record struct {
	First  Single
	Second Single
}

// IsRandom reports whether the two singles come from different decays
func (r Record) IsRandom() bool {
	return r.First.EventID != r.Second.EventID
}

// IsScattered reports whether either photon scattered in the phantom
func (r Record) IsScattered() bool {
	return r.First.ComptonPhantom > 0 || r.Second.ComptonPhantom > 0
}

// Delta is the arrival time difference, second minus first
func (r Record) Delta() float64 {
	return r.Second.Time - r.First.Time
}

// Repeater is the number of copies of a volume along each axis
type Repeater struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`
}

func (r Repeater) valid() bool {
	return r.X >= 1 && r.Y >= 1 && r.Z >= 1
}

// Layout describes how crystals are grouped into submodules, modules and
// rsectors. Y runs around the ring and Z along the axis.
type Layout struct {
	Crystal   Repeater `yaml:"crystal"`
	Submodule Repeater `yaml:"submodule"`
	Module    Repeater `yaml:"module"`
	RSectors  int      `yaml:"rsectors"`

	// OffsetDets rotates the detector numbering
	OffsetDets int `yaml:"offsetDets"`
}

// DefaultLayout is 72 rsectors of 4 axial blocks of 8x8 crystals, which
// gives the 576 detectors and 32 rings of an ECAT 962
func DefaultLayout() Layout {
	return Layout{
		Crystal:   Repeater{X: 1, Y: 8, Z: 8},
		Submodule: Repeater{X: 1, Y: 1, Z: 1},
		Module:    Repeater{X: 1, Y: 1, Z: 4},
		RSectors:  72,
	}
}

// Validate checks that every repeater is at least one
func (l Layout) Validate() error {
	if !l.Crystal.valid() || !l.Submodule.valid() || !l.Module.valid() {
		return fmt.Errorf("listmode: repeaters must be at least 1")
	}
	if l.RSectors < 1 {
		return fmt.Errorf("listmode: rsectors must be at least 1, got %d", l.RSectors)
	}
	return nil
}

// detectorsPerBlock counts the crystals of one rsector around the ring
func (l Layout) detectorsPerBlock() int {
	return l.Module.Y * l.Submodule.Y * l.Crystal.Y
}

// NumDetectorsPerRing is the number of crystals around the ring
func (l Layout) NumDetectorsPerRing() int {
	return l.RSectors * l.detectorsPerBlock()
}

// NumRings is the number of crystals along the axis
func (l Layout) NumRings() int {
	return l.Module.Z * l.Submodule.Z * l.Crystal.Z
}

// halfBlock aligns the first crystal of a block, which is counted from the
// block edge, with detector 0 of the scanner
func (l Layout) halfBlock() int {
	return max(l.detectorsPerBlock()/2-1, 0)
}

// Detection returns the detector and ring of a single
func (l Layout) Detection(s Single) (det, ring int) {
	cy, sy, my := l.Crystal.Y, l.Submodule.Y, l.Module.Y

	det = s.RSectorID*l.detectorsPerBlock() +
		(s.ModuleID%my)*sy*cy +
		(s.SubmoduleID%sy)*cy +
		s.CrystalID%cy
	n := l.NumDetectorsPerRing()
	det = ((det+l.halfBlock()+l.OffsetDets)%n + n) % n

	ring = s.CrystalID/cy +
		(s.SubmoduleID/sy)*l.Crystal.Z +
		(s.ModuleID/my)*l.Submodule.Z*l.Crystal.Z
	return det, ring
}

// RejectReason says why a record was dropped; empty means accepted
type RejectReason string

const (
	Accepted        RejectReason = ""
	RejectEnergy    RejectReason = "energy"
	RejectScattered RejectReason = "scattered"
	RejectRandom    RejectReason = "random"
)

// Filter selects the coincidences used for histogramming
type Filter struct {
	// Energy window in MeV, applied to both singles
	LowEnergy float64 `yaml:"lowEnergy"`
	UpEnergy  float64 `yaml:"upEnergy"`

	ExcludeScattered bool `yaml:"excludeScattered"`
	ExcludeRandoms   bool `yaml:"excludeRandoms"`
}

// DefaultFilter keeps everything inside a 425-650 keV window
func DefaultFilter() Filter {
	return Filter{LowEnergy: 0.425, UpEnergy: 0.65}
}

// Validate checks the energy window
func (f Filter) Validate() error {
	if f.LowEnergy < 0 || f.UpEnergy <= f.LowEnergy {
		return fmt.Errorf("listmode: bad energy window [%g, %g]", f.LowEnergy, f.UpEnergy)
	}
	return nil
}

// Check returns why r is rejected, or Accepted
func (f Filter) Check(r Record) RejectReason {
	if f.ExcludeRandoms && r.IsRandom() {
		return RejectRandom
	}
	if f.ExcludeScattered && r.IsScattered() {
		return RejectScattered
	}
	for _, e := range []float64{r.First.Energy, r.Second.Energy} {
		if e < f.LowEnergy || e > f.UpEnergy {
			return RejectEnergy
		}
	}
	return Accepted
}

// Accept reports whether r passes the filter
func (f Filter) Accept(r Record) bool {
	return f.Check(r) == Accepted
}
