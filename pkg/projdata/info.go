package projdata

import (
	"fmt"
	"strings"
)

// ParameterInfo prints the description of the projection data in the
// "key := value" style used by Interfile headers
func (c *Cylindrical) ParameterInfo() string {
	var b strings.Builder
	s := c.scanner
	fmt.Fprintf(&b, "Scanner type := %s\n", s.Name)
	fmt.Fprintf(&b, "Number of detectors per ring := %d\n", s.NumDetectorsPerRing)
	fmt.Fprintf(&b, "Number of rings := %d\n", s.NumRings)
	fmt.Fprintf(&b, "Ring radius (mm) := %g\n", s.RingRadius)
	fmt.Fprintf(&b, "Ring spacing (mm) := %g\n", s.RingSpacing)
	fmt.Fprintf(&b, "Maximum ring difference := %d\n", c.maxRingDiff)
	fmt.Fprintf(&b, "Segment range := [%d, %d]\n", c.MinSegment(), c.MaxSegment())
	fmt.Fprintf(&b, "Number of views := %d\n", c.numViews)
	fmt.Fprintf(&b, "Number of tangential positions := %d\n", c.numTangential)
	fmt.Fprintf(&b, "Tangential position range := [%d, %d]\n", c.MinTangentialPos(), c.MaxTangentialPos())
	fmt.Fprintf(&b, "Azimuthal angle increment (deg) := %g\n", 180/float64(c.numViews))
	return b.String()
}

// ParameterInfo wraps the cylindrical description in a NoArcCorr block
func (p *NoArcCorr) ParameterInfo() string {
	var b strings.Builder
	b.WriteString("ProjDataInfoCylindricalNoArcCorr :=\n")
	b.WriteString(p.Cylindrical.ParameterInfo())
	fmt.Fprintf(&b, "Angular increment (deg) := %g\n", 180/float64(p.Scanner().NumDetectorsPerRing))
	b.WriteString("End :=\n")
	return b.String()
}
