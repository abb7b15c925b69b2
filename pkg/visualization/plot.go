package visualization

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"petgeom/internal/models"
	"petgeom/pkg/geometry"
)

// sinogramGrid adapts a views x tangential positions matrix to plotter.GridXYZ
type sinogramGrid struct {
	m       *mat.Dense
	minTang int
}

func (g sinogramGrid) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}

func (g sinogramGrid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g sinogramGrid) X(c int) float64    { return float64(c + g.minTang) }
func (g sinogramGrid) Y(r int) float64    { return float64(r) }

// PlotSinogram saves a heat map of one sinogram. minTang is the tangential
// position of the first column.
func PlotSinogram(m *mat.Dense, minTang int, title, filename string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Tangential position"
	p.Y.Label.Text = "View"

	heat := plotter.NewHeatMap(sinogramGrid{m: m, minTang: minTang}, palette.Heat(64, 1))
	if heat.Max <= heat.Min {
		// flat sinogram, the palette needs a non-empty range
		heat.Max = heat.Min + 1
	}
	p.Add(heat)

	if err := p.Save(8*vg.Inch, 6*vg.Inch, filename); err != nil {
		return fmt.Errorf("save sinogram plot: %w", err)
	}
	return nil
}

// PlotRing draws the transaxial detector positions of ring 0 and the LOR of
// a detector pair projected onto the ring plane
func PlotRing(geom *geometry.Geometry, pair models.DetectorPair, filename string) error {
	p := plot.New()
	p.Title.Text = pair.String()
	p.X.Label.Text = "x (mm)"
	p.Y.Label.Text = "y (mm)"

	detectors := make(plotter.XYs, geom.NumDetectors())
	for det := range detectors {
		c := geom.DetectorToCartesian(0, det)
		detectors[det] = plotter.XY{X: c.X, Y: c.Y}
	}
	scatter, err := plotter.NewScatter(detectors)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	p.Add(scatter)

	c1, c2 := geom.DetectorPairToCartesian(pair)
	lor, err := plotter.NewLine(plotter.XYs{{X: c1.X, Y: c1.Y}, {X: c2.X, Y: c2.Y}})
	if err != nil {
		return err
	}
	lor.Color = color.RGBA{R: 200, A: 255}
	lor.Width = vg.Points(1)
	p.Add(lor)
	p.Legend.Add(fmt.Sprintf("LOR %d-%d", pair.Det1, pair.Det2), lor)
	p.Legend.Top = true

	ends, err := plotter.NewScatter(plotter.XYs{{X: c1.X, Y: c1.Y}, {X: c2.X, Y: c2.Y}})
	if err != nil {
		return err
	}
	ends.GlyphStyle.Color = lor.Color
	ends.GlyphStyle.Radius = vg.Points(3)
	p.Add(ends)

	r := geom.RingRadius() * 1.1
	p.X.Min, p.X.Max = -r, r
	p.Y.Min, p.Y.Max = -r, r

	if err := p.Save(6*vg.Inch, 6*vg.Inch, filename); err != nil {
		return fmt.Errorf("save ring plot: %w", err)
	}
	return nil
}
