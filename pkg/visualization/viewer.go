package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"petgeom/pkg/histogram"
)

// Viewer renders sinograms as grey-level images. Intensities are scaled by
// the largest bin over all segments so that images of one data set compare.
type Viewer struct {
	sinos *histogram.Sinograms

	// maxValue maps to full white
	maxValue float64
}

// NewViewer creates a viewer over histogrammed sinograms
func NewViewer(sinos *histogram.Sinograms) *Viewer {
	return &Viewer{
		sinos:    sinos,
		maxValue: sinos.Max(),
	}
}

// ExtractSinogram returns one sinogram as an image, views down and
// tangential positions across
func (v *Viewer) ExtractSinogram(segment, axialPos int) (image.Image, error) {
	m, err := v.sinos.Sinogram(segment, axialPos)
	if err != nil {
		return nil, err
	}

	rows, cols := m.Dims()
	img := image.NewGray16(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			img.SetGray16(x, y, color.Gray16{Y: v.scale(m.At(y, x))})
		}
	}
	return img, nil
}

func (v *Viewer) scale(value float64) uint16 {
	if v.maxValue <= 0 {
		return 0
	}
	return uint16(math.Max(0, math.Min(65535, value/v.maxValue*65535)))
}

// SaveImage saves an image as PNG
func (v *Viewer) SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSinogramSequence saves every axial position of a segment as a PNG
func (v *Viewer) SaveSinogramSequence(segment int, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	proj := v.sinos.Projection()
	if segment < proj.MinSegment() || segment > proj.MaxSegment() {
		return fmt.Errorf("invalid segment: %d (must be in [%d, %d])", segment, proj.MinSegment(), proj.MaxSegment())
	}

	for ax := proj.MinAxialPos(segment); ax <= proj.MaxAxialPos(segment); ax++ {
		img, err := v.ExtractSinogram(segment, ax)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, SinogramFileName(segment, ax, "png"))
		if err := v.SaveImage(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// SinogramFileName names the file of one sinogram
func SinogramFileName(segment, axialPos int, ext string) string {
	return fmt.Sprintf("sino_seg%+03d_ax%03d.%s", segment, axialPos, ext)
}
