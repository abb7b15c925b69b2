// Package volume reads and writes 3D images as a YAML header next to a raw
// little-endian float32 data file, and adds images together.
package volume

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"petgeom/internal/logger"
	"petgeom/internal/models"
)

// ErrShapeMismatch is returned when volumes of different shape are combined
var ErrShapeMismatch = models.ErrShapeMismatch

// ErrNoInput is returned by Sum without any volume to add
var ErrNoInput = errors.New("volume: nothing to add")

const (
	littleEndian = "little"
	float32Type  = "float32"
)

// Header is the YAML description of a volume on disk
type Header struct {
	Width     int              `yaml:"width"`
	Height    int              `yaml:"height"`
	Depth     int              `yaml:"depth"`
	VoxelSize models.VoxelSize `yaml:"voxelSize"`
	DataFile  string           `yaml:"dataFile"`
	ByteOrder string           `yaml:"byteOrder"`
	DataType  string           `yaml:"dataType"`
}

// dataFileFor returns the raw file name that goes with a header path
func dataFileFor(headerPath string) string {
	base := filepath.Base(headerPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".raw"
}

// Read loads a volume from its header file. The data file is resolved
// relative to the header.
func Read(headerPath string) (*models.Volume, error) {
	raw, err := os.ReadFile(headerPath)
	if err != nil {
		return nil, fmt.Errorf("error reading volume header: %w", err)
	}

	var h Header
	if err := yaml.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("error parsing volume header: %w", err)
	}
	if h.Width < 1 || h.Height < 1 || h.Depth < 1 {
		return nil, fmt.Errorf("volume header %s: bad dimensions %dx%dx%d", headerPath, h.Width, h.Height, h.Depth)
	}
	if h.ByteOrder != "" && h.ByteOrder != littleEndian {
		return nil, fmt.Errorf("volume header %s: unsupported byte order %q", headerPath, h.ByteOrder)
	}
	if h.DataType != "" && h.DataType != float32Type {
		return nil, fmt.Errorf("volume header %s: unsupported data type %q", headerPath, h.DataType)
	}
	if h.DataFile == "" {
		h.DataFile = dataFileFor(headerPath)
	}

	dataPath := h.DataFile
	if !filepath.IsAbs(dataPath) {
		dataPath = filepath.Join(filepath.Dir(headerPath), dataPath)
	}
	file, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("error opening volume data: %w", err)
	}
	defer file.Close()

	v := models.NewVolume(h.Width, h.Height, h.Depth, h.VoxelSize)
	values := make([]float32, v.NumVoxels())
	if err := binary.Read(bufio.NewReader(file), binary.LittleEndian, values); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("volume data %s is shorter than %d voxels", dataPath, v.NumVoxels())
		}
		return nil, fmt.Errorf("error reading volume data: %w", err)
	}
	for i, x := range values {
		v.Data[i] = float64(x)
	}
	return v, nil
}

// Write saves v as a header at headerPath and a raw file beside it
func Write(headerPath string, v *models.Volume) error {
	if len(v.Data) != v.NumVoxels() {
		return fmt.Errorf("volume has %d values for %d voxels", len(v.Data), v.NumVoxels())
	}
	dir := filepath.Dir(headerPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	h := Header{
		Width:     v.Width,
		Height:    v.Height,
		Depth:     v.Depth,
		VoxelSize: v.VoxelSize,
		DataFile:  dataFileFor(headerPath),
		ByteOrder: littleEndian,
		DataType:  float32Type,
	}
	raw, err := yaml.Marshal(&h)
	if err != nil {
		return fmt.Errorf("error marshaling volume header: %w", err)
	}

	file, err := os.Create(filepath.Join(dir, h.DataFile))
	if err != nil {
		return fmt.Errorf("failed to create volume data file: %w", err)
	}
	w := bufio.NewWriter(file)
	values := make([]float32, len(v.Data))
	for i, x := range v.Data {
		values[i] = float32(x)
	}
	if err := binary.Write(w, binary.LittleEndian, values); err != nil {
		file.Close()
		return fmt.Errorf("failed to write volume data: %w", err)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write volume data: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}

	if err := os.WriteFile(headerPath, raw, 0644); err != nil {
		return fmt.Errorf("error writing volume header: %w", err)
	}
	return nil
}

// Sum reads every volume and adds them voxel by voxel. All inputs must
// share dimensions and voxel size.
func Sum(paths ...string) (*models.Volume, error) {
	if len(paths) == 0 {
		return nil, ErrNoInput
	}
	log := logger.Component("volume")

	log.Info("reading image", "path", paths[0])
	total, err := Read(paths[0])
	if err != nil {
		return nil, err
	}
	for _, p := range paths[1:] {
		log.Info("reading image", "path", p)
		v, err := Read(p)
		if err != nil {
			return nil, err
		}
		if err := total.Add(v); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return total, nil
}

// Stats returns the minimum, maximum and sum of the voxel values
func Stats(v *models.Volume) (lo, hi, sum float64) {
	if len(v.Data) == 0 {
		return math.NaN(), math.NaN(), 0
	}
	return floats.Min(v.Data), floats.Max(v.Data), floats.Sum(v.Data)
}
