package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petgeom/internal/models"
	"petgeom/pkg/listmode"
	"petgeom/pkg/volume"
)

const smallConfig = `scanner:
  name: test
  numDetectorsPerRing: 8
  numRings: 2
  ringRadius: 100
  ringSpacing: 5
listmode:
  layout:
    crystal: {x: 1, y: 2, z: 2}
    submodule: {x: 1, y: 1, z: 1}
    module: {x: 1, y: 1, z: 1}
    rsectors: 4
processing:
  numCores: 2
output:
  verbose: false
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "petgeom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smallConfig), 0644))
	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(args, &out)
	return out.String(), err
}

func TestInfo(t *testing.T) {
	out, err := runCmd(t, "-config", writeConfig(t), "info")
	require.NoError(t, err)
	assert.Contains(t, out, "Number of detectors per ring := 8")
	assert.Contains(t, out, "Number of views := 4")
	assert.Contains(t, out, "Tangential position range := [-3, 3]")
}

func TestLor(t *testing.T) {
	cfg := writeConfig(t)
	plotFile := filepath.Join(t.TempDir(), "lor.png")

	out, err := runCmd(t, "-config", cfg, "lor", "-seg", "0", "-ax", "0", "-view", "0", "-tang", "1", "-plot", plotFile)
	require.NoError(t, err)
	assert.Contains(t, out, "pair(det1=0, ring1=0, det2=3, ring2=0)")
	assert.Contains(t, out, "100.0000, 0.0000)")
	assert.FileExists(t, plotFile)

	_, err = runCmd(t, "-config", cfg, "lor", "-seg", "5")
	assert.Error(t, err)
}

func TestBin(t *testing.T) {
	cfg := writeConfig(t)

	out, err := runCmd(t, "-config", cfg, "bin", "0", "100", "0", "0", "-100", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "seg=1")
	assert.NotContains(t, out, "invalid")

	out, err = runCmd(t, "-config", cfg, "bin", "500", "0", "0", "500", "10", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "value=-1")
	assert.Contains(t, out, "invalid")

	_, err = runCmd(t, "-config", cfg, "bin", "1", "2")
	assert.Error(t, err)
}

func TestTables(t *testing.T) {
	cfg := writeConfig(t)

	out, err := runCmd(t, "-config", cfg, "tables")
	require.NoError(t, err)
	assert.Contains(t, out, "0\t1\t0\t3\n")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1+4*8)

	out, err = runCmd(t, "-config", cfg, "tables", "-inverse")
	require.NoError(t, err)
	assert.Contains(t, out, "3\t0\t0\t1\ttrue\n")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1+8*7)
}

func TestHistogram(t *testing.T) {
	cfg := writeConfig(t)
	dir := t.TempDir()

	events := filepath.Join(dir, "events.csv")
	f, err := os.Create(events)
	require.NoError(t, err)
	require.NoError(t, listmode.WriteCSV(f, []listmode.Record{
		{First: listmode.Single{EventID: 1, Energy: 0.511}, Second: listmode.Single{EventID: 1, RSectorID: 1, CrystalID: 1, Energy: 0.511}},
		{First: listmode.Single{EventID: 2, Energy: 0.1}, Second: listmode.Single{EventID: 2, RSectorID: 1, Energy: 0.511}},
	}))
	require.NoError(t, f.Close())

	outDir := filepath.Join(dir, "out")
	out, err := runCmd(t, "-config", cfg, "histogram", "-events", events, "-out", outDir, "-plots")
	require.NoError(t, err)
	assert.Contains(t, out, "Events: 2 total, 1 accepted")
	assert.Contains(t, out, "rejected (energy): 1")
	assert.FileExists(t, filepath.Join(outDir, "segment_+00", "sino_seg+00_ax000.png"))
	assert.FileExists(t, filepath.Join(outDir, "segment_-01", "sino_seg-01_ax000.svg"))

	_, err = runCmd(t, "-config", cfg, "histogram")
	assert.Error(t, err)
}

func TestAddImages(t *testing.T) {
	dir := t.TempDir()
	var inputs []string
	for _, name := range []string{"a.yaml", "b.yaml"} {
		v := models.NewVolume(2, 2, 1, models.VoxelSize{X: 1, Y: 1, Z: 1})
		for i := range v.Data {
			v.Data[i] = 1
		}
		p := filepath.Join(dir, name)
		require.NoError(t, volume.Write(p, v))
		inputs = append(inputs, p)
	}

	outPath := filepath.Join(dir, "sum.yaml")
	out, err := runCmd(t, append([]string{"add-images", outPath}, inputs...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "sum 8")

	total, err := volume.Read(outPath)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 2, 2}, total.Data)

	_, err = runCmd(t, "add-images", outPath)
	assert.Error(t, err)
}

func TestInitConfigAndErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "petgeom.yaml")
	_, err := runCmd(t, "init-config", path)
	require.NoError(t, err)

	out, err := runCmd(t, "-config", path, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "Scanner type := ECAT 962")

	_, err = runCmd(t)
	assert.Error(t, err)
	_, err = runCmd(t, "-config", path, "nope")
	assert.ErrorContains(t, err, "unknown command")
}
