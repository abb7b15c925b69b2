package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"

	"petgeom/pkg/scanner"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Processing.NumCores != runtime.NumCPU() {
		t.Errorf("Expected NumCores %d, got %d", runtime.NumCPU(), cfg.Processing.NumCores)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config does not validate: %v", err)
	}

	proj, err := cfg.BuildProjection()
	if err != nil {
		t.Fatal(err)
	}
	if proj.NumViews() != 288 || proj.NumTangentialPositions() != 575 || proj.MaxSegment() != 31 {
		t.Errorf("Unexpected defaults: %d views, %d tangential, max segment %d",
			proj.NumViews(), proj.NumTangentialPositions(), proj.MaxSegment())
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "petgeom.yaml")

	want := DefaultConfig()
	want.Scanner = scanner.Scanner{Name: "ECAT 953"}
	want.Projection.MaxRingDifference = 3
	want.ListMode.Filter.ExcludeRandoms = true
	want.Output.Dir = "sinos"

	if err := SaveConfig(want, path); err != nil {
		t.Fatal(err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}

	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatal(err)
	}
	got, err = LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(DefaultConfig(), got); diff != "" {
		t.Errorf("Default file mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildScanner(t *testing.T) {
	tests := []struct {
		name    string
		in      scanner.Scanner
		want    scanner.Scanner
		wantErr bool
	}{
		{
			name: "known model",
			in:   scanner.Scanner{Name: "ecat 931"},
			want: scanner.Scanner{Name: "ECAT 931", NumDetectorsPerRing: 512, NumRings: 8, RingRadius: 510, RingSpacing: 13.5},
		},
		{
			name: "known model with override",
			in:   scanner.Scanner{Name: "ECAT 962", NumRings: 4},
			want: scanner.Scanner{Name: "ECAT 962", NumDetectorsPerRing: 576, NumRings: 4, RingRadius: 412, RingSpacing: 4.82},
		},
		{
			name: "custom",
			in:   scanner.Scanner{NumDetectorsPerRing: 16, NumRings: 2, RingRadius: 50, RingSpacing: 2},
			want: scanner.Scanner{Name: "custom", NumDetectorsPerRing: 16, NumRings: 2, RingRadius: 50, RingSpacing: 2},
		},
		{
			name: "every field replaced",
			in:   scanner.Scanner{Name: "ECAT 962", NumDetectorsPerRing: 16, NumRings: 2, RingRadius: 50, RingSpacing: 2},
			want: scanner.Scanner{Name: "custom", NumDetectorsPerRing: 16, NumRings: 2, RingRadius: 50, RingSpacing: 2},
		},
		{
			name: "every field restated",
			in:   scanner.Scanner{Name: "ECAT 962", NumDetectorsPerRing: 576, NumRings: 32, RingRadius: 412, RingSpacing: 4.82},
			want: scanner.Scanner{Name: "ECAT 962", NumDetectorsPerRing: 576, NumRings: 32, RingRadius: 412, RingSpacing: 4.82},
		},
		{name: "unknown model", in: scanner.Scanner{Name: "nope"}, wantErr: true},
		{name: "odd detectors", in: scanner.Scanner{NumDetectorsPerRing: 15, NumRings: 2, RingRadius: 50, RingSpacing: 2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Scanner = tt.in
			got, err := cfg.BuildScanner()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, *got); diff != "" {
				t.Errorf("Scanner mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"unknown scanner", func(c *Config) { c.Scanner.Name = "nope" }},
		{"ring difference", func(c *Config) { c.Projection.MaxRingDifference = -2 }},
		{"views", func(c *Config) { c.Projection.NumViews = -1 }},
		{"cores", func(c *Config) { c.Processing.NumCores = 0 }},
		{"layout", func(c *Config) { c.ListMode.Layout.RSectors = 0 }},
		{"energy window", func(c *Config) { c.ListMode.Filter.UpEnergy = 0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoadInvalidFile(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.yaml")
	if err := os.WriteFile(garbage, []byte("scanner: [1, 2"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(garbage); err == nil {
		t.Error("Expected a parse error")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("processing:\n  numCores: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(invalid); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestCustomGeometryWithoutName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petgeom.yaml")
	data := "scanner:\n  numDetectorsPerRing: 16\n  numRings: 2\n  ringRadius: 50\n  ringSpacing: 2\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	s, err := cfg.BuildScanner()
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "custom" {
		t.Errorf("Expected scanner name custom, got %q", s.Name)
	}
}

func TestBuildProjectionRejectsBadViews(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scanner = scanner.Scanner{NumDetectorsPerRing: 8, NumRings: 2, RingRadius: 100, RingSpacing: 5}
	cfg.Projection.NumViews = 3
	if _, err := cfg.BuildProjection(); err == nil {
		t.Error("Expected an error for 3 views on 8 detectors")
	}
}
