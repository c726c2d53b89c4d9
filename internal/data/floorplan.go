package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wardsim/wardsim/internal/geom"
)

// Location kinds understood by the ward model.
const (
	KindRoom              = "room"
	KindBed               = "bed"
	KindNurseStation      = "nurse_station"
	KindMedicationStation = "medication_station"
)

// LocationEntry is one named area of the floor plan.
type LocationEntry struct {
	Name    string       `yaml:"name"`
	Kind    string       `yaml:"type"`
	Polygon []geom.Point `yaml:"polygon"`
}

// Centroid returns the point agents walk to when visiting the location.
func (l LocationEntry) Centroid() geom.Point {
	return geom.Centroid(l.Polygon)
}

// FloorPlan is the ward geometry: the walkable outline and the areas inside it.
type FloorPlan struct {
	Name      string          `yaml:"name"`
	Boundary  []geom.Point    `yaml:"boundary"`
	Locations []LocationEntry `yaml:"locations"`
}

// LoadFloorPlan loads floorplan.yaml.
func LoadFloorPlan(path string) (*FloorPlan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read floor plan: %w", err)
	}
	return ParseFloorPlan(raw)
}

// ParseFloorPlan decodes and validates a floor plan document.
func ParseFloorPlan(raw []byte) (*FloorPlan, error) {
	var fp FloorPlan
	if err := yaml.Unmarshal(raw, &fp); err != nil {
		return nil, fmt.Errorf("parse floor plan: %w", err)
	}
	if err := fp.validate(); err != nil {
		return nil, fmt.Errorf("floor plan %q: %w", fp.Name, err)
	}
	return &fp, nil
}

func (f *FloorPlan) validate() error {
	seen := make(map[string]bool, len(f.Locations))
	counts := make(map[string]int)
	for _, loc := range f.Locations {
		if loc.Name == "" {
			return fmt.Errorf("location without name")
		}
		if seen[loc.Name] {
			return fmt.Errorf("duplicate location %q", loc.Name)
		}
		seen[loc.Name] = true
		switch loc.Kind {
		case KindRoom, KindBed, KindNurseStation, KindMedicationStation:
		default:
			return fmt.Errorf("location %q: unknown type %q", loc.Name, loc.Kind)
		}
		if len(loc.Polygon) < 3 {
			return fmt.Errorf("location %q: polygon needs at least 3 points", loc.Name)
		}
		if !geom.Contains(f.Boundary, loc.Centroid()) {
			return fmt.Errorf("location %q lies outside the boundary", loc.Name)
		}
		counts[loc.Kind]++
	}
	if counts[KindNurseStation] != 1 {
		return fmt.Errorf("want exactly one nurse_station, got %d", counts[KindNurseStation])
	}
	if counts[KindMedicationStation] != 1 {
		return fmt.Errorf("want exactly one medication_station, got %d", counts[KindMedicationStation])
	}
	if counts[KindBed] == 0 {
		return fmt.Errorf("no beds")
	}
	return nil
}

// ByKind returns the locations of one kind in file order.
func (f *FloorPlan) ByKind(kind string) []LocationEntry {
	var out []LocationEntry
	for _, loc := range f.Locations {
		if loc.Kind == kind {
			out = append(out, loc)
		}
	}
	return out
}

// Count returns the number of locations loaded.
func (f *FloorPlan) Count() int {
	return len(f.Locations)
}
