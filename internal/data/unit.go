package data

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// WeaponProps describes a unit's single weapon.
type WeaponProps struct {
	Damage      int32  `yaml:"damage"`
	RangeTiles  int32  `yaml:"range"`
	ReloadTicks uint32 `yaml:"reload"`
}

// UnitProps is one entry of the unit-properties catalog.
type UnitProps struct {
	TypeID     int32        `yaml:"type_id"`
	Name       string       `yaml:"name"`
	Width      int32        `yaml:"width"`  // tiles
	Height     int32        `yaml:"height"` // tiles
	Health     int32        `yaml:"health"`
	SightRange int32        `yaml:"sight"` // tiles
	Speed      int32        `yaml:"speed"` // canvas pixels per tick
	Land       bool         `yaml:"land"`
	Water      bool         `yaml:"water"`
	Air        bool         `yaml:"air"`
	Facility   bool         `yaml:"facility"`
	Refinery   bool         `yaml:"refinery"`
	Produces   []int32      `yaml:"produces"`
	BuildTicks uint32       `yaml:"build_ticks"`        // production time when produced by a facility
	Steps      uint32       `yaml:"construction_steps"` // UnderConstruction advances until complete
	Harvester  bool         `yaml:"harvester"`
	Capacity   int32        `yaml:"capacity"`
	Weapon     *WeaponProps `yaml:"weapon"`
}

// Movement returns the terrain capability flags of the unit type.
func (p *UnitProps) Movement() Movement {
	var mv Movement
	if p.Land {
		mv |= MoveLand
	}
	if p.Water {
		mv |= MoveWater
	}
	if p.Air {
		mv |= MoveAir
	}
	return mv
}

// IsMobile reports whether units of this type can move at all.
func (p *UnitProps) IsMobile() bool { return !p.Facility && p.Speed > 0 }

// CanShoot reports whether the type carries a usable weapon.
func (p *UnitProps) CanShoot() bool {
	return p.Weapon != nil && p.Weapon.Damage != 0 && p.Weapon.RangeTiles > 0
}

// CanProduce reports whether a facility of this type can produce typeID.
func (p *UnitProps) CanProduce(typeID int32) bool {
	for _, t := range p.Produces {
		if t == typeID {
			return true
		}
	}
	return false
}

// UnitTable is the read-only unit catalog keyed by type id.
type UnitTable struct {
	units map[int32]*UnitProps
}

type unitListFile struct {
	Units []UnitProps `yaml:"units"`
}

// LoadUnitTable loads the catalog from YAML.
func LoadUnitTable(path string) (*UnitTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read unit list %s: %w", path, err)
	}
	var file unitListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse unit list: %w", err)
	}
	t := NewUnitTable()
	for i := range file.Units {
		if err := t.Add(file.Units[i]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func NewUnitTable() *UnitTable {
	return &UnitTable{units: make(map[int32]*UnitProps)}
}

// Add registers a unit type. Duplicate ids are rejected; zero-size
// footprints are accepted here and reported where they are used.
func (t *UnitTable) Add(p UnitProps) error {
	if _, dup := t.units[p.TypeID]; dup {
		return fmt.Errorf("unit type %d (%s): duplicate type id", p.TypeID, p.Name)
	}
	if p.Health <= 0 {
		return fmt.Errorf("unit type %d (%s): health must be positive", p.TypeID, p.Name)
	}
	t.units[p.TypeID] = &p
	return nil
}

// Get returns the properties of a unit type, or nil if not found.
func (t *UnitTable) Get(typeID int32) *UnitProps {
	return t.units[typeID]
}

// Count returns the number of unit types.
func (t *UnitTable) Count() int {
	return len(t.units)
}

// TypeIDs returns all type ids, sorted.
func (t *UnitTable) TypeIDs() []int32 {
	ids := make([]int32, 0, len(t.units))
	for id := range t.units {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
