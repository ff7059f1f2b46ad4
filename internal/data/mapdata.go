package data

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Ground is the terrain class of one map tile.
type Ground uint8

const (
	GroundGrass Ground = iota
	GroundDesert
	GroundCoast // land and water units may both enter
	GroundWater
	GroundRock // impassable for everything that does not fly
	groundCount
)

func (g Ground) String() string {
	switch g {
	case GroundGrass:
		return "grass"
	case GroundDesert:
		return "desert"
	case GroundCoast:
		return "coast"
	case GroundWater:
		return "water"
	case GroundRock:
		return "rock"
	}
	return "unknown"
}

// Valid reports whether g is a known ground class.
func (g Ground) Valid() bool { return g < groundCount }

// Movement describes which terrain a unit type can enter.
type Movement uint8

const (
	MoveLand Movement = 1 << iota
	MoveWater
	MoveAir
)

// CanPass reports whether a unit with movement mv may stand on ground g.
func CanPass(g Ground, mv Movement) bool {
	if mv&MoveAir != 0 {
		return true
	}
	switch g {
	case GroundGrass, GroundDesert:
		return mv&MoveLand != 0
	case GroundCoast:
		return mv&(MoveLand|MoveWater) != 0
	case GroundWater:
		return mv&MoveWater != 0
	}
	return false
}

// MapInfo holds metadata for a single map, loaded from map_list.yaml.
type MapInfo struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	// Tile file inside the tile dir; defaults to "<name>.txt". When absent
	// from disk the map is filled with Fill.
	TileFile string `yaml:"tile_file"`
	Fill     Ground `yaml:"fill"`
}

// MapData is the terrain of one map: fixed size, one ground class per tile.
type MapData struct {
	info  MapInfo
	tiles []Ground // flat array [y * width + x]
}

// NewMapData builds an in-memory map filled with fill.
func NewMapData(name string, width, height int, fill Ground) *MapData {
	tiles := make([]Ground, width*height)
	for i := range tiles {
		tiles[i] = fill
	}
	return &MapData{
		info:  MapInfo{Name: name, Width: width, Height: height, Fill: fill},
		tiles: tiles,
	}
}

// MapTable is the set of maps listed in map_list.yaml.
type MapTable struct {
	maps map[string]*MapData
}

type mapListFile struct {
	Maps []MapInfo `yaml:"maps"`
}

// LoadMapTable loads map metadata from YAML and tile data from text files.
// yamlPath: path to map_list.yaml
// tileDir: directory containing the tile files
func LoadMapTable(yamlPath, tileDir string) (*MapTable, error) {
	raw, err := os.ReadFile(yamlPath)
	if err != nil {
		return nil, fmt.Errorf("read map list %s: %w", yamlPath, err)
	}
	var file mapListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse map list: %w", err)
	}

	table := &MapTable{maps: make(map[string]*MapData, len(file.Maps))}
	for _, info := range file.Maps {
		if info.Width <= 0 || info.Height <= 0 {
			return nil, fmt.Errorf("map %q: invalid size %dx%d", info.Name, info.Width, info.Height)
		}
		if !info.Fill.Valid() {
			return nil, fmt.Errorf("map %q: invalid fill ground %d", info.Name, info.Fill)
		}
		m := NewMapData(info.Name, info.Width, info.Height, info.Fill)
		m.info = info
		file := info.TileFile
		if file == "" {
			file = info.Name + ".txt"
		}
		if err := m.loadTileFile(filepath.Join(tileDir, file)); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("map %q: %w", info.Name, err)
		}
		table.maps[info.Name] = m
	}
	return table, nil
}

// loadTileFile reads a CSV tile file: each line is a row (one y) of
// comma-separated ground ids. '#' starts a comment line.
func (m *MapData) loadTileFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	y := 0
	for scanner.Scan() && y < m.info.Height {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		x := 0
		for _, tok := range strings.Split(line, ",") {
			if x >= m.info.Width {
				break
			}
			val, err := strconv.ParseUint(strings.TrimSpace(tok), 10, 8)
			if err != nil || !Ground(val).Valid() {
				return fmt.Errorf("%s line %d col %d: bad ground %q", path, y+1, x+1, tok)
			}
			m.tiles[y*m.info.Width+x] = Ground(val)
			x++
		}
		y++
	}
	return scanner.Err()
}

// Count returns the number of maps loaded.
func (t *MapTable) Count() int {
	return len(t.maps)
}

// Get returns a map by name, or nil if not found.
func (t *MapTable) Get(name string) *MapData {
	return t.maps[name]
}

func (m *MapData) Name() string { return m.info.Name }
func (m *MapData) Width() int   { return m.info.Width }
func (m *MapData) Height() int  { return m.info.Height }

// InMap checks if tile coordinates are within the map bounds.
func (m *MapData) InMap(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.info.Width && y < m.info.Height
}

// GroundAt returns the ground of a tile; ok is false outside the map.
func (m *MapData) GroundAt(x, y int) (Ground, bool) {
	if !m.InMap(x, y) {
		return 0, false
	}
	return m.tiles[y*m.info.Width+x], true
}

// SetGround changes one tile. Used by scenario setup and tests.
func (m *MapData) SetGround(x, y int, g Ground) {
	if m.InMap(x, y) && g.Valid() {
		m.tiles[y*m.info.Width+x] = g
	}
}

// Passable answers the map provider's only runtime question.
func (m *MapData) Passable(g Ground, mv Movement) bool {
	return CanPass(g, mv)
}
