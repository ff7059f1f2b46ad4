package data

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ScenarioPlayer is one participant of a scenario.
type ScenarioPlayer struct {
	ID       uint32 `yaml:"id"`
	Name     string `yaml:"name"`
	Minerals int64  `yaml:"minerals"`
}

// ScenarioUnit is a unit present at tick 0. Key names the unit so orders
// can refer to it before ids exist.
type ScenarioUnit struct {
	Key    string `yaml:"key"`
	Owner  uint32 `yaml:"owner"`
	TypeID int32  `yaml:"type"`
	X      int32  `yaml:"x"` // tiles
	Y      int32  `yaml:"y"`
	// Constructing places a facility in the UnderConstruction state.
	Constructing bool `yaml:"constructing"`
}

// ScenarioOrder is a player order applied at a fixed tick. The fields used
// depend on Kind: move/mine use X,Y; attack uses Target; produce/build use
// TypeID; place uses Player, TypeID and X,Y. A non-zero Player must own Unit.
type ScenarioOrder struct {
	Tick   uint64 `yaml:"tick"`
	Kind   string `yaml:"kind"`
	Player uint32 `yaml:"player"`
	Unit   string `yaml:"unit"`
	Target string `yaml:"target"`
	TypeID int32  `yaml:"type"`
	X      int32  `yaml:"x"`
	Y      int32  `yaml:"y"`
}

// Scenario is the initial state and the scripted order stream of a session.
type Scenario struct {
	Map     string           `yaml:"map"`
	Players []ScenarioPlayer `yaml:"players"`
	Units   []ScenarioUnit   `yaml:"units"`
	Orders  []ScenarioOrder  `yaml:"orders"`
}

// LoadScenario reads a scenario YAML. Orders are stably sorted by tick.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	keys := make(map[string]bool, len(s.Units))
	for _, u := range s.Units {
		if u.Key == "" {
			continue
		}
		if keys[u.Key] {
			return nil, fmt.Errorf("scenario: duplicate unit key %q", u.Key)
		}
		keys[u.Key] = true
	}
	sort.SliceStable(s.Orders, func(i, j int) bool { return s.Orders[i].Tick < s.Orders[j].Tick })
	return &s, nil
}
