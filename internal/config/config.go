package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Simulation SimulationConfig `toml:"simulation"`
	Loop       LoopConfig       `toml:"loop"`
	Data       DataConfig       `toml:"data"`
	Scripting  ScriptingConfig  `toml:"scripting"`
	Database   DatabaseConfig   `toml:"database"`
	Digest     DigestConfig     `toml:"digest"`
	Logging    LoggingConfig    `toml:"logging"`
}

// ThrottleConfig holds the per-work-type advance periods, in ticks.
type ThrottleConfig struct {
	None              uint64 `toml:"none"`
	Produce           uint64 `toml:"produce"`
	Move              uint64 `toml:"move"`
	Mine              uint64 `toml:"mine"`
	Refine            uint64 `toml:"refine"`
	Attack            uint64 `toml:"attack"`
	UnderConstruction uint64 `toml:"under_construction"`
}

// SimulationConfig is the [simulation] section. Wrecks are only removed on
// housekeeping ticks (multiples of CleanupPeriod), so a wreck destroyed at
// tick d leaves at the first such tick t with t-d >= WreckageTicks, at most
// CleanupPeriod-1 ticks after its age reached WreckageTicks.
type SimulationConfig struct {
	Throttle         ThrottleConfig `toml:"throttle"`
	BuildRangeTiles  int32          `toml:"build_range_tiles"`
	WreckageTicks    uint64         `toml:"wreckage_ticks"`     // ticks a wreck stays before removal
	CleanupPeriod    uint64         `toml:"cleanup_period"`     // max-advance-count boundary
	ImpactTicks      uint64         `toml:"impact_ticks"`       // lifetime of an impact effect
	MoveBlockedLimit int            `toml:"move_blocked_limit"` // blocked steps before a move gives up
	RefineRangeTiles int32          `toml:"refine_range_tiles"`
}

type LoopConfig struct {
	TickRate         time.Duration `toml:"tick_rate"`
	MaxTicks         uint64        `toml:"max_ticks"` // 0 = run until signalled
	AdvancesPerFrame int           `toml:"advances_per_frame"`
}

type DataConfig struct {
	UnitList string `toml:"unit_list"`
	MapList  string `toml:"map_list"`
	TileDir  string `toml:"tile_dir"`
	Map      string `toml:"map"`
	Scenario string `toml:"scenario"`
	// ReplayIn replaces the scenario's orders with a recorded replay file.
	ReplayIn  string `toml:"replay_in"`
	ReplayOut string `toml:"replay_out"` // empty = no replay file
}

type ScriptingConfig struct {
	Dir string `toml:"dir"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty disables the digest ledger
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type DigestConfig struct {
	Interval      uint64 `toml:"interval"`
	VerifySession int64  `toml:"verify_session"` // 0 = record only
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	t := c.Simulation.Throttle
	for name, p := range map[string]uint64{
		"none": t.None, "produce": t.Produce, "move": t.Move, "mine": t.Mine,
		"refine": t.Refine, "attack": t.Attack, "under_construction": t.UnderConstruction,
	} {
		if p == 0 {
			return fmt.Errorf("simulation.throttle.%s must be >= 1", name)
		}
	}
	if c.Simulation.CleanupPeriod == 0 {
		return fmt.Errorf("simulation.cleanup_period must be >= 1")
	}
	if c.Simulation.BuildRangeTiles < 0 {
		return fmt.Errorf("simulation.build_range_tiles must not be negative")
	}
	if c.Loop.TickRate <= 0 {
		return fmt.Errorf("loop.tick_rate must be positive")
	}
	if c.Loop.AdvancesPerFrame < 1 {
		return fmt.Errorf("loop.advances_per_frame must be >= 1")
	}
	return nil
}

// Defaults returns the configuration used when a key is absent from the file.
func Defaults() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Throttle: ThrottleConfig{
				None:              10,
				Produce:           1,
				Move:              1,
				Mine:              40,
				Refine:            40,
				Attack:            5,
				UnderConstruction: 30,
			},
			BuildRangeTiles:  5,
			WreckageTicks:    400,
			CleanupPeriod:    20,
			ImpactTicks:      8,
			MoveBlockedLimit: 30,
			RefineRangeTiles: 2,
		},
		Loop: LoopConfig{
			TickRate:         50 * time.Millisecond,
			MaxTicks:         0,
			AdvancesPerFrame: 1,
		},
		Data: DataConfig{
			UnitList: "data/yaml/unit_list.yaml",
			MapList:  "data/yaml/map_list.yaml",
			TileDir:  "map",
			Map:      "basic",
			Scenario: "data/yaml/scenario.yaml",
		},
		Scripting: ScriptingConfig{
			Dir: "scripts",
		},
		Database: DatabaseConfig{
			DSN:             "",
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Digest: DigestConfig{
			Interval: 50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
