package sim

import (
	"github.com/boson/simcore/internal/config"
	"github.com/boson/simcore/internal/dispatch"
	"github.com/boson/simcore/internal/item"
	"github.com/boson/simcore/internal/scripting"
)

// Options is the simulation context handed to NewEngine. Nothing in the
// engine reads ambient global state.
type Options struct {
	Periods          dispatch.Periods
	CleanupPeriod    uint64 // housekeeping runs on ticks divisible by it
	BuildRangeTiles  int32
	WreckageTicks    uint64 // age at which a wreck is removed
	ImpactTicks      uint64 // lifetime of an impact effect
	MoveBlockedLimit int    // consecutive blocked steps before a move gives up
	RefineRangeTiles int32
	Effects          Effects // may be nil
}

// Effects receives the audio-visual side effects of state transitions.
// Implementations must not call back into the engine.
type Effects interface {
	Explosion(id item.ID, x, y int32, tick uint64)
	Impact(target, attacker item.ID, x, y int32, tick uint64)
	Sound(name string)
}

// Formulas are the tunable game rules. *scripting.Engine implements them.
type Formulas interface {
	ProductionTicks(scripting.ProductionContext) uint32
	MineAmount(scripting.HarvestContext) int32
	RefineAmount(scripting.HarvestContext) int32
	AttackDamage(scripting.AttackContext) int32
}

// OptionsFromConfig converts the [simulation] config section.
func OptionsFromConfig(c config.SimulationConfig, fx Effects) Options {
	var p dispatch.Periods
	p[item.WorkNone] = c.Throttle.None
	p[item.WorkProduce] = c.Throttle.Produce
	p[item.WorkMove] = c.Throttle.Move
	p[item.WorkMine] = c.Throttle.Mine
	p[item.WorkRefine] = c.Throttle.Refine
	p[item.WorkAttack] = c.Throttle.Attack
	p[item.WorkUnderConstruction] = c.Throttle.UnderConstruction
	return Options{
		Periods:          p,
		CleanupPeriod:    c.CleanupPeriod,
		BuildRangeTiles:  c.BuildRangeTiles,
		WreckageTicks:    c.WreckageTicks,
		ImpactTicks:      c.ImpactTicks,
		MoveBlockedLimit: c.MoveBlockedLimit,
		RefineRangeTiles: c.RefineRangeTiles,
		Effects:          fx,
	}
}

// DefaultOptions returns the options of the default configuration.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Defaults().Simulation, nil)
}

// builtinFormulas are used when no script engine is configured. They match
// the fallbacks of the script engine.
type builtinFormulas struct{}

func (builtinFormulas) ProductionTicks(ctx scripting.ProductionContext) uint32 {
	if ctx.BuildTicks < 1 {
		return 1
	}
	return ctx.BuildTicks
}

func (builtinFormulas) MineAmount(ctx scripting.HarvestContext) int32 {
	v := ctx.Capacity / 4
	if v < 1 {
		v = 1
	}
	if room := ctx.Capacity - ctx.Carried; v > room {
		v = room
	}
	return v
}

func (builtinFormulas) RefineAmount(ctx scripting.HarvestContext) int32 {
	return ctx.Carried
}

func (builtinFormulas) AttackDamage(ctx scripting.AttackContext) int32 {
	return ctx.BaseDamage
}
