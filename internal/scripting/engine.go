// Package scripting hosts the Lua formula hooks of the simulation:
// production time, mining and refining yield, attack damage.
//
// Scripts run inside the lock-step tick, so the VM is opened with a
// deterministic subset of the standard library only (no os, io or
// math.random) and every result is truncated to an integer.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// APIVersion is exposed to scripts as the API_VERSION global.
const APIVersion = 1

// Engine wraps a single gopher-lua VM for formula evaluation.
// Single-goroutine access only (simulation loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory: core/ first, then rules/. Missing directories are skipped.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e, err := newEngine(log)
	if err != nil {
		return nil, err
	}
	for _, sub := range []string{"core", "rules"} {
		if err := e.loadDir(filepath.Join(scriptsDir, sub)); err != nil {
			e.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// NewEngineFromString creates an engine from inline Lua source.
func NewEngineFromString(src string, log *zap.Logger) (*Engine, error) {
	e, err := newEngine(log)
	if err != nil {
		return nil, err
	}
	if err := e.vm.DoString(src); err != nil {
		e.Close()
		return nil, fmt.Errorf("load inline script: %w", err)
	}
	return e, nil
}

func newEngine(log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: true})
	libs := []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
	for _, lib := range libs {
		if err := vm.CallByParam(lua.P{
			Fn:      vm.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			vm.Close()
			return nil, fmt.Errorf("open lua lib %q: %w", lib.name, err)
		}
	}
	// Host access and randomness would break lock-step.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		vm.SetGlobal(name, lua.LNil)
	}
	if m, ok := vm.GetGlobal("math").(*lua.LTable); ok {
		m.RawSetString("random", lua.LNil)
		m.RawSetString("randomseed", lua.LNil)
	}
	vm.SetGlobal("API_VERSION", lua.LNumber(APIVersion))
	return &Engine{vm: vm, log: log}, nil
}

// loadDir loads all .lua files in a directory in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Has reports whether the scripts define a global function name.
func (e *Engine) Has(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// ProductionContext describes a facility about to start producing a unit.
type ProductionContext struct {
	FacilityType int32
	UnitType     int32
	BuildTicks   uint32
	Queued       int
}

// ProductionTicks calls production_ticks(ctx). The default is the catalog
// build time.
func (e *Engine) ProductionTicks(ctx ProductionContext) uint32 {
	t := e.vm.NewTable()
	t.RawSetString("facility_type", lua.LNumber(ctx.FacilityType))
	t.RawSetString("unit_type", lua.LNumber(ctx.UnitType))
	t.RawSetString("build_ticks", lua.LNumber(ctx.BuildTicks))
	t.RawSetString("queued", lua.LNumber(ctx.Queued))
	v := e.callTableFunc("production_ticks", t, int(ctx.BuildTicks))
	if v < 1 {
		return 1
	}
	return uint32(v)
}

// HarvestContext describes a harvester at a field or a refinery.
type HarvestContext struct {
	UnitType int32
	Carried  int32
	Capacity int32
}

// MineAmount calls mine_amount(ctx). The result is clamped to [1, room] while
// there is room left, so a harvester always fills up eventually; the default
// fills a quarter of the capacity.
func (e *Engine) MineAmount(ctx HarvestContext) int32 {
	room := ctx.Capacity - ctx.Carried
	if room <= 0 {
		return 0
	}
	def := ctx.Capacity / 4
	if def < 1 {
		def = 1
	}
	v := int32(e.callTableFunc("mine_amount", harvestTable(e.vm, ctx), int(def)))
	return clampYield(v, room)
}

// RefineAmount calls refine_amount(ctx). The result is clamped to
// [1, carried] while anything is carried; the default unloads everything.
func (e *Engine) RefineAmount(ctx HarvestContext) int32 {
	if ctx.Carried <= 0 {
		return 0
	}
	v := int32(e.callTableFunc("refine_amount", harvestTable(e.vm, ctx), int(ctx.Carried)))
	return clampYield(v, ctx.Carried)
}

// clampYield keeps a harvest step within [1, limit]; limit is positive.
func clampYield(v, limit int32) int32 {
	if v < 1 {
		return 1
	}
	if v > limit {
		return limit
	}
	return v
}

func harvestTable(vm *lua.LState, ctx HarvestContext) *lua.LTable {
	t := vm.NewTable()
	t.RawSetString("unit_type", lua.LNumber(ctx.UnitType))
	t.RawSetString("carried", lua.LNumber(ctx.Carried))
	t.RawSetString("capacity", lua.LNumber(ctx.Capacity))
	return t
}

// AttackContext holds pre-packed data for one shot.
type AttackContext struct {
	AttackerType   int32
	TargetType     int32
	BaseDamage     int32
	TargetHealth   int32
	TargetMax      int32
	TargetFlying   bool
	TargetBuilding bool
}

// AttackDamage calls attack_damage(ctx). Negative values heal. The
// default is the weapon's base damage.
func (e *Engine) AttackDamage(ctx AttackContext) int32 {
	t := e.vm.NewTable()
	atk := e.vm.NewTable()
	atk.RawSetString("type", lua.LNumber(ctx.AttackerType))
	atk.RawSetString("damage", lua.LNumber(ctx.BaseDamage))
	t.RawSetString("attacker", atk)

	tgt := e.vm.NewTable()
	tgt.RawSetString("type", lua.LNumber(ctx.TargetType))
	tgt.RawSetString("health", lua.LNumber(ctx.TargetHealth))
	tgt.RawSetString("max_health", lua.LNumber(ctx.TargetMax))
	tgt.RawSetString("flying", lua.LBool(ctx.TargetFlying))
	tgt.RawSetString("building", lua.LBool(ctx.TargetBuilding))
	t.RawSetString("target", tgt)

	return int32(e.callTableFunc("attack_damage", t, int(ctx.BaseDamage)))
}

// callTableFunc calls an optional formula taking one context table and
// returning a number. A missing function yields def silently; a script
// error or a non-number result logs and yields def.
func (e *Engine) callTableFunc(name string, arg *lua.LTable, def int) int {
	fn, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return def
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, arg); err != nil {
		e.log.Error("lua call error", zap.String("func", name), zap.Error(err))
		return def
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	n, ok := result.(lua.LNumber)
	if !ok {
		e.log.Error("lua formula returned non-number",
			zap.String("func", name), zap.String("type", result.Type().String()))
		return def
	}
	return int(n)
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
