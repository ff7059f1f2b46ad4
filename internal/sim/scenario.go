package sim

import (
	"fmt"

	"github.com/boson/simcore/internal/data"
	"github.com/boson/simcore/internal/item"
	"github.com/boson/simcore/internal/player"
)

// PlayersFromScenario builds the player registry of a scenario.
func PlayersFromScenario(sc *data.Scenario) (*player.Registry, error) {
	reg := player.NewRegistry()
	for _, p := range sc.Players {
		if _, err := reg.Add(p.ID, p.Name, p.Minerals); err != nil {
			return nil, fmt.Errorf("scenario players: %w", err)
		}
	}
	return reg, nil
}

// Setup places the scenario's initial units in file order and resolves the
// unit keys of its orders. It returns the key to id mapping and the orders
// sorted by tick.
func (e *Engine) Setup(sc *data.Scenario) (map[string]item.ID, []Order, error) {
	ids := make(map[string]item.ID, len(sc.Units))
	for i, su := range sc.Units {
		var (
			id  item.ID
			err error
		)
		if su.Constructing {
			id, err = e.PlaceConstruction(su.Owner, su.TypeID, int(su.X), int(su.Y))
		} else {
			id, err = e.PlaceUnit(su.Owner, su.TypeID, int(su.X), int(su.Y))
		}
		if err != nil {
			return nil, nil, fmt.Errorf("scenario unit %d (%q, type %d at %d,%d): %w",
				i, su.Key, su.TypeID, su.X, su.Y, err)
		}
		if su.Key != "" {
			ids[su.Key] = id
		}
	}

	orders := make([]Order, 0, len(sc.Orders))
	for i, so := range sc.Orders {
		kind, err := ParseOrderKind(so.Kind)
		if err != nil {
			return nil, nil, fmt.Errorf("scenario order %d: %w", i, err)
		}
		o := Order{Tick: so.Tick, Kind: kind, Player: so.Player, TypeID: so.TypeID, X: so.X, Y: so.Y}
		if so.Unit != "" {
			id, ok := ids[so.Unit]
			if !ok {
				return nil, nil, fmt.Errorf("scenario order %d: unknown unit key %q", i, so.Unit)
			}
			o.Unit = id
		}
		if so.Target != "" {
			id, ok := ids[so.Target]
			if !ok {
				return nil, nil, fmt.Errorf("scenario order %d: unknown target key %q", i, so.Target)
			}
			o.Target = id
		}
		orders = append(orders, o)
	}
	return ids, orders, nil
}
