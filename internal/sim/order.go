package sim

import (
	"fmt"

	"github.com/boson/simcore/internal/item"
	"github.com/boson/simcore/internal/wire"
)

// OrderKind selects the engine entry point an Order calls.
type OrderKind uint8

const (
	OrderMove OrderKind = iota + 1
	OrderAttack
	OrderStop
	OrderProduce
	OrderMine
	OrderBuild
	OrderPlace
)

var orderKindNames = [...]string{
	OrderMove:    "move",
	OrderAttack:  "attack",
	OrderStop:    "stop",
	OrderProduce: "produce",
	OrderMine:    "mine",
	OrderBuild:   "build",
	OrderPlace:   "place",
}

func (k OrderKind) String() string {
	if k > 0 && int(k) < len(orderKindNames) {
		return orderKindNames[k]
	}
	return fmt.Sprintf("OrderKind(%d)", uint8(k))
}

// ParseOrderKind maps a scenario order name to its kind.
func ParseOrderKind(s string) (OrderKind, error) {
	for k := OrderMove; int(k) < len(orderKindNames); k++ {
		if orderKindNames[k] == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown order kind %q", ErrInvalidOrder, s)
}

// Order is one deterministic player command. Which fields matter depends on
// Kind:
//
//	move, mine:  Unit, X, Y
//	attack:      Unit, Target
//	stop:        Unit
//	produce:     Unit (facility), TypeID
//	build:       Unit (builder), TypeID, X, Y
//	place:       Player, TypeID, X, Y
type Order struct {
	Tick   uint64
	Kind   OrderKind
	Player uint32 // issuing player; 0 skips the ownership check
	Unit   item.ID
	Target item.ID
	TypeID int32
	X, Y   int32 // tiles
}

// Apply executes o. Orders for units the issuing player does not own are
// rejected.
func (e *Engine) Apply(o Order) error {
	if o.Kind != OrderPlace && o.Player != 0 {
		u, ok := e.items.Unit(o.Unit)
		if !ok {
			return ErrUnknownItem
		}
		if u.Owner() != o.Player {
			return ErrNotOwner
		}
	}
	switch o.Kind {
	case OrderMove:
		return e.MoveUnit(o.Unit, int(o.X), int(o.Y))
	case OrderAttack:
		return e.AttackUnit(o.Unit, o.Target)
	case OrderStop:
		return e.StopUnit(o.Unit)
	case OrderProduce:
		return e.ProduceUnit(o.Unit, o.TypeID)
	case OrderMine:
		return e.MineAt(o.Unit, int(o.X), int(o.Y))
	case OrderBuild:
		_, err := e.PlaceFacility(o.Unit, o.TypeID, int(o.X), int(o.Y))
		return err
	case OrderPlace:
		_, err := e.PlaceUnit(o.Player, o.TypeID, int(o.X), int(o.Y))
		return err
	default:
		return fmt.Errorf("%w: kind %d", ErrInvalidOrder, o.Kind)
	}
}

// orderRecord tags an encoded order.
const orderRecord byte = 0x4f

// MarshalBinary encodes o for the order log.
func (o Order) MarshalBinary() ([]byte, error) {
	w := wire.NewWriterWithTag(orderRecord)
	w.WriteQ(o.Tick)
	w.WriteC(byte(o.Kind))
	w.WriteDU(o.Player)
	w.WriteQ(uint64(o.Unit))
	w.WriteQ(uint64(o.Target))
	w.WriteD(o.TypeID)
	w.WriteD(o.X)
	w.WriteD(o.Y)
	return w.Bytes(), nil
}

// UnmarshalBinary decodes an order written by MarshalBinary.
func (o *Order) UnmarshalBinary(b []byte) error {
	r := wire.NewReader(b)
	if tag := r.ReadC(); tag != orderRecord {
		return fmt.Errorf("%w: record tag 0x%02x", ErrInvalidOrder, tag)
	}
	var d Order
	d.Tick = r.ReadQ()
	d.Kind = OrderKind(r.ReadC())
	d.Player = r.ReadDU()
	d.Unit = item.ID(r.ReadQ())
	d.Target = item.ID(r.ReadQ())
	d.TypeID = r.ReadD()
	d.X = r.ReadD()
	d.Y = r.ReadD()
	if err := r.Err(); err != nil {
		return fmt.Errorf("decode order: %w", err)
	}
	if r.Remaining() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidOrder, r.Remaining())
	}
	*o = d
	return nil
}
