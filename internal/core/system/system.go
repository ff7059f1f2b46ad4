package system

// Phase defines execution ordering within a single host tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: apply orders due this tick
	PhaseUpdate                  // 1: engine advance
	PhasePostUpdate              // 2: notification dispatch
	PhasePersist                 // 3: digest ledger
)

// System is the interface every host-loop system implements.
type System interface {
	Phase() Phase
	Update(tick uint64)
}
