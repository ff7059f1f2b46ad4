package system

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	name  string
	phase Phase
	log   *[]string
}

func (r *recorder) Phase() Phase { return r.phase }
func (r *recorder) Update(tick uint64) {
	*r.log = append(*r.log, fmt.Sprintf("%s@%d", r.name, tick))
}

func TestRunnerPhaseOrder(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(&recorder{"persist", PhasePersist, &log})
	r.Register(&recorder{"advance", PhaseUpdate, &log})
	r.Register(&recorder{"orders", PhaseInput, &log})
	r.Register(&recorder{"orders2", PhaseInput, &log})

	r.Tick(7)
	assert.Equal(t, []string{"orders@7", "orders2@7", "advance@7", "persist@7"}, log)

	log = log[:0]
	r.TickPhase(PhaseUpdate, 8)
	assert.Equal(t, []string{"advance@8"}, log)
}
