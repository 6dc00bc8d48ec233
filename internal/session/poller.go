package session

import "github.com/freedom_case_2/servicedesk/internal/models"

// Poller tracks whether the periodic reload is armed. Each Start and Stop
// moves to a new generation; a tick scheduled under an older generation
// is stale and must be dropped without rescheduling.
type Poller struct {
	gen    uint64
	active bool
}

// Start arms polling for specialists only and returns the generation
// ticks must carry.
func (p *Poller) Start(role models.Role) (uint64, bool) {
	p.gen++
	p.active = role == models.RoleSpecialist
	return p.gen, p.active
}

func (p *Poller) Stop() {
	p.gen++
	p.active = false
}

func (p *Poller) Active() bool {
	return p.active
}

func (p *Poller) Generation() uint64 {
	return p.gen
}

// Accept reports whether a tick of generation gen should run.
func (p *Poller) Accept(gen uint64) bool {
	return p.active && gen == p.gen
}
