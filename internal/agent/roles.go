package agent

import (
	"math/rand/v2"
	"sync"

	"peerprep/interview/internal/models"
)

// RolePicker draws interviewer roles uniformly, never repeating the previous one.
type RolePicker struct {
	mu    sync.Mutex
	rng   *rand.Rand
	roles []models.InterviewerRole
}

func NewRolePicker(seed uint64) *RolePicker {
	return &RolePicker{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		roles: models.InterviewerRoles,
	}
}

func NewRandomRolePicker() *RolePicker {
	return NewRolePicker(rand.Uint64())
}

// First picks the opening role. There is no previous turn to exclude.
func (p *RolePicker) First() models.InterviewerRole {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.roles[p.rng.IntN(len(p.roles))]
}

// Next picks any role other than prev.
func (p *RolePicker) Next(prev models.InterviewerRole) models.InterviewerRole {
	candidates := make([]models.InterviewerRole, 0, len(p.roles))
	for _, r := range p.roles {
		if r != prev {
			candidates = append(candidates, r)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return candidates[p.rng.IntN(len(candidates))]
}
