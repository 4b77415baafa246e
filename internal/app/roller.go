package app

import (
	"math/rand"
	"sync"
	"time"
)

// Roller produces six-sided die rolls in 1..6.
type Roller interface {
	Roll() int
}

type randRoller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandRoller returns a Roller safe for concurrent use by every room in the
// process. A nil rng means a time-seeded source.
func NewRandRoller(rng *rand.Rand) Roller {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &randRoller{rng: rng}
}

func (r *randRoller) Roll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(6) + 1
}

// DieAmount maps a roll onto the 1..3 scale used by the dragon and the dreams.
func DieAmount(roll int) int {
	return (roll-1)%3 + 1
}
