package bot

import "spellstone/internal/domain"

// Tuning weighs the expected gain of a cast against the risk of failing it.
type Tuning struct {
	// PassThreshold is the lowest expected value worth casting once passing is allowed.
	PassThreshold float64
	// HealWeight scales the value of healing by missing hit points.
	HealWeight float64
	// DamageWeight is the value of one point of damage dealt to an opponent.
	DamageWeight float64
	// SecretWeight is the value of a secret stone (one point at scoring).
	SecretWeight float64
	// FailWeight is the cost of a hit point lost on a failed cast.
	FailWeight float64
	// DeathPenalty is added when a failed cast would be lethal.
	DeathPenalty float64
	// RankPenalty discourages climbing ranks early, since it narrows later casts.
	RankPenalty float64
}

// CautiousTuning casts only when the odds clearly favour it.
var CautiousTuning = Tuning{
	PassThreshold: 0.4,
	HealWeight:    0.6,
	DamageWeight:  1.0,
	SecretWeight:  1.5,
	FailWeight:    1.2,
	DeathPenalty:  8.0,
	RankPenalty:   0.05,
}

// BoldTuning keeps casting on thin odds.
var BoldTuning = Tuning{
	PassThreshold: -0.3,
	HealWeight:    0.4,
	DamageWeight:  1.2,
	SecretWeight:  1.5,
	FailWeight:    0.8,
	DeathPenalty:  4.0,
	RankPenalty:   0.02,
}

// averageDie is the mean of the 1..3 die amount.
const averageDie = 2.0

// gain estimates what a successful cast of r is worth with the given hit points.
func (t Tuning) gain(r domain.Rank, hp, opponents int) float64 {
	missing := float64(domain.MaxHP - hp)
	switch r {
	case 1:
		return t.DamageWeight * averageDie * float64(opponents)
	case 2, 8:
		return t.HealWeight * min(missing, 1)
	case 3:
		return t.HealWeight * min(missing, averageDie)
	case 4:
		return t.SecretWeight
	case 5:
		if opponents > 1 {
			return 2 * t.DamageWeight
		}
		return t.DamageWeight
	case 6, 7:
		return t.DamageWeight
	}
	return 0
}

// loss estimates the cost of failing a cast of r with the given hit points.
func (t Tuning) loss(r domain.Rank, hp int) float64 {
	dmg := 1.0
	if r == 1 {
		dmg = averageDie
	}
	cost := t.FailWeight * dmg
	if float64(hp) <= dmg {
		cost += t.DeathPenalty
	}
	return cost
}
