package staking

import (
	"errors"

	"github.com/radieske/fantasy-bet-core/internal/pricing"
)

var ErrInvalidInput = errors.New("invalid staking input")

// Advisor calcula o stake recomendado pelo critério de Kelly.
// Consultivo apenas: nunca muta estado nem restringe o PlaceBet.
type Advisor struct {
	cap float64 // fração máxima do bankroll (Kelly cheio é sensível a erro de modelo)
}

func NewAdvisor(cap float64) *Advisor {
	if cap <= 0 || cap > 1 {
		cap = 0.25
	}
	return &Advisor{cap: cap}
}

// RecommendStakeCents aplica Kelly: b = odds-1, q = 1-p, f = (b*p - q) / b.
// Sem edge (f <= 0) retorna 0; caso contrário clamp(f, 0, cap) * bankroll,
// com floor no minor unit.
func (a *Advisor) RecommendStakeCents(bankrollCents int64, oddsMilli int64, winProbability float64) (int64, error) {
	if bankrollCents < 0 || oddsMilli <= pricing.OddsScale || winProbability < 0 || winProbability > 1 {
		return 0, ErrInvalidInput
	}

	b := float64(oddsMilli-pricing.OddsScale) / pricing.OddsScale
	q := 1.0 - winProbability
	f := (b*winProbability - q) / b

	if f <= 0 {
		return 0, nil
	}
	if f > a.cap {
		f = a.cap
	}
	return int64(f * float64(bankrollCents)), nil
}
