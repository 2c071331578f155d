package pricing

import (
	"errors"
	"math"
)

// Odds em ponto fixo: milésimos do multiplicador decimal (1850 = 1.850).
// Payout = stake * odds, sempre arredondado para baixo no minor unit;
// aritmética de saldo nunca passa por float.
const (
	OddsScale = 1000

	minOddsMilli int64 = 1010    // 1.010: odds sempre > 1
	maxOddsMilli int64 = 1000000 // 1000.0: teto de sanidade
)

var (
	ErrInvalidProbability = errors.New("invalid probability")
	ErrInvalidStake       = errors.New("invalid stake")
	ErrInvalidOdds        = errors.New("invalid odds")
)

// Engine converte probabilidade implícita em odds decimais com overround
// e calcula payouts. Puro e sem estado além da configuração.
type Engine struct {
	margin float64 // margem da casa aplicada simetricamente (overround)
	scale  float64 // escala da logística sobre o diferencial projetado
}

func New(margin, logisticScale float64) *Engine {
	if logisticScale <= 0 {
		logisticScale = 10
	}
	return &Engine{margin: margin, scale: logisticScale}
}

// WinProbability mapeia o diferencial de projeção (pontos projetados do
// lado escolhido menos os do adversário) em probabilidade de vitória via
// curva logística. Diferencial zero = 50%.
func (e *Engine) WinProbability(projDiff float64) float64 {
	return 1.0 / (1.0 + math.Exp(-projDiff/e.scale))
}

// OddsMilli converte probabilidade em odds decimais com a margem embutida:
// odds = 1 / (p * (1+m)), quantizado uma única vez para milésimos.
// A soma das probabilidades implícitas do mercado excede 1 (overround).
func (e *Engine) OddsMilli(p float64) (int64, error) {
	if p <= 0 || p >= 1 || math.IsNaN(p) {
		return 0, ErrInvalidProbability
	}

	odds := 1.0 / (p * (1.0 + e.margin))
	milli := int64(math.Floor(odds * OddsScale))

	if milli < minOddsMilli {
		milli = minOddsMilli
	}
	if milli > maxOddsMilli {
		milli = maxOddsMilli
	}
	return milli, nil
}

// PayoutCents calcula stake * odds em inteiros, com floor no minor unit.
// Nunca paga mais do que o ledger consegue cobrir por arredondamento.
func (e *Engine) PayoutCents(stakeCents, oddsMilli int64) (int64, error) {
	if stakeCents <= 0 {
		return 0, ErrInvalidStake
	}
	if oddsMilli <= OddsScale || oddsMilli > maxOddsMilli {
		return 0, ErrInvalidOdds
	}
	return stakeCents * oddsMilli / OddsScale, nil
}
