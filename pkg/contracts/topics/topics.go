package topics

const (
	// Feed de resultados (produzido pelo serviço de apuração externo)
	BetOutcomes    = "bet_outcomes"
	BetOutcomesDLQ = "bet_outcomes_dlq"

	// Liquidações efetivadas pelo settlement-worker
	BetSettled = "bet_settled"
)
