package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/fantasy-bet-core/internal/api/dto"
	"github.com/radieske/fantasy-bet-core/internal/bets"
	"github.com/radieske/fantasy-bet-core/internal/catalog"
	"github.com/radieske/fantasy-bet-core/internal/external"
	"github.com/radieske/fantasy-bet-core/internal/pricing"
	"github.com/radieske/fantasy-bet-core/internal/staking"
	"github.com/radieske/fantasy-bet-core/internal/wallet"
)

type stubSchedule struct {
	events []external.Event
}

func (s *stubSchedule) ListOpenEvents(context.Context, string) ([]external.Event, error) {
	return s.events, nil
}

func (s *stubSchedule) GetEvent(_ context.Context, eventID string) (*external.Event, error) {
	for _, ev := range s.events {
		if ev.ID == eventID {
			cp := ev
			return &cp, nil
		}
	}
	return nil, external.ErrEventNotFound
}

type stubProjections struct {
	points map[string]float64
}

func (s *stubProjections) GetProjection(_ context.Context, ref string) (float64, error) {
	return s.points[ref], nil
}

// Stack completo em memória: API, manager, catálogo, carteira
func newTestServer(t *testing.T) (*httptest.Server, *wallet.Memory) {
	t.Helper()

	ledger := wallet.NewMemory()
	store := bets.NewMemory(ledger)
	eng := pricing.New(0.06, 10)

	sched := &stubSchedule{events: []external.Event{
		{ID: "evt-1", LeagueID: "l1", Kind: "MATCHUP", HomeRef: "roster-a", AwayRef: "roster-b", StartsAt: time.Now().Add(time.Hour)},
	}}
	proj := &stubProjections{points: map[string]float64{"roster-a": 100, "roster-b": 100}}

	cat := catalog.New(zap.NewNop(), sched, proj, eng, store)
	manager := bets.NewManager(zap.NewNop(), store, cat, eng, sched, bets.Config{
		MinStakeCents: 100,
		MaxStakeCents: 100000,
	})

	srv := NewServer(zap.NewNop(), manager, cat, ledger, eng, staking.NewAdvisor(0.25))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, ledger
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	defer res.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

func TestDepositEBalance(t *testing.T) {
	ts, _ := newTestServer(t)

	res := postJSON(t, ts.URL+"/v1/wallet/deposit", dto.DepositRequest{UserID: "user-1", AmountCents: 10000})
	require.Equal(t, http.StatusOK, res.StatusCode)
	bal := decode[dto.BalanceResponse](t, res)
	assert.Equal(t, int64(10000), bal.AvailableCents)

	res2, err := http.Get(ts.URL + "/v1/wallet?userId=user-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res2.StatusCode)
	bal = decode[dto.BalanceResponse](t, res2)
	assert.Equal(t, int64(10000), bal.AvailableCents)
	assert.Equal(t, int64(10000), bal.TotalCents)
}

func TestDeposit_PayloadInvalido(t *testing.T) {
	ts, _ := newTestServer(t)

	res := postJSON(t, ts.URL+"/v1/wallet/deposit", dto.DepositRequest{UserID: "user-1", AmountCents: -5})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res.Body.Close()
}

func TestPlaceBet_FluxoHTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	postJSON(t, ts.URL+"/v1/wallet/deposit", dto.DepositRequest{UserID: "user-1", AmountCents: 10000}).Body.Close()

	res := postJSON(t, ts.URL+"/v1/bets", dto.PlaceBetRequest{
		UserID:     "user-1",
		LeagueID:   "l1",
		BetType:    "MATCHUP",
		EventID:    "evt-1",
		PickRef:    "roster-a",
		StakeCents: 4000,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	bet := decode[dto.BetResponse](t, res)
	assert.Equal(t, "PENDING", bet.Status)
	assert.Equal(t, int64(1886), bet.OddsMilli)
	assert.NotEmpty(t, bet.BetID)

	// saldo refletiu a reserva
	res2, err := http.Get(ts.URL + "/v1/wallet?userId=user-1")
	require.NoError(t, err)
	bal := decode[dto.BalanceResponse](t, res2)
	assert.Equal(t, int64(6000), bal.AvailableCents)
	assert.Equal(t, int64(4000), bal.LockedCents)

	// GET da aposta individual
	res3, err := http.Get(ts.URL + "/v1/bets/" + bet.BetID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res3.StatusCode)
	got := decode[dto.BetResponse](t, res3)
	assert.Equal(t, bet.BetID, got.BetID)
}

func TestPlaceBet_SaldoInsuficiente402(t *testing.T) {
	ts, _ := newTestServer(t)

	res := postJSON(t, ts.URL+"/v1/bets", dto.PlaceBetRequest{
		UserID:     "user-1",
		LeagueID:   "l1",
		BetType:    "MATCHUP",
		EventID:    "evt-1",
		PickRef:    "roster-a",
		StakeCents: 4000,
	})
	assert.Equal(t, http.StatusPaymentRequired, res.StatusCode)
	res.Body.Close()
}

func TestPlaceBet_SelecaoInvalida422(t *testing.T) {
	ts, _ := newTestServer(t)
	postJSON(t, ts.URL+"/v1/wallet/deposit", dto.DepositRequest{UserID: "user-1", AmountCents: 10000}).Body.Close()

	res := postJSON(t, ts.URL+"/v1/bets", dto.PlaceBetRequest{
		UserID:     "user-1",
		LeagueID:   "l1",
		BetType:    "MATCHUP",
		EventID:    "evt-1",
		PickRef:    "roster-z",
		StakeCents: 4000,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	res.Body.Close()
}

func TestCancelBet_HTTP(t *testing.T) {
	ts, _ := newTestServer(t)
	postJSON(t, ts.URL+"/v1/wallet/deposit", dto.DepositRequest{UserID: "user-1", AmountCents: 10000}).Body.Close()

	res := postJSON(t, ts.URL+"/v1/bets", dto.PlaceBetRequest{
		UserID: "user-1", LeagueID: "l1", BetType: "MATCHUP",
		EventID: "evt-1", PickRef: "roster-a", StakeCents: 4000,
	})
	bet := decode[dto.BetResponse](t, res)

	res2 := postJSON(t, ts.URL+"/v1/bets/"+bet.BetID+"/cancel", dto.CancelBetRequest{UserID: "user-1"})
	require.Equal(t, http.StatusOK, res2.StatusCode)
	cancelled := decode[dto.BetResponse](t, res2)
	assert.Equal(t, "CANCELLED", cancelled.Status)

	// segundo cancelamento conflita
	res3 := postJSON(t, ts.URL+"/v1/bets/"+bet.BetID+"/cancel", dto.CancelBetRequest{UserID: "user-1"})
	assert.Equal(t, http.StatusConflict, res3.StatusCode)
	res3.Body.Close()

	// cancelar aposta de outro usuário é proibido
	res4 := postJSON(t, ts.URL+"/v1/bets/"+bet.BetID+"/cancel", dto.CancelBetRequest{UserID: "user-2"})
	assert.Equal(t, http.StatusForbidden, res4.StatusCode)
	res4.Body.Close()
}

func TestGetBet_NaoEncontrada404(t *testing.T) {
	ts, _ := newTestServer(t)

	res, err := http.Get(ts.URL + "/v1/bets/nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res.Body.Close()
}

func TestListBets_HTTP(t *testing.T) {
	ts, _ := newTestServer(t)
	postJSON(t, ts.URL+"/v1/wallet/deposit", dto.DepositRequest{UserID: "user-1", AmountCents: 10000}).Body.Close()
	postJSON(t, ts.URL+"/v1/bets", dto.PlaceBetRequest{
		UserID: "user-1", LeagueID: "l1", BetType: "MATCHUP",
		EventID: "evt-1", PickRef: "roster-a", StakeCents: 4000,
	}).Body.Close()

	res, err := http.Get(ts.URL + "/v1/bets?userId=user-1&status=PENDING")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	list := decode[[]dto.BetResponse](t, res)
	assert.Len(t, list, 1)
}

func TestGetMarkets_HTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	res, err := http.Get(ts.URL + "/v1/markets?userId=user-1&leagueId=l1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	board := decode[catalog.Board](t, res)
	assert.Len(t, board.Matchups, 2)

	// sem os parâmetros obrigatórios
	res2, err := http.Get(ts.URL + "/v1/markets")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res2.StatusCode)
	res2.Body.Close()
}

func TestCalculateOdds_HTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	res, err := http.Get(ts.URL + "/v1/odds?betType=MATCHUP&eventId=evt-1&pickRef=roster-a")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	odds := decode[dto.OddsResponse](t, res)
	assert.Equal(t, int64(1886), odds.OddsMilli)

	res2, err := http.Get(ts.URL + "/v1/odds?betType=MATCHUP&eventId=nope&pickRef=roster-a")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, res2.StatusCode)
	res2.Body.Close()
}

func TestCalculatePayout_HTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	res := postJSON(t, ts.URL+"/v1/pricing/payout", dto.PayoutRequest{StakeCents: 4000, OddsMilli: 1850})
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decode[dto.PayoutResponse](t, res)
	assert.Equal(t, int64(7400), out.PayoutCents)

	res2 := postJSON(t, ts.URL+"/v1/pricing/payout", dto.PayoutRequest{StakeCents: -1, OddsMilli: 1850})
	assert.Equal(t, http.StatusBadRequest, res2.StatusCode)
	res2.Body.Close()
}

func TestRecommendStake_HTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	res := postJSON(t, ts.URL+"/v1/staking/recommend", dto.RecommendStakeRequest{
		BankrollCents:  100000,
		OddsMilli:      2000,
		WinProbability: 0.55,
	})
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decode[dto.RecommendStakeResponse](t, res)
	assert.Equal(t, int64(10000), out.RecommendedCents)
}

func TestListTransactions_HTTP(t *testing.T) {
	ts, _ := newTestServer(t)
	postJSON(t, ts.URL+"/v1/wallet/deposit", dto.DepositRequest{UserID: "user-1", AmountCents: 10000}).Body.Close()
	postJSON(t, ts.URL+"/v1/bets", dto.PlaceBetRequest{
		UserID: "user-1", LeagueID: "l1", BetType: "MATCHUP",
		EventID: "evt-1", PickRef: "roster-a", StakeCents: 4000,
	}).Body.Close()

	res, err := http.Get(ts.URL + "/v1/wallet/transactions?userId=user-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	txs := decode[[]dto.TransactionResponse](t, res)
	require.Len(t, txs, 2)
	assert.Equal(t, "STAKE", txs[0].Kind)
	assert.Equal(t, "PURCHASE", txs[1].Kind)

	// paginação negativa na query não derruba o endpoint
	res2, err := http.Get(ts.URL + "/v1/wallet/transactions?userId=user-1&limit=-1&offset=-5")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res2.StatusCode)
	txs = decode[[]dto.TransactionResponse](t, res2)
	assert.Len(t, txs, 2)
}
