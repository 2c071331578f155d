package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/fantasy-bet-core/internal/api/dto"
	"github.com/radieske/fantasy-bet-core/internal/api/ws"
	"github.com/radieske/fantasy-bet-core/internal/bets"
	"github.com/radieske/fantasy-bet-core/internal/catalog"
	"github.com/radieske/fantasy-bet-core/internal/pricing"
	"github.com/radieske/fantasy-bet-core/internal/staking"
	"github.com/radieske/fantasy-bet-core/internal/wallet"
)

// Server expõe a API REST (e o endpoint WS) do core de apostas
type Server struct {
	log     *zap.Logger
	manager *bets.Manager
	catalog *catalog.Catalog
	ledger  wallet.Ledger
	pricing *pricing.Engine
	advisor *staking.Advisor
	hub     *ws.Hub // opcional
}

func NewServer(log *zap.Logger, manager *bets.Manager, cat *catalog.Catalog,
	ledger wallet.Ledger, eng *pricing.Engine, advisor *staking.Advisor) *Server {
	return &Server{log: log, manager: manager, catalog: cat, ledger: ledger, pricing: eng, advisor: advisor}
}

// WithHub habilita o stream WebSocket do board de mercados
func (s *Server) WithHub(h *ws.Hub) *Server {
	s.hub = h
	return s
}

// Router retorna o roteador HTTP com todos os endpoints do core
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/v1/markets", s.getMarkets)

	r.Post("/v1/bets", s.placeBet)
	r.Get("/v1/bets", s.listBets)
	r.Get("/v1/bets/{id}", s.getBet)
	r.Post("/v1/bets/{id}/cancel", s.cancelBet)

	r.Get("/v1/wallet", s.getBalance)
	r.Post("/v1/wallet/deposit", s.deposit)
	r.Get("/v1/wallet/transactions", s.listTransactions)

	r.Get("/v1/odds", s.calculateOdds)
	r.Post("/v1/pricing/payout", s.calculatePayout)
	r.Post("/v1/staking/recommend", s.recommendStake)

	if s.hub != nil {
		r.Get("/ws/markets", s.hub.HandleWS)
	}
	return r
}

// getMarkets retorna os mercados abertos da liga para o usuário
func (s *Server) getMarkets(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	leagueID := r.URL.Query().Get("leagueId")
	if userID == "" || leagueID == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "userId and leagueId required"})
		return
	}
	board, err := s.catalog.AvailableBets(r.Context(), userID, leagueID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// placeBet coloca uma aposta: valida, congela odds e reserva o stake
func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}

	sel := bets.Selection{BetType: bets.Type(req.BetType), EventID: req.EventID, PickRef: req.PickRef}
	b, err := s.manager.PlaceBet(r.Context(), req.UserID, req.LeagueID, sel, req.StakeCents)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBetResponse(b))
}

// cancelBet devolve o stake de uma aposta PENDING dentro da janela
func (s *Server) cancelBet(w http.ResponseWriter, r *http.Request) {
	betID := chi.URLParam(r, "id")
	var req dto.CancelBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "userId required"})
		return
	}

	b, err := s.manager.CancelBet(r.Context(), req.UserID, betID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBetResponse(b))
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	b, err := s.manager.GetBet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBetResponse(b))
}

// listBets pagina as apostas do usuário, com filtro opcional de status
func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "userId required"})
		return
	}

	f := bets.Filter{Status: bets.Status(r.URL.Query().Get("status"))}
	p := bets.Page{Limit: queryInt(r, "limit", 50), Offset: queryInt(r, "offset", 0)}

	list, err := s.manager.ListBets(r.Context(), userID, f, p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]dto.BetResponse, 0, len(list))
	for i := range list {
		out = append(out, toBetResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// getBalance retorna (criando se preciso) a carteira do usuário
func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "userId required"})
		return
	}
	wlt, err := s.ledger.GetOrCreate(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{
		UserID:         userID,
		WalletID:       wlt.ID,
		AvailableCents: wlt.AvailableCents,
		LockedCents:    wlt.LockedCents,
		TotalCents:     wlt.TotalCents(),
	})
}

// deposit credita tokens comprados (crédito externo, kind PURCHASE)
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	if req.UserID == "" || req.AmountCents <= 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid payload"})
		return
	}
	wlt, err := s.ledger.Credit(r.Context(), req.UserID, req.AmountCents, "", wallet.KindPurchase)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{
		UserID:         req.UserID,
		WalletID:       wlt.ID,
		AvailableCents: wlt.AvailableCents,
		LockedCents:    wlt.LockedCents,
		TotalCents:     wlt.TotalCents(),
	})
}

// listTransactions retorna o histórico do ledger, mais recente primeiro
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "userId required"})
		return
	}

	txs, err := s.ledger.Transactions(r.Context(), userID, queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]dto.TransactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, dto.TransactionResponse{
			ID:                  t.ID,
			AmountCents:         t.AmountCents,
			Kind:                string(t.Kind),
			RelatedBetID:        t.RelatedBetID,
			AvailableAfterCents: t.AvailableAfterCents,
			LockedAfterCents:    t.LockedAfterCents,
			CreatedAt:           t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// calculateOdds resolve as odds correntes de uma seleção
func (s *Server) calculateOdds(w http.ResponseWriter, r *http.Request) {
	sel := bets.Selection{
		BetType: bets.Type(r.URL.Query().Get("betType")),
		EventID: r.URL.Query().Get("eventId"),
		PickRef: r.URL.Query().Get("pickRef"),
	}
	if !sel.BetType.Valid() || sel.EventID == "" || sel.PickRef == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "betType, eventId and pickRef required"})
		return
	}

	q, err := s.catalog.Quote(r.Context(), sel)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.OddsResponse{
		BetType:   string(sel.BetType),
		EventID:   sel.EventID,
		PickRef:   sel.PickRef,
		OddsMilli: q.OddsMilli,
	})
}

// calculatePayout calcula stake * odds em ponto fixo
func (s *Server) calculatePayout(w http.ResponseWriter, r *http.Request) {
	var req dto.PayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	payout, err := s.pricing.PayoutCents(req.StakeCents, req.OddsMilli)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dto.PayoutResponse{PayoutCents: payout})
}

// recommendStake aplica o critério de Kelly (consultivo, com cap)
func (s *Server) recommendStake(w http.ResponseWriter, r *http.Request) {
	var req dto.RecommendStakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	rec, err := s.advisor.RecommendStakeCents(req.BankrollCents, req.OddsMilli, req.WinProbability)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dto.RecommendStakeResponse{RecommendedCents: rec})
}

// writeError mapeia a taxonomia de erros do core para status HTTP.
// Erros não mapeados são internos: logados e respondidos de forma genérica.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bets.ErrValidation), errors.Is(err, wallet.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, wallet.ErrInsufficientFunds):
		writeJSON(w, http.StatusPaymentRequired, dto.ErrorResponse{Error: "insufficient funds"})
	case errors.Is(err, bets.ErrNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "bet not found"})
	case errors.Is(err, bets.ErrForbidden):
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "forbidden"})
	case errors.Is(err, bets.ErrConflict):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "bet is not pending"})
	case errors.Is(err, bets.ErrMarketClosed):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "market closed"})
	case errors.Is(err, bets.ErrInvalidSelection):
		writeJSON(w, http.StatusUnprocessableEntity, dto.ErrorResponse{Error: "invalid selection"})
	default:
		s.log.Error("internal error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
	}
}

func toBetResponse(b *bets.Bet) dto.BetResponse {
	return dto.BetResponse{
		BetID:                b.ID,
		UserID:               b.UserID,
		LeagueID:             b.LeagueID,
		BetType:              string(b.BetType),
		EventID:              b.EventID,
		PickRef:              b.PickRef,
		StakeCents:           b.StakeCents,
		OddsMilli:            b.OddsMilli,
		PotentialPayoutCents: b.PotentialPayoutCents,
		Status:               string(b.Status),
		PlacedAt:             b.PlacedAt,
		SettledAt:            b.SettledAt,
	}
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
