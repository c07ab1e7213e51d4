package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/refnet-platform/walletops/internal/domain"
	"github.com/refnet-platform/walletops/internal/service"
	"github.com/refnet-platform/walletops/internal/store"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "endpoint"})
)

type Handler struct {
	store       *store.Store
	approvals   *service.ApprovalService
	collections *service.CollectionService
	withdrawals *service.WithdrawalService
	wallet      *service.WalletService
	logger      zerolog.Logger
}

func NewHandler(s *store.Store, ap *service.ApprovalService, col *service.CollectionService,
	wd *service.WithdrawalService, wl *service.WalletService, logger zerolog.Logger) *Handler {
	return &Handler{store: s, approvals: ap, collections: col, withdrawals: wd, wallet: wl, logger: logger}
}

// Register wires all routes onto the given subrouter.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	r.HandleFunc("/accounts/{id}", h.GetAccount).Methods("GET")
	r.HandleFunc("/accounts/{id}/approve", h.ApproveAccount).Methods("POST")
	r.HandleFunc("/accounts/{id}/payouts/{period}", h.PayoutStatus).Methods("GET")
	r.HandleFunc("/accounts/{id}/payouts/{period}/collect", h.CollectPayout).Methods("POST")
	r.HandleFunc("/accounts/{id}/locked/release", h.ReleaseLocked).Methods("POST")
	r.HandleFunc("/accounts/{id}/notifications", h.ListNotifications).Methods("GET")
	r.HandleFunc("/withdrawals", h.CreateWithdrawal).Methods("POST")
	r.HandleFunc("/withdrawals", h.ListWithdrawals).Methods("GET")
	r.HandleFunc("/withdrawals/{id}/approve", h.ApproveWithdrawal).Methods("POST")
	r.HandleFunc("/withdrawals/{id}/reject", h.RejectWithdrawal).Methods("POST")
	r.HandleFunc("/withdrawals/{id}", h.DeleteWithdrawal).Methods("DELETE")
	r.HandleFunc("/levels", h.ListLevels).Methods("GET")
	r.HandleFunc("/settings/joining-fee", h.GetJoiningFee).Methods("GET")
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UplineID *int64 `json:"upline_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", "/accounts")
		return
	}
	id, err := h.store.CreateAccount(r.Context(), req.UplineID)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error(), "POST", "/accounts")
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]int64{"id": id}, "POST", "/accounts")
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id", "GET", "/accounts/{id}")
	if !ok {
		return
	}
	acc, err := h.store.GetAccount(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "GET", "/accounts/{id}")
		return
	}
	h.respondJSON(w, http.StatusOK, acc, "GET", "/accounts/{id}")
}

// ApproveAccount is the OnUserApproved trigger: commission propagation,
// level promotion, and the recruitment counter upsert in one transaction.
func (h *Handler) ApproveAccount(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/accounts/{id}/approve"))
	defer timer.ObserveDuration()

	id, ok := h.pathID(w, r, "id", "POST", "/accounts/{id}/approve")
	if !ok {
		return
	}
	result, err := h.approvals.OnUserApproved(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "POST", "/accounts/{id}/approve")
		return
	}
	h.respondJSON(w, http.StatusOK, result, "POST", "/accounts/{id}/approve")
}

func (h *Handler) PayoutStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id", "GET", "/accounts/{id}/payouts/{period}")
	if !ok {
		return
	}
	g, ok := h.granularity(w, r, "GET", "/accounts/{id}/payouts/{period}")
	if !ok {
		return
	}
	snap, err := h.collections.Status(r.Context(), id, g)
	if err != nil {
		h.respondServiceError(w, err, "GET", "/accounts/{id}/payouts/{period}")
		return
	}
	h.respondJSON(w, http.StatusOK, snap, "GET", "/accounts/{id}/payouts/{period}")
}

func (h *Handler) CollectPayout(w http.ResponseWriter, r *http.Request) {
	endpoint := "/accounts/{id}/payouts/{period}/collect"
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", endpoint))
	defer timer.ObserveDuration()

	id, ok := h.pathID(w, r, "id", "POST", endpoint)
	if !ok {
		return
	}
	g, ok := h.granularity(w, r, "POST", endpoint)
	if !ok {
		return
	}
	result, err := h.collections.Collect(r.Context(), id, g)
	if err != nil {
		h.respondServiceError(w, err, "POST", endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, result, "POST", endpoint)
}

func (h *Handler) ReleaseLocked(w http.ResponseWriter, r *http.Request) {
	endpoint := "/accounts/{id}/locked/release"
	id, ok := h.pathID(w, r, "id", "POST", endpoint)
	if !ok {
		return
	}
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", endpoint)
		return
	}
	balance, err := h.wallet.ReleaseLocked(r.Context(), id, req.Amount)
	if err != nil {
		h.respondServiceError(w, err, "POST", endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int64{"balance": balance}, "POST", endpoint)
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	endpoint := "/accounts/{id}/notifications"
	id, ok := h.pathID(w, r, "id", "GET", endpoint)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.store.ListNotifications(r.Context(), id, limit)
	if err != nil {
		h.respondServiceError(w, err, "GET", endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, items, "GET", endpoint)
}

func (h *Handler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID int64  `json:"account_id"`
		Amount    int64  `json:"amount"`
		Fee       int64  `json:"fee"`
		Address   string `json:"address"`
		Chain     string `json:"chain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", "/withdrawals")
		return
	}
	if req.Amount <= 0 {
		h.respondError(w, http.StatusUnprocessableEntity, "Amount must be positive", "POST", "/withdrawals")
		return
	}
	created, err := h.withdrawals.Create(r.Context(), req.AccountID, req.Amount, req.Fee, req.Address, req.Chain)
	if err != nil {
		h.respondServiceError(w, err, "POST", "/withdrawals")
		return
	}
	h.respondJSON(w, http.StatusCreated, created, "POST", "/withdrawals")
}

func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.store.ListWithdrawals(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		h.respondServiceError(w, err, "GET", "/withdrawals")
		return
	}
	h.respondJSON(w, http.StatusOK, items, "GET", "/withdrawals")
}

func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	endpoint := "/withdrawals/{id}/approve"
	id, ok := h.pathID(w, r, "id", "POST", endpoint)
	if !ok {
		return
	}
	var req struct {
		AccountID int64  `json:"account_id"`
		Amount    int64  `json:"amount"`
		Reviewer  string `json:"reviewer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", endpoint)
		return
	}
	settled, err := h.withdrawals.Approve(r.Context(), id, req.AccountID, req.Amount, req.Reviewer)
	if err != nil {
		h.respondServiceError(w, err, "POST", endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, settled, "POST", endpoint)
}

func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	endpoint := "/withdrawals/{id}/reject"
	id, ok := h.pathID(w, r, "id", "POST", endpoint)
	if !ok {
		return
	}
	var req struct {
		AccountID int64  `json:"account_id"`
		Reviewer  string `json:"reviewer"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", endpoint)
		return
	}
	settled, err := h.withdrawals.Reject(r.Context(), id, req.AccountID, req.Reviewer, req.Reason)
	if err != nil {
		h.respondServiceError(w, err, "POST", endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, settled, "POST", endpoint)
}

func (h *Handler) DeleteWithdrawal(w http.ResponseWriter, r *http.Request) {
	endpoint := "/withdrawals/{id}"
	id, ok := h.pathID(w, r, "id", "DELETE", endpoint)
	if !ok {
		return
	}
	accountID, err := strconv.ParseInt(r.URL.Query().Get("account_id"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "account_id query parameter required", "DELETE", endpoint)
		return
	}
	if err := h.withdrawals.Delete(r.Context(), id, accountID); err != nil {
		h.respondServiceError(w, err, "DELETE", endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"}, "DELETE", endpoint)
}

func (h *Handler) ListLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.store.GetThresholds(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "GET", "/levels")
		return
	}
	h.respondJSON(w, http.StatusOK, levels, "GET", "/levels")
}

func (h *Handler) GetJoiningFee(w http.ResponseWriter, r *http.Request) {
	endpoint := "/settings/joining-fee"
	fee, err := h.store.GetJoiningFee(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "GET", endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int64{"joining_fee": fee}, "GET", endpoint)
}

// Helpers

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name, method, endpoint string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "Invalid id", method, endpoint)
		return 0, false
	}
	return id, true
}

func (h *Handler) granularity(w http.ResponseWriter, r *http.Request, method, endpoint string) (domain.Granularity, bool) {
	switch mux.Vars(r)["period"] {
	case "weekly":
		return domain.Weekly, true
	case "monthly":
		return domain.Monthly, true
	default:
		h.respondError(w, http.StatusBadRequest, "Period must be weekly or monthly", method, endpoint)
		return "", false
	}
}

// respondServiceError maps the domain taxonomy onto HTTP statuses. The
// body always carries the specific reason so the caller UI can render it.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error, method, endpoint string) {
	var inel *domain.IneligibleError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "Not found or already processed", method, endpoint)
	case errors.Is(err, domain.ErrAlreadyProcessed):
		h.respondError(w, http.StatusConflict, "Already processed", method, endpoint)
	case errors.As(err, &inel):
		h.respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  inel.Error(),
			"reason": string(inel.Reason),
			"detail": inel.Detail,
		}, method, endpoint)
	case errors.Is(err, domain.ErrIneligible):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error(), method, endpoint)
	case errors.Is(err, domain.ErrInvariant):
		// Data-integrity problems are not user mistakes; log loudly and
		// keep them distinct from business failures.
		h.logger.Error().Err(err).Str("endpoint", endpoint).Msg("invariant violation")
		h.respondError(w, http.StatusInternalServerError, err.Error(), method, endpoint)
	case errors.Is(err, domain.ErrTransient):
		h.respondError(w, http.StatusServiceUnavailable, "Temporary failure, retry the request", method, endpoint)
	default:
		h.logger.Error().Err(err).Str("endpoint", endpoint).Msg("unhandled error")
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", method, endpoint)
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpReqTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}
