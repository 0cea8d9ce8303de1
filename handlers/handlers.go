package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bitslow/cache"
	"bitslow/logger"
	"bitslow/metrics"
	"bitslow/models"
	"bitslow/service"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handler struct {
	svc   service.Service
	auth  service.AuthVerifier
	cache *cache.ResponseCache
	log   *zap.Logger
}

func NewHandler(
	svc service.Service,
	auth service.AuthVerifier,
	responses *cache.ResponseCache,
	log *zap.Logger,
) Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return Handler{
		svc:   svc,
		auth:  auth,
		cache: responses,
		log:   log,
	}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
}

type GenerateRequest struct {
	Value decimal.Decimal `json:"value"`
}

type ErrorResponse struct {
	Errors string `json:"errors"`
}

func (h Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := h.svc.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, AuthResponse{Token: token})
}

func (h Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, AuthResponse{Token: token})
}

func (h Handler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	requester, ok := IdentityFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "user not found in context")
		return
	}
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	coin, err := h.svc.Generate(r.Context(), requester.UserID, req.Value)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, service.ViewCoin(coin))
}

func (h Handler) BuyHandler(w http.ResponseWriter, r *http.Request) {
	requester, ok := IdentityFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "user not found in context")
		return
	}
	coinID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid coin id")
		return
	}
	if err := h.svc.Buy(r.Context(), requester.UserID, coinID); err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h Handler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	coinID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid coin id")
		return
	}
	events, err := h.svc.History(r.Context(), coinID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, events)
}

func (h Handler) CoinByBitSlowHandler(w http.ResponseWriter, r *http.Request) {
	coin, err := h.svc.CoinByBitSlow(r.Context(), mux.Vars(r)["hash"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, coin)
}

func (h Handler) ListCoinsHandler(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, "coins", func() (any, error) {
		q := r.URL.Query()
		page, err := parsePage(q)
		if err != nil {
			return nil, err
		}
		var filter models.CoinFilter
		if filter.OwnerID, err = optionalInt(q, "owner"); err != nil {
			return nil, err
		}
		if v := q.Get("available"); v != "" {
			if filter.AvailableOnly, err = strconv.ParseBool(v); err != nil {
				return nil, &models.ValidationError{Msg: "available must be a boolean"}
			}
		}
		if filter.MinValue, err = optionalDecimal(q, "min_value"); err != nil {
			return nil, err
		}
		if filter.MaxValue, err = optionalDecimal(q, "max_value"); err != nil {
			return nil, err
		}
		return h.svc.ListCoins(r.Context(), filter, page)
	})
}

func (h Handler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, "transactions", func() (any, error) {
		q := r.URL.Query()
		page, err := parsePage(q)
		if err != nil {
			return nil, err
		}
		var filter models.TransactionFilter
		if filter.UserID, err = optionalInt(q, "user"); err != nil {
			return nil, err
		}
		if filter.CoinID, err = optionalInt(q, "coin"); err != nil {
			return nil, err
		}
		if filter.From, err = optionalTime(q, "from"); err != nil {
			return nil, err
		}
		if filter.To, err = optionalTime(q, "to"); err != nil {
			return nil, err
		}
		return h.svc.ListTransactions(r.Context(), filter, page)
	})
}

func (h Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	requester, ok := IdentityFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "user not found in context")
		return
	}
	stats, err := h.svc.UserStats(r.Context(), requester.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// cached serves a paginated read from the response cache, loading and storing
// it on a miss. Failed loads are not cached.
func (h Handler) cached(w http.ResponseWriter, r *http.Request, endpoint string, load func() (any, error)) {
	key := cache.Key(endpoint, r.URL.Query())
	if h.cache != nil {
		if v, ok := h.cache.Get(key); ok {
			metrics.RecordCacheLookup(true)
			respondWithJSON(w, http.StatusOK, v)
			return
		}
		metrics.RecordCacheLookup(false)
	}
	v, err := load()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.cache != nil {
		h.cache.Put(key, v)
	}
	respondWithJSON(w, http.StatusOK, v)
}

func (h Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	log := logger.FromContext(r.Context(), h.log)
	if code >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	} else {
		log.Debug("request rejected", zap.Int("status", code), zap.Error(err))
	}
	respondWithError(w, code, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, &models.ValidationError{}):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, &models.UnauthorizedError{}):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, &models.NotFoundError{}):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, &models.AlreadyOwnedError{}),
		errors.Is(err, &models.ExhaustionError{}),
		errors.Is(err, &models.ConflictError{}):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func parsePage(q url.Values) (models.Page, error) {
	var p models.Page
	var err error
	if v := q.Get("page"); v != "" {
		if p.Page, err = strconv.Atoi(v); err != nil {
			return p, &models.ValidationError{Msg: "page must be an integer"}
		}
	}
	if v := q.Get("limit"); v != "" {
		if p.Limit, err = strconv.Atoi(v); err != nil {
			return p, &models.ValidationError{Msg: "limit must be an integer"}
		}
	}
	return p, nil
}

func optionalInt(q url.Values, name string) (*int, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, &models.ValidationError{Msg: name + " must be an integer"}
	}
	return &n, nil
}

func optionalDecimal(q url.Values, name string) (*decimal.Decimal, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, &models.ValidationError{Msg: name + " must be a number"}
	}
	return &d, nil
}

func optionalTime(q url.Values, name string) (*time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, &models.ValidationError{Msg: name + " must be an RFC 3339 timestamp"}
	}
	return &t, nil
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Errors: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
