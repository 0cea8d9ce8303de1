package handlers

import (
	"net/http"

	"bitslow/metrics"

	"github.com/gorilla/mux"
)

func NewRouter(h Handler, limiter *RateLimiter) *mux.Router {
	r := mux.NewRouter()
	r.Use(h.RequestID, metrics.Middleware)

	r.HandleFunc("/api/register", h.RegisterHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/login", h.LoginHandler).Methods(http.MethodPost)

	r.HandleFunc("/api/coins", h.ListCoinsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/coins/generate", h.JWTMiddleware(limiter.Limit(h.GenerateHandler))).Methods(http.MethodPost)
	r.HandleFunc("/api/coins/bitslow/{hash}", h.CoinByBitSlowHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/coins/{id:[0-9]+}/history", h.HistoryHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/coins/{id:[0-9]+}/buy", h.JWTMiddleware(limiter.Limit(h.BuyHandler))).Methods(http.MethodPost)

	r.HandleFunc("/api/transactions", h.ListTransactionsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/me/stats", h.JWTMiddleware(h.StatsHandler)).Methods(http.MethodGet)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("BitSlow marketplace API"))
	}).Methods(http.MethodGet)
	return r
}
