package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kolfi-labs/mindmarket/internal/service"
)

// NewRouter creates a chi router with all routes registered, request
// logging, Content-Type validation, and role-key gating on the
// administrator and oracle-updater surfaces.
func NewRouter(
	accountSvc *service.AccountService,
	orderSvc *service.OrderService,
	marketSvc *service.MarketService,
	oracleSvc *service.OracleService,
	webhookSvc *service.WebhookService,
	adminKey string,
	updaterKey string,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	// Create handlers.
	accountH := NewAccountHandler(accountSvc)
	orderH := NewOrderHandler(orderSvc)
	marketH := NewMarketHandler(marketSvc)
	oracleH := NewOracleHandler(oracleSvc)
	webhookH := NewWebhookHandler(webhookSvc)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Account routes.
	r.Post("/accounts/{account_id}/deposits", accountH.Deposit)
	r.Get("/accounts/{account_id}/balance", accountH.GetBalance)

	// Market routes.
	r.Get("/markets", marketH.List)
	r.Get("/markets/{subject_id}", marketH.Get)
	r.Get("/markets/{subject_id}/depth", marketH.GetDepth)

	// Order routes.
	r.Post("/markets/{subject_id}/orders", orderH.SubmitOrder)
	r.Get("/markets/{subject_id}/orders/{order_id}", orderH.GetOrder)
	r.Delete("/markets/{subject_id}/orders/{order_id}", orderH.CancelOrder)

	// Administrator routes.
	r.Group(func(r chi.Router) {
		r.Use(requireKey("X-Admin-Key", adminKey))
		r.Post("/markets", marketH.Create)
		r.Post("/markets/reset", marketH.Reset)
		r.Post("/markets/{subject_id}/orders/{order_id}/close", marketH.ClosePosition)
		r.Post("/markets/{subject_id}/fees/withdraw", marketH.WithdrawFee)
	})

	// Oracle routes.
	r.Get("/oracle/prices/{subject_id}", oracleH.GetPrice)
	r.Group(func(r chi.Router) {
		r.Use(requireKey("X-Updater-Key", updaterKey))
		r.Post("/oracle/prices", oracleH.Update)
	})

	// Webhook routes.
	r.Post("/webhooks", webhookH.Upsert)
	r.Get("/webhooks", webhookH.List)
	r.Delete("/webhooks/{webhook_id}", webhookH.Delete)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireKey is middleware gating a route group behind a static role
// key supplied in the given header. An empty configured key disables
// the surface entirely.
func requireKey(header, key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				WriteError(w, http.StatusForbidden, "forbidden", "this surface is disabled")
				return
			}
			supplied := r.Header.Get(header)
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) != 1 {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid "+header)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
