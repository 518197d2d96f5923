package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/paycore/internal/api/httpx"
	"github.com/baharkarakas/paycore/internal/apperr"
	"github.com/baharkarakas/paycore/internal/middleware"
	"github.com/baharkarakas/paycore/internal/models"
	"github.com/baharkarakas/paycore/internal/services"
)

type SettlementHandler struct {
	svc *services.SettlementService
	log *slog.Logger
}

func NewSettlementHandler(svc *services.SettlementService, log *slog.Logger) *SettlementHandler {
	return &SettlementHandler{svc: svc, log: log}
}

// Webhook applies a signed settlement callback from the processor.
func (h *SettlementHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, httpx.MaxBodyBytes))
	if err != nil || len(body) == 0 {
		httpx.WriteAppError(w, r, h.log, apperr.Validation("request body is required"))
		return
	}
	res, err := h.svc.HandleWebhook(r.Context(), body)
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *SettlementHandler) Get(w http.ResponseWriter, r *http.Request) {
	mid, ok := middleware.MerchantID(r.Context())
	if !ok {
		httpx.WriteAppError(w, r, h.log, apperr.Authenticity("missing merchant"))
		return
	}
	d, err := h.svc.Get(r.Context(), mid, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, d)
}

// List supports ?status, ?from and ?to (YYYY-MM-DD or RFC 3339), ?sort_by,
// ?sort_order, ?limit and ?offset.
func (h *SettlementHandler) List(w http.ResponseWriter, r *http.Request) {
	mid, ok := middleware.MerchantID(r.Context())
	if !ok {
		httpx.WriteAppError(w, r, h.log, apperr.Authenticity("missing merchant"))
		return
	}
	q := r.URL.Query()
	f := models.SettlementFilter{
		Status:    models.SettlementStatus(q.Get("status")),
		SortBy:    q.Get("sort_by"),
		SortOrder: strings.ToUpper(q.Get("sort_order")),
	}
	f.Limit, f.Offset = pageParams(r)
	var err error
	if f.From, err = dateParam(q.Get("from")); err != nil {
		httpx.WriteAppError(w, r, h.log, apperr.Validation("invalid from date"))
		return
	}
	if f.To, err = dateParam(q.Get("to")); err != nil {
		httpx.WriteAppError(w, r, h.log, apperr.Validation("invalid to date"))
		return
	}
	out, err := h.svc.ListByMerchant(r.Context(), mid, f)
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func dateParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := models.ParseSettlementDate(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
