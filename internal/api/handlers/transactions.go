package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/paycore/internal/api/httpx"
	"github.com/baharkarakas/paycore/internal/apperr"
	"github.com/baharkarakas/paycore/internal/middleware"
	"github.com/baharkarakas/paycore/internal/models"
	"github.com/baharkarakas/paycore/internal/services"
)

type TransactionHandler struct {
	svc *services.TransactionService
	log *slog.Logger
}

func NewTransactionHandler(svc *services.TransactionService, log *slog.Logger) *TransactionHandler {
	return &TransactionHandler{svc: svc, log: log}
}

func (h *TransactionHandler) merchant(w http.ResponseWriter, r *http.Request) (string, bool) {
	mid, ok := middleware.MerchantID(r.Context())
	if !ok {
		httpx.WriteAppError(w, r, h.log, apperr.Authenticity("missing merchant"))
	}
	return mid, ok
}

// Initiate records a transaction from a pipe-delimited terminal message.
func (h *TransactionHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	mid, ok := h.merchant(w, r)
	if !ok {
		return
	}
	var req services.InitiateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	tx, err := h.svc.Initiate(r.Context(), mid, req)
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, tx)
}

func (h *TransactionHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	mid, ok := h.merchant(w, r)
	if !ok {
		return
	}
	var req services.AuthorizeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	req.IdempotencyKey = r.Header.Get(middleware.IdempotencyKeyHeader)
	tx, err := h.svc.Authorize(r.Context(), mid, chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	mid, ok := h.merchant(w, r)
	if !ok {
		return
	}
	tx, err := h.svc.Get(r.Context(), mid, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}

// List returns the caller's transactions, newest first. ?status filters.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	mid, ok := h.merchant(w, r)
	if !ok {
		return
	}
	limit, offset := pageParams(r)
	out, err := h.svc.List(r.Context(), models.TransactionFilter{
		MerchantID: mid,
		Status:     models.TransactionStatus(r.URL.Query().Get("status")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
