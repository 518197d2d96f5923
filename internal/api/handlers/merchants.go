package handlers

import (
	"log/slog"
	"net/http"

	"github.com/baharkarakas/paycore/internal/api/httpx"
	"github.com/baharkarakas/paycore/internal/apperr"
	"github.com/baharkarakas/paycore/internal/middleware"
	"github.com/baharkarakas/paycore/internal/models"
	"github.com/baharkarakas/paycore/internal/services"
)

type MerchantHandler struct {
	svc *services.MerchantService
	log *slog.Logger
}

func NewMerchantHandler(svc *services.MerchantService, log *slog.Logger) *MerchantHandler {
	return &MerchantHandler{svc: svc, log: log}
}

type createMerchantResp struct {
	Merchant models.Merchant `json:"merchant"`
	APIKey   string          `json:"api_key"`
}

// Create onboards a merchant. The API key is only ever shown here.
func (h *MerchantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.NewMerchant
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	m, key, err := h.svc.Create(r.Context(), req)
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, createMerchantResp{Merchant: m, APIKey: key})
}

func (h *MerchantHandler) Me(w http.ResponseWriter, r *http.Request) {
	mid, ok := middleware.MerchantID(r.Context())
	if !ok {
		httpx.WriteAppError(w, r, h.log, apperr.Authenticity("missing merchant"))
		return
	}
	m, err := h.svc.Get(r.Context(), mid)
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, m)
}

// List is an operator view over all merchants.
func (h *MerchantHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	out, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	if out == nil {
		out = []models.Merchant{}
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

type tokenReq struct {
	Email  string `json:"email"`
	APIKey string `json:"api_key"`
}

func (h *MerchantHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	if req.Email == "" || req.APIKey == "" {
		httpx.WriteAppError(w, r, h.log, apperr.Validation("email and api_key are required"))
		return
	}
	pair, err := h.svc.IssueToken(r.Context(), req.Email, req.APIKey)
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *MerchantHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if err := httpx.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		httpx.WriteAppError(w, r, h.log, apperr.Validation("refresh_token is required"))
		return
	}
	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpx.WriteAppError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}
