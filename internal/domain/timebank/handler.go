package timebank

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/habitbank/habitbank-api/internal/middleware"
	"github.com/habitbank/habitbank-api/internal/pkg/response"
	"github.com/habitbank/habitbank-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	summary, err := h.svc.Summary(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, summary)
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.Balance(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]int{"balance": balance})
}

func (h *Handler) Capacity(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	capacity, err := h.svc.RemainingDailyCapacity(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]int{"remaining_daily_capacity": capacity})
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(w, "limit must be an integer")
			return
		}
		limit = parsed
	}

	transactions, err := h.svc.Transactions(r.Context(), userID, limit)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"transactions": transactions})
}

func (h *Handler) Earn(w http.ResponseWriter, r *http.Request) {
	userID, req, ok := h.decodeMutation(w, r)
	if !ok {
		return
	}

	source := Source(req.SourceType)
	if source == "" {
		source = SourceHabit
	}

	applied, err := h.svc.Earn(r.Context(), userID, req.Amount, source, req.SourceID, req.Metadata)
	if err != nil {
		h.writeMutationError(w, err)
		return
	}
	h.writeMutationResult(w, r, userID, applied)
}

func (h *Handler) Spend(w http.ResponseWriter, r *http.Request) {
	userID, req, ok := h.decodeMutation(w, r)
	if !ok {
		return
	}

	source := Source(req.SourceType)
	if source == "" {
		source = SourceAppUnlock
	}

	applied, err := h.svc.Spend(r.Context(), userID, req.Amount, source, req.SourceID, req.Metadata)
	if err != nil {
		h.writeMutationError(w, err)
		return
	}
	if !applied {
		response.Conflict(w, "not enough time in balance")
		return
	}
	h.writeMutationResult(w, r, userID, true)
}

func (h *Handler) Bonus(w http.ResponseWriter, r *http.Request) {
	h.handleAdjustment(w, r, func(r *http.Request, userID uuid.UUID, req adjustmentRequest) error {
		return h.svc.ApplyBonus(r.Context(), userID, req.Amount, SourceBonus, req.Metadata)
	})
}

func (h *Handler) Penalty(w http.ResponseWriter, r *http.Request) {
	h.handleAdjustment(w, r, func(r *http.Request, userID uuid.UUID, req adjustmentRequest) error {
		return h.svc.ApplyPenalty(r.Context(), userID, req.Amount, SourceEmergency, req.Metadata)
	})
}

func (h *Handler) UpdateStreak(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req streakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	current, longest, err := h.svc.UpdateStreak(r.Context(), userID, *req.CompletedToday)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, streakResponse{CurrentStreak: current, LongestStreak: longest})
}

func (h *Handler) ResetStreak(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	current, longest, err := h.svc.ResetStreak(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, streakResponse{CurrentStreak: current, LongestStreak: longest})
}

func (h *Handler) decodeMutation(w http.ResponseWriter, r *http.Request) (uuid.UUID, mutationRequest, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return uuid.Nil, mutationRequest{}, false
	}

	var req mutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return uuid.Nil, mutationRequest{}, false
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return uuid.Nil, mutationRequest{}, false
	}
	return userID, req, true
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request, fn func(r *http.Request, userID uuid.UUID, req adjustmentRequest) error) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req adjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	if err := fn(r, userID, req); err != nil {
		h.writeMutationError(w, err)
		return
	}
	h.writeMutationResult(w, r, userID, true)
}

func (h *Handler) writeMutationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		response.BadRequest(w, "amount must be greater than zero")
	default:
		response.InternalError(w)
	}
}

func (h *Handler) writeMutationResult(w http.ResponseWriter, r *http.Request, userID uuid.UUID, applied bool) {
	summary, err := h.svc.Summary(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, mutationResponse{Applied: applied, Summary: *summary})
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/summary", h.Summary)
	r.Get("/balance", h.Balance)
	r.Get("/capacity", h.Capacity)
	r.Get("/transactions", h.Transactions)
	r.Post("/earn", h.Earn)
	r.Post("/spend", h.Spend)
	r.Post("/bonus", h.Bonus)
	r.Post("/penalty", h.Penalty)
	r.Post("/streak", h.UpdateStreak)
	r.Post("/streak/reset", h.ResetStreak)
	return r
}
