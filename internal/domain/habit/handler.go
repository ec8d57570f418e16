package habit

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

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req createHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	habit, err := h.svc.Create(r.Context(), userID, req.Name, req.RewardMinutes)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.Created(w, habit)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	includeArchived := r.URL.Query().Get("include_archived") == "true"
	habits, err := h.svc.List(r.Context(), userID, includeArchived)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"habits": habits})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, habitID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	habit, err := h.svc.Get(r.Context(), userID, habitID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, habit)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, habitID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	var req updateHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	habit, err := h.svc.Update(r.Context(), userID, habitID, req.Name, req.RewardMinutes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, habit)
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	userID, habitID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	if err := h.svc.Archive(r.Context(), userID, habitID); err != nil {
		h.writeError(w, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, habitID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Complete(r.Context(), userID, habitID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, result)
}

func (h *Handler) Completions(w http.ResponseWriter, r *http.Request) {
	userID, habitID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(w, "days must be an integer")
			return
		}
		days = parsed
	}

	completions, err := h.svc.Completions(r.Context(), userID, habitID, days)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"completions": completions})
}

func (h *Handler) Uncomplete(w http.ResponseWriter, r *http.Request) {
	userID, habitID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	if err := h.svc.Uncomplete(r.Context(), userID, habitID); err != nil {
		h.writeError(w, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) pathIDs(w http.ResponseWriter, r *http.Request) (userID, habitID uuid.UUID, ok bool) {
	userID = middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return uuid.Nil, uuid.Nil, false
	}

	habitID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid habit id")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, habitID, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "habit not found")
	case errors.Is(err, ErrArchived):
		response.Conflict(w, "habit is archived")
	case errors.Is(err, ErrAlreadyCompleted):
		response.Conflict(w, "habit already completed today")
	case errors.Is(err, ErrNotCompleted):
		response.NotFound(w, "habit not completed today")
	default:
		response.InternalError(w)
	}
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Archive)
	r.Post("/{id}/complete", h.Complete)
	r.Delete("/{id}/complete", h.Uncomplete)
	r.Get("/{id}/completions", h.Completions)
	return r
}
