package timebank_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/habitbank/habitbank-api/internal/domain/timebank"
	"github.com/habitbank/habitbank-api/internal/middleware"
	"github.com/habitbank/habitbank-api/internal/pkg/jwt"
)

type timebankAPIResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Applied                bool `json:"applied"`
		Balance                int  `json:"balance"`
		DailyEarned            int  `json:"daily_earned"`
		DailySpent             int  `json:"daily_spent"`
		CurrentStreak          int  `json:"current_streak"`
		LongestStreak          int  `json:"longest_streak"`
		RemainingDailyCapacity int  `json:"remaining_daily_capacity"`
		Transactions           []struct {
			Type   string `json:"type"`
			Amount int    `json:"amount"`
		} `json:"transactions"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestTimebankEndpointsIntegration(t *testing.T) {
	userID := uuid.New()
	clock := newFakeClock("2026-08-30")
	svc := timebank.NewService(timebank.DefaultPolicy(), clock, newMemStore(), nil, nil)
	h := timebank.NewHandler(svc)

	jwtSvc := jwt.NewService("timebank-integration-secret", time.Hour)
	token, err := jwtSvc.GenerateAccessToken(userID)
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}

	r := chi.NewRouter()
	r.Mount("/api/v1/timebank", h.Routes(middleware.Auth(jwtSvc)))

	t.Run("GET /summary initial", func(t *testing.T) {
		resp := performTimebankRequest(t, r, token, http.MethodGet, "/api/v1/timebank/summary", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}
		body := decodeTimebankResponse(t, resp)
		if !body.Success || body.Data.Balance != 45 {
			t.Fatalf("expected success=true balance=45, got success=%v balance=%d", body.Success, body.Data.Balance)
		}
		if body.Data.RemainingDailyCapacity != 180 {
			t.Fatalf("expected full capacity 180, got %d", body.Data.RemainingDailyCapacity)
		}
	})

	t.Run("POST /earn", func(t *testing.T) {
		resp := performTimebankRequest(t, r, token, http.MethodPost, "/api/v1/timebank/earn", map[string]interface{}{
			"amount":      30,
			"source_type": "habit",
			"source_id":   "habit-1",
			"metadata":    map[string]string{"habit_name": "Morning Run"},
		})
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
		}
		body := decodeTimebankResponse(t, resp)
		if !body.Data.Applied || body.Data.Balance != 75 || body.Data.DailyEarned != 30 {
			t.Fatalf("unexpected earn result: %+v", body.Data)
		}
	})

	t.Run("POST /earn capped at daily limit", func(t *testing.T) {
		resp := performTimebankRequest(t, r, token, http.MethodPost, "/api/v1/timebank/earn", map[string]interface{}{
			"amount": 500,
		})
		body := decodeTimebankResponse(t, resp)
		if !body.Data.Applied || body.Data.DailyEarned != 180 || body.Data.Balance != 225 {
			t.Fatalf("expected capped earn to 180, got %+v", body.Data)
		}

		// Cap exhausted: still 200, applied=false.
		resp = performTimebankRequest(t, r, token, http.MethodPost, "/api/v1/timebank/earn", map[string]interface{}{
			"amount": 10,
		})
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for exhausted cap, got %d", resp.Code)
		}
		body = decodeTimebankResponse(t, resp)
		if body.Data.Applied || body.Data.Balance != 225 {
			t.Fatalf("expected applied=false balance=225, got %+v", body.Data)
		}
	})

	t.Run("POST /spend insufficient balance", func(t *testing.T) {
		resp := performTimebankRequest(t, r, token, http.MethodPost, "/api/v1/timebank/spend", map[string]interface{}{
			"amount": 1000,
		})
		if resp.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", resp.Code)
		}
	})

	t.Run("POST /spend", func(t *testing.T) {
		resp := performTimebankRequest(t, r, token, http.MethodPost, "/api/v1/timebank/spend", map[string]interface{}{
			"amount":      25,
			"source_type": "app_unlock",
			"source_id":   "instagram",
		})
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}
		body := decodeTimebankResponse(t, resp)
		if !body.Data.Applied || body.Data.Balance != 200 || body.Data.DailySpent != 25 {
			t.Fatalf("unexpected spend result: %+v", body.Data)
		}
	})

	t.Run("POST /earn invalid amount", func(t *testing.T) {
		resp := performTimebankRequest(t, r, token, http.MethodPost, "/api/v1/timebank/earn", map[string]interface{}{
			"amount": -5,
		})
		if resp.Code != http.StatusUnprocessableEntity && resp.Code != http.StatusBadRequest {
			t.Fatalf("expected validation failure, got %d", resp.Code)
		}
	})

	t.Run("POST /bonus and /penalty", func(t *testing.T) {
		resp := performTimebankRequest(t, r, token, http.MethodPost, "/api/v1/timebank/bonus", map[string]interface{}{
			"amount": 400,
		})
		body := decodeTimebankResponse(t, resp)
		if body.Data.Balance != 480 {
			t.Fatalf("expected bonus clamped to max 480, got %d", body.Data.Balance)
		}

		resp = performTimebankRequest(t, r, token, http.MethodPost, "/api/v1/timebank/penalty", map[string]interface{}{
			"amount": 600,
		})
		body = decodeTimebankResponse(t, resp)
		if body.Data.Balance != -60 {
			t.Fatalf("expected penalty clamped to min -60, got %d", body.Data.Balance)
		}
	})

	t.Run("POST /streak and /streak/reset", func(t *testing.T) {
		resp := performTimebankRequest(t, r, token, http.MethodPost, "/api/v1/timebank/streak", map[string]interface{}{
			"completed_today": true,
		})
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}
		body := decodeTimebankResponse(t, resp)
		if body.Data.CurrentStreak != 1 || body.Data.LongestStreak != 1 {
			t.Fatalf("expected streak 1/1, got %d/%d", body.Data.CurrentStreak, body.Data.LongestStreak)
		}

		resp = performTimebankRequest(t, r, token, http.MethodPost, "/api/v1/timebank/streak/reset", nil)
		body = decodeTimebankResponse(t, resp)
		if body.Data.CurrentStreak != 0 || body.Data.LongestStreak != 1 {
			t.Fatalf("expected streak 0/1 after reset, got %d/%d", body.Data.CurrentStreak, body.Data.LongestStreak)
		}
	})

	t.Run("GET /transactions", func(t *testing.T) {
		resp := performTimebankRequest(t, r, token, http.MethodGet, "/api/v1/timebank/transactions?limit=2", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}
		body := decodeTimebankResponse(t, resp)
		if len(body.Data.Transactions) != 2 {
			t.Fatalf("expected 2 transactions, got %d", len(body.Data.Transactions))
		}
		if body.Data.Transactions[0].Type != "penalty" {
			t.Fatalf("expected most recent transaction first, got %s", body.Data.Transactions[0].Type)
		}
	})

	t.Run("JWT required", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/timebank/balance", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 without jwt, got %d", rec.Code)
		}
	})
}

func performTimebankRequest(t *testing.T, handler http.Handler, token, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload failed: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeTimebankResponse(t *testing.T, rec *httptest.ResponseRecorder) timebankAPIResponse {
	t.Helper()
	var out timebankAPIResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response failed: %v; body=%s", err, rec.Body.String())
	}
	return out
}
