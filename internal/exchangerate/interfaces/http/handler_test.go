package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	exchangerate "splitledger/internal/exchangerate/domain"
)

type stubService struct {
	rate      exchangerate.Rate
	err       error
	lastLimit int
}

func (s *stubService) Current(context.Context) (exchangerate.Rate, error) {
	return s.rate, s.err
}

func (s *stubService) History(_ context.Context, limit int) ([]exchangerate.LogEntry, error) {
	s.lastLimit = limit
	return []exchangerate.LogEntry{{ID: "r1", RateUSDToARS: decimal.NewFromInt(1000), Source: "bluelytics", FetchedAt: time.Unix(0, 0)}}, nil
}

func TestHandler_Current(t *testing.T) {
	svc := &stubService{rate: exchangerate.Rate{Value: decimal.RequireFromString("1230.5"), Source: "bluelytics", FetchedAt: time.Unix(0, 0), Cached: true}}
	handler, err := NewHandler(svc)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/exchange-rate/current", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var body rateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Rate != "1230.50" || !body.Cached {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestHandler_CurrentUnavailable(t *testing.T) {
	handler, _ := NewHandler(&stubService{err: exchangerate.ErrRateUnavailable})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/exchange-rate/current", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHandler_HistoryLimit(t *testing.T) {
	svc := &stubService{}
	handler, _ := NewHandler(svc)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/exchange-rate/history?limit=5", nil))
	if rec.Code != http.StatusOK || svc.lastLimit != 5 {
		t.Fatalf("unexpected status %d limit %d", rec.Code, svc.lastLimit)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/exchange-rate/history?limit=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
